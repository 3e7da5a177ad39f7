// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package lidar drives a rotating 360° LIDAR range-finder over a byte
// stream: model detection, checksummed request/response transactions and
// decoding of the normal and express scan streams into angle/distance
// samples delivered to subscribed observers.
package lidar

import "time"

// Command framing
const (
	StartFlag = 0xA5

	CmdGetInfo          = 0x50
	CmdGetStatus        = 0x52
	CmdGetSampleRate    = 0x59
	CmdGetConfiguration = 0x84
	CmdStartScan        = 0x20
	CmdStopScan         = 0x25
	CmdStartExpressScan = 0x82
)

// expressScanPayload follows CmdStartExpressScan on the wire.
var expressScanPayload = []byte{0x05, 0x00, 0x00, 0x00, 0x00, 0x00, 0x22}

// Fixed response sizes
const (
	InfoResponseSize       = 27
	StatusResponseSize     = 10
	SampleRateResponseSize = 11
	ScanAckSize            = 7

	NormalFrameSize   = 5
	ExpressPacketSize = 84

	// Configuration responses are a 7 byte descriptor, 4 byte echoed
	// sub-command, then the payload.
	configHeaderSize = 11
	configNameSize   = 200

	// maxDescribedPayload bounds a described response payload: the echoed
	// sub-command plus the longest field, a mode name.
	maxDescribedPayload = 4 + configNameSize
)

// Configuration sub-commands
const (
	ConfModeCount   = 0x70
	ConfModeCost    = 0x71
	ConfModeMaxDist = 0x74
	ConfModeAnswer  = 0x75
	ConfTypicalMode = 0x7C
	ConfModeName    = 0x7F
)

// Angle handling
const (
	MaxAngle          = 360
	angleFixedPoint   = 64.0 // angles on the wire are 1/64 degree
	legacyHalfSteps   = 32.0
	denseCabinsPerPkt = 40.0
)

// Sample validity
const (
	normalPoorQuality  = 10
	minValidDistanceCM = 1.0
	DefaultSupportNum  = 2
)

// Serial speeds per series
const (
	BaudASeries = 115200
	BaudCSeries = 460800
)

// Read timeouts. They may be tuned before a device is opened but must not
// change while a scan is running.
var (
	DefaultReadTimeout = 1000 * time.Millisecond
	FirstReadTimeout   = 2000 * time.Millisecond
	DrainTimeout       = 250 * time.Millisecond
)
