// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lidar

import (
	"errors"
	"fmt"
)

// Series is a device family. The value is the lowest major model id of
// the family.
type Series uint8

const (
	SeriesA       Series = 0
	SeriesC       Series = 4
	SeriesS       Series = 6
	SeriesT       Series = 9
	SeriesM       Series = 12
	SeriesUnknown Series = 255
)

// String returns the family letter
func (s Series) String() string {
	switch s {
	case SeriesA:
		return "A"
	case SeriesC:
		return "C"
	case SeriesS:
		return "S"
	case SeriesT:
		return "T"
	case SeriesM:
		return "M"
	default:
		return "unknown"
	}
}

// seriesLadder is checked top down; the first threshold not above the
// major model id wins.
var seriesLadder = []Series{SeriesM, SeriesT, SeriesS, SeriesC}

// ClassifyModel maps a model id byte to its series and display name, e.g.
// 0x18 -> A1M8, 0x61 -> S1M1.
func ClassifyModel(modelID byte) (Series, string) {
	major := modelID >> 4
	sub := modelID & 0x0F

	series := SeriesA
	offset := byte(0)
	for _, s := range seriesLadder {
		if major >= byte(s) {
			series = s
			offset = byte(s) - 1
			break
		}
	}
	return series, fmt.Sprintf("%s%dM%d", series, major-offset, sub)
}

// Detect sends GET_INFO and classifies the answering device. A device
// that does not answer with a full info response is reported as
// SeriesUnknown with an empty name and no error, so callers can move on
// to the next candidate. Only write failures are returned as errors.
func Detect(port Port) (Series, string, error) {
	resp, err := Transact(port, infoRequest(), false, InfoResponseSize)
	if err != nil {
		var terr *TransportError
		if errors.As(err, &terr) && terr.Op == "read response" {
			return SeriesUnknown, "", nil
		}
		return SeriesUnknown, "", fmt.Errorf("detect: %w", err)
	}
	series, name := ClassifyModel(resp[7])
	return series, name, nil
}
