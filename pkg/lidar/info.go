// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lidar

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// DeviceInfo is the decoded GET_INFO response
type DeviceInfo struct {
	ModelID  byte
	Model    string // "0x61"
	Firmware string // "<major>.<minor>"
	Hardware string // "0x1"
	Serial   string // 16 bytes, lowercase hex
}

// ParseInfo decodes a 27 byte GET_INFO response
func ParseInfo(resp []byte) (DeviceInfo, error) {
	if len(resp) != InfoResponseSize {
		return DeviceInfo{}, &ProtocolError{
			Op:     "info",
			Reason: fmt.Sprintf("response is %d bytes, expected %d", len(resp), InfoResponseSize),
		}
	}
	return DeviceInfo{
		ModelID:  resp[7],
		Model:    fmt.Sprintf("0x%x", resp[7]),
		Firmware: fmt.Sprintf("%d.%d", resp[9], resp[8]),
		Hardware: fmt.Sprintf("0x%x", resp[10]),
		Serial:   hex.EncodeToString(resp[11:27]),
	}, nil
}

// Info queries device identification
func Info(port Port) (DeviceInfo, error) {
	resp, err := Transact(port, infoRequest(), false, InfoResponseSize)
	if err != nil {
		return DeviceInfo{}, fmt.Errorf("get info: %w", err)
	}
	return ParseInfo(resp)
}

// StatusCode is the device health state
type StatusCode uint8

const (
	StatusGood StatusCode = iota
	StatusWarning
	StatusError
)

// String returns OK, WARN or ERR; unknown codes yield an empty name.
func (s StatusCode) String() string {
	switch s {
	case StatusGood:
		return "OK"
	case StatusWarning:
		return "WARN"
	case StatusError:
		return "ERR"
	default:
		return ""
	}
}

// Status queries the device health state
func Status(port Port) (StatusCode, error) {
	resp, err := Transact(port, statusRequest(), false, StatusResponseSize)
	if err != nil {
		return 0, fmt.Errorf("get status: %w", err)
	}
	return StatusCode(resp[7]), nil
}

// SampleRate holds the time per sample of each scan type, in microseconds
type SampleRate struct {
	NormalUs  uint16
	ExpressUs uint16
}

// GetSampleRate queries the per-sample timing
func GetSampleRate(port Port) (SampleRate, error) {
	resp, err := Transact(port, sampleRateRequest(), false, SampleRateResponseSize)
	if err != nil {
		return SampleRate{}, fmt.Errorf("get sample rate: %w", err)
	}
	return SampleRate{
		NormalUs:  binary.LittleEndian.Uint16(resp[7:9]),
		ExpressUs: binary.LittleEndian.Uint16(resp[9:11]),
	}, nil
}

// ScanMode describes one entry of the device's scan mode table
type ScanMode struct {
	ID            uint16
	Name          string
	UsPerSample   uint32
	MaxSampleRate uint32 // samples per second
	MaxDistanceM  uint32
	AnswerCmdType uint8
	IsTypical     bool
}

// Configuration is the decoded scan mode table
type Configuration struct {
	ModeCount uint16
	Typical   uint16
	Modes     []ScanMode
}

// GetConfiguration walks the device scan mode table, one checksummed
// transaction per field.
func GetConfiguration(port Port) (Configuration, error) {
	var cfg Configuration

	resp, err := Transact(port, configRequest(ConfModeCount), true, configHeaderSize+2)
	if err != nil {
		return cfg, fmt.Errorf("get mode count: %w", err)
	}
	cfg.ModeCount = binary.LittleEndian.Uint16(resp[configHeaderSize:])

	resp, err = Transact(port, configRequest(ConfTypicalMode), true, configHeaderSize+2)
	if err != nil {
		return cfg, fmt.Errorf("get typical mode: %w", err)
	}
	cfg.Typical = binary.LittleEndian.Uint16(resp[configHeaderSize:])

	for id := uint16(0); id < cfg.ModeCount; id++ {
		mode, err := getScanMode(port, id)
		if err != nil {
			return cfg, fmt.Errorf("mode %d: %w", id, err)
		}
		mode.IsTypical = id == cfg.Typical
		cfg.Modes = append(cfg.Modes, mode)
	}
	return cfg, nil
}

func getScanMode(port Port, id uint16) (ScanMode, error) {
	mode := ScanMode{ID: id}

	resp, err := transactDescribed(port, configRequest(ConfModeName, id), true)
	if err != nil {
		return mode, fmt.Errorf("name: %w", err)
	}
	if len(resp) > configHeaderSize {
		name := resp[configHeaderSize:]
		if i := bytes.IndexByte(name, 0); i >= 0 {
			name = name[:i]
		}
		mode.Name = string(name)
	}

	resp, err = Transact(port, configRequest(ConfModeCost, id), true, configHeaderSize+4)
	if err != nil {
		return mode, fmt.Errorf("cost: %w", err)
	}
	mode.UsPerSample = binary.LittleEndian.Uint32(resp[configHeaderSize:]) / 256
	if mode.UsPerSample > 0 {
		mode.MaxSampleRate = 1000 * 1000 / mode.UsPerSample
	}

	resp, err = Transact(port, configRequest(ConfModeMaxDist, id), true, configHeaderSize+4)
	if err != nil {
		return mode, fmt.Errorf("max distance: %w", err)
	}
	mode.MaxDistanceM = binary.LittleEndian.Uint32(resp[configHeaderSize:]) / 256

	resp, err = Transact(port, configRequest(ConfModeAnswer, id), true, configHeaderSize+1)
	if err != nil {
		return mode, fmt.Errorf("answer type: %w", err)
	}
	mode.AnswerCmdType = resp[configHeaderSize]

	return mode, nil
}
