// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lidar

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport matches every *TransportError.
	ErrTransport = errors.New("transport error")
	// ErrProtocol matches every *ProtocolError.
	ErrProtocol = errors.New("protocol error")

	ErrNoDevice        = errors.New("no supported lidar detected")
	ErrScanRunning     = errors.New("scan is running")
	ErrModeUnsupported = errors.New("scan mode not supported by device")
)

// TransportError reports a port that could not deliver or accept the
// requested number of bytes.
type TransportError struct {
	Op   string
	Want int
	Got  int
	Err  error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: short transfer (%d of %d bytes)", e.Op, e.Got, e.Want)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrTransport) match any TransportError.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// ProtocolError reports data that arrived intact but violates the wire
// format: bad checksum, missing start flag, malformed sync bytes.
type ProtocolError struct {
	Op     string
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// Is lets errors.Is(err, ErrProtocol) match any ProtocolError.
func (e *ProtocolError) Is(target error) bool { return target == ErrProtocol }
