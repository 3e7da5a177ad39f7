// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lidar

import (
	"log"
	"time"
)

// Port is the byte transport a lidar is attached to. Implementations are
// used by one goroutine at a time.
type Port interface {
	Write(p []byte) (int, error)

	// ReadTimeout fills p, waiting at most timeout for the whole buffer.
	// It returns how many bytes arrived; a short count with a nil error
	// means the timeout expired.
	ReadTimeout(p []byte, timeout time.Duration) (int, error)
}

// Logf is the package diagnostic logger. It defaults to log.Printf.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil mutes it.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// writeAll writes the whole request or reports a TransportError.
func writeAll(port Port, op string, data []byte) error {
	n, err := port.Write(data)
	if err != nil {
		return &TransportError{Op: op, Want: len(data), Got: n, Err: err}
	}
	if n != len(data) {
		return &TransportError{Op: op, Want: len(data), Got: n}
	}
	return nil
}

// readExact reads exactly size bytes or reports a TransportError.
func readExact(port Port, op string, size int, timeout time.Duration) ([]byte, error) {
	buf := make([]byte, size)
	if err := readInto(port, op, buf, timeout); err != nil {
		return nil, err
	}
	return buf, nil
}

func readInto(port Port, op string, buf []byte, timeout time.Duration) error {
	n, err := port.ReadTimeout(buf, timeout)
	if err != nil {
		return &TransportError{Op: op, Want: len(buf), Got: n, Err: err}
	}
	if n != len(buf) {
		return &TransportError{Op: op, Want: len(buf), Got: n}
	}
	return nil
}

// drain reads until the port stays silent for one DrainTimeout and
// returns how many bytes were discarded.
func drain(port Port) int {
	buf := make([]byte, 256)
	total := 0
	for {
		n, err := port.ReadTimeout(buf, DrainTimeout)
		total += n
		if err != nil || n == 0 {
			return total
		}
	}
}
