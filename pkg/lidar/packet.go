// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lidar

import "encoding/binary"

// Response descriptor layout: A5 5A, 30-bit length + 2-bit send mode, data type
const (
	descriptorSync1 = 0xA5
	descriptorSync2 = 0x5A
	descriptorSize  = ScanAckSize
)

// EncodeRequest returns the wire form of a request, appending the XOR of
// every preceding byte when withChecksum is set.
func EncodeRequest(request []byte, withChecksum bool) []byte {
	frame := make([]byte, 0, len(request)+1)
	frame = append(frame, request...)
	if withChecksum {
		frame = append(frame, Checksum(request))
	}
	return frame
}

// Transact sends one request and reads exactly responseSize bytes back.
// A short read is a TransportError and is not retried.
func Transact(port Port, request []byte, withChecksum bool, responseSize int) ([]byte, error) {
	frame := EncodeRequest(request, withChecksum)
	if err := writeAll(port, "write request", frame); err != nil {
		return nil, err
	}
	return readExact(port, "read response", responseSize, DefaultReadTimeout)
}

// transactDescribed sends a request whose response length is announced by
// its descriptor, then reads the announced payload.
func transactDescribed(port Port, request []byte, withChecksum bool) ([]byte, error) {
	frame := EncodeRequest(request, withChecksum)
	if err := writeAll(port, "write request", frame); err != nil {
		return nil, err
	}
	desc, err := readExact(port, "read descriptor", descriptorSize, DefaultReadTimeout)
	if err != nil {
		return nil, err
	}
	length, err := parseDescriptor(desc)
	if err != nil {
		return nil, err
	}
	payload, err := readExact(port, "read response", length, DefaultReadTimeout)
	if err != nil {
		return nil, err
	}
	return append(desc, payload...), nil
}

func parseDescriptor(desc []byte) (int, error) {
	if desc[0] != descriptorSync1 || desc[1] != descriptorSync2 {
		return 0, &ProtocolError{Op: "descriptor", Reason: "bad sync bytes"}
	}
	length := binary.LittleEndian.Uint32(desc[2:6]) & 0x3FFFFFFF
	if length > maxDescribedPayload {
		return 0, &ProtocolError{Op: "descriptor", Reason: "response length out of range"}
	}
	return int(length), nil
}

func infoRequest() []byte       { return []byte{StartFlag, CmdGetInfo} }
func statusRequest() []byte     { return []byte{StartFlag, CmdGetStatus} }
func sampleRateRequest() []byte { return []byte{StartFlag, CmdGetSampleRate} }

// configRequest builds a configuration query. Per-mode queries carry the
// mode index as a 16-bit little-endian parameter.
func configRequest(sub byte, mode ...uint16) []byte {
	size := byte(4)
	if len(mode) > 0 {
		size += 2
	}
	req := []byte{StartFlag, CmdGetConfiguration, size, sub, 0, 0, 0}
	if len(mode) > 0 {
		req = append(req, byte(mode[0]), byte(mode[0]>>8))
	}
	return req
}
