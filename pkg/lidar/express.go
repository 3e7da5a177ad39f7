// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lidar

import "fmt"

// Express packet layout
const (
	expressSync1      = 0xA
	expressSync2      = 0x5
	expressHeaderSize = 4
	expressStartBit   = 0x80
)

// ExpressPacket is one 84 byte express scan base packet
type ExpressPacket struct {
	StartAngle float64 // degrees
	StartFlag  bool
	Cabins     []byte // the 80 byte cabin payload
}

// ParseExpressPacket validates sync nibbles and checksum of a raw packet
// and splits it into header fields and cabin payload.
func ParseExpressPacket(raw []byte) (ExpressPacket, error) {
	if len(raw) != ExpressPacketSize {
		return ExpressPacket{}, &ProtocolError{
			Op:     "express packet",
			Reason: fmt.Sprintf("packet is %d bytes, expected %d", len(raw), ExpressPacketSize),
		}
	}
	if raw[0]>>4 != expressSync1 || raw[1]>>4 != expressSync2 {
		return ExpressPacket{}, &ProtocolError{Op: "express packet", Reason: "bad sync nibbles"}
	}

	received := (raw[1]&0x0F)<<4 | raw[0]&0x0F
	if computed := Checksum(raw[2:]); computed != received {
		return ExpressPacket{}, &ProtocolError{
			Op:     "express packet",
			Reason: fmt.Sprintf("checksum mismatch: got 0x%02X, computed 0x%02X", received, computed),
		}
	}

	angleQ6 := uint16(raw[3]&0x7F)<<8 | uint16(raw[2])
	return ExpressPacket{
		StartAngle: float64(angleQ6) / angleFixedPoint,
		StartFlag:  raw[3]&expressStartBit != 0,
		Cabins:     raw[expressHeaderSize:],
	}, nil
}

// cabinDecoder de-interpolates the cabins of prev, given the start angle
// advance to the packet that followed it.
type cabinDecoder func(prev ExpressPacket, delta float64, emit func(Measurement))

// expressDecoder holds the state shared by both express variants. Each
// packet's samples are spread over the arc up to the next packet's start
// angle, so output lags the wire by one packet.
type expressDecoder struct {
	mode    Mode
	stats   *Statistics
	prev    *ExpressPacket
	first   bool
	raw     []byte
	decode  cabinDecoder
	wrapAt0 bool // a zero advance also counts as a full turn
}

func (d *expressDecoder) Mode() Mode { return d.mode }

func (d *expressDecoder) startCommand() []byte {
	cmd := []byte{StartFlag, CmdStartExpressScan}
	return append(cmd, expressScanPayload...)
}

// readPacket finds the next sync nibble pair and reads a full packet. The
// very first packet after start must carry the start flag.
func (d *expressDecoder) readPacket(port Port) (ExpressPacket, error) {
	timeout := DefaultReadTimeout
	first := d.first
	if first {
		timeout = FirstReadTimeout
		d.first = false
	}

	skipped := 0
	for {
		if err := readInto(port, "read express packet", d.raw[0:1], timeout); err != nil {
			return ExpressPacket{}, err
		}
		timeout = DefaultReadTimeout
		if d.raw[0]>>4 != expressSync1 {
			skipped++
			continue
		}
		if err := readInto(port, "read express packet", d.raw[1:2], timeout); err != nil {
			return ExpressPacket{}, err
		}
		if d.raw[1]>>4 != expressSync2 {
			skipped += 2
			continue
		}
		break
	}
	if skipped > 0 {
		d.stats.addResync(skipped)
		Logf("%s scan: resynchronized after skipping %d bytes", d.mode, skipped)
	}

	if err := readInto(port, "read express packet", d.raw[2:], DefaultReadTimeout); err != nil {
		return ExpressPacket{}, err
	}
	if first && d.raw[3]&expressStartBit == 0 {
		return ExpressPacket{}, &ProtocolError{Op: "express packet", Reason: "first packet is missing the start flag"}
	}

	pkt, err := ParseExpressPacket(d.raw)
	if err != nil {
		d.stats.addChecksumError()
		return ExpressPacket{}, err
	}
	// d.raw is reused for the next read
	pkt.Cabins = append([]byte(nil), pkt.Cabins...)
	return pkt, nil
}

func (d *expressDecoder) next(port Port, emit func(Measurement)) error {
	if d.prev == nil {
		pkt, err := d.readPacket(port)
		if err != nil {
			return err
		}
		d.stats.addRevolution()
		d.prev = &pkt
	}

	curr, err := d.readPacket(port)
	if err != nil {
		return err
	}
	d.stats.addUnit()

	delta, wrapped := angleDelta(d.prev.StartAngle, curr.StartAngle, d.wrapAt0)
	if wrapped {
		d.stats.addRevolution()
	}
	d.decode(*d.prev, delta, emit)
	d.prev = &curr
	return nil
}

// angleDelta returns how far the start angle advanced from prev to curr,
// adding a full turn when it went backwards (or stood still, if
// wrapAtZero).
func angleDelta(prev, curr float64, wrapAtZero bool) (float64, bool) {
	delta := curr - prev
	if delta < 0 || (wrapAtZero && delta == 0) {
		return delta + MaxAngle, true
	}
	return delta, false
}
