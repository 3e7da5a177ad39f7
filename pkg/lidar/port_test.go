// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lidar

import (
	"bytes"
	"errors"
	"math/rand"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"
)

func init() {
	SetLogger(nil)
}

// ============================================================
// Test Ports
// ============================================================

// scriptedPort replies from a fixed byte queue and records every write
type scriptedPort struct {
	rx       bytes.Buffer
	writes   [][]byte
	writeErr error
	readErr  error
	timeouts []time.Duration
}

func newScriptedPort(responses ...[]byte) *scriptedPort {
	p := &scriptedPort{}
	for _, r := range responses {
		p.rx.Write(r)
	}
	return p
}

func (p *scriptedPort) Write(data []byte) (int, error) {
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	p.writes = append(p.writes, append([]byte(nil), data...))
	return len(data), nil
}

func (p *scriptedPort) ReadTimeout(buf []byte, timeout time.Duration) (int, error) {
	p.timeouts = append(p.timeouts, timeout)
	if p.readErr != nil {
		return 0, p.readErr
	}
	n, _ := p.rx.Read(buf)
	return n, nil
}

// fakeDevice streams generated scan data after a start command and
// answers like the real device to stop.
type fakeDevice struct {
	mu        sync.Mutex
	rx        bytes.Buffer
	writes    [][]byte
	streaming bool
	generate  func() []byte

	normal  func() []byte
	express func() []byte
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		normal:  sweepNormalFrames(100),
		express: sweepLegacyPackets(50),
	}
}

func (d *fakeDevice) Write(data []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writes = append(d.writes, append([]byte(nil), data...))

	if len(data) < 2 || data[0] != StartFlag {
		return len(data), nil
	}
	switch data[1] {
	case CmdStartScan:
		d.rx.Reset()
		d.rx.Write(scanAck())
		d.streaming = true
		d.generate = d.normal
	case CmdStartExpressScan:
		d.rx.Reset()
		d.rx.Write(scanAck())
		d.streaming = true
		d.generate = d.express
	case CmdStopScan:
		d.streaming = false
	}
	return len(data), nil
}

func (d *fakeDevice) ReadTimeout(buf []byte, timeout time.Duration) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for d.streaming && d.rx.Len() < len(buf) {
		d.rx.Write(d.generate())
	}
	n, _ := d.rx.Read(buf)
	return n, nil
}

// commands returns the command byte of every write
func (d *fakeDevice) commands() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	cmds := make([]byte, 0, len(d.writes))
	for _, w := range d.writes {
		cmds = append(cmds, w[1])
	}
	return cmds
}

func scanAck() []byte {
	return []byte{0xA5, 0x5A, 0x05, 0x00, 0x00, 0x40, 0x81}
}

// ============================================================
// Frame Builders
// ============================================================

// encodeNormalFrame builds a 5 byte normal scan frame
func encodeNormalFrame(newScan bool, quality byte, angle float64, distanceCM float64) []byte {
	b0 := quality << 2
	if newScan {
		b0 |= 0x01
	} else {
		b0 |= 0x02
	}
	angleQ6 := uint16(angle * angleFixedPoint)
	distQ2 := uint16(distanceCM * 10 * 4)
	return []byte{
		b0,
		byte(angleQ6&0x7F)<<1 | 0x01,
		byte(angleQ6 >> 7),
		byte(distQ2),
		byte(distQ2 >> 8),
	}
}

// encodeExpressPacket builds a checksummed 84 byte base packet
func encodeExpressPacket(startAngle float64, startFlag bool, cabins []byte) []byte {
	raw := make([]byte, ExpressPacketSize)
	angleQ6 := uint16(startAngle * angleFixedPoint)
	raw[2] = byte(angleQ6)
	raw[3] = byte(angleQ6>>8) & 0x7F
	if startFlag {
		raw[3] |= expressStartBit
	}
	copy(raw[expressHeaderSize:], cabins)
	cs := Checksum(raw[2:])
	raw[0] = expressSync1<<4 | cs&0x0F
	raw[1] = expressSync2<<4 | cs>>4
	return raw
}

// encodeLegacyCabin packs two samples into a 5 byte cabin
func encodeLegacyCabin(d1, d2 uint16, comp1, comp2 uint8) []byte {
	return []byte{
		byte(d1&0x3F)<<2 | (comp1>>4)&0x03,
		byte(d1 >> 6),
		byte(d2&0x3F)<<2 | (comp2>>4)&0x03,
		byte(d2 >> 6),
		(comp2&0x0F)<<4 | comp1&0x0F,
	}
}

func legacyCabins(distanceMM uint16) []byte {
	var cabins []byte
	for i := 0; i < legacyCabinCount; i++ {
		cabins = append(cabins, encodeLegacyCabin(distanceMM, distanceMM, 0, 0)...)
	}
	return cabins
}

func denseCabins(distanceMM uint16) []byte {
	var cabins []byte
	for i := 0; i < denseCabinCount; i++ {
		cabins = append(cabins, byte(distanceMM), byte(distanceMM>>8))
	}
	return cabins
}

// sweepNormalFrames returns a generator of one frame per degree
func sweepNormalFrames(distanceCM float64) func() []byte {
	angle := 0
	return func() []byte {
		frame := encodeNormalFrame(angle == 0, 63, float64(angle), distanceCM)
		angle = (angle + 1) % MaxAngle
		return frame
	}
}

// sweepLegacyPackets returns a generator advancing 10 degrees per packet
func sweepLegacyPackets(distanceCM float64) func() []byte {
	return sweepExpressPackets(legacyCabins(uint16(distanceCM * 10)))
}

func sweepDensePackets(distanceCM float64) func() []byte {
	return sweepExpressPackets(denseCabins(uint16(distanceCM * 10)))
}

func sweepExpressPackets(cabins []byte) func() []byte {
	angle := 0
	first := true
	return func() []byte {
		pkt := encodeExpressPacket(float64(angle), first || angle == 0, cabins)
		first = false
		angle = (angle + 10) % MaxAngle
		return pkt
	}
}

// ============================================================
// Fuzz Helpers
// ============================================================

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 200
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 200
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

// ============================================================
// Port Helper Tests
// ============================================================

func TestReadInto_ShortRead(t *testing.T) {
	port := newScriptedPort([]byte{1, 2})
	err := readInto(port, "read response", make([]byte, 4), DefaultReadTimeout)

	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if terr.Want != 4 || terr.Got != 2 {
		t.Errorf("expected 2 of 4 bytes, got %d of %d", terr.Got, terr.Want)
	}
	if !errors.Is(err, ErrTransport) {
		t.Error("TransportError should match ErrTransport")
	}
}

func TestWriteAll_Error(t *testing.T) {
	cause := errors.New("port closed")
	port := newScriptedPort()
	port.writeErr = cause

	err := writeAll(port, "write request", []byte{StartFlag, CmdGetInfo})
	if !errors.Is(err, cause) {
		t.Errorf("expected wrapped cause, got %v", err)
	}
	if !errors.Is(err, ErrTransport) {
		t.Error("expected ErrTransport")
	}
}

func TestDrain(t *testing.T) {
	port := newScriptedPort(make([]byte, 600))
	if n := drain(port); n != 600 {
		t.Errorf("expected 600 drained bytes, got %d", n)
	}
	for _, timeout := range port.timeouts {
		if timeout != DrainTimeout {
			t.Errorf("expected drain timeout %v, got %v", DrainTimeout, timeout)
		}
	}
}
