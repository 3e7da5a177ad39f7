// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lidar

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

// ============================================================
// Base Packet Tests
// ============================================================

func TestParseExpressPacket(t *testing.T) {
	cabins := legacyCabins(1000)
	raw := encodeExpressPacket(123.5, true, cabins)

	pkt, err := ParseExpressPacket(raw)
	require.NoError(t, err)
	require.Equal(t, 123.5, pkt.StartAngle)
	require.True(t, pkt.StartFlag)
	require.Equal(t, cabins, pkt.Cabins)
}

func TestParseExpressPacket_Rejects(t *testing.T) {
	valid := encodeExpressPacket(10, false, legacyCabins(500))

	tests := []struct {
		name    string
		corrupt func([]byte) []byte
	}{
		{"payload byte flipped", func(b []byte) []byte { b[40] ^= 0x01; return b }},
		{"start angle changed", func(b []byte) []byte { b[2]++; return b }},
		{"checksum nibble changed", func(b []byte) []byte { b[0] ^= 0x01; return b }},
		{"bad first sync nibble", func(b []byte) []byte { b[0] = 0xB0 | b[0]&0x0F; return b }},
		{"bad second sync nibble", func(b []byte) []byte { b[1] = 0x60 | b[1]&0x0F; return b }},
		{"truncated", func(b []byte) []byte { return b[:80] }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := tt.corrupt(append([]byte(nil), valid...))
			_, err := ParseExpressPacket(raw)
			require.ErrorIs(t, err, ErrProtocol)
		})
	}
}

func TestAngleDelta(t *testing.T) {
	tests := []struct {
		name       string
		prev, curr float64
		wrapAtZero bool
		delta      float64
		wrapped    bool
	}{
		{"forward", 10, 20, false, 10, false},
		{"backwards wraps", 350, 5, false, 15, true},
		{"standing still, legacy", 100, 100, false, 0, false},
		{"standing still, dense", 100, 100, true, 360, true},
		{"forward, dense", 10, 12.5, true, 2.5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delta, wrapped := angleDelta(tt.prev, tt.curr, tt.wrapAtZero)
			require.Equal(t, tt.delta, delta)
			require.Equal(t, tt.wrapped, wrapped)
		})
	}
}

// ============================================================
// Legacy Cabin Tests
// ============================================================

func TestParseLegacyCabin(t *testing.T) {
	// dist1 = 0x1ABC, comp1 = 0x2F, dist2 = 0x0123, comp2 = 0x15
	// comp2 takes its top two bits from byte 2 the same way comp1 takes
	// them from byte 0, not a single bit as older SDK releases decode it.
	// Bit 4 of 0x15 lands in byte 2 and must survive.
	raw := encodeLegacyCabin(0x1ABC, 0x0123, 0x2F, 0x15)
	require.Equal(t, []byte{0xF2, 0x6A, 0x8D, 0x04, 0x5F}, raw)

	cabin := ParseLegacyCabin(raw)
	require.Equal(t, [2]uint16{0x1ABC, 0x0123}, cabin.Distance)
	require.Equal(t, [2]uint8{0x2F, 0x15}, cabin.Comp)
}

func TestCompDegrees(t *testing.T) {
	require.Equal(t, 0.0, compDegrees(0x00))
	require.Equal(t, 1.0, compDegrees(0x08))
	require.Equal(t, -1.0, compDegrees(0x28))
	require.Equal(t, 3.875, compDegrees(0x1F))
	require.Equal(t, -3.875, compDegrees(0x3F))
}

func TestDecodeLegacyCabins(t *testing.T) {
	cabins := legacyCabins(0)
	copy(cabins[0:], encodeLegacyCabin(1234, 0, 0x08, 0x28))
	copy(cabins[15*legacyCabinSize:], encodeLegacyCabin(777, 2000, 0x00, 0x00))

	prev, err := ParseExpressPacket(encodeExpressPacket(10, true, cabins))
	require.NoError(t, err)

	var got []Measurement
	DecodeLegacyCabins(prev, 10, collect(&got))
	require.Len(t, got, 32)

	// k = 0: 10 + 10*1/32 - 1.0 = 9.3125
	require.Equal(t, Measurement{Valid: true, SampleData: SampleData{Angle: 9, Distance: 123.4}}, got[0])
	// k = 1: 10 + 10*2/32 + 1.0 = 11.625, no return but the angle is still placed
	require.Equal(t, Measurement{Valid: false, SampleData: SampleData{Angle: 12, Distance: 0}}, got[1])
	// k = 16: 10 + 10*17/32 = 15.3125
	require.Equal(t, 15, got[16].Angle)
	// k = 30, 31: 19.6875 and 20
	require.Equal(t, Measurement{Valid: true, SampleData: SampleData{Angle: 20, Distance: 77.7}}, got[30])
	require.Equal(t, Measurement{Valid: true, SampleData: SampleData{Angle: 20, Distance: 200}}, got[31])
}

func TestDecodeLegacyCabins_AcrossRevolution(t *testing.T) {
	prev, err := ParseExpressPacket(encodeExpressPacket(350, false, legacyCabins(1000)))
	require.NoError(t, err)

	delta, wrapped := angleDelta(350, 5, false)
	require.True(t, wrapped)

	var got []Measurement
	DecodeLegacyCabins(prev, delta, collect(&got))

	angles := make([]int, len(got))
	for i, m := range got {
		angles[i] = m.Angle
		require.True(t, m.Angle >= 0 && m.Angle < MaxAngle, "angle %d out of range", m.Angle)
	}
	// 350 + 15*(k+1)/32, reduced by one turn past 360
	require.Equal(t, 350, angles[0])
	require.Equal(t, 359, angles[19])
	require.Equal(t, 0, angles[20])
	require.Equal(t, 5, angles[31])
}

// ============================================================
// Dense Cabin Tests
// ============================================================

func TestDecodeDenseCabins(t *testing.T) {
	cabins := denseCabins(0)
	cabins[0], cabins[1] = 0x34, 0x12 // 4660 mm
	cabins[78], cabins[79] = 0xE8, 0x03

	prev, err := ParseExpressPacket(encodeExpressPacket(100, false, cabins))
	require.NoError(t, err)

	var got []Measurement
	DecodeDenseCabins(prev, 4, collect(&got))
	require.Len(t, got, 40)

	require.Equal(t, Measurement{Valid: true, SampleData: SampleData{Angle: 100, Distance: 466}}, got[0])
	require.False(t, got[1].Valid)
	// 100 + 4*5/40 = 100.5 rounds away from zero
	require.Equal(t, 101, got[4].Angle)
	require.Equal(t, Measurement{Valid: true, SampleData: SampleData{Angle: 104, Distance: 100}}, got[39])
}

// The two express variants disagree on whether an unchanged start angle
// is a full turn. Both behaviors are kept as they are on the devices.
func TestExpressWrapAsymmetry(t *testing.T) {
	legacyStats, denseStats := NewStatistics(), NewStatistics()
	legacy := newLegacyDecoder(legacyStats)
	dense := newDenseDecoder(denseStats)

	legacyPort := newScriptedPort(
		encodeExpressPacket(100, true, legacyCabins(1000)),
		encodeExpressPacket(100, false, legacyCabins(1000)),
	)
	densePort := newScriptedPort(
		encodeExpressPacket(100, true, denseCabins(1000)),
		encodeExpressPacket(100, false, denseCabins(1000)),
	)

	var legacyOut, denseOut []Measurement
	require.NoError(t, legacy.next(legacyPort, collect(&legacyOut)))
	require.NoError(t, dense.next(densePort, collect(&denseOut)))

	for _, m := range legacyOut {
		require.Equal(t, 100, m.Angle)
	}
	require.Equal(t, 109, denseOut[0].Angle) // 100 + 360/40
	require.Equal(t, 100, denseOut[39].Angle)

	// first packet plus the zero advance
	require.Equal(t, uint64(1), legacyStats.Snapshot().Revolutions)
	require.Equal(t, uint64(2), denseStats.Snapshot().Revolutions)
}

// ============================================================
// Express Stream Tests
// ============================================================

func TestExpressDecoder_OnePacketLag(t *testing.T) {
	port := newScriptedPort(
		encodeExpressPacket(0, true, denseCabins(500)),
		encodeExpressPacket(20, false, denseCabins(600)),
		encodeExpressPacket(40, false, denseCabins(700)),
	)
	dec := newDenseDecoder(NewStatistics())

	var got []Measurement
	require.NoError(t, dec.next(port, collect(&got)))
	require.Len(t, got, 40)
	require.Equal(t, 50.0, got[0].Distance) // first packet, decoded once the second arrived

	require.NoError(t, dec.next(port, collect(&got)))
	require.Len(t, got, 80)
	require.Equal(t, 60.0, got[40].Distance)

	angles := make([]int, 0, 40)
	for _, m := range got[40:] {
		angles = append(angles, m.Angle)
	}
	want := make([]int, 0, 40)
	for n := 1; n <= 40; n++ {
		want = append(want, roundAngle(20+20*float64(n)/40))
	}
	if diff := cmp.Diff(want, angles); diff != "" {
		t.Errorf("unexpected angles (-want +got):\n%s", diff)
	}
}

func TestExpressDecoder_FirstPacketNeedsStartFlag(t *testing.T) {
	port := newScriptedPort(encodeExpressPacket(0, false, legacyCabins(500)))

	err := newLegacyDecoder(NewStatistics()).next(port, func(Measurement) {})
	require.ErrorIs(t, err, ErrProtocol)
}

func TestExpressDecoder_ChecksumFailureIsTerminal(t *testing.T) {
	bad := encodeExpressPacket(10, false, legacyCabins(500))
	bad[50] ^= 0xFF
	port := newScriptedPort(encodeExpressPacket(0, true, legacyCabins(500)), bad)
	stats := NewStatistics()

	err := newLegacyDecoder(stats).next(port, func(Measurement) {})
	require.ErrorIs(t, err, ErrProtocol)
	require.Equal(t, uint64(1), stats.Snapshot().ChecksumErrors)
}

func TestExpressDecoder_Resync(t *testing.T) {
	port := newScriptedPort(
		[]byte{0x00, 0xA1, 0x00, 0x12}, // noise, then a sync nibble followed by a bad one
		encodeExpressPacket(0, true, denseCabins(500)),
		encodeExpressPacket(10, false, denseCabins(500)),
	)
	stats := NewStatistics()

	var got []Measurement
	require.NoError(t, newDenseDecoder(stats).next(port, collect(&got)))
	require.Len(t, got, 40)
	require.Equal(t, uint64(4), stats.Snapshot().ResyncBytes)
}

func TestExpressStartCommands(t *testing.T) {
	require.Equal(t,
		[]byte{0xA5, 0x82, 0x05, 0x00, 0x00, 0x00, 0x00, 0x00, 0x22},
		newLegacyDecoder(NewStatistics()).startCommand())
	require.Equal(t,
		[]byte{0xA5, 0x82, 0x05, 0x00, 0x00, 0x00, 0x00, 0x00, 0x22},
		newDenseDecoder(NewStatistics()).startCommand())
	require.Equal(t, []byte{0xA5, 0x20}, newNormalDecoder(NewStatistics()).startCommand())
}
