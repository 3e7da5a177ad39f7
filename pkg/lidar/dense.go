// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lidar

// Dense express cabins are a single little-endian 16-bit distance in mm
// with no angle compensation.
const (
	denseCabinSize  = 2
	denseCabinCount = 40
)

// DecodeDenseCabins emits the 40 evenly spaced samples of a dense packet
func DecodeDenseCabins(prev ExpressPacket, delta float64, emit func(Measurement)) {
	for n := 0; n < denseCabinCount && (n+1)*denseCabinSize <= len(prev.Cabins); n++ {
		c := prev.Cabins[n*denseCabinSize:]
		dist := uint16(c[0]) | uint16(c[1])<<8
		emit(Measurement{
			Valid: dist != 0,
			SampleData: SampleData{
				Angle:    roundAngle(prev.StartAngle + delta*float64(n+1)/denseCabinsPerPkt),
				Distance: float64(dist) / 10.0,
			},
		})
	}
}

// Unlike the legacy variant, a dense stream whose start angle did not
// advance is taken as a full turn.
func newDenseDecoder(stats *Statistics) *expressDecoder {
	return &expressDecoder{
		mode:    ModeExpressDense,
		stats:   stats,
		first:   true,
		raw:     make([]byte, ExpressPacketSize),
		decode:  DecodeDenseCabins,
		wrapAt0: true,
	}
}
