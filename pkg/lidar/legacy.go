// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lidar

// Legacy express cabins are 5 bytes carrying two samples each:
//
//	[0] dist1[5:0] comp1[5:4]   [1] dist1[13:6]
//	[2] dist2[5:0] comp2[5:4]   [3] dist2[13:6]
//	[4] comp2[3:0] comp1[3:0]
const (
	legacyCabinSize  = 5
	legacyCabinCount = 16
)

// LegacyCabin holds the raw fields of one legacy cabin
type LegacyCabin struct {
	Distance [2]uint16 // mm, 0 means no return
	Comp     [2]uint8  // 6-bit signed magnitude, 1/8 degree
}

// ParseLegacyCabin splits a 5 byte cabin into its fields
func ParseLegacyCabin(c []byte) LegacyCabin {
	return LegacyCabin{
		Distance: [2]uint16{
			uint16(c[0]>>2)&0x3F | uint16(c[1])<<6,
			uint16(c[2]>>2)&0x3F | uint16(c[3])<<6,
		},
		Comp: [2]uint8{
			c[4]&0x0F | (c[0]&0x03)<<4,
			c[4]>>4 | (c[2]&0x03)<<4,
		},
	}
}

// compDegrees converts a 6-bit compensation field to degrees. Bit 5 is
// the sign.
func compDegrees(comp uint8) float64 {
	deg := float64(comp&0x1F) / 8.0
	if comp&0x20 != 0 {
		return -deg
	}
	return deg
}

// legacyAngle places sample index k (0..31) of a packet between start and
// start+delta, corrected by its compensation.
func legacyAngle(start, delta float64, k int, comp uint8) int {
	return roundAngle(start + delta*float64(k+1)/legacyHalfSteps - compDegrees(comp))
}

// DecodeLegacyCabins emits the 32 samples of a legacy packet. Angles are
// computed even for samples without a return.
func DecodeLegacyCabins(prev ExpressPacket, delta float64, emit func(Measurement)) {
	for n := 0; n < legacyCabinCount && (n+1)*legacyCabinSize <= len(prev.Cabins); n++ {
		cabin := ParseLegacyCabin(prev.Cabins[n*legacyCabinSize:])
		for i := 0; i < 2; i++ {
			emit(Measurement{
				Valid: cabin.Distance[i] != 0,
				SampleData: SampleData{
					Angle:    legacyAngle(prev.StartAngle, delta, 2*n+i, cabin.Comp[i]),
					Distance: float64(cabin.Distance[i]) / 10.0,
				},
			})
		}
	}
}

func newLegacyDecoder(stats *Statistics) *expressDecoder {
	return &expressDecoder{
		mode:   ModeExpressLegacy,
		stats:  stats,
		first:  true,
		raw:    make([]byte, ExpressPacketSize),
		decode: DecodeLegacyCabins,
	}
}
