// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lidar

import "math"

// NormalFrame is one decoded 5 byte normal scan sample
type NormalFrame struct {
	NewScan  bool
	Quality  uint32 // percent
	Angle    int    // degrees
	Distance float64
}

// Valid reports whether the frame quality is high enough to trust the
// distance.
func (f NormalFrame) Valid() bool {
	return f.Quality > normalPoorQuality
}

// normalFlagOK checks that bit 1 of the first byte is the complement of
// bit 0.
func normalFlagOK(b byte) bool {
	return ((b>>1)^b)&0x01 == 0x01
}

// normalSyncOK checks the sync bit of the second byte
func normalSyncOK(b byte) bool {
	return b&0x01 == 0x01
}

// DecodeNormalFrame decodes an already synchronized frame
func DecodeNormalFrame(raw []byte) NormalFrame {
	angleQ6 := uint32(raw[2])<<7 | uint32(raw[1])>>1
	distQ2 := uint32(raw[4])<<8 | uint32(raw[3])
	return NormalFrame{
		NewScan:  raw[0]&0x01 == 0x01,
		Quality:  100 * uint32(raw[0]>>2) / 63,
		Angle:    roundAngle(float64(angleQ6) / angleFixedPoint),
		Distance: float64(distQ2) / 4.0 / 10.0,
	}
}

// normalDecoder streams normal scan frames. It resynchronizes one byte
// at a time: a first byte failing the flag check is dropped, and a second
// byte failing the sync check restarts the search from a fresh byte.
type normalDecoder struct {
	stats *Statistics
	first bool
	frame []byte
}

func newNormalDecoder(stats *Statistics) *normalDecoder {
	return &normalDecoder{stats: stats, first: true, frame: make([]byte, NormalFrameSize)}
}

func (d *normalDecoder) Mode() Mode { return ModeNormal }

func (d *normalDecoder) startCommand() []byte {
	return []byte{StartFlag, CmdStartScan}
}

func (d *normalDecoder) readFrame(port Port) error {
	timeout := DefaultReadTimeout
	if d.first {
		timeout = FirstReadTimeout
		d.first = false
	}

	skipped := 0
	for {
		if err := readInto(port, "read normal frame", d.frame[0:1], timeout); err != nil {
			return err
		}
		timeout = DefaultReadTimeout
		if !normalFlagOK(d.frame[0]) {
			skipped++
			continue
		}
		if err := readInto(port, "read normal frame", d.frame[1:2], timeout); err != nil {
			return err
		}
		if !normalSyncOK(d.frame[1]) {
			skipped += 2
			continue
		}
		break
	}
	if skipped > 0 {
		d.stats.addResync(skipped)
		Logf("normal scan: resynchronized after skipping %d bytes", skipped)
	}
	return readInto(port, "read normal frame", d.frame[2:], DefaultReadTimeout)
}

func (d *normalDecoder) next(port Port, emit func(Measurement)) error {
	if err := d.readFrame(port); err != nil {
		return err
	}
	d.stats.addUnit()

	f := DecodeNormalFrame(d.frame)
	if f.NewScan {
		d.stats.addRevolution()
	}
	emit(Measurement{
		Valid:      f.Valid(),
		SampleData: SampleData{Angle: f.Angle, Distance: f.Distance},
	})
	return nil
}

// roundAngle rounds a degree value to an integer in [0, 360). Raw values
// at or past a full turn are reduced by one turn.
func roundAngle(angle float64) int {
	if angle >= MaxAngle {
		angle -= MaxAngle
	} else if angle < 0 {
		angle += MaxAngle
	}
	return WrapAngle(int(math.Round(angle)))
}
