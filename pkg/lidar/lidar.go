// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lidar

import (
	"fmt"
	"io"
)

// Profile is what the driver knows about one supported series
type Profile struct {
	Series Series
	Baud   int
	Modes  []Mode
}

// Profiles are probed in order by Find
var Profiles = []Profile{
	{Series: SeriesA, Baud: BaudASeries, Modes: []Mode{ModeNormal, ModeExpressLegacy}},
	{Series: SeriesC, Baud: BaudCSeries, Modes: []Mode{ModeNormal, ModeExpressDense}},
}

// ProfileFor returns the profile of a series
func ProfileFor(series Series) (Profile, bool) {
	for _, p := range Profiles {
		if p.Series == series {
			return p, true
		}
	}
	return Profile{}, false
}

// ExpressMode returns the express variant of the profile, if it has one
func (p Profile) ExpressMode() (Mode, bool) {
	for _, m := range p.Modes {
		if m == ModeExpressLegacy || m == ModeExpressDense {
			return m, true
		}
	}
	return 0, false
}

// Opener opens the device transport at the given baud rate
type Opener func(baud int) (Port, error)

// Lidar is a detected device: its identity plus a Scanner restricted to
// the modes its series supports.
type Lidar struct {
	*Scanner
	Profile Profile
	Name    string

	port Port
}

// New wraps an already opened port for a known series without probing
func New(port Port, profile Profile, name string) *Lidar {
	return &Lidar{
		Scanner: NewScanner(port, profile.Modes...),
		Profile: profile,
		Name:    name,
		port:    port,
	}
}

// Find opens the port at each profile's baud rate in turn and keeps the
// first one whose detected series matches. Ports that do not match are
// closed when they implement io.Closer.
func Find(open Opener) (*Lidar, error) {
	for _, profile := range Profiles {
		port, err := open(profile.Baud)
		if err != nil {
			return nil, fmt.Errorf("open at %d baud: %w", profile.Baud, err)
		}

		series, name, err := Detect(port)
		if err == nil && series == profile.Series {
			Logf("detected %s at %d baud", name, profile.Baud)
			return New(port, profile, name), nil
		}
		if err != nil {
			Logf("probe at %d baud: %v", profile.Baud, err)
		} else if series != SeriesUnknown {
			Logf("probe at %d baud: found %s, not a %s series device", profile.Baud, name, profile.Series)
		}
		closePort(port)
	}
	return nil, ErrNoDevice
}

// Info queries device identification. It is refused while scanning.
func (l *Lidar) Info() (DeviceInfo, error) {
	var info DeviceInfo
	err := l.idle(func(p Port) (err error) {
		info, err = Info(p)
		return err
	})
	return info, err
}

// Status queries device health. It is refused while scanning.
func (l *Lidar) Status() (StatusCode, error) {
	var code StatusCode
	err := l.idle(func(p Port) (err error) {
		code, err = Status(p)
		return err
	})
	return code, err
}

// SampleRate queries per-sample timing. It is refused while scanning.
func (l *Lidar) SampleRate() (SampleRate, error) {
	var rate SampleRate
	err := l.idle(func(p Port) (err error) {
		rate, err = GetSampleRate(p)
		return err
	})
	return rate, err
}

// Configuration reads the scan mode table. It is refused while scanning.
func (l *Lidar) Configuration() (Configuration, error) {
	var conf Configuration
	err := l.idle(func(p Port) (err error) {
		conf, err = GetConfiguration(p)
		return err
	})
	return conf, err
}

// Close stops any active scan and closes the port
func (l *Lidar) Close() error {
	err := l.Stop()
	if cerr := closePort(l.port); err == nil {
		err = cerr
	}
	return err
}

func closePort(port Port) error {
	if c, ok := port.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
