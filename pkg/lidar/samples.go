// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lidar

import (
	"math"
	"sort"
)

// SampleData is one angle/distance reading. Distance is in centimeters.
type SampleData struct {
	Angle    int
	Distance float64
}

// Measurement is a decode step result
type Measurement struct {
	Valid bool
	SampleData
}

// NotifyFunc receives fresh valid readings. It runs on the scan's decode
// goroutine and must return promptly.
type NotifyFunc func(SampleData)

// notifiers is the callback list shared by every Sample of one
// SampleMonitor. It is appended to only while subscribing.
type notifiers struct {
	funcs []NotifyFunc
}

// Sample holds the latest reading of one fixed angle
type Sample struct {
	angle     int
	distance  float64
	notifiers *notifiers
}

func newSample(angle int, n *notifiers) *Sample {
	return &Sample{angle: angle, distance: math.NaN(), notifiers: n}
}

// Update stores a new distance. Readings below the minimum valid distance
// store the invalid marker and notify nobody; valid readings are passed to
// every callback in registration order.
func (s *Sample) Update(distance float64) {
	if distance < minValidDistanceCM || math.IsNaN(distance) {
		s.distance = math.NaN()
		return
	}
	s.distance = distance
	data := s.Get()
	for _, fn := range s.notifiers.funcs {
		fn(data)
	}
}

// Reset marks the sample invalid
func (s *Sample) Reset() {
	s.distance = math.NaN()
}

// IsValid reports whether the last update carried a usable distance
func (s *Sample) IsValid() bool {
	return !math.IsNaN(s.distance)
}

// Get returns the angle and last distance (NaN when invalid)
func (s *Sample) Get() SampleData {
	return SampleData{Angle: s.angle, Distance: s.distance}
}

// SampleMonitor watches a requested angle through a primary Sample plus
// support Samples at neighbouring angles, since the device does not hit
// every integer angle on every revolution.
type SampleMonitor struct {
	notifiers *notifiers
	samples   []*Sample
}

// NewSampleMonitor creates a monitor with DefaultSupportNum support angles
func NewSampleMonitor(angle int) *SampleMonitor {
	return NewSampleMonitorWithSupport(angle, DefaultSupportNum)
}

// NewSampleMonitorWithSupport creates a monitor for angle with support
// samples placed at angle±1, angle±3, ... while the offset stays below
// support.
func NewSampleMonitorWithSupport(angle, support int) *SampleMonitor {
	m := &SampleMonitor{notifiers: &notifiers{}}
	angle = WrapAngle(angle)
	m.samples = append(m.samples, newSample(angle, m.notifiers))
	for num := 1; num < support; num += 2 {
		m.samples = append(m.samples,
			newSample(WrapAngle(angle-num), m.notifiers),
			newSample(WrapAngle(angle+num), m.notifiers))
	}
	return m
}

// AddNotifier registers a callback shared by all samples of the monitor
func (m *SampleMonitor) AddNotifier(fn NotifyFunc) {
	m.notifiers.funcs = append(m.notifiers.funcs, fn)
}

// Samples returns the primary sample followed by the support samples
func (m *SampleMonitor) Samples() []*Sample {
	return m.samples
}

// Observer routes decoded readings to the monitors subscribed to them.
// Subscriptions must not change while a scan is dispatching.
type Observer struct {
	monitors map[int]*SampleMonitor
	updaters map[int]*Sample
}

// NewObserver creates an empty observer
func NewObserver() *Observer {
	return &Observer{
		monitors: make(map[int]*SampleMonitor),
		updaters: make(map[int]*Sample),
	}
}

// Subscribe registers fn for the requested angle. The first subscription
// to an angle creates its monitor and routes each of the monitor's angles
// that is not already routed; later subscriptions to the same angle only
// add a callback.
func (o *Observer) Subscribe(angle int, fn NotifyFunc) {
	angle = WrapAngle(angle)
	m, ok := o.monitors[angle]
	if !ok {
		m = NewSampleMonitor(angle)
		o.monitors[angle] = m
		for _, s := range m.samples {
			if _, routed := o.updaters[s.angle]; !routed {
				o.updaters[s.angle] = s
			}
		}
	}
	m.AddNotifier(fn)
}

// Dispatch routes one reading to the sample registered for its exact
// angle. Unwatched angles are ignored.
func (o *Observer) Dispatch(angle int, distance float64) {
	if s, ok := o.updaters[angle]; ok {
		s.Update(distance)
	}
}

// Angles returns the requested watch angles in ascending order
func (o *Observer) Angles() []int {
	angles := make([]int, 0, len(o.monitors))
	for a := range o.monitors {
		angles = append(angles, a)
	}
	sort.Ints(angles)
	return angles
}

// Reset invalidates every routed sample
func (o *Observer) Reset() {
	for _, s := range o.updaters {
		s.Reset()
	}
}

// WrapAngle reduces an integer angle into [0, 360)
func WrapAngle(angle int) int {
	angle %= MaxAngle
	if angle < 0 {
		angle += MaxAngle
	}
	return angle
}
