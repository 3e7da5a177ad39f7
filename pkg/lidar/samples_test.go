// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lidar

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleAngles(m *SampleMonitor) []int {
	var angles []int
	for _, s := range m.Samples() {
		angles = append(angles, s.Get().Angle)
	}
	return angles
}

func TestSampleMonitor_SupportWindow(t *testing.T) {
	tests := []struct {
		name    string
		angle   int
		support int
		want    []int
	}{
		{"default support", 90, DefaultSupportNum, []int{90, 89, 91}},
		{"no support", 90, 0, []int{90}},
		{"wider support", 90, 4, []int{90, 89, 91, 87, 93}},
		{"wraps below zero", 0, DefaultSupportNum, []int{0, 359, 1}},
		{"wraps past a full turn", 359, DefaultSupportNum, []int{359, 358, 0}},
		{"requested angle is normalized", 400, DefaultSupportNum, []int{40, 39, 41}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewSampleMonitorWithSupport(tt.angle, tt.support)
			if diff := cmp.Diff(tt.want, sampleAngles(m)); diff != "" {
				t.Errorf("unexpected sample angles (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSample_Update(t *testing.T) {
	n := &notifiers{}
	var seen []SampleData
	n.funcs = append(n.funcs, func(d SampleData) { seen = append(seen, d) })
	s := newSample(45, n)

	assert.False(t, s.IsValid(), "new samples start invalid")

	s.Update(120.5)
	assert.True(t, s.IsValid())
	assert.Equal(t, SampleData{Angle: 45, Distance: 120.5}, s.Get())

	for _, bad := range []float64{0, 0.5, -3, math.NaN()} {
		s.Update(bad)
		assert.False(t, s.IsValid(), "distance %v should be invalid", bad)
		assert.True(t, math.IsNaN(s.Get().Distance))
	}

	s.Update(1.0)
	require.Equal(t, []SampleData{{45, 120.5}, {45, 1.0}}, seen)

	s.Reset()
	assert.False(t, s.IsValid())
}

func TestObserver_TwoSubscriptionsSameAngle(t *testing.T) {
	obs := NewObserver()
	var first, second []SampleData
	obs.Subscribe(180, func(d SampleData) { first = append(first, d) })
	obs.Subscribe(180, func(d SampleData) { second = append(second, d) })

	obs.Dispatch(180, 42)
	obs.Dispatch(181, 43) // support angle
	obs.Dispatch(179, 44) // support angle
	obs.Dispatch(182, 45) // outside the window

	want := []SampleData{{180, 42}, {181, 43}, {179, 44}}
	require.Equal(t, want, first)
	require.Equal(t, want, second)
}

func TestObserver_CallbacksRunInRegistrationOrder(t *testing.T) {
	obs := NewObserver()
	var order []int
	for i := 0; i < 3; i++ {
		i := i
		obs.Subscribe(10, func(SampleData) { order = append(order, i) })
	}

	obs.Dispatch(10, 100)
	require.Equal(t, []int{0, 1, 2}, order)
}

func TestObserver_InvalidNeverNotifies(t *testing.T) {
	obs := NewObserver()
	calls := 0
	obs.Subscribe(0, func(SampleData) { calls++ })

	obs.Dispatch(0, 0)
	obs.Dispatch(359, 0.2)
	obs.Dispatch(1, math.NaN())
	require.Zero(t, calls)

	obs.Dispatch(1, 5)
	require.Equal(t, 1, calls)
}

func TestObserver_UnwatchedAngleIgnored(t *testing.T) {
	obs := NewObserver()
	calls := 0
	obs.Subscribe(90, func(SampleData) { calls++ })

	for angle := 0; angle < MaxAngle; angle++ {
		if angle < 89 || angle > 91 {
			obs.Dispatch(angle, 100)
		}
	}
	require.Zero(t, calls)
}

func TestObserver_OverlappingWindowsFirstRouteWins(t *testing.T) {
	obs := NewObserver()
	var at10, at12 []SampleData
	obs.Subscribe(10, func(d SampleData) { at10 = append(at10, d) })
	obs.Subscribe(12, func(d SampleData) { at12 = append(at12, d) })

	// 11 belongs to both windows and stays with the first monitor
	obs.Dispatch(11, 50)
	require.Equal(t, []SampleData{{11, 50}}, at10)
	require.Empty(t, at12)

	obs.Dispatch(13, 60)
	require.Equal(t, []SampleData{{13, 60}}, at12)

	require.Equal(t, []int{10, 12}, obs.Angles())
}

func TestObserver_Reset(t *testing.T) {
	obs := NewObserver()
	obs.Subscribe(30, func(SampleData) {})
	obs.Dispatch(30, 10)
	require.True(t, obs.updaters[30].IsValid())

	obs.Reset()
	require.False(t, obs.updaters[30].IsValid())
}

func TestWrapAngle(t *testing.T) {
	tests := map[int]int{0: 0, 359: 359, 360: 0, 361: 1, -1: 359, -360: 0, 725: 5}
	for in, want := range tests {
		if got := WrapAngle(in); got != want {
			t.Errorf("WrapAngle(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestObstacleGrade(t *testing.T) {
	tests := []struct {
		distance float64
		grade    Grade
	}{
		{5, GradeCritical},
		{29.9, GradeCritical},
		{30, GradeWarning},
		{59.9, GradeWarning},
		{60, GradeGood},
		{500, GradeGood},
	}

	for _, tt := range tests {
		got := DefaultObstacle.Grade(tt.distance)
		if got != tt.grade {
			t.Errorf("Grade(%v) = %s, want %s", tt.distance, got, tt.grade)
		}
	}
}

func TestEvenAngles(t *testing.T) {
	require.Equal(t, []int{0, 30, 60, 90, 120, 150, 180, 210, 240, 270, 300, 330}, EvenAngles(12))
	require.Equal(t, []int{0, 120, 240}, EvenAngles(3))
	require.Nil(t, EvenAngles(0))
}
