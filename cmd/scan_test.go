// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/lidarstat/pkg/lidar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanSession_RowsSortedAndUnseen(t *testing.T) {
	s := newScanSession([]int{270, 0, 90}, lidar.DefaultObstacle)
	s.update(90, lidar.SampleData{Angle: 89, Distance: 120})

	rows := s.rows()
	require.Len(t, rows, 3)
	assert.Equal(t, []int{0, 90, 270}, []int{rows[0].Angle, rows[1].Angle, rows[2].Angle})
	assert.False(t, rows[0].Seen)
	assert.True(t, rows[1].Seen)
	assert.Equal(t, lidar.SampleData{Angle: 89, Distance: 120}, rows[1].Reading)
	assert.False(t, rows[2].Seen)
}

func TestScanSession_ObstacleGradeChanges(t *testing.T) {
	s := newScanSession(nil, lidar.Obstacle{CriticalCM: 30, WarningCM: 60})

	var grades []lidar.Grade
	s.onGrade = func(g lidar.Grade, _ lidar.SampleData) { grades = append(grades, g) }

	for _, d := range []float64{100, 90, 45, 40, 10, 200} {
		s.checkObstacle(lidar.SampleData{Angle: 180, Distance: d})
	}

	// repeated grades are reported once
	assert.Equal(t, []lidar.Grade{lidar.GradeGood, lidar.GradeWarning, lidar.GradeCritical, lidar.GradeGood}, grades)
	grade, ok := s.obstacle()
	require.True(t, ok)
	assert.Equal(t, lidar.GradeGood, grade)
}

func TestReplay(t *testing.T) {
	var buf bytes.Buffer
	rec, err := lidar.NewRecorder(&buf, lidar.NewRecordHeader("A1M8", lidar.ModeNormal, []int{90, 180}))
	require.NoError(t, err)

	rec.Notify(lidar.SampleData{Angle: 90, Distance: 100})
	rec.Notify(lidar.SampleData{Angle: 180, Distance: 20})
	rec.Notify(lidar.SampleData{Angle: 181, Distance: 100})
	rec.Notify(lidar.SampleData{Angle: 45, Distance: 100}) // not watched
	require.NoError(t, rec.Err())

	var out bytes.Buffer
	summary, header, n, err := replay(&buf, lidar.DefaultObstacle, &out)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "A1M8", header.Model)
	assert.Equal(t, "normal", header.Mode)

	assert.Equal(t, []string{
		"Obstacle CRITICAL at 180°: 20.0 cm",
		"Obstacle GOOD at 181°: 100.0 cm",
	}, strings.Split(strings.TrimSpace(out.String()), "\n"))

	stats := summary.Stats()
	require.Len(t, stats, 2)
	assert.Equal(t, 90, stats[0].Angle)
	assert.Equal(t, 1, stats[0].Count)
	assert.Equal(t, 180, stats[1].Angle)
	assert.Equal(t, 2, stats[1].Count)
	assert.InDelta(t, 60, stats[1].Mean, 1e-9)
}

func TestReplay_RejectsGarbage(t *testing.T) {
	_, _, _, err := replay(strings.NewReader("not a recording"), lidar.DefaultObstacle, &bytes.Buffer{})
	require.Error(t, err)
}

func TestFormatMeasurement(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 6000000, time.UTC)

	valid := lidar.Measurement{Valid: true, SampleData: lidar.SampleData{Angle: 7, Distance: 123.45}}
	assert.Equal(t, "[03:04:05.006]   7°     123.5 cm", formatMeasurement(at, valid))

	invalid := lidar.Measurement{SampleData: lidar.SampleData{Angle: 350}}
	assert.Equal(t, "[03:04:05.006] 350°  invalid", formatMeasurement(at, invalid))
}
