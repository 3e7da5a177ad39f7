// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/Thermoquad/lidarstat/pkg/lidar"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// angleSummary collects readings per watched angle for an end of run
// summary. Add is safe to call from the scan goroutine.
type angleSummary struct {
	mu       sync.Mutex
	readings map[int][]float64
}

// angleStats is the summary of one watched angle
type angleStats struct {
	Angle  int
	Count  int
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

func newAngleSummary() *angleSummary {
	return &angleSummary{readings: make(map[int][]float64)}
}

// Add records a reading under the requested watch angle
func (s *angleSummary) Add(watch int, data lidar.SampleData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings[watch] = append(s.readings[watch], data.Distance)
}

// Stats returns per-angle statistics in ascending angle order
func (s *angleSummary) Stats() []angleStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]angleStats, 0, len(s.readings))
	for angle, values := range s.readings {
		if len(values) == 0 {
			continue
		}
		mean, std := stat.MeanStdDev(values, nil)
		if math.IsNaN(std) {
			std = 0 // single reading
		}
		result = append(result, angleStats{
			Angle:  angle,
			Count:  len(values),
			Mean:   mean,
			StdDev: std,
			Min:    floats.Min(values),
			Max:    floats.Max(values),
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Angle < result[j].Angle })
	return result
}

// String returns a formatted summary table
func (s *angleSummary) String() string {
	stats := s.Stats()
	if len(stats) == 0 {
		return "No readings at the watched angles\n"
	}

	var b strings.Builder
	b.WriteString("=== Distance Summary (cm) ===\n")
	b.WriteString("Angle   Count      Mean    StdDev       Min       Max\n")
	for _, a := range stats {
		fmt.Fprintf(&b, "%4d° %7d %9.1f %9.2f %9.1f %9.1f\n",
			a.Angle, a.Count, a.Mean, a.StdDev, a.Min, a.Max)
	}
	b.WriteString("=============================\n")
	return b.String()
}
