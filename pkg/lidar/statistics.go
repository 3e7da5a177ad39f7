// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lidar

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Statistics counts decode activity of a scan. Counters are written by
// the decode goroutine and may be read concurrently through Snapshot.
type Statistics struct {
	mu        sync.Mutex
	startTime time.Time

	units          atomic.Uint64
	validSamples   atomic.Uint64
	invalidSamples atomic.Uint64
	resyncBytes    atomic.Uint64
	checksumErrors atomic.Uint64
	revolutions    atomic.Uint64
}

// StatsSnapshot is a point in time copy of Statistics with derived rates
type StatsSnapshot struct {
	Elapsed        time.Duration
	Units          uint64
	ValidSamples   uint64
	InvalidSamples uint64
	ResyncBytes    uint64
	ChecksumErrors uint64
	Revolutions    uint64

	SampleRate float64 // valid samples/sec
	ScanRate   float64 // revolutions/sec
}

// NewStatistics creates a statistics tracker
func NewStatistics() *Statistics {
	return &Statistics{startTime: time.Now()}
}

// Reset zeroes every counter and restarts the clock
func (s *Statistics) Reset() {
	s.mu.Lock()
	s.startTime = time.Now()
	s.mu.Unlock()
	s.units.Store(0)
	s.validSamples.Store(0)
	s.invalidSamples.Store(0)
	s.resyncBytes.Store(0)
	s.checksumErrors.Store(0)
	s.revolutions.Store(0)
}

func (s *Statistics) addUnit()          { s.units.Add(1) }
func (s *Statistics) addResync(n int)   { s.resyncBytes.Add(uint64(n)) }
func (s *Statistics) addChecksumError() { s.checksumErrors.Add(1) }
func (s *Statistics) addRevolution()    { s.revolutions.Add(1) }

func (s *Statistics) addMeasurement(v bool) {
	if v {
		s.validSamples.Add(1)
	} else {
		s.invalidSamples.Add(1)
	}
}

// Snapshot copies the counters and calculates rates
func (s *Statistics) Snapshot() StatsSnapshot {
	s.mu.Lock()
	elapsed := time.Since(s.startTime)
	s.mu.Unlock()

	snap := StatsSnapshot{
		Elapsed:        elapsed,
		Units:          s.units.Load(),
		ValidSamples:   s.validSamples.Load(),
		InvalidSamples: s.invalidSamples.Load(),
		ResyncBytes:    s.resyncBytes.Load(),
		ChecksumErrors: s.checksumErrors.Load(),
		Revolutions:    s.revolutions.Load(),
	}
	if secs := elapsed.Seconds(); secs > 0 {
		snap.SampleRate = float64(snap.ValidSamples) / secs
		snap.ScanRate = float64(snap.Revolutions) / secs
	}
	return snap
}

// ValidPercent is the share of decoded samples that carried a distance
func (s StatsSnapshot) ValidPercent() float64 {
	total := s.ValidSamples + s.InvalidSamples
	if total == 0 {
		return 0
	}
	return float64(s.ValidSamples) * 100.0 / float64(total)
}

// String returns a formatted statistics summary
func (s StatsSnapshot) String() string {
	result := fmt.Sprintf("=== Scan Statistics (%.0f seconds) ===\n", s.Elapsed.Seconds())
	result += fmt.Sprintf("Decoded Units:   %8d\n", s.Units)
	result += fmt.Sprintf("Valid Samples:   %8d (%.1f%%)\n", s.ValidSamples, s.ValidPercent())
	result += fmt.Sprintf("Invalid Samples: %8d\n", s.InvalidSamples)
	if s.ResyncBytes > 0 {
		result += fmt.Sprintf("Resync Bytes:    %8d\n", s.ResyncBytes)
	}
	if s.ChecksumErrors > 0 {
		result += fmt.Sprintf("Checksum Errors: %8d\n", s.ChecksumErrors)
	}
	result += fmt.Sprintf("Revolutions:     %8d\n", s.Revolutions)
	result += fmt.Sprintf("Sample Rate:     %8.1f samples/sec\n", s.SampleRate)
	result += fmt.Sprintf("Scan Rate:       %8.1f Hz\n", s.ScanRate)
	result += "=====================================\n"
	return result
}
