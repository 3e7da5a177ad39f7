// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lidar

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// Mode is a streaming scan type
type Mode uint8

const (
	ModeNormal Mode = iota
	ModeExpressLegacy
	ModeExpressDense
)

// String returns the mode name used on the command line
func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeExpressLegacy:
		return "express-legacy"
	case ModeExpressDense:
		return "express-dense"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// ParseMode parses a mode name as returned by Mode.String
func ParseMode(name string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "normal":
		return ModeNormal, nil
	case "express-legacy", "legacy":
		return ModeExpressLegacy, nil
	case "express-dense", "dense":
		return ModeExpressDense, nil
	}
	return 0, fmt.Errorf("unknown scan mode %q", name)
}

// decoder is the per-mode stream decoding strategy. A fresh decoder is
// created for every run so no state leaks between sessions.
type decoder interface {
	Mode() Mode
	startCommand() []byte

	// next decodes one unit off the wire (a frame, or an express packet
	// pair) and emits every measurement it carries.
	next(port Port, emit func(Measurement)) error
}

func newDecoder(mode Mode, stats *Statistics) (decoder, error) {
	switch mode {
	case ModeNormal:
		return newNormalDecoder(stats), nil
	case ModeExpressLegacy:
		return newLegacyDecoder(stats), nil
	case ModeExpressDense:
		return newDenseDecoder(stats), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrModeUnsupported, mode)
}

// Scanner runs at most one streaming scan on a port and dispatches valid
// readings to its Observer from a background goroutine.
//
// The port is only touched by the calling goroutine while no scan is
// active, and only by the decode goroutine while one is.
type Scanner struct {
	port     Port
	modes    []Mode
	observer *Observer
	stats    *Statistics
	taps     []func(Measurement)

	mu      sync.Mutex // serializes Run, Stop, Watch, Tap and port queries
	running atomic.Bool
	active  Mode
	done    chan struct{} // non-nil from Run until Stop joins the loop
	err     error         // loop exit error, written before done closes
}

// NewScanner creates a scanner restricted to the given modes
func NewScanner(port Port, modes ...Mode) *Scanner {
	return &Scanner{
		port:     port,
		modes:    modes,
		observer: NewObserver(),
		stats:    NewStatistics(),
	}
}

// Observer returns the subscription registry shared by every run
func (s *Scanner) Observer() *Observer { return s.observer }

// Statistics returns the counters of the current or last run
func (s *Scanner) Statistics() *Statistics { return s.stats }

// Modes lists the supported scan modes
func (s *Scanner) Modes() []Mode { return s.modes }

// Supports reports whether mode can be run on this scanner
func (s *Scanner) Supports(mode Mode) bool {
	for _, m := range s.modes {
		if m == mode {
			return true
		}
	}
	return false
}

// Watch subscribes fn to readings at angle. Subscriptions are only
// accepted while no scan is active.
func (s *Scanner) Watch(angle int, fn NotifyFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy() {
		return ErrScanRunning
	}
	s.observer.Subscribe(angle, fn)
	return nil
}

// Tap registers fn for every decoded measurement, valid or not, before
// angle routing. Taps are only accepted while no scan is active.
func (s *Scanner) Tap(fn func(Measurement)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy() {
		return ErrScanRunning
	}
	s.taps = append(s.taps, fn)
	return nil
}

// IsRunning reports whether a decode loop is streaming
func (s *Scanner) IsRunning() bool {
	return s.running.Load()
}

// ActiveMode returns the streaming mode, if any
func (s *Scanner) ActiveMode() (Mode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active, s.running.Load()
}

// Run starts streaming in mode. Running the active mode again is a no-op;
// any other active mode is stopped first.
func (s *Scanner) Run(mode Mode) error {
	if !s.Supports(mode) {
		return fmt.Errorf("%w: %s", ErrModeUnsupported, mode)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done != nil {
		if s.running.Load() && s.active == mode {
			return nil
		}
		if err := s.stopLocked(); err != nil {
			Logf("%s scan ended with error: %v", s.active, err)
		}
	}

	dec, err := newDecoder(mode, s.stats)
	if err != nil {
		return err
	}

	s.stats.Reset()
	s.observer.Reset()
	if err := writeAll(s.port, "write start command", dec.startCommand()); err != nil {
		return err
	}
	if _, err := readExact(s.port, "read scan ack", ScanAckSize, DefaultReadTimeout); err != nil {
		s.sendStop()
		return err
	}

	s.active = mode
	s.err = nil
	s.done = make(chan struct{})
	s.running.Store(true)
	go s.loop(dec, s.done)

	Logf("%s scan started", mode)
	return nil
}

// Stop ends the active scan and blocks until the device has been told to
// stop and the port drained. It returns the error that ended the loop, if
// any. Stopping an idle scanner does nothing.
func (s *Scanner) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

func (s *Scanner) stopLocked() error {
	if s.done == nil {
		return nil
	}
	s.running.Store(false)
	<-s.done
	s.done = nil
	return s.err
}

// busy reports whether a decode loop still owns the port. The loop keeps
// it until the stop command is written and the port drained. Callers
// hold mu.
func (s *Scanner) busy() bool {
	if s.done == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// idle runs fn with the port while no decode loop owns it
func (s *Scanner) idle(fn func(Port) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy() {
		return ErrScanRunning
	}
	return fn(s.port)
}

// Done is closed when the decode loop exits, either through Stop or
// because of an error. It returns nil while idle.
func (s *Scanner) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Err returns the error that ended the last loop, once it has exited
func (s *Scanner) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		return s.err
	}
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

func (s *Scanner) loop(dec decoder, done chan struct{}) {
	defer close(done)

	emit := func(m Measurement) {
		s.stats.addMeasurement(m.Valid)
		for _, tap := range s.taps {
			tap(m)
		}
		if m.Valid {
			s.observer.Dispatch(m.Angle, m.Distance)
		}
	}

	var err error
	for s.running.Load() {
		if err = dec.next(s.port, emit); err != nil {
			Logf("%s scan: %v", dec.Mode(), err)
			break
		}
	}

	if serr := s.sendStop(); serr != nil && err == nil {
		err = serr
	}
	s.err = err
	s.running.Store(false)
}

// sendStop tells the device to stop streaming and discards whatever was
// already in flight.
func (s *Scanner) sendStop() error {
	err := writeAll(s.port, "write stop command", []byte{StartFlag, CmdStopScan})
	if n := drain(s.port); n > 0 {
		Logf("drained %d bytes after stop", n)
	}
	return err
}
