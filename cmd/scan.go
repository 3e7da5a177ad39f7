// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/Thermoquad/lidarstat/pkg/lidar"
	"github.com/spf13/cobra"
)

// obstacleAngle is the direction checked for obstacles, straight behind
// the device's motor housing.
const obstacleAngle = 180

var (
	scanMode      string
	scanAngles    []int
	scanDuration  time.Duration
	statsInterval int
	useTUI        bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Stream a scan and show distances at the watch angles",
	Long: `Start a streaming scan and report the latest distance at each watch angle.

Modes:
  normal          One sample per 5 byte frame (every series)
  express         The express variant of the detected series
  express-legacy  A series express packets (2 samples per cabin)
  express-dense   C series express packets (1 sample per cabin)

The reading at 180° is also graded for obstacles: CRITICAL below the critical
distance, WARNING below the warning distance, GOOD otherwise.

When the scan ends (Ctrl+C or --duration) the scan statistics and a per-angle
distance summary are printed.`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	addScanFlags(scanCmd)
	scanCmd.Flags().BoolVar(&useTUI, "tui", false, "Use terminal UI")
}

func addScanFlags(c *cobra.Command) {
	c.Flags().StringVarP(&scanMode, "mode", "m", "normal", "Scan mode (normal, express, express-legacy, express-dense)")
	c.Flags().IntSliceVarP(&scanAngles, "angles", "a", nil, "Watch angles in degrees (default 12 evenly spaced)")
	c.Flags().DurationVarP(&scanDuration, "duration", "d", 0, "Stop after this long (0 runs until Ctrl+C)")
	c.Flags().IntVar(&statsInterval, "stats-interval", 1, "Display update interval (seconds)")
}

// applyScanFlags lets scan flags override the config file
func applyScanFlags(c *cobra.Command) error {
	if c.Flags().Changed("mode") {
		cfg.Mode = scanMode
	}
	if c.Flags().Changed("angles") {
		cfg.Angles = scanAngles
	}
	if statsInterval <= 0 {
		return fmt.Errorf("invalid stats interval %d", statsInterval)
	}
	return cfg.Validate()
}

// scanSession tracks the latest reading per watch angle and the obstacle
// grade. Callbacks arrive on the scan goroutine.
type scanSession struct {
	angles  []int
	grader  lidar.Obstacle
	summary *angleSummary

	mu      sync.Mutex
	latest  map[int]lidar.SampleData
	updated map[int]time.Time
	grade   lidar.Grade
	graded  bool

	// onGrade is called when the obstacle grade changes
	onGrade func(lidar.Grade, lidar.SampleData)
}

func newScanSession(angles []int, grader lidar.Obstacle) *scanSession {
	sorted := append([]int(nil), angles...)
	sort.Ints(sorted)
	return &scanSession{
		angles:  sorted,
		grader:  grader,
		summary: newAngleSummary(),
		latest:  make(map[int]lidar.SampleData),
		updated: make(map[int]time.Time),
	}
}

// subscribe registers the session, plus any extra callbacks, at every
// watch angle and the obstacle angle.
func (s *scanSession) subscribe(l *lidar.Lidar, extra ...lidar.NotifyFunc) error {
	for _, angle := range s.angles {
		watch := angle
		if err := l.Watch(watch, func(d lidar.SampleData) { s.update(watch, d) }); err != nil {
			return err
		}
		for _, fn := range extra {
			if err := l.Watch(watch, fn); err != nil {
				return err
			}
		}
	}
	return l.Watch(obstacleAngle, s.checkObstacle)
}

// addAngle watches one more angle. The scan must be stopped.
func (s *scanSession) addAngle(l *lidar.Lidar, angle int) error {
	if angle < 0 || angle >= lidar.MaxAngle {
		return fmt.Errorf("watch angle %d outside [0, %d)", angle, lidar.MaxAngle)
	}

	s.mu.Lock()
	i := sort.SearchInts(s.angles, angle)
	if i < len(s.angles) && s.angles[i] == angle {
		s.mu.Unlock()
		return fmt.Errorf("angle %d is already watched", angle)
	}
	s.angles = append(s.angles, 0)
	copy(s.angles[i+1:], s.angles[i:])
	s.angles[i] = angle
	s.mu.Unlock()

	return l.Watch(angle, func(d lidar.SampleData) { s.update(angle, d) })
}

func (s *scanSession) update(watch int, d lidar.SampleData) {
	s.mu.Lock()
	s.latest[watch] = d
	s.updated[watch] = time.Now()
	s.mu.Unlock()
	s.summary.Add(watch, d)
}

func (s *scanSession) checkObstacle(d lidar.SampleData) {
	grade := s.grader.Grade(d.Distance)

	s.mu.Lock()
	changed := !s.graded || grade != s.grade
	s.grade, s.graded = grade, true
	s.mu.Unlock()

	if changed && s.onGrade != nil {
		s.onGrade(grade, d)
	}
}

// watchRow is one line of the watch table
type watchRow struct {
	Angle   int
	Reading lidar.SampleData
	Age     time.Duration
	Seen    bool
}

func (s *scanSession) rows() []watchRow {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	rows := make([]watchRow, 0, len(s.angles))
	for _, angle := range s.angles {
		d, ok := s.latest[angle]
		row := watchRow{Angle: angle, Reading: d, Seen: ok}
		if ok {
			row.Age = now.Sub(s.updated[angle])
		}
		rows = append(rows, row)
	}
	return rows
}

func (s *scanSession) obstacle() (lidar.Grade, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grade, s.graded
}

// scanContext ends on Ctrl+C, SIGTERM or after the configured duration
func scanContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	if scanDuration <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, scanDuration)
	return ctx, func() {
		cancel()
		stop()
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	if err := applyScanFlags(cmd); err != nil {
		return err
	}

	l, connInfo, err := OpenLidar()
	if err != nil {
		return err
	}
	defer l.Close()

	mode, err := cfg.ScanMode(l.Profile)
	if err != nil {
		return err
	}

	session := newScanSession(cfg.Angles, cfg.ObstacleGrader())
	if useTUI {
		return runScanTUI(l, mode, connInfo, session)
	}
	return runScanText(l, mode, connInfo, session)
}

// runScanText prints the watch table at each stats interval
func runScanText(l *lidar.Lidar, mode lidar.Mode, connInfo string, session *scanSession) error {
	fmt.Printf("Lidarstat - Scan Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Device: %s (%s series)\n", l.Name, l.Profile.Series)
	fmt.Printf("Mode: %s\n", mode)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	session.onGrade = func(grade lidar.Grade, d lidar.SampleData) {
		timestamp := time.Now().Format("15:04:05.000")
		switch grade {
		case lidar.GradeCritical:
			fmt.Printf("[%s] \033[1;31mOBSTACLE %s\033[0m at %d°: %.1f cm\n", timestamp, grade, d.Angle, d.Distance)
		case lidar.GradeWarning:
			fmt.Printf("[%s] \033[1;33mOBSTACLE %s\033[0m at %d°: %.1f cm\n", timestamp, grade, d.Angle, d.Distance)
		default:
			fmt.Printf("[%s] \033[1;32mOBSTACLE %s\033[0m at %d°: %.1f cm\n", timestamp, grade, d.Angle, d.Distance)
		}
	}
	if err := session.subscribe(l); err != nil {
		return err
	}

	ctx, cancel := scanContext()
	defer cancel()

	if err := l.Run(mode); err != nil {
		return fmt.Errorf("failed to start %s scan: %w", mode, err)
	}

	ticker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ticker.C:
			printWatchTable(session, l.Statistics().Snapshot())
		case <-l.Done():
			break loop
		case <-ctx.Done():
			break loop
		}
	}

	scanErr := l.Stop()
	fmt.Println()
	fmt.Print(l.Statistics().Snapshot().String())
	fmt.Println()
	fmt.Print(session.summary.String())

	if scanErr != nil {
		log.Printf("Scan ended with error: %v", scanErr)
		return scanErr
	}
	return nil
}

func printWatchTable(session *scanSession, snap lidar.StatsSnapshot) {
	timestamp := time.Now().Format("15:04:05")
	fmt.Printf("--- %s  %.0f samples/s  %.1f Hz ---\n", timestamp, snap.SampleRate, snap.ScanRate)
	for _, row := range session.rows() {
		if !row.Seen {
			fmt.Printf("%3d°        ---\n", row.Angle)
			continue
		}
		fmt.Println(lidar.FormatReading(row.Reading, session.grader.Grade(row.Reading.Distance)))
	}
	if grade, ok := session.obstacle(); ok {
		fmt.Printf("Obstacle (%d°): %s\n", obstacleAngle, grade)
	}
	fmt.Println()
}
