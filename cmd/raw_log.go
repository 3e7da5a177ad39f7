// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/Thermoquad/lidarstat/pkg/lidar"
	"github.com/spf13/cobra"
)

var rawLogInvalid bool

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Print every decoded measurement",
	Long: `Stream a scan and print each measurement as it is decoded, with a
timestamp, angle and distance. Watch angles are ignored.

Invalid samples (no return or poor quality) are hidden unless --invalid is
given. Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	addScanFlags(rawLogCmd)
	rawLogCmd.Flags().BoolVar(&rawLogInvalid, "invalid", false, "Also print invalid samples")
}

func runRawLog(cmd *cobra.Command, args []string) error {
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

	fmt.Printf("Lidarstat - Raw Measurement Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Mode: %s\n", mode)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	// The tap runs on the scan goroutine, so output is buffered
	var mu sync.Mutex
	out := bufio.NewWriter(os.Stdout)
	flush := func() {
		mu.Lock()
		out.Flush()
		mu.Unlock()
	}
	err = l.Tap(func(m lidar.Measurement) {
		if !m.Valid && !rawLogInvalid {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintln(out, formatMeasurement(time.Now(), m))
	})
	if err != nil {
		return err
	}

	ctx, cancel := scanContext()
	defer cancel()

	if err := l.Run(mode); err != nil {
		return fmt.Errorf("failed to start %s scan: %w", mode, err)
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ticker.C:
			flush()
		case <-l.Done():
			break loop
		case <-ctx.Done():
			break loop
		}
	}

	scanErr := l.Stop()
	flush()
	if scanErr != nil {
		log.Printf("Scan ended with error: %v", scanErr)
	}
	return scanErr
}

func formatMeasurement(t time.Time, m lidar.Measurement) string {
	if !m.Valid {
		return fmt.Sprintf("[%s] %3d°  invalid", t.Format("15:04:05.000"), m.Angle)
	}
	return fmt.Sprintf("[%s] %3d°  %8.1f cm", t.Format("15:04:05.000"), m.Angle, m.Distance)
}
