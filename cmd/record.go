// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/lidarstat/pkg/lidar"
	"github.com/spf13/cobra"
)

var recordOut string

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record watched readings to a file",
	Long: `Scan and write every reading at the watch angles to a CBOR recording.

The recording starts with a header naming the device, scan mode and watch
angles, followed by one [angle, distance_cm, unix_nanos] item per reading.
Use 'replay' to summarize it later without a device.`,
	RunE: runRecord,
}

func init() {
	rootCmd.AddCommand(recordCmd)
	addScanFlags(recordCmd)
	recordCmd.Flags().StringVarP(&recordOut, "out", "o", "", "Output file (required)")
	recordCmd.MarkFlagRequired("out")
}

func runRecord(cmd *cobra.Command, args []string) error {
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

	f, err := os.Create(recordOut)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", recordOut, err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	session := newScanSession(cfg.Angles, cfg.ObstacleGrader())
	rec, err := lidar.NewRecorder(w, lidar.NewRecordHeader(l.Name, mode, session.angles))
	if err != nil {
		return err
	}
	if err := session.subscribe(l, rec.Notify); err != nil {
		return err
	}

	fmt.Printf("Lidarstat - Recorder\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Device: %s, mode %s\n", l.Name, mode)
	fmt.Printf("Recording to %s, press Ctrl+C to stop\n\n", recordOut)

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
			snap := l.Statistics().Snapshot()
			fmt.Printf("\r%d readings recorded, %.0f samples/s, %.1f Hz   ",
				rec.Count(), snap.SampleRate, snap.ScanRate)
			if rec.Err() != nil {
				break loop
			}
		case <-l.Done():
			break loop
		case <-ctx.Done():
			break loop
		}
	}
	fmt.Println()

	scanErr := l.Stop()
	if err := rec.Err(); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write %s: %w", recordOut, err)
	}

	fmt.Printf("Recorded %d readings to %s\n\n", rec.Count(), recordOut)
	fmt.Print(session.summary.String())
	return scanErr
}
