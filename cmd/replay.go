// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Thermoquad/lidarstat/pkg/lidar"
	"github.com/spf13/cobra"
)

var replayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "Summarize a recording",
	Long: `Read a recording made by 'record', feed it through the sample observer
and print the obstacle grade changes and the per-angle distance summary.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	defer f.Close()

	summary, header, n, err := replay(bufio.NewReader(f), cfg.ObstacleGrader(), os.Stdout)
	if err != nil {
		return err
	}

	fmt.Printf("\nSession:  %s\n", header.Session)
	if header.Model != "" {
		fmt.Printf("Model:    %s\n", header.Model)
	}
	fmt.Printf("Mode:     %s\n", header.Mode)
	fmt.Printf("Started:  %s\n", time.Unix(0, header.Started).Format("01/02/06 15:04:05.000"))
	fmt.Printf("Readings: %d\n\n", n)
	fmt.Print(summary.String())
	return nil
}

// replay feeds a recording through an observer watching the recorded
// angles and the obstacle angle, writing grade changes to out.
func replay(r io.Reader, grader lidar.Obstacle, out io.Writer) (*angleSummary, lidar.RecordHeader, int, error) {
	rr, err := lidar.NewRecordReader(r)
	if err != nil {
		return nil, lidar.RecordHeader{}, 0, err
	}

	session := newScanSession(rr.Header.Angles, grader)
	session.onGrade = func(grade lidar.Grade, d lidar.SampleData) {
		fmt.Fprintf(out, "Obstacle %s at %d°: %.1f cm\n", grade, d.Angle, d.Distance)
	}

	obs := lidar.NewObserver()
	for _, angle := range session.angles {
		watch := angle
		obs.Subscribe(watch, func(d lidar.SampleData) { session.update(watch, d) })
	}
	obs.Subscribe(obstacleAngle, session.checkObstacle)

	n, err := rr.Replay(obs)
	if err != nil {
		return nil, rr.Header, n, err
	}
	return session.summary, rr.Header, n, nil
}
