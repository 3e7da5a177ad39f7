// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/lidarstat/pkg/lidar"
	"github.com/spf13/cobra"
)

var (
	packetTestTimeout int
)

var packetTestCmd = &cobra.Command{
	Use:   "packet_test",
	Short: "Test a scan by waiting for a valid measurement",
	Long: `Start a scan and wait for the first valid measurement until timeout.

Invalid samples and resynchronization are tolerated. The scan is stopped as
soon as one measurement with a distance arrives.

Exit codes:
  0 - Measurement received before timeout
  1 - Timeout reached without a valid measurement
  2 - Connection or scan error`,
	RunE: runPacketTest,
}

func init() {
	rootCmd.AddCommand(packetTestCmd)
	packetTestCmd.Flags().IntVar(&packetTestTimeout, "timeout", 10, "Timeout in seconds to wait for a measurement")
	packetTestCmd.Flags().StringVarP(&scanMode, "mode", "m", "normal", "Scan mode (normal, express, express-legacy, express-dense)")
}

func runPacketTest(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("mode") {
		cfg.Mode = scanMode
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	l, connInfo, err := OpenLidar()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer l.Close()

	mode, err := cfg.ScanMode(l.Profile)
	if err != nil {
		return err
	}

	fmt.Printf("Lidarstat - Packet Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", packetTestTimeout)
	fmt.Printf("Waiting for a valid %s measurement...\n\n", mode)

	got := make(chan lidar.Measurement, 1)
	err = l.Tap(func(m lidar.Measurement) {
		if !m.Valid {
			return
		}
		select {
		case got <- m:
		default:
		}
	})
	if err != nil {
		return err
	}

	start := time.Now()
	if err := l.Run(mode); err != nil {
		fmt.Fprintf(os.Stderr, "Scan error: %v\n", err)
		os.Exit(2)
	}

	select {
	case m := <-got:
		elapsed := time.Since(start)
		l.Stop()
		snap := l.Statistics().Snapshot()
		fmt.Printf("SUCCESS: Received valid measurement\n")
		fmt.Printf("  Angle: %d°\n", m.Angle)
		fmt.Printf("  Distance: %.1f cm\n", m.Distance)
		fmt.Printf("  After: %v\n", elapsed.Round(time.Millisecond))
		if snap.ResyncBytes > 0 {
			fmt.Printf("  (skipped %d bytes before sync)\n", snap.ResyncBytes)
		}
		l.Close()
		os.Exit(0)

	case <-l.Done():
		err := l.Stop()
		fmt.Fprintf(os.Stderr, "Scan error: %v\n", err)
		l.Close()
		os.Exit(2)

	case <-time.After(time.Duration(packetTestTimeout) * time.Second):
		l.Stop()
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid measurement received within %d seconds\n", packetTestTimeout)
		l.Close()
		os.Exit(1)
	}

	return nil
}
