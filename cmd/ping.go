// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"
)

var (
	pingCount int
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Measure request round trip with health queries",
	Long: `Send GET_HEALTH requests to the device and time each response.

This is useful for verifying:
  - The serial line or WebSocket bridge carries traffic both ways
  - The device answers descriptor framed requests
  - Round trip latency through a bridge

Exit codes:
  0 - All pings successful
  1 - One or more pings failed
  2 - Connection error`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of pings to send")
}

func runPing(cmd *cobra.Command, args []string) error {
	if pingCount <= 0 {
		return fmt.Errorf("invalid ping count %d", pingCount)
	}

	l, connInfo, err := OpenLidar()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer l.Close()

	fmt.Printf("Lidarstat - Ping Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Device: %s\n", l.Name)
	fmt.Printf("Count: %d pings\n\n", pingCount)

	var rtts []float64
	failCount := 0

	for i := 1; i <= pingCount; i++ {
		fmt.Printf("Ping %d/%d: ", i, pingCount)

		startTime := time.Now()
		status, err := l.Status()
		if err != nil {
			fmt.Printf("FAILED: %v\n", err)
			failCount++
		} else {
			rtt := time.Since(startTime)
			rtts = append(rtts, float64(rtt)/float64(time.Millisecond))
			health := status.String()
			if health == "" {
				health = fmt.Sprintf("0x%02X", uint8(status))
			}
			fmt.Printf("health=%s, rtt=%v\n", health, rtt.Round(100*time.Microsecond))
		}

		// Small delay between pings
		if i < pingCount {
			time.Sleep(100 * time.Millisecond)
		}
	}

	// Summary
	fmt.Printf("\n--- Ping statistics ---\n")
	fmt.Printf("%d pings sent, %d responses received, %.0f%% loss\n",
		pingCount, len(rtts), float64(failCount)/float64(pingCount)*100)
	if len(rtts) > 0 {
		mean, std := stat.MeanStdDev(rtts, nil)
		if len(rtts) == 1 {
			std = 0
		}
		fmt.Printf("rtt mean/stddev = %.2f/%.2f ms\n", mean, std)
	}

	if failCount > 0 {
		l.Close()
		os.Exit(1)
	}
	return nil
}
