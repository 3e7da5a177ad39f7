// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Lidarstat - Rotating LIDAR Monitor
//
// A CLI tool for identifying, querying and streaming scans from rotating
// triangulation LIDARs over a serial port or WebSocket bridge.

package main

import (
	"os"

	"github.com/Thermoquad/lidarstat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
