// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/Thermoquad/lidarstat/pkg/lidar"
	"github.com/spf13/cobra"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	configPath string
	quiet      bool

	// cfg is the effective configuration after file and flags are merged
	cfg = defaultConfig()
)

var rootCmd = &cobra.Command{
	Use:   "lidarstat",
	Short: "Rotating LIDAR Driver and Scan Monitor",
	Long: `Lidarstat - A CLI tool for identifying, querying and scanning rotating 360°
LIDAR range-finders.

Devices are probed at each supported serial speed (115200 for A series, 460800
for C series) unless --baud is given. Scans decode the normal or express stream
and report the distance at a set of watch angles.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the LIDAR_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.

Settings can also be read from a YAML file given with --config; flags given on
the command line take precedence.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 0, "Baud rate (serial only, 0 probes every supported speed)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress driver diagnostics")
}

// loadSettings merges the config file with the command line and applies
// the result to the driver.
func loadSettings(cmd *cobra.Command, args []string) error {
	if configPath != "" {
		loaded, err := LoadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Device = portName
	}
	if flags.Changed("baud") {
		cfg.Baud = baudRate
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if quiet {
		lidar.SetLogger(nil)
	}
	cfg.Apply()
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
