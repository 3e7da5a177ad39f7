// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/Thermoquad/lidarstat/pkg/lidar"
	"github.com/spf13/cobra"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Identify the attached device",
	Long: `Probe the device and print its series and model name.

Without --baud every supported speed is tried in turn: 115200 for A series,
then 460800 for C series. The first device answering with a matching model
byte is kept.

Exit codes:
  0 - Device detected
  1 - No supported device answered`,
	RunE: runDetect,
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show model, firmware, hardware and serial number",
	RunE:  deviceQuery(printInfo),
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show device health",
	RunE:  deviceQuery(printStatus),
}

var sampleRateCmd = &cobra.Command{
	Use:   "samplerate",
	Short: "Show per-sample timing of each scan type",
	RunE:  deviceQuery(printSampleRate),
}

var configurationCmd = &cobra.Command{
	Use:   "configuration",
	Short: "Show the device scan mode table",
	RunE:  deviceQuery(printConfiguration),
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show info, status, sample rate and scan modes",
	RunE: deviceQuery(func(l *lidar.Lidar) error {
		for _, show := range []func(*lidar.Lidar) error{printInfo, printStatus, printSampleRate, printConfiguration} {
			if err := show(l); err != nil {
				return err
			}
			fmt.Println()
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(sampleRateCmd)
	rootCmd.AddCommand(configurationCmd)
	rootCmd.AddCommand(reportCmd)
}

func runDetect(cmd *cobra.Command, args []string) error {
	l, connInfo, err := OpenLidar()
	if err != nil {
		return err
	}
	defer l.Close()

	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Series:     %s\n", l.Profile.Series)
	fmt.Printf("Model:      %s\n", l.Name)
	fmt.Printf("Scan modes:")
	for _, m := range l.Modes() {
		fmt.Printf(" %s", m)
	}
	fmt.Println()
	return nil
}

// deviceQuery opens the device, runs one query and closes it again
func deviceQuery(query func(*lidar.Lidar) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		l, connInfo, err := OpenLidar()
		if err != nil {
			return err
		}
		defer l.Close()

		fmt.Printf("Connection: %s\n\n", connInfo)
		return query(l)
	}
}

func printInfo(l *lidar.Lidar) error {
	info, err := l.Info()
	if err != nil {
		return err
	}
	fmt.Print(lidar.FormatInfo(l.Name, info))
	return nil
}

func printStatus(l *lidar.Lidar) error {
	status, err := l.Status()
	if err != nil {
		return err
	}
	fmt.Print(lidar.FormatStatus(status))
	return nil
}

func printSampleRate(l *lidar.Lidar) error {
	rate, err := l.SampleRate()
	if err != nil {
		return err
	}
	fmt.Print(lidar.FormatSampleRate(rate))
	return nil
}

func printConfiguration(l *lidar.Lidar) error {
	table, err := l.Configuration()
	if err != nil {
		return err
	}
	fmt.Print(lidar.FormatConfiguration(table))
	return nil
}
