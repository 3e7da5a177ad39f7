// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lidar

import (
	"fmt"
	"strings"
)

// FormatInfo formats device identification into a human-readable string
func FormatInfo(name string, info DeviceInfo) string {
	result := fmt.Sprintf("Model:    %s (%s)\n", name, info.Model)
	result += fmt.Sprintf("Firmware: %s\n", info.Firmware)
	result += fmt.Sprintf("Hardware: %s\n", info.Hardware)
	result += fmt.Sprintf("Serial:   %s\n", strings.ToUpper(info.Serial))
	return result
}

// FormatStatus formats a health code, keeping the raw value for codes
// without a name.
func FormatStatus(status StatusCode) string {
	if name := status.String(); name != "" {
		return fmt.Sprintf("Status:   %s\n", name)
	}
	return fmt.Sprintf("Status:   unknown (0x%02X)\n", uint8(status))
}

// FormatSampleRate formats per-sample timing
func FormatSampleRate(rate SampleRate) string {
	result := fmt.Sprintf("Normal sample time:  %d us", rate.NormalUs)
	if rate.NormalUs > 0 {
		result += fmt.Sprintf(" (%d samples/s)", 1000000/uint32(rate.NormalUs))
	}
	result += "\n"
	result += fmt.Sprintf("Express sample time: %d us", rate.ExpressUs)
	if rate.ExpressUs > 0 {
		result += fmt.Sprintf(" (%d samples/s)", 1000000/uint32(rate.ExpressUs))
	}
	return result + "\n"
}

// FormatConfiguration formats the scan mode table
func FormatConfiguration(cfg Configuration) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scan modes: %d (typical: %d)\n", cfg.ModeCount, cfg.Typical)
	for _, m := range cfg.Modes {
		marker := " "
		if m.IsTypical {
			marker = "*"
		}
		fmt.Fprintf(&b, " %s[%d] %-12s %4d us/sample  %6d samples/s  %3d m  answer 0x%02X\n",
			marker, m.ID, m.Name, m.UsPerSample, m.MaxSampleRate, m.MaxDistanceM, m.AnswerCmdType)
	}
	return b.String()
}

// FormatReading formats one watched reading with its obstacle grade
func FormatReading(data SampleData, grade Grade) string {
	return fmt.Sprintf("%3d°  %8.1f cm  %s", data.Angle, data.Distance, grade)
}
