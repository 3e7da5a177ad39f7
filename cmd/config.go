// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/lidarstat/pkg/lidar"
	"gopkg.in/yaml.v3"
)

// ObstacleConfig holds the obstacle grading thresholds in centimeters
type ObstacleConfig struct {
	CriticalCM float64 `yaml:"critical_cm"`
	WarningCM  float64 `yaml:"warning_cm"`
}

// Config is the top-level structure of the YAML configuration file
type Config struct {
	Device           string         `yaml:"device"`
	Baud             int            `yaml:"baud"`
	Mode             string         `yaml:"mode"`
	Angles           []int          `yaml:"angles"`
	ReadTimeout      time.Duration  `yaml:"read_timeout"`
	FirstReadTimeout time.Duration  `yaml:"first_read_timeout"`
	DrainTimeout     time.Duration  `yaml:"drain_timeout"`
	Obstacle         ObstacleConfig `yaml:"obstacle"`
}

func defaultConfig() Config {
	return Config{
		Mode:             "normal",
		Angles:           lidar.EvenAngles(12),
		ReadTimeout:      lidar.DefaultReadTimeout,
		FirstReadTimeout: lidar.FirstReadTimeout,
		DrainTimeout:     lidar.DrainTimeout,
		Obstacle: ObstacleConfig{
			CriticalCM: lidar.DefaultObstacle.CriticalCM,
			WarningCM:  lidar.DefaultObstacle.WarningCM,
		},
	}
}

// LoadConfig reads a YAML file on top of the defaults
func LoadConfig(path string) (Config, error) {
	c := defaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("parse config %s: %w", path, err)
	}
	return c, nil
}

// Validate rejects settings the driver cannot use
func (c Config) Validate() error {
	if c.Mode != "express" {
		if _, err := lidar.ParseMode(c.Mode); err != nil {
			return err
		}
	}
	for _, a := range c.Angles {
		if a < 0 || a >= lidar.MaxAngle {
			return fmt.Errorf("watch angle %d outside [0, %d)", a, lidar.MaxAngle)
		}
	}
	if c.Baud < 0 {
		return fmt.Errorf("invalid baud rate %d", c.Baud)
	}
	if c.ReadTimeout <= 0 || c.FirstReadTimeout <= 0 || c.DrainTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if c.Obstacle.CriticalCM > c.Obstacle.WarningCM {
		return fmt.Errorf("obstacle critical distance %.0f cm exceeds warning distance %.0f cm",
			c.Obstacle.CriticalCM, c.Obstacle.WarningCM)
	}
	return nil
}

// Apply pushes the timeouts into the driver
func (c Config) Apply() {
	lidar.DefaultReadTimeout = c.ReadTimeout
	lidar.FirstReadTimeout = c.FirstReadTimeout
	lidar.DrainTimeout = c.DrainTimeout
}

// ObstacleGrader returns the configured obstacle thresholds
func (c Config) ObstacleGrader() lidar.Obstacle {
	return lidar.Obstacle{CriticalCM: c.Obstacle.CriticalCM, WarningCM: c.Obstacle.WarningCM}
}

// ScanMode resolves the configured mode name for a device. "express"
// selects whichever express variant the device supports.
func (c Config) ScanMode(profile lidar.Profile) (lidar.Mode, error) {
	if c.Mode == "express" {
		m, ok := profile.ExpressMode()
		if !ok {
			return 0, fmt.Errorf("%s series has no express mode", profile.Series)
		}
		return m, nil
	}
	return lidar.ParseMode(c.Mode)
}
