// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lidar

// Grade is the obstacle severity of a reading
type Grade uint8

const (
	GradeGood Grade = iota
	GradeWarning
	GradeCritical
)

func (g Grade) String() string {
	switch g {
	case GradeCritical:
		return "CRITICAL"
	case GradeWarning:
		return "WARNING"
	default:
		return "GOOD"
	}
}

// Obstacle distance thresholds in centimeters
type Obstacle struct {
	CriticalCM float64
	WarningCM  float64
}

// DefaultObstacle matches a rover sized platform
var DefaultObstacle = Obstacle{CriticalCM: 30, WarningCM: 60}

// Grade classifies a distance. Thresholds are exclusive.
func (o Obstacle) Grade(distance float64) Grade {
	switch {
	case distance < o.CriticalCM:
		return GradeCritical
	case distance < o.WarningCM:
		return GradeWarning
	default:
		return GradeGood
	}
}

// EvenAngles returns n angles evenly spread over a full turn, starting at 0
func EvenAngles(n int) []int {
	if n <= 0 {
		return nil
	}
	angles := make([]int, n)
	for i := range angles {
		angles[i] = i * MaxAngle / n
	}
	return angles
}
