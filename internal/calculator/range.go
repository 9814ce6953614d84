package calculator

import (
	"errors"
	"math"
)

// RangePosition returns where current sits within [low, high] (0.0~1.0), clamped.
// A degenerate range yields the midpoint.
func RangePosition(current, high, low float64) (float64, error) {
	if high == low {
		return 0.5, nil
	}
	if high < low {
		return 0, errors.New("high must be >= low")
	}
	pos := (current - low) / (high - low)
	if pos < 0 {
		pos = 0
	}
	if pos > 1 {
		pos = 1
	}
	return pos, nil
}

// PercentChange returns (current - ref) / ref * 100. A zero reference yields 0.
func PercentChange(current, ref float64) float64 {
	if ref == 0 {
		return 0
	}
	return (current - ref) / ref * 100
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
