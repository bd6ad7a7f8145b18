// Package timeline maintains per-claim time series of confidence and
// entropy snapshots and derives trend analyses from them: moving
// averages, rates of change, plateau, convergence, and spike detection.
package timeline

import (
	"math"
	"time"
)

const (
	// PlateauThreshold is the std-dev below which the recent window
	// counts as flat
	PlateauThreshold = 0.02

	// ConvergenceWindow is the window size for shrinking-variance checks
	ConvergenceWindow = 5

	// ROCThreshold is the per-hour rate below which movement counts as
	// stable
	ROCThreshold = 0.01

	// SpikeFactor is how many standard deviations the last step must
	// jump to count as a spike or collapse
	SpikeFactor = 2.0

	// MinTrendSnapshots is the minimum history for direction and spike
	// analysis
	MinTrendSnapshots = 3
)

// Point is a single value on a claim's timeline
type Point struct {
	ClaimID int64     `json:"claim_id"`
	Value   float64   `json:"value"`
	At      time.Time `json:"at"`
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0.0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stdDev is the population standard deviation
func stdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0.0
	}
	m := mean(values)
	var sum float64
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}

// emaOf folds the series into a single exponential moving average,
// seeded with the first value
func emaOf(values []float64, alpha float64) float64 {
	if len(values) == 0 {
		return 0.0
	}
	ema := values[0]
	for _, v := range values[1:] {
		ema = alpha*v + (1-alpha)*ema
	}
	return ema
}

// rateOfChange is the two-point secant between the first and last
// points, in value-units per hour. Sub-microsecond spans yield zero.
func rateOfChange(points []Point) float64 {
	if len(points) < 2 {
		return 0.0
	}
	first, last := points[0], points[len(points)-1]
	dtHours := last.At.Sub(first.At).Hours()
	if dtHours < 1e-6 {
		return 0.0
	}
	return (last.Value - first.Value) / dtHours
}

// reversePoints flips a newest-first history into chronological order
func reversePoints(points []Point) []Point {
	out := make([]Point, len(points))
	for i, p := range points {
		out[len(points)-1-i] = p
	}
	return out
}

func valuesOf(points []Point) []float64 {
	vals := make([]float64, len(points))
	for i, p := range points {
		vals[i] = p.Value
	}
	return vals
}

// tail returns the last n elements, or the whole slice when shorter
func tail(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}
