// Package numeric holds the rounding and summary-statistics helpers shared by
// the ledger packages.
package numeric

import (
	"math"

	"github.com/shopspring/decimal"
)

// Round rounds v to places decimal digits, half away from zero.
// Non-finite values are returned unchanged.
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

// Mean returns the arithmetic mean, or 0 for an empty slice
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// SampleStdDev returns the sample standard deviation (n-1 denominator).
// Fewer than two values yield 0.
func SampleStdDev(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	total := 0.0
	for _, v := range values {
		total += math.Pow(v-mean, 2)
	}
	return math.Sqrt(total / float64(len(values)-1))
}
