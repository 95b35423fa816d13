// Package solver holds the numeric primitives shared by the rating and
// paired-comparison models: summary statistics, confidence intervals,
// likelihoods with their derivatives, a convergence tracker implementing the
// run state machine, and a gauge-fixed Newton step.
//
// Everything in this package is pure and allocation-local; callers own the
// slices they pass in and receive fresh slices back.
package solver

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// MeanStd returns the arithmetic mean and the sample standard deviation
// (n-1 denominator) of xs. The deviation is NaN for fewer than two values
// and both are NaN for an empty slice.
func MeanStd(xs []float64) (mean, std float64) {
	switch len(xs) {
	case 0:
		return math.NaN(), math.NaN()
	case 1:
		return xs[0], math.NaN()
	}
	return stat.MeanStdDev(xs, nil)
}

// Mean returns the arithmetic mean of xs, or NaN when xs is empty.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return stat.Mean(xs, nil)
}

// WeightedMean returns Σ w·x / Σ w. It returns NaN when the total weight is
// not positive.
func WeightedMean(xs, ws []float64) float64 {
	var sw float64
	for _, w := range ws {
		sw += w
	}
	if len(xs) == 0 || sw <= 0 {
		return math.NaN()
	}
	return stat.Mean(xs, ws)
}

// Median returns the median of xs, averaging the two middle values for an
// even count. It returns NaN for an empty slice and does not modify xs.
func Median(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	s := slices.Clone(xs)
	slices.Sort(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}

// Kurtosis returns the moment ratio β2 = m4 / m2² using population moments,
// the form used by the BT.500 normality screen (a normal sample gives about
// 3). It returns NaN for an empty slice or when every value is equal.
func Kurtosis(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	mean := stat.Mean(xs, nil)
	var m2, m4 float64
	for _, x := range xs {
		d := (x - mean) * (x - mean)
		m2 += d
		m4 += d * d
	}
	n := float64(len(xs))
	m2 /= n
	m4 /= n
	if m2 == 0 {
		return math.NaN()
	}
	return m4 / (m2 * m2)
}

// PopulationStd returns the standard deviation of xs with an n denominator.
func PopulationStd(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return math.Sqrt(stat.PopVariance(xs, nil))
}
