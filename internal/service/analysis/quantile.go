package analysis

import (
	"math"
	"slices"
)

// median returns the middle of values, NaN when empty.
func median(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	return percentile(sorted, 50)
}

// percentile interpolates linearly between the closest ranks of sorted
// data, which is numpy's default method. gonum's stat.Quantile only offers
// the empirical and type 4 estimators.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	h := float64(n-1) * p / 100
	lo := math.Floor(h)
	i := int(lo)
	if i >= n-1 {
		return sorted[n-1]
	}
	return sorted[i] + (h-lo)*(sorted[i+1]-sorted[i])
}
