package formulas

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the sample standard deviation of a slice of float64 values
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// Variance calculates the sample variance of a slice of float64 values
func Variance(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.Variance(data, nil)
}

// ZScores returns the z-score of every value relative to the slice's own
// mean and sample standard deviation. Returns nil when the standard
// deviation is zero (degenerate distribution, no meaningful scores).
func ZScores(data []float64) []float64 {
	std := StdDev(data)
	if std == 0 {
		return nil
	}
	mean := Mean(data)

	scores := make([]float64, len(data))
	for i, v := range data {
		scores[i] = (v - mean) / std
	}
	return scores
}

// Standardize rescales a column to zero mean and unit variance in place.
// A zero-variance column is centered only.
func Standardize(column []float64) {
	mean := Mean(column)
	std := StdDev(column)
	for i := range column {
		column[i] -= mean
		if std != 0 {
			column[i] /= std
		}
	}
}

// LinearFit holds an ordinary least-squares fit of y against x.
type LinearFit struct {
	Alpha    float64 // intercept
	Beta     float64 // slope
	RSquared float64
}

// FitLinear performs an ordinary least-squares regression of y on x.
func FitLinear(x, y []float64) LinearFit {
	alpha, beta := stat.LinearRegression(x, y, nil, false)
	return LinearFit{
		Alpha:    alpha,
		Beta:     beta,
		RSquared: stat.RSquared(x, y, nil, alpha, beta),
	}
}

// Predict evaluates the fitted line at x.
func (f LinearFit) Predict(x float64) float64 {
	return f.Alpha + f.Beta*x
}

// Percentile returns the p-th percentile (0..100) of data using linear
// interpolation between order statistics. The input is not modified.
func Percentile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
