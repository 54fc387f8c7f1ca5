// Package seq implements sequential statistical tests for a sample median.
//
// The confidence sequences are time-uniform: the interval is valid
// simultaneously for every sample size at which it is inspected, so callers
// may peek after each new observation without inflating the false-positive
// rate. Classical fixed-n tests do not allow this: by the law of the
// iterated logarithm any fixed significance level is eventually crossed with
// probability one under repeated testing.
//
// Formulas follow "Sequential estimation of quantiles with applications to
// A/B-testing and best-arm identification" (arXiv:1906.09712), adapted for
// the median (p = 0.5).
package seq

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mathext"
)

// Default shape parameters from formula (1) of the paper. They regulate how
// quickly the confidence radius shrinks with the number of inspections and
// may be tuned to minimize the radius at a target sample size.
const (
	DefaultNu = 2.04
	DefaultS  = 1.4
)

// MedianConfRadius returns the radius (in probability units) of the
// time-uniform confidence interval around the true median after t sequential
// observations, with continuous testing starting at sample m <= t.
//
// alfa bounds the probability of the true median ever leaving the sequence
// of intervals over all t >= m. nu and s must be > 1. The result is clamped
// to 0.5: a wider interval carries no information about a median.
func MedianConfRadius(t int, alfa float64, m int, nu, s float64) float64 {
	k1 := (math.Pow(nu, 0.25) + math.Pow(nu, -0.25)) / math.Sqrt2

	iteratedLogarithm := s * math.Log(math.Log(nu*float64(t)/float64(m)))

	sequentialProbabilityRatio := math.Log(2 * mathext.Zeta(s, 1) / (alfa * math.Pow(math.Log(nu), s)))

	lt := iteratedLogarithm + sequentialProbabilityRatio

	radius := k1 * 0.5 * math.Sqrt(lt/float64(t))
	if radius > 0.5 {
		return 0.5
	}
	return radius
}

// MinimumBoundingN returns the smallest n such that the interval is already
// informative (radius < 0.5) at the first possible inspection t = n. For
// smaller starting points the early intervals are wider than 0.5 and impose
// no constraint on the median, so the start of testing can be postponed.
func MinimumBoundingN(alfa float64) int {
	for n := 1; ; n++ {
		if MedianConfRadius(n, alfa, n, DefaultNu, DefaultS) < 0.5 {
			return n
		}
	}
}

// MedianConfBound returns a confidence interval for the median of sample,
// valid simultaneously for all sample sizes >= MinimumBoundingN(pValue) with
// overall error probability at most pValue. While the sample is shorter than
// that, the interval is uninformative: (-Inf, +Inf).
func MedianConfBound(sample []float64, pValue float64) (float64, float64) {
	t := len(sample)
	n := MinimumBoundingN(pValue)
	if t < n {
		return math.Inf(-1), math.Inf(1)
	}
	radius := MedianConfRadius(t, pValue, n, DefaultNu, DefaultS)

	sorted := make([]float64, t)
	copy(sorted, sample)
	sort.Float64s(sorted)

	return percentile(sorted, (0.5-radius)*100), percentile(sorted, (0.5+radius)*100)
}

// percentile computes the per-th empirical percentile of a sorted sample
// with linear interpolation between order statistics.
func percentile(sorted []float64, per float64) float64 {
	last := len(sorted) - 1
	if per <= 0 {
		return sorted[0]
	}
	if per >= 100 {
		return sorted[last]
	}

	idx := per / 100 * float64(last)
	lo := int(math.Floor(idx))
	if lo == last {
		return sorted[last]
	}
	frac := idx - float64(lo)

	return sorted[lo]*(1-frac) + sorted[lo+1]*frac
}
