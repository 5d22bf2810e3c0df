package formulas

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// CalculateHistoricalVaR returns the historical Value-at-Risk at the given
// confidence level (e.g. 0.95) as a positive loss magnitude: the
// (1-confidence) empirical quantile of the return distribution, negated.
// Returns 0 for an empty series.
func CalculateHistoricalVaR(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	sorted := append([]float64(nil), returns...)
	sort.Float64s(sorted)

	idx := int(math.Ceil((1.0 - confidence) * float64(len(sorted))))
	if idx < 1 {
		idx = 1
	}
	if idx > len(sorted) {
		idx = len(sorted)
	}
	q := sorted[idx-1]
	if q > 0 {
		return 0
	}
	return -q
}

// CalculateHistoricalCVaR returns the historical Conditional VaR (expected
// shortfall) at the given confidence level: the average of the worst
// ceil(n*(1-confidence)) returns, reported as a positive loss magnitude.
func CalculateHistoricalCVaR(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	sorted := append([]float64(nil), returns...)
	sort.Float64s(sorted)

	tailCount := int(math.Ceil((1.0 - confidence) * float64(len(sorted))))
	if tailCount < 1 {
		tailCount = 1
	}
	if tailCount > len(sorted) {
		tailCount = len(sorted)
	}

	tail := sorted[:tailCount]
	avg := Mean(tail)
	if avg > 0 {
		return 0
	}
	return -avg
}

// MonteCarloCVaR estimates portfolio CVaR by sampling from a normal
// distribution parameterized by the portfolio's periodic mean/volatility,
// rather than from the empirical historical sample; the result is a loss over
// one period of that length. numSamples controls the
// simulation size; seed is caller-supplied so results are reproducible
// without reaching for time- or global-RNG-based seeding.
func MonteCarloCVaR(portfolioMean, portfolioVol, confidence float64, numSamples int, seed uint64) float64 {
	if numSamples <= 0 || portfolioVol <= 0 {
		return 0
	}
	dist := distuv.Normal{
		Mu:    portfolioMean,
		Sigma: portfolioVol,
		Src:   newSplitMix64(seed),
	}

	samples := make([]float64, numSamples)
	for i := range samples {
		samples[i] = dist.Rand()
	}
	return CalculateHistoricalCVaR(samples, confidence)
}
