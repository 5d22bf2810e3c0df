// Package risk is a pure function library shared by the screener and
// optimizer: portfolio variance/vol, risk contribution
// decomposition, concentration, wealth/drawdown, historical and Monte Carlo
// tail-risk measures, and the supplemented performance diagnostics
// (Sharpe, Sortino, CAGR).
package risk

import (
	"fmt"
	"math"

	"github.com/aristath/portfolio-core/internal/core/coretypes"
	"github.com/aristath/portfolio-core/pkg/formulas"
)

// PortfolioVariance returns wᵀΣw.
func PortfolioVariance(w []float64, sigma [][]float64) float64 {
	n := len(w)
	var variance float64
	for i := 0; i < n; i++ {
		var rowSum float64
		for j := 0; j < n; j++ {
			rowSum += sigma[i][j] * w[j]
		}
		variance += w[i] * rowSum
	}
	return variance
}

// PortfolioVol returns √variance, guarding against tiny negative noise.
func PortfolioVol(w []float64, sigma [][]float64) float64 {
	v := PortfolioVariance(w, sigma)
	if v < 0 {
		v = 0
	}
	return math.Sqrt(v)
}

// Decompose returns marginal, component, and percent risk contributions.
// Undefined (portfolio vol == 0) returns all-zero arrays since MCR/CRC/PRC
// have no meaningful value for a riskless portfolio.
func Decompose(w []float64, sigma [][]float64) coretypes.RiskDecomposition {
	n := len(w)
	vol := PortfolioVol(w, sigma)

	mcr := make([]float64, n)
	crc := make([]float64, n)
	prc := make([]float64, n)

	if vol == 0 {
		return coretypes.RiskDecomposition{MCR: mcr, CRC: crc, PRC: prc}
	}

	sigmaW := make([]float64, n)
	for i := 0; i < n; i++ {
		var rowSum float64
		for j := 0; j < n; j++ {
			rowSum += sigma[i][j] * w[j]
		}
		sigmaW[i] = rowSum
	}

	for i := 0; i < n; i++ {
		mcr[i] = sigmaW[i] / vol
		crc[i] = w[i] * mcr[i]
		prc[i] = crc[i] / vol
	}

	return coretypes.RiskDecomposition{MCR: mcr, CRC: crc, PRC: prc}
}

// HHI returns the Herfindahl-Hirschman concentration index Σwᵢ².
func HHI(w []float64) float64 {
	var sum float64
	for _, v := range w {
		sum += v * v
	}
	return sum
}

// EffectiveN returns 1/HHI(w), or nil when HHI is zero (undefined).
func EffectiveN(w []float64) *float64 {
	h := HHI(w)
	if h == 0 {
		return nil
	}
	n := 1.0 / h
	return &n
}

// WealthIndex is a thin re-export of formulas.WealthIndex for callers that
// only import the risk package.
func WealthIndex(portfolioReturns []float64) []float64 {
	return formulas.WealthIndex(portfolioReturns)
}

// Drawdown is a thin re-export of formulas.DrawdownSeries.
func Drawdown(wealth []float64) []float64 {
	return formulas.DrawdownSeries(wealth)
}

// MaxDrawdown is a thin re-export of formulas.MaxDrawdown.
func MaxDrawdown(drawdown []float64) float64 {
	return formulas.MaxDrawdown(drawdown)
}

// HistoricalVaR returns the historical Value-at-Risk at confidence alpha
// (e.g. 0.95) as a positive loss magnitude.
func HistoricalVaR(returns []float64, alpha float64) float64 {
	return formulas.CalculateHistoricalVaR(returns, alpha)
}

// HistoricalCVaR returns the historical Conditional VaR at confidence alpha
// as a positive loss magnitude.
func HistoricalCVaR(returns []float64, alpha float64) float64 {
	return formulas.CalculateHistoricalCVaR(returns, alpha)
}

// MonteCarloCVaR estimates portfolio CVaR from a normal approximation
// parameterized by the portfolio's periodic mean/vol, rather than the
// empirical sample; seed makes the simulation reproducible.
func MonteCarloCVaR(periodicMean, periodicVol, alpha float64, numSamples int, seed uint64) float64 {
	return formulas.MonteCarloCVaR(periodicMean, periodicVol, alpha, numSamples, seed)
}

// SharpeRatio is a thin re-export of formulas.CalculateSharpeRatio.
func SharpeRatio(returns []float64, riskFreeRate float64, periodsPerYear int) *float64 {
	return formulas.CalculateSharpeRatio(returns, riskFreeRate, periodsPerYear)
}

// SortinoRatio is a thin re-export of formulas.CalculateSortinoRatio.
func SortinoRatio(returns []float64, riskFreeRate, targetReturn float64, periodsPerYear int) *float64 {
	return formulas.CalculateSortinoRatio(returns, riskFreeRate, targetReturn, periodsPerYear)
}

// CAGR computes the compound annual growth rate implied by a portfolio
// return series sampled periodsPerYear times per year.
func CAGR(portfolioReturns []float64, periodsPerYear float64) *float64 {
	wealth := formulas.WealthIndex(portfolioReturns)
	return formulas.CAGRFromWealth(wealth, periodsPerYear)
}

// CorrelationPair names a pair of assets and their correlation.
type CorrelationPair struct {
	AssetA      string
	AssetB      string
	Correlation float64
}

// HighCorrelationPairs extracts asset pairs whose correlation is at or above
// threshold, in descending correlation order (ties broken by asset-key pair
// ascending for determinism).
func HighCorrelationPairs(assetKeys []string, corr [][]float64, threshold float64) []CorrelationPair {
	var pairs []CorrelationPair
	n := len(assetKeys)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if corr[i][j] >= threshold {
				pairs = append(pairs, CorrelationPair{
					AssetA:      assetKeys[i],
					AssetB:      assetKeys[j],
					Correlation: corr[i][j],
				})
			}
		}
	}

	for i := 0; i < len(pairs); i++ {
		for j := i + 1; j < len(pairs); j++ {
			if less := pairLess(pairs[j], pairs[i]); less {
				pairs[i], pairs[j] = pairs[j], pairs[i]
			}
		}
	}
	return pairs
}

func pairLess(a, b CorrelationPair) bool {
	if a.Correlation != b.Correlation {
		return a.Correlation > b.Correlation
	}
	if a.AssetA != b.AssetA {
		return a.AssetA < b.AssetA
	}
	return a.AssetB < b.AssetB
}

// ValidateDecomposition checks the two invariants claimed for Decompose:
// Σ CRC = σₚ and Σ PRC = 1, within tol. Intended for tests and optional
// runtime assertions by callers that want defense in depth.
func ValidateDecomposition(w []float64, sigma [][]float64, decomp coretypes.RiskDecomposition, tol float64) error {
	vol := PortfolioVol(w, sigma)
	if vol == 0 {
		return nil
	}

	var sumCRC, sumPRC float64
	for _, v := range decomp.CRC {
		sumCRC += v
	}
	for _, v := range decomp.PRC {
		sumPRC += v
	}

	if math.Abs(sumCRC-vol) > tol {
		return fmt.Errorf("risk decomposition invariant violated: sum(CRC)=%v, want %v (tol %v)", sumCRC, vol, tol)
	}
	if math.Abs(sumPRC-1.0) > tol {
		return fmt.Errorf("risk decomposition invariant violated: sum(PRC)=%v, want 1 (tol %v)", sumPRC, tol)
	}
	return nil
}
