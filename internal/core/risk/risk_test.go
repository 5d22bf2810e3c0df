package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func equalWeightSigma() [][]float64 {
	return [][]float64{
		{0.04, 0.01, 0.00},
		{0.01, 0.09, 0.02},
		{0.00, 0.02, 0.16},
	}
}

func TestPortfolioVarianceAndVol(t *testing.T) {
	w := []float64{1.0 / 3, 1.0 / 3, 1.0 / 3}
	sigma := equalWeightSigma()

	variance := PortfolioVariance(w, sigma)
	assert.Greater(t, variance, 0.0)
	assert.InDelta(t, variance, PortfolioVol(w, sigma)*PortfolioVol(w, sigma), 1e-9)
}

func TestDecomposeInvariants(t *testing.T) {
	w := []float64{0.5, 0.3, 0.2}
	sigma := equalWeightSigma()

	decomp := Decompose(w, sigma)
	require.NoError(t, ValidateDecomposition(w, sigma, decomp, 1e-8))
}

func TestDecomposeZeroVolReturnsZeros(t *testing.T) {
	w := []float64{0, 0, 0}
	sigma := equalWeightSigma()

	decomp := Decompose(w, sigma)
	for _, v := range decomp.MCR {
		assert.Equal(t, 0.0, v)
	}
}

func TestHHIAndEffectiveN(t *testing.T) {
	w := []float64{1.0 / 3, 1.0 / 3, 1.0 / 3}
	hhi := HHI(w)
	assert.InDelta(t, 1.0/3, hhi, 1e-9)

	effN := EffectiveN(w)
	require.NotNil(t, effN)
	assert.InDelta(t, 3.0, *effN, 1e-9)
}

func TestEffectiveNUndefinedWhenHHIZero(t *testing.T) {
	assert.Nil(t, EffectiveN([]float64{}))
}

func TestWealthDrawdownRoundTrip(t *testing.T) {
	returns := []float64{0.10, -0.20, 0.05, 0.15}
	wealth := WealthIndex(returns)
	require.Len(t, wealth, 5)
	assert.InDelta(t, 1.0, wealth[0], 1e-12)

	dd := Drawdown(wealth)
	maxDD := MaxDrawdown(dd)
	assert.LessOrEqual(t, maxDD, 0.0)

	// Known peak after period 1 (1.10), trough after period 2 (0.88):
	// drawdown = (0.88-1.10)/1.10 = -0.2
	assert.InDelta(t, -0.2, maxDD, 1e-9)
}

func TestHistoricalVaRAndCVaR(t *testing.T) {
	returns := []float64{0.01, -0.02, 0.03, -0.05, 0.00, -0.01, 0.02}
	vAr := HistoricalVaR(returns, 0.95)
	cVar := HistoricalCVaR(returns, 0.95)

	assert.GreaterOrEqual(t, vAr, 0.0)
	assert.GreaterOrEqual(t, cVar, vAr-1e-9) // CVaR at least as severe as VaR
}

func TestSharpeAndSortino(t *testing.T) {
	returns := []float64{0.01, 0.02, -0.01, 0.015, -0.005, 0.01, 0.02}
	sharpe := SharpeRatio(returns, 0.02, 252)
	require.NotNil(t, sharpe)

	sortino := SortinoRatio(returns, 0.02, 0, 252)
	require.NotNil(t, sortino)
}

func TestCAGR(t *testing.T) {
	returns := make([]float64, 252)
	for i := range returns {
		returns[i] = 0.0003
	}
	cagr := CAGR(returns, 252)
	require.NotNil(t, cagr)
	assert.Greater(t, *cagr, 0.0)
}

func TestHighCorrelationPairsOrderingAndThreshold(t *testing.T) {
	keys := []string{"A", "B", "C"}
	corr := [][]float64{
		{1.0, 0.9, 0.2},
		{0.9, 1.0, 0.85},
		{0.2, 0.85, 1.0},
	}

	pairs := HighCorrelationPairs(keys, corr, 0.8)
	require.Len(t, pairs, 2)
	assert.Equal(t, "A", pairs[0].AssetA)
	assert.Equal(t, "B", pairs[0].AssetB)
	assert.InDelta(t, 0.9, pairs[0].Correlation, 1e-12)
}

func TestMonteCarloCVaRReproducible(t *testing.T) {
	a := MonteCarloCVaR(0.0004, 0.012, 0.95, 5000, 42)
	b := MonteCarloCVaR(0.0004, 0.012, 0.95, 5000, 42)
	assert.Equal(t, a, b)
	assert.Greater(t, a, 0.0)
}
