package drift

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckDrift_NoGrowthNoBreach(t *testing.T) {
	targets := map[string]float64{"A": 0.6, "B": 0.4}
	prices := map[string]PricePoint{
		"A": {PriceAtT0: 100, PriceAtT1: 100},
		"B": {PriceAtT0: 50, PriceAtT1: 50},
	}

	report, err := CheckDrift(targets, prices, "run-1", "2026-07-31", 0.05)
	require.NoError(t, err)
	assert.False(t, report.AnyBreach)
	for _, row := range report.Rows {
		assert.InDelta(t, row.Target, row.Current, 1e-9)
	}
}

func TestCheckDrift_AppreciationDrivesBreach(t *testing.T) {
	targets := map[string]float64{"A": 0.4, "B": 0.6}
	prices := map[string]PricePoint{
		"A": {PriceAtT0: 100, PriceAtT1: 180},
		"B": {PriceAtT0: 100, PriceAtT1: 100},
	}

	report, err := CheckDrift(targets, prices, "run-1", "2026-07-31", 0.05)
	require.NoError(t, err)
	assert.True(t, report.AnyBreach)
	assert.NotEmpty(t, report.Explanations)

	sumTarget, sumCurrent := 0.0, 0.0
	for _, row := range report.Rows {
		sumTarget += row.Target
		sumCurrent += row.Current
	}
	assert.InDelta(t, 1.0, sumTarget, 1e-9)
	assert.InDelta(t, 1.0, sumCurrent, 1e-9)
}

func TestCheckDrift_MissingPriceIsError(t *testing.T) {
	targets := map[string]float64{"A": 1.0}
	prices := map[string]PricePoint{}

	_, err := CheckDrift(targets, prices, "run-1", "2026-07-31", 0.05)
	require.Error(t, err)
}

func TestCheckDrift_NonPositivePriceIsError(t *testing.T) {
	targets := map[string]float64{"A": 1.0}
	prices := map[string]PricePoint{"A": {PriceAtT0: 0, PriceAtT1: 100}}

	_, err := CheckDrift(targets, prices, "run-1", "2026-07-31", 0.05)
	require.Error(t, err)
}

func TestSummarize_NoBreach(t *testing.T) {
	targets := map[string]float64{"A": 0.5, "B": 0.5}
	prices := map[string]PricePoint{
		"A": {PriceAtT0: 100, PriceAtT1: 100},
		"B": {PriceAtT0: 100, PriceAtT1: 100},
	}
	report, err := CheckDrift(targets, prices, "run-1", "2026-07-31", 0.05)
	require.NoError(t, err)

	summary := Summarize(report)
	assert.False(t, summary.ShouldRebalance)
}

func TestSummarize_PicksWorstBreach(t *testing.T) {
	targets := map[string]float64{"A": 0.3, "B": 0.3, "C": 0.4}
	prices := map[string]PricePoint{
		"A": {PriceAtT0: 100, PriceAtT1: 250},
		"B": {PriceAtT0: 100, PriceAtT1: 105},
		"C": {PriceAtT0: 100, PriceAtT1: 100},
	}

	report, err := CheckDrift(targets, prices, "run-1", "2026-07-31", 0.05)
	require.NoError(t, err)

	summary := Summarize(report)
	assert.True(t, summary.ShouldRebalance)
	assert.Equal(t, "A", summary.WorstAsset)
	assert.Contains(t, summary.Reason, "position drift")
}
