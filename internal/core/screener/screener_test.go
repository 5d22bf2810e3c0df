package screener

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/portfolio-core/internal/core/coretypes"
)

func testAssumptions() coretypes.AssumptionSet {
	return coretypes.AssumptionSet{
		AssetKeys: []string{"US_STOCKS", "BONDS", "EM_STOCKS", "GOLD"},
		Mu:        []float64{0.08, 0.03, 0.10, 0.04},
		Sigma: [][]float64{
			{0.040, 0.002, 0.025, 0.001},
			{0.002, 0.010, 0.001, 0.000},
			{0.025, 0.001, 0.060, 0.002},
			{0.001, 0.000, 0.002, 0.020},
		},
		Correlation: [][]float64{
			{1.00, 0.10, 0.50, 0.03},
			{0.10, 1.00, 0.04, 0.00},
			{0.50, 0.04, 1.00, 0.05},
			{0.03, 0.00, 0.05, 1.00},
		},
	}
}

func testMetadata() map[string]coretypes.AssetMetadata {
	return map[string]coretypes.AssetMetadata{
		"US_STOCKS": {Class: "equity", Sector: "broad"},
		"BONDS":     {Class: "fixed_income", Sector: "broad"},
		"EM_STOCKS": {Class: "equity", Sector: "emerging"},
		"GOLD":      {Class: "commodity", Sector: ""},
	}
}

func TestScreen_RanksDeterministically(t *testing.T) {
	input := coretypes.ScreeningInput{
		Assumptions:      testAssumptions(),
		ReferenceWeights: map[string]float64{"US_STOCKS": 0.6, "BONDS": 0.4},
		CandidateKeys:    []string{"EM_STOCKS", "GOLD"},
		Metadata:         testMetadata(),
		Delta:            0.05,
		TopK:             5,
	}

	rows, err := Screen(input)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	for _, r := range rows {
		assert.GreaterOrEqual(t, r.Rank, 1)
		assert.NotEmpty(t, r.Explanation)
	}

	rows2, err := Screen(input)
	require.NoError(t, err)
	assert.Equal(t, rows, rows2)
}

func TestScreen_GoldHasHighGapScore(t *testing.T) {
	input := coretypes.ScreeningInput{
		Assumptions:      testAssumptions(),
		ReferenceWeights: map[string]float64{"US_STOCKS": 0.6, "BONDS": 0.4},
		CandidateKeys:    []string{"GOLD"},
		Metadata:         testMetadata(),
		Delta:            0.05,
		TopK:             5,
	}

	rows, err := Screen(input)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1.0, rows[0].Gap) // commodity class entirely absent from reference
}

func TestScreen_RejectsMismatchedReferenceWeights(t *testing.T) {
	input := coretypes.ScreeningInput{
		Assumptions:      testAssumptions(),
		ReferenceWeights: map[string]float64{"US_STOCKS": 0.5, "BONDS": 0.6},
		CandidateKeys:    []string{"GOLD"},
		Metadata:         testMetadata(),
		Delta:            0.05,
	}

	_, err := Screen(input)
	require.Error(t, err)
}

func TestScreen_RejectsLambdaNotSummingToOne(t *testing.T) {
	input := coretypes.ScreeningInput{
		Assumptions:      testAssumptions(),
		ReferenceWeights: map[string]float64{"US_STOCKS": 0.6, "BONDS": 0.4},
		CandidateKeys:    []string{"GOLD"},
		Metadata:         testMetadata(),
		Delta:            0.05,
		LambdaAvgCorr:    0.5,
		LambdaMVR:        0.5,
		LambdaGap:        0.5,
		LambdaHHIRed:     0.5,
	}

	_, err := Screen(input)
	require.Error(t, err)
}

func TestScreen_DegenerateRangeYieldsHalfNormalizedScore(t *testing.T) {
	input := coretypes.ScreeningInput{
		Assumptions:      testAssumptions(),
		ReferenceWeights: map[string]float64{"US_STOCKS": 0.6, "BONDS": 0.4},
		CandidateKeys:    []string{"EM_STOCKS"},
		Metadata:         testMetadata(),
		Delta:            0.05,
	}

	rows, err := Screen(input)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	// single-candidate set: every min-max range is degenerate (max == min)
	assert.Equal(t, 0.5, rows[0].AvgCorrNorm)
	assert.Equal(t, 0.5, rows[0].MVRNorm)
	assert.Equal(t, 0.5, rows[0].HHIRedNorm)
}
