package estimator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/portfolio-core/internal/core/coretypes"
)

func samplePanel() coretypes.ReturnPanel {
	return coretypes.ReturnPanel{
		AssetKeys: []string{"A", "B", "C"},
		Dates:     []string{"d1", "d2", "d3", "d4", "d5"},
		Returns: [][]float64{
			{0.01, 0.02, -0.01},
			{-0.02, 0.01, 0.02},
			{0.03, -0.01, 0.00},
			{0.00, 0.03, 0.01},
			{0.02, -0.02, -0.01},
		},
		Frequency: coretypes.FrequencyDaily,
		Kind:      coretypes.ReturnKindSimple,
	}
}

func TestEstimate_HistoricalSample(t *testing.T) {
	as, err := Estimate(samplePanel(), Options{RiskFreeRate: 0.02, MuMethod: coretypes.MuHistorical, CovMethod: coretypes.CovSample})
	require.NoError(t, err)

	assert.Len(t, as.Mu, 3)
	assert.Equal(t, 252.0, as.AnnualizationFactor)
	assert.Equal(t, 0.02, as.RiskFreeRate)

	for i := 0; i < 3; i++ {
		assert.InDelta(t, 1.0, as.Correlation[i][i], 1e-9)
		assert.Greater(t, as.StdDev[i], 0.0)
	}

	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			assert.LessOrEqual(t, as.Correlation[i][j], 1.0+1e-9)
			assert.GreaterOrEqual(t, as.Correlation[i][j], -1.0-1e-9)
			assert.InDelta(t, as.Sigma[i][j], as.Sigma[j][i], 1e-12)
		}
	}
}

func TestEstimate_TooFewAssets(t *testing.T) {
	panel := samplePanel()
	panel.AssetKeys = panel.AssetKeys[:1]
	for i := range panel.Returns {
		panel.Returns[i] = panel.Returns[i][:1]
	}

	_, err := Estimate(panel, Options{MuMethod: coretypes.MuHistorical, CovMethod: coretypes.CovSample})
	require.Error(t, err)
	ce, ok := err.(*coretypes.CoreError)
	require.True(t, ok)
	assert.Equal(t, coretypes.ErrInvalidInput, ce.Kind)
}

func TestEstimate_TooFewObservations(t *testing.T) {
	panel := samplePanel()
	panel.Dates = panel.Dates[:1]
	panel.Returns = panel.Returns[:1]

	_, err := Estimate(panel, Options{MuMethod: coretypes.MuHistorical, CovMethod: coretypes.CovSample})
	require.Error(t, err)
	ce, ok := err.(*coretypes.CoreError)
	require.True(t, ok)
	assert.Equal(t, coretypes.ErrInvalidInput, ce.Kind)
}

func TestEstimate_NonFiniteRejected(t *testing.T) {
	panel := samplePanel()
	panel.Returns[0][0] = math.NaN()

	_, err := Estimate(panel, Options{MuMethod: coretypes.MuHistorical, CovMethod: coretypes.CovSample})
	require.Error(t, err)
}

func TestEstimate_DegenerateAssetZeroVariance(t *testing.T) {
	panel := samplePanel()
	for i := range panel.Returns {
		panel.Returns[i][0] = 0.01 // constant column => zero variance
	}

	_, err := Estimate(panel, Options{MuMethod: coretypes.MuHistorical, CovMethod: coretypes.CovSample})
	require.Error(t, err)
	ce, ok := err.(*coretypes.CoreError)
	require.True(t, ok)
	assert.Equal(t, coretypes.ErrDegenerateAsset, ce.Kind)
}

func TestEstimate_EWMAAndShrinkageRun(t *testing.T) {
	panel := samplePanel()

	as, err := Estimate(panel, Options{MuMethod: coretypes.MuEWMA, CovMethod: coretypes.CovSample})
	require.NoError(t, err)
	assert.Len(t, as.Mu, 3)

	as2, err := Estimate(panel, Options{MuMethod: coretypes.MuShrinkage, ShrinkageAlpha: 0.25, CovMethod: coretypes.CovLedoitWolf})
	require.NoError(t, err)
	assert.Len(t, as2.Mu, 3)
	for i := 0; i < 3; i++ {
		assert.Greater(t, as2.Sigma[i][i], 0.0)
	}
}

func TestEstimate_UnknownFrequencyRejected(t *testing.T) {
	panel := samplePanel()
	panel.Frequency = "fortnightly"

	_, err := Estimate(panel, Options{MuMethod: coretypes.MuHistorical, CovMethod: coretypes.CovSample})
	require.Error(t, err)
}
