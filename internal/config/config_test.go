package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.LogPretty)
	assert.InDelta(t, 0.02, cfg.DefaultRiskFreeRate, 1e-12)
	assert.Equal(t, 2000, cfg.SolverMaxIterations)
	assert.Equal(t, 10, cfg.ScreeningTopK)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)

	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_PRETTY", "false")
	t.Setenv("DEFAULT_RISK_FREE_RATE", "0.035")
	t.Setenv("SOLVER_MAX_ITERATIONS", "500")
	t.Setenv("SCREENING_TOP_K", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.False(t, cfg.LogPretty)
	assert.InDelta(t, 0.035, cfg.DefaultRiskFreeRate, 1e-12)
	assert.Equal(t, 500, cfg.SolverMaxIterations)
	assert.Equal(t, 5, cfg.ScreeningTopK)
}

func TestLoad_InvalidNumericFallsBackToDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("SOLVER_MAX_ITERATIONS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2000, cfg.SolverMaxIterations)
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LOG_LEVEL", "LOG_PRETTY", "DEFAULT_RISK_FREE_RATE",
		"SOLVER_MAX_ITERATIONS", "SOLVER_TOLERANCE",
		"SCREENING_LAMBDA_AVG_CORR", "SCREENING_LAMBDA_MVR",
		"SCREENING_LAMBDA_GAP", "SCREENING_LAMBDA_HHI_RED", "SCREENING_TOP_K",
	} {
		os.Unsetenv(key)
	}
}
