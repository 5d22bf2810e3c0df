// Package config loads the small set of environment-driven defaults the
// demonstration CLI needs: logging, a default risk-free rate, solver
// tolerances, and screening signal weights. Nothing in the core packages
// reads the environment or this package; the CLI passes the logging,
// risk-free-rate and screening values on as explicit arguments. The solver
// fields are loaded but not passed to the optimizer, which uses its own fixed
// iteration cap and tolerances.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config is the demonstration CLI's full runtime configuration.
type Config struct {
	LogLevel  string
	LogPretty bool

	DefaultRiskFreeRate float64

	SolverMaxIterations int
	SolverTolerance      float64

	ScreeningLambdaAvgCorr float64
	ScreeningLambdaMVR     float64
	ScreeningLambdaGap     float64
	ScreeningLambdaHHIRed  float64
	ScreeningTopK          int
}

// Load reads a .env file if present (missing files are not an error) and
// overlays process environment variables on top of the defaults below.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	cfg := &Config{
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: getEnvAsBool("LOG_PRETTY", true),

		DefaultRiskFreeRate: getEnvAsFloat("DEFAULT_RISK_FREE_RATE", 0.02),

		SolverMaxIterations: getEnvAsInt("SOLVER_MAX_ITERATIONS", 2000),
		SolverTolerance:      getEnvAsFloat("SOLVER_TOLERANCE", 1e-9),

		ScreeningLambdaAvgCorr: getEnvAsFloat("SCREENING_LAMBDA_AVG_CORR", 0.40),
		ScreeningLambdaMVR:     getEnvAsFloat("SCREENING_LAMBDA_MVR", 0.30),
		ScreeningLambdaGap:     getEnvAsFloat("SCREENING_LAMBDA_GAP", 0.15),
		ScreeningLambdaHHIRed:  getEnvAsFloat("SCREENING_LAMBDA_HHI_RED", 0.15),
		ScreeningTopK:          getEnvAsInt("SCREENING_TOP_K", 10),
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
