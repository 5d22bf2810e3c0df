// Command portfoliocore is a demonstration harness: it wires configuration,
// logging, and an embedded return panel through the estimator, screener,
// optimizer, and drift analyzer, and prints a summary of each stage. It is
// not a contractual interface of the library; callers are expected to
// import the internal/core packages directly.
package main

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/portfolio-core/internal/config"
	"github.com/aristath/portfolio-core/internal/core/coretypes"
	"github.com/aristath/portfolio-core/internal/core/drift"
	"github.com/aristath/portfolio-core/internal/core/estimator"
	"github.com/aristath/portfolio-core/internal/core/optimizer"
	"github.com/aristath/portfolio-core/internal/core/screener"
	"github.com/aristath/portfolio-core/pkg/logger"
)

func main() {
	log := logger.New(logger.Config{Level: "info", Pretty: true})
	log.Info().Msg("starting portfolio core demonstration run")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	log = logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	panel := embeddedReturnPanel()

	as, err := estimator.Estimate(panel, estimator.Options{
		RiskFreeRate: cfg.DefaultRiskFreeRate,
		MuMethod:     coretypes.MuHistorical,
		CovMethod:    coretypes.CovSample,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("estimation failed")
	}
	if as.PSDRepairApplied {
		log.Warn().Str("note", as.PSDRepairNote).Msg("covariance matrix required PSD repair")
	}
	log.Info().Strs("assets", as.AssetKeys).Msg("assumption set estimated")

	mvp := optimizer.Run(as, coretypes.RunMVP, coretypes.OptimizationConstraints{LongOnly: true}, nil, nil)
	reportSolverResult(log, "minimum-variance portfolio", mvp)

	tangency := optimizer.Run(as, coretypes.RunTangency, coretypes.OptimizationConstraints{LongOnly: true}, nil, nil)
	reportSolverResult(log, "tangency portfolio", tangency)

	frontier := optimizer.Frontier(as, coretypes.OptimizationConstraints{LongOnly: true}, 5, "demo-frontier", 0)
	for _, point := range frontier {
		if point.Status == coretypes.StatusSuccess {
			log.Info().
				Float64("target_return", *point.TargetReturn).
				Float64("realized_return", *point.PortfolioReturn).
				Float64("volatility", *point.PortfolioVol).
				Msg("frontier point")
		}
	}

	referenceWeights := map[string]float64{}
	if mvp.Status == coretypes.StatusSuccess {
		for i, key := range mvp.AssetKeys {
			if mvp.Weights[i] > 0 {
				referenceWeights[key] = mvp.Weights[i]
			}
		}
	}

	if len(referenceWeights) > 0 {
		screenResult, err := screener.Screen(coretypes.ScreeningInput{
			Assumptions:      as,
			ReferenceWeights: referenceWeights,
			CandidateKeys:    as.AssetKeys,
			Metadata:         embeddedMetadata(),
			Delta:            0.05,
			TopK:             cfg.ScreeningTopK,
			LambdaAvgCorr:    cfg.ScreeningLambdaAvgCorr,
			LambdaMVR:        cfg.ScreeningLambdaMVR,
			LambdaGap:        cfg.ScreeningLambdaGap,
			LambdaHHIRed:     cfg.ScreeningLambdaHHIRed,
		})
		if err != nil {
			log.Warn().Err(err).Msg("screening skipped")
		} else {
			for _, row := range screenResult {
				log.Info().Str("candidate", row.CandidateKey).Float64("composite", row.Composite).Int("rank", row.Rank).Msg(row.Explanation)
			}
		}
	}

	if mvp.Status == coretypes.StatusSuccess {
		targets := map[string]float64{}
		for i, key := range mvp.AssetKeys {
			targets[key] = mvp.Weights[i]
		}
		driftReport, err := drift.CheckDrift(targets, embeddedPricePanel(), "demo-run", "2026-07-31", 0.05)
		if err != nil {
			log.Warn().Err(err).Msg("drift check skipped")
		} else {
			summary := drift.Summarize(driftReport)
			if summary.ShouldRebalance {
				log.Warn().Msg(summary.Reason)
			} else {
				log.Info().Msg("no rebalance-worthy drift detected")
			}
		}
	}
}

func reportSolverResult(log zerolog.Logger, label string, result coretypes.SolverResult) {
	if result.Status != coretypes.StatusSuccess {
		log.Warn().Str("portfolio", label).Str("reason", result.InfeasibilityReason).Msg("optimizer run did not succeed")
		return
	}

	evt := log.Info().Str("portfolio", label).Float64("expected_return", *result.PortfolioReturn).Float64("volatility", *result.PortfolioVol)
	if result.Sharpe != nil {
		evt = evt.Float64("sharpe", *result.Sharpe)
	}
	if result.EffectiveN != nil {
		evt = evt.Float64("effective_n", *result.EffectiveN)
	}
	evt.Msg("solver run succeeded")

	for i, key := range result.AssetKeys {
		if result.Weights[i] > 0 {
			log.Debug().
				Str("portfolio", label).
				Str("asset", key).
				Float64("weight", result.Weights[i]).
				Float64("risk_contribution_pct", result.Decomposition.PRC[i]).
				Msg("allocation")
		}
	}
}

func embeddedReturnPanel() coretypes.ReturnPanel {
	assetKeys := []string{"US_STOCKS", "BONDS", "EM_STOCKS", "GOLD"}

	seedReturns := [][]float64{
		{0.012, 0.002, 0.020, -0.004},
		{-0.008, 0.001, -0.015, 0.010},
		{0.015, 0.003, 0.025, 0.002},
		{0.004, -0.001, 0.010, 0.006},
		{-0.020, 0.002, -0.030, 0.012},
		{0.018, 0.001, 0.022, -0.003},
		{0.006, 0.004, 0.005, 0.001},
		{-0.010, 0.000, -0.012, 0.008},
		{0.022, -0.002, 0.030, -0.005},
		{0.003, 0.002, 0.001, 0.004},
		{-0.014, 0.003, -0.020, 0.015},
		{0.009, 0.001, 0.012, 0.000},
	}

	const numMonths = 24
	dates := make([]string, numMonths)
	returns := make([][]float64, numMonths)
	for i := 0; i < numMonths; i++ {
		year := 2023 + i/12
		month := i%12 + 1
		dates[i] = fmt.Sprintf("%04d-%02d-01", year, month)
		returns[i] = seedReturns[i%len(seedReturns)]
	}

	return coretypes.ReturnPanel{
		AssetKeys: assetKeys,
		Dates:     dates,
		Returns:   returns,
		Frequency: coretypes.FrequencyMonthly,
		Kind:      coretypes.ReturnKindSimple,
	}
}

func embeddedMetadata() map[string]coretypes.AssetMetadata {
	return map[string]coretypes.AssetMetadata{
		"US_STOCKS": {Class: "equity", Sector: "broad"},
		"BONDS":     {Class: "fixed_income", Sector: "broad"},
		"EM_STOCKS": {Class: "equity", Sector: "emerging"},
		"GOLD":      {Class: "commodity"},
	}
}

func embeddedPricePanel() map[string]drift.PricePoint {
	return map[string]drift.PricePoint{
		"US_STOCKS": {PriceAtT0: 100, PriceAtT1: 112},
		"BONDS":     {PriceAtT0: 100, PriceAtT1: 101},
		"EM_STOCKS": {PriceAtT0: 100, PriceAtT1: 95},
		"GOLD":      {PriceAtT0: 100, PriceAtT1: 108},
	}
}
