// Package drift compares target portfolio weights against the weights
// implied by price movement since the last rebalance, via wealth-growth
// renormalization, and produces breach explanations as percent-formatted
// sentences.
package drift

import (
	"fmt"
	"math"
	"sort"

	"github.com/aristath/portfolio-core/internal/core/coretypes"
)

// PricePoint is one asset's adjusted close at t0 and t1.
type PricePoint struct {
	PriceAtT0 float64
	PriceAtT1 float64
}

const defaultThreshold = 0.05

// CheckDrift compares targetWeights (keyed by asset) against the weights
// implied by cumulative price growth between t0 and t1, using simple returns
// unconditionally since wealth must compound multiplicatively regardless of
// the return convention used upstream in estimation.
func CheckDrift(targetWeights map[string]float64, prices map[string]PricePoint, runKey, checkDate string, threshold float64) (coretypes.DriftReport, error) {
	if threshold <= 0 {
		threshold = defaultThreshold
	}

	keys := sortedKeys(targetWeights)
	growth := make(map[string]float64, len(keys))

	for _, key := range keys {
		p, ok := prices[key]
		if !ok {
			return coretypes.DriftReport{}, coretypes.NewInvalidInput("prices", fmt.Sprintf("missing price for asset %q", key))
		}
		if p.PriceAtT0 <= 0 {
			return coretypes.DriftReport{}, coretypes.NewNumericalError(fmt.Sprintf("non-positive price at t0 for asset %q: %v", key, p.PriceAtT0))
		}
		if p.PriceAtT1 <= 0 {
			return coretypes.DriftReport{}, coretypes.NewNumericalError(fmt.Sprintf("non-positive price at t1 for asset %q: %v", key, p.PriceAtT1))
		}
		growth[key] = p.PriceAtT1 / p.PriceAtT0
	}

	var denom float64
	for _, key := range keys {
		denom += targetWeights[key] * growth[key]
	}
	if denom <= 0 {
		return coretypes.DriftReport{}, coretypes.NewNumericalError("implied-current weight denominator is non-positive; price growth destroyed all value")
	}

	var rows []coretypes.DriftRow
	var explanations []string
	anyBreach := false

	for _, key := range keys {
		target := targetWeights[key]
		current := (target * growth[key]) / denom
		delta := math.Abs(current - target)
		breached := delta > threshold

		rows = append(rows, coretypes.DriftRow{
			AssetKey: key,
			Target:   target,
			Current:  current,
			AbsDelta: delta,
			Breached: breached,
		})

		if breached {
			anyBreach = true
			explanations = append(explanations, explainDrift(key, target, current))
		}
	}

	return coretypes.DriftReport{
		RunKey:       runKey,
		CheckDate:    checkDate,
		Threshold:    threshold,
		Rows:         rows,
		AnyBreach:    anyBreach,
		Explanations: explanations,
	}, nil
}

func explainDrift(assetKey string, target, current float64) string {
	ppDelta := (current - target) * 100
	sign := "+"
	if ppDelta < 0 {
		sign = ""
	}
	direction := "price appreciation"
	if current < target {
		direction = "price decline relative to the rest of the portfolio"
	}
	return fmt.Sprintf(
		"%s has drifted from %.1f%% to %.1f%% (%s%.1f pp) due to %s since last rebalance.",
		assetKey, target*100, current*100, sign, ppDelta, direction,
	)
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Summary is the single most-breached-asset reduction of a DriftReport,
// without performing any scheduling or I/O.
type Summary struct {
	ShouldRebalance bool
	Reason          string
	WorstAsset      string
	WorstDelta      float64
}

// Summarize reduces a DriftReport to the single most-breached asset and a
// human sentence describing it.
func Summarize(report coretypes.DriftReport) Summary {
	if !report.AnyBreach {
		return Summary{ShouldRebalance: false, Reason: "no asset has drifted beyond the threshold"}
	}

	worst := report.Rows[0]
	for _, row := range report.Rows {
		if row.Breached && row.AbsDelta > worst.AbsDelta {
			worst = row
		}
	}

	reason := fmt.Sprintf(
		"position drift: %s drifted %.1f%% from target (threshold: %.1f%%)",
		worst.AssetKey, worst.AbsDelta*100, report.Threshold*100,
	)

	return Summary{
		ShouldRebalance: true,
		Reason:          reason,
		WorstAsset:      worst.AssetKey,
		WorstDelta:      worst.AbsDelta,
	}
}
