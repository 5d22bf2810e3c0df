// Package screener ranks diversification candidates against a reference
// portfolio using four pro-forma signals: average correlation, marginal
// volatility reduction, asset-class/sector gap coverage, and concentration
// reduction.
package screener

import (
	"fmt"
	"math"
	"sort"

	"github.com/aristath/portfolio-core/internal/core/coretypes"
	"github.com/aristath/portfolio-core/internal/core/risk"
)

const gapAggregateThreshold = 0.02

// DefaultLambdas are the default composite-score weights, summing to 1.
var DefaultLambdas = [4]float64{0.40, 0.30, 0.15, 0.15}

// Screen ranks every candidate in input.CandidateKeys against the reference
// portfolio described by input.ReferenceWeights, returning one row per
// candidate sorted by descending composite score (ties broken by candidate
// key ascending).
func Screen(input coretypes.ScreeningInput) ([]coretypes.ScreeningScoreRow, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	as := input.Assumptions
	referenceKeys := sortedKeys(input.ReferenceWeights)
	wRef := make([]float64, len(referenceKeys))
	for i, k := range referenceKeys {
		wRef[i] = input.ReferenceWeights[k]
	}

	refIdx := make([]int, len(referenceKeys))
	for i, k := range referenceKeys {
		idx := as.IndexOf(k)
		if idx < 0 {
			return nil, coretypes.NewInvalidInput("ReferenceWeights", fmt.Sprintf("reference asset %q not present in assumption set", k))
		}
		refIdx[i] = idx
	}

	sigmaRef := submatrix(as.Sigma, refIdx, refIdx)
	volRef := risk.PortfolioVol(wRef, sigmaRef)
	hhiRef := risk.HHI(wRef)

	raw := make([]coretypes.ScreeningScoreRow, 0, len(input.CandidateKeys))
	var degenerateRanges []string

	for _, c := range input.CandidateKeys {
		cIdx := as.IndexOf(c)
		if cIdx < 0 {
			return nil, coretypes.NewInvalidInput("CandidateKeys", fmt.Sprintf("candidate %q not present in assumption set", c))
		}

		avgCorr := averageCorrelation(as.Correlation, cIdx, refIdx)

		wPro, proIdx := proFormaWeights(wRef, refIdx, cIdx, input.Delta)
		sigmaPro := submatrix(as.Sigma, proIdx, proIdx)
		volPro := risk.PortfolioVol(wPro, sigmaPro)
		mvr := volRef - volPro

		hhiPro := risk.HHI(wPro)
		hhiRed := hhiRef - hhiPro

		gap := gapScore(c, referenceKeys, input.ReferenceWeights, input.Metadata)

		raw = append(raw, coretypes.ScreeningScoreRow{
			CandidateKey: c,
			AvgCorr:      avgCorr,
			MVR:          mvr,
			Gap:          gap,
			HHIRed:       hhiRed,
		})
	}

	normAvgCorr, degen1 := minMaxNormalize(extract(raw, func(r coretypes.ScreeningScoreRow) float64 { return r.AvgCorr }), true)
	normMVR, degen2 := minMaxNormalize(extract(raw, func(r coretypes.ScreeningScoreRow) float64 { return r.MVR }), false)
	normHHIRed, degen3 := minMaxNormalize(extract(raw, func(r coretypes.ScreeningScoreRow) float64 { return r.HHIRed }), false)

	if degen1 {
		degenerateRanges = append(degenerateRanges, "avg_corr")
	}
	if degen2 {
		degenerateRanges = append(degenerateRanges, "mvr")
	}
	if degen3 {
		degenerateRanges = append(degenerateRanges, "hhi_red")
	}

	lambda := resolveLambdas(input)

	for i := range raw {
		raw[i].AvgCorrNorm = normAvgCorr[i]
		raw[i].MVRNorm = normMVR[i]
		raw[i].GapNorm = raw[i].Gap
		raw[i].HHIRedNorm = normHHIRed[i]

		raw[i].Composite = lambda[0]*raw[i].AvgCorrNorm +
			lambda[1]*raw[i].MVRNorm +
			lambda[2]*raw[i].GapNorm +
			lambda[3]*raw[i].HHIRedNorm
	}

	sort.SliceStable(raw, func(i, j int) bool {
		if raw[i].Composite != raw[j].Composite {
			return raw[i].Composite > raw[j].Composite
		}
		return raw[i].CandidateKey < raw[j].CandidateKey
	})

	topK := input.TopK
	if topK <= 0 {
		topK = 10
	}

	for i := range raw {
		raw[i].Rank = i + 1
		if i < topK {
			raw[i].Explanation = explain(raw[i], degenerateRanges)
		}
	}

	return raw, nil
}

func validateInput(input coretypes.ScreeningInput) error {
	if len(input.ReferenceWeights) == 0 {
		return coretypes.NewInvalidInput("ReferenceWeights", "must not be empty")
	}
	sum := 0.0
	for _, w := range input.ReferenceWeights {
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-6 {
		return coretypes.NewInvalidInput("ReferenceWeights", fmt.Sprintf("must sum to 1, got %v", sum))
	}
	if len(input.CandidateKeys) == 0 {
		return coretypes.NewInvalidInput("CandidateKeys", "must not be empty")
	}
	if input.Delta <= 0 || input.Delta >= 1 {
		return coretypes.NewInvalidInput("Delta", fmt.Sprintf("must be in (0,1), got %v", input.Delta))
	}

	lambda := resolveLambdas(input)
	lambdaSum := lambda[0] + lambda[1] + lambda[2] + lambda[3]
	if math.Abs(lambdaSum-1.0) > 1e-6 {
		return coretypes.NewInvalidInput("Lambda", fmt.Sprintf("signal weights must sum to 1, got %v", lambdaSum))
	}
	for _, l := range lambda {
		if l < 0 {
			return coretypes.NewInvalidInput("Lambda", "signal weights must be non-negative")
		}
	}

	return nil
}

func resolveLambdas(input coretypes.ScreeningInput) [4]float64 {
	if input.LambdaAvgCorr == 0 && input.LambdaMVR == 0 && input.LambdaGap == 0 && input.LambdaHHIRed == 0 {
		return DefaultLambdas
	}
	return [4]float64{input.LambdaAvgCorr, input.LambdaMVR, input.LambdaGap, input.LambdaHHIRed}
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func submatrix(m [][]float64, rows, cols []int) [][]float64 {
	out := make([][]float64, len(rows))
	for i, r := range rows {
		out[i] = make([]float64, len(cols))
		for j, c := range cols {
			out[i][j] = m[r][c]
		}
	}
	return out
}

func averageCorrelation(corr [][]float64, cIdx int, refIdx []int) float64 {
	if len(refIdx) == 0 {
		return 0
	}
	var sum float64
	for _, r := range refIdx {
		sum += corr[cIdx][r]
	}
	return sum / float64(len(refIdx))
}

// proFormaWeights builds the augmented weight vector (1-delta)*wRef on
// reference assets plus delta on the candidate, and the corresponding index
// list into the assumption set (candidate appended last, or folded into its
// existing reference position if it is already held).
func proFormaWeights(wRef []float64, refIdx []int, cIdx int, delta float64) ([]float64, []int) {
	for i, idx := range refIdx {
		if idx == cIdx {
			w := make([]float64, len(wRef))
			copy(w, wRef)
			for j := range w {
				w[j] *= (1 - delta)
			}
			w[i] += delta
			out := make([]int, len(refIdx))
			copy(out, refIdx)
			return w, out
		}
	}

	w := make([]float64, len(wRef)+1)
	for i, v := range wRef {
		w[i] = v * (1 - delta)
	}
	w[len(wRef)] = delta

	idx := make([]int, len(refIdx)+1)
	copy(idx, refIdx)
	idx[len(refIdx)] = cIdx
	return w, idx
}

func gapScore(candidate string, referenceKeys []string, refWeights map[string]float64, metadata map[string]coretypes.AssetMetadata) float64 {
	cMeta, ok := metadata[candidate]
	if !ok {
		return 0
	}

	classWeight := 0.0
	sectorWeight := 0.0
	for _, k := range referenceKeys {
		m, ok := metadata[k]
		if !ok {
			continue
		}
		w := refWeights[k]
		if m.Class == cMeta.Class {
			classWeight += w
			if cMeta.Sector != "" && m.Sector == cMeta.Sector {
				sectorWeight += w
			}
		}
	}

	if classWeight < gapAggregateThreshold {
		return 1.0
	}
	if cMeta.Sector != "" && sectorWeight < gapAggregateThreshold {
		return 0.5
	}
	return 0.0
}

func extract(rows []coretypes.ScreeningScoreRow, f func(coretypes.ScreeningScoreRow) float64) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = f(r)
	}
	return out
}

// minMaxNormalize scales values to [0,1]; when invert is true, the minimum
// raw value maps to 1 (used for AvgCorr, where lower is better). A
// degenerate range (max == min) maps every value to 0.5 and reports so.
func minMaxNormalize(values []float64, invert bool) ([]float64, bool) {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out, false
	}

	min, max := values[0], values[0]
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	if max == min {
		for i := range out {
			out[i] = 0.5
		}
		return out, true
	}

	for i, v := range values {
		n := (v - min) / (max - min)
		if invert {
			n = 1 - n
		}
		out[i] = n
	}
	return out, false
}

func explain(row coretypes.ScreeningScoreRow, degenerateRanges []string) string {
	base := fmt.Sprintf(
		"%s: avg pairwise correlation %.2f vs reference, marginal volatility reduction %.4f, gap score %.1f, concentration reduction %.4f (composite %.3f).",
		row.CandidateKey, row.AvgCorr, row.MVR, row.Gap, row.HHIRed, row.Composite,
	)
	if len(degenerateRanges) == 0 {
		return base
	}
	return base + fmt.Sprintf(" Note: degenerate candidate-set range for signal(s) %v; affected signals scored 0.5.", degenerateRanges)
}
