// Package estimator turns an aligned return panel into a validated
// assumption set (expected returns, covariance, correlation), repairing
// covariance matrices that fail the positive-semi-definite check by
// eigenvalue clipping.
package estimator

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/aristath/portfolio-core/internal/core/coretypes"
	"github.com/aristath/portfolio-core/pkg/formulas"
)

const psdEpsilon = 1e-10

// Options parameterizes a single Estimate call.
type Options struct {
	RiskFreeRate float64
	MuMethod     coretypes.MuEstimator
	CovMethod    coretypes.CovEstimator

	EWMAHalfLife   float64 // periods; 0 means default to annualization_factor/2
	ShrinkageAlpha float64 // (0,1]; 0 means default to 0.1; used only when MuMethod == MuShrinkage
}

// Estimate builds an AssumptionSet from a return panel.
func Estimate(panel coretypes.ReturnPanel, opts Options) (coretypes.AssumptionSet, error) {
	n := panel.NumAssets()
	m := panel.NumPeriods()

	if n < 2 {
		return coretypes.AssumptionSet{}, coretypes.NewInvalidInput("panel.AssetKeys", "at least 2 assets are required")
	}
	if m < 2 {
		return coretypes.AssumptionSet{}, coretypes.NewInvalidInput("panel.Dates", "at least 2 observations are required")
	}
	if len(panel.Returns) != m {
		return coretypes.AssumptionSet{}, coretypes.NewInvalidInput("panel.Returns", "row count does not match number of dates")
	}
	annFactor := panel.Frequency.AnnualizationFactor()
	if annFactor == 0 {
		return coretypes.AssumptionSet{}, coretypes.NewInvalidInput("panel.Frequency", fmt.Sprintf("unrecognized frequency %q", panel.Frequency))
	}

	columns := make([][]float64, n)
	for j := 0; j < n; j++ {
		col := make([]float64, m)
		for i := 0; i < m; i++ {
			if len(panel.Returns[i]) != n {
				return coretypes.AssumptionSet{}, coretypes.NewInvalidInput("panel.Returns", fmt.Sprintf("row %d has %d columns, want %d", i, len(panel.Returns[i]), n))
			}
			v := panel.Returns[i][j]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return coretypes.AssumptionSet{}, coretypes.NewInvalidInput("panel.Returns", fmt.Sprintf("non-finite value at row %d, asset %s", i, panel.AssetKeys[j]))
			}
			col[i] = v
		}
		columns[j] = col
	}

	mu, err := estimateMu(columns, opts, annFactor)
	if err != nil {
		return coretypes.AssumptionSet{}, err
	}

	sigma, err := estimateSigma(columns, opts, annFactor)
	if err != nil {
		return coretypes.AssumptionSet{}, err
	}

	for j, key := range panel.AssetKeys {
		if sigma[j][j] <= 0 {
			return coretypes.AssumptionSet{}, coretypes.NewDegenerateAsset("panel.AssetKeys", fmt.Sprintf("asset %q has zero or negative variance", key))
		}
	}

	repaired, applied, note, err := validateAndRepairPSD(sigma)
	if err != nil {
		return coretypes.AssumptionSet{}, err
	}

	stdDev := make([]float64, n)
	for i := 0; i < n; i++ {
		stdDev[i] = math.Sqrt(repaired[i][i])
	}

	corr, err := formulas.CorrelationMatrixFromCovariance(repaired)
	if err != nil {
		return coretypes.AssumptionSet{}, coretypes.NewNumericalError(err.Error())
	}
	for i := range corr {
		corr[i][i] = 1.0
		for j := range corr[i] {
			if corr[i][j] > 1.0 {
				corr[i][j] = 1.0
			} else if corr[i][j] < -1.0 {
				corr[i][j] = -1.0
			}
		}
	}

	assetKeys := append([]string(nil), panel.AssetKeys...)

	return coretypes.AssumptionSet{
		AssetKeys:           assetKeys,
		Mu:                  mu,
		Sigma:               repaired,
		StdDev:              stdDev,
		Correlation:         corr,
		AnnualizationFactor: annFactor,
		RiskFreeRate:        opts.RiskFreeRate,
		EstimatorTag:        opts.MuMethod,
		CovMethodTag:        opts.CovMethod,
		PSDRepairApplied:    applied,
		PSDRepairNote:       note,
	}, nil
}

func estimateMu(columns [][]float64, opts Options, annFactor float64) ([]float64, error) {
	n := len(columns)
	mu := make([]float64, n)

	switch opts.MuMethod {
	case coretypes.MuEWMA:
		halfLife := opts.EWMAHalfLife
		if halfLife <= 0 {
			halfLife = annFactor / 2
		}
		for j, col := range columns {
			mu[j] = ewmaMean(col, halfLife) * annFactor
		}
	case coretypes.MuShrinkage:
		alpha := opts.ShrinkageAlpha
		if alpha <= 0 {
			alpha = 0.1
		}
		means := make([]float64, n)
		grand := 0.0
		for j, col := range columns {
			means[j] = formulas.Mean(col)
			grand += means[j]
		}
		grand /= float64(n)
		for j := range mu {
			mu[j] = ((1-alpha)*means[j] + alpha*grand) * annFactor
		}
	case coretypes.MuHistorical, "":
		for j, col := range columns {
			mu[j] = formulas.Mean(col) * annFactor
		}
	default:
		return nil, coretypes.NewInvalidInput("Options.MuMethod", fmt.Sprintf("unrecognized estimator %q", opts.MuMethod))
	}

	return mu, nil
}

func ewmaMean(col []float64, halfLife float64) float64 {
	n := len(col)
	decay := math.Pow(0.5, 1.0/halfLife)

	weights := make([]float64, n)
	total := 0.0
	w := 1.0
	for t := n - 1; t >= 0; t-- {
		weights[t] = w
		total += w
		w *= decay
	}

	mean := 0.0
	for t, v := range col {
		mean += (weights[t] / total) * v
	}
	return mean
}

func estimateSigma(columns [][]float64, opts Options, annFactor float64) ([][]float64, error) {
	n := len(columns)
	sample := sampleCovariance(columns)

	switch opts.CovMethod {
	case coretypes.CovLedoitWolf:
		shrunk := ledoitWolfShrink(sample, n)
		return annualize(shrunk, annFactor), nil
	case coretypes.CovSample, "":
		return annualize(sample, annFactor), nil
	default:
		return nil, coretypes.NewInvalidInput("Options.CovMethod", fmt.Sprintf("unrecognized cov method %q", opts.CovMethod))
	}
}

func sampleCovariance(columns [][]float64) [][]float64 {
	n := len(columns)
	cov := make([][]float64, n)
	for i := 0; i < n; i++ {
		cov[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			c := formulas.Covariance(columns[i], columns[j])
			cov[i][j] = c
			cov[j][i] = c
		}
	}
	return cov
}

func annualize(cov [][]float64, factor float64) [][]float64 {
	n := len(cov)
	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		out[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			out[i][j] = cov[i][j] * factor
		}
	}
	return out
}

// ledoitWolfShrink shrinks sample covariance S toward F = (trace(S)/n)*I
// using the analytic intensity derived from the squared Frobenius distance
// between S and F scaled by an empirical variance-of-covariance proxy,
// clipped to [0,1].
func ledoitWolfShrink(sample [][]float64, n int) [][]float64 {
	trace := 0.0
	for i := 0; i < n; i++ {
		trace += sample[i][i]
	}
	mu := trace / float64(n)

	var distSq, varSq float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			target := 0.0
			if i == j {
				target = mu
			}
			diff := sample[i][j] - target
			distSq += diff * diff
			varSq += sample[i][j] * sample[i][j]
		}
	}

	intensity := 0.0
	if distSq > 0 {
		intensity = varSq / (varSq + distSq*float64(n))
	}
	if intensity < 0 {
		intensity = 0
	}
	if intensity > 1 {
		intensity = 1
	}

	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		out[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			target := 0.0
			if i == j {
				target = mu
			}
			out[i][j] = (1-intensity)*sample[i][j] + intensity*target
		}
	}
	return out
}

// validateAndRepairPSD symmetrizes sigma, checks the minimum eigenvalue
// against a relative tolerance, and if needed clips negative eigenvalues and
// reconstructs. Returns the (possibly repaired) matrix, whether repair was
// applied, and an explanatory note, or a numerical error when the
// eigendecomposition fails.
func validateAndRepairPSD(sigma [][]float64) ([][]float64, bool, string, error) {
	n := len(sigma)

	sym := make([][]float64, n)
	for i := 0; i < n; i++ {
		sym[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			sym[i][j] = (sigma[i][j] + sigma[j][i]) / 2
		}
	}

	symDense := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			symDense.SetSym(i, j, sym[i][j])
		}
	}

	var eig mat.EigenSym
	ok := eig.Factorize(symDense, true)
	if !ok {
		return nil, false, "", coretypes.NewNumericalError("eigendecomposition of the covariance matrix failed")
	}

	eigvals := eig.Values(nil)
	norm := mat.Norm(symDense, 2)

	minEig := eigvals[0]
	for _, v := range eigvals {
		if v < minEig {
			minEig = v
		}
	}

	if minEig >= -psdEpsilon*norm {
		return sym, false, "", nil
	}

	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	vecRows := make([][]float64, n)
	for i := 0; i < n; i++ {
		vecRows[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			vecRows[i][j] = vecs.At(i, j)
		}
	}

	repaired := formulas.NearestCorrelationClip(eigvals, vecRows, 0)

	symmetrized := make([][]float64, n)
	for i := 0; i < n; i++ {
		symmetrized[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			symmetrized[i][j] = (repaired[i][j] + repaired[j][i]) / 2
		}
	}
	repaired = symmetrized

	note := fmt.Sprintf("PSD repair applied: original minimum eigenvalue %.6g (tolerance %.2g * norm %.6g)", minEig, psdEpsilon, norm)
	return repaired, true, note, nil
}
