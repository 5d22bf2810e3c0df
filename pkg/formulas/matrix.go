package formulas

import (
	"fmt"
	"math"
)

// CorrelationMatrixFromCovariance derives a correlation matrix from a
// covariance matrix: corr(i,j) = cov(i,j) / sqrt(cov(i,i) * cov(j,j)).
// Diagonal variances must be strictly positive; off-diagonal results are
// clamped to [-1, 1] to absorb floating-point drift.
func CorrelationMatrixFromCovariance(cov [][]float64) ([][]float64, error) {
	n := len(cov)
	if n == 0 {
		return nil, fmt.Errorf("covariance matrix is empty")
	}
	for i, row := range cov {
		if len(row) != n {
			return nil, fmt.Errorf("covariance matrix is not square: row %d has %d columns, want %d", i, len(row), n)
		}
	}

	variances := make([]float64, n)
	for i := 0; i < n; i++ {
		if cov[i][i] <= 0 {
			return nil, fmt.Errorf("non-positive variance at index %d: %v", i, cov[i][i])
		}
		variances[i] = cov[i][i]
	}

	corr := make([][]float64, n)
	for i := 0; i < n; i++ {
		corr[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			if i == j {
				corr[i][j] = 1.0
				continue
			}
			c := cov[i][j] / math.Sqrt(variances[i]*variances[j])
			if c > 1.0 {
				c = 1.0
			} else if c < -1.0 {
				c = -1.0
			}
			corr[i][j] = c
		}
	}
	return corr, nil
}

// InverseVarianceWeights returns weights proportional to 1/variance,
// normalized to sum to 1. Assets with non-positive or non-finite variance
// are excluded from the inverse-variance computation; if none remain, equal
// weights are returned across all inputs.
func InverseVarianceWeights(variances []float64) []float64 {
	n := len(variances)
	weights := make([]float64, n)
	if n == 0 {
		return weights
	}

	inv := make([]float64, n)
	total := 0.0
	anyValid := false
	for i, v := range variances {
		if v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0) {
			inv[i] = 1.0 / v
			total += inv[i]
			anyValid = true
		}
	}

	if !anyValid || total <= 0 {
		equal := 1.0 / float64(n)
		for i := range weights {
			weights[i] = equal
		}
		return weights
	}

	for i := range weights {
		weights[i] = inv[i] / total
	}
	return weights
}

// NearestCorrelationClip repairs a symmetric matrix that failed a PSD check
// by raising every eigenvalue below floor to floor (a floor of 0 clips the
// negative eigenvalues to zero) and reconstructing. Callers pass eigenvalues/eigenvectors from a symmetric
// eigendecomposition; this function performs only the clip-and-reconstruct
// arithmetic so it stays independent of the decomposition library in use.
func NearestCorrelationClip(eigvals []float64, eigvecs [][]float64, floor float64) [][]float64 {
	n := len(eigvals)
	clipped := make([]float64, n)
	for i, v := range eigvals {
		if v < floor {
			clipped[i] = floor
		} else {
			clipped[i] = v
		}
	}

	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
	}
	for k := 0; k < n; k++ {
		lambda := clipped[k]
		if lambda == 0 {
			continue
		}
		for i := 0; i < n; i++ {
			vi := eigvecs[i][k]
			if vi == 0 {
				continue
			}
			for j := 0; j < n; j++ {
				out[i][j] += lambda * vi * eigvecs[j][k]
			}
		}
	}
	return out
}
