// Package optimizer solves constrained mean-variance problems (minimum
// variance, a target-return frontier point, the full frontier, and the
// tangency/max-Sharpe portfolio) via a quadratic penalty-method
// reformulation minimized with gonum's BFGS, falling back to Nelder-Mead on
// non-convergence.
package optimizer

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/optimize"

	"github.com/aristath/portfolio-core/internal/core/coretypes"
	"github.com/aristath/portfolio-core/internal/core/risk"
	"github.com/aristath/portfolio-core/pkg/formulas"
)

const (
	penaltyWeight  = 1000.0
	weightFloor    = 1e-6
	maxIterations  = 200
)

var successStatuses = map[optimize.Status]bool{
	optimize.Success:             true,
	optimize.GradientThreshold:   true,
	optimize.FunctionConvergence: true,
}

// Run executes a single optimizer run for the given run type.
func Run(as coretypes.AssumptionSet, runType coretypes.RunType, constraints coretypes.OptimizationConstraints, prevWeights []float64, targetReturn *float64) coretypes.SolverResult {
	n := as.N()
	base := coretypes.SolverResult{
		AssetKeys:    append([]string(nil), as.AssetKeys...),
		RunType:      runType,
		TargetReturn: targetReturn,
	}

	bounds, err := resolveBounds(as, constraints)
	if err != nil {
		base.Status = coretypes.StatusInfeasible
		base.InfeasibilityReason = err.Error()
		return base
	}

	if reason, infeasible := feasibilityPrecheck(as, runType, constraints, bounds, targetReturn); infeasible {
		base.Status = coretypes.StatusInfeasible
		base.InfeasibilityReason = reason
		base.TargetReturn = targetReturn
		return base
	}

	turnoverTarget, turnoverCap := resolveTurnover(constraints, prevWeights, n)
	leverageCap := constraints.LeverageCap

	var (
		weights []float64
		solveErr error
	)

	switch runType {
	case coretypes.RunMVP:
		weights, solveErr = solveMinVariance(as, bounds, turnoverTarget, turnoverCap, leverageCap, []float64{uniformStart(n)})
	case coretypes.RunFrontierPoint:
		weights, solveErr = solveFrontierPoint(as, bounds, *targetReturn, turnoverTarget, turnoverCap, leverageCap, []float64{uniformStart(n)})
	case coretypes.RunTangency:
		starts := tangencyRestarts(as)
		weights, solveErr = solveTangencyBestOf(as, bounds, turnoverTarget, turnoverCap, leverageCap, starts)
	default:
		base.Status = coretypes.StatusError
		base.SolverMessage = fmt.Sprintf("unsupported run type for Run: %s (use Frontier for FRONTIER_SERIES)", runType)
		return base
	}

	if solveErr != nil {
		base.Status = coretypes.StatusError
		base.SolverMessage = solveErr.Error()
		return base
	}

	result := finalizeResult(as, runType, weights, targetReturn)
	if constraints.TurnoverCap != nil && turnoverCap == nil {
		result.SolverMessage = "warning: turnover cap dropped because prev_weights were not supplied for every asset"
	}
	return result
}

// Frontier computes k evenly-spaced frontier points between the minimum and
// maximum per-asset expected return, fanning the solves out across a bounded
// worker pool (default runtime.NumCPU(), override via poolSize > 0). The
// returned slice preserves grid order, not completion order.
func Frontier(as coretypes.AssumptionSet, constraints coretypes.OptimizationConstraints, k int, seriesID string, poolSize int) []coretypes.SolverResult {
	if k <= 0 {
		k = 20
	}
	if poolSize <= 0 {
		poolSize = runtime.NumCPU()
	}
	if poolSize < 1 {
		poolSize = 1
	}

	minMu, maxMu := as.Mu[0], as.Mu[0]
	for _, m := range as.Mu {
		if m < minMu {
			minMu = m
		}
		if m > maxMu {
			maxMu = m
		}
	}

	grid := make([]float64, k)
	if k == 1 {
		grid[0] = (minMu + maxMu) / 2
	} else {
		step := (maxMu - minMu) / float64(k-1)
		for i := 0; i < k; i++ {
			grid[i] = minMu + step*float64(i)
		}
	}

	results := make([]coretypes.SolverResult, k)
	var wg sync.WaitGroup
	sem := make(chan struct{}, poolSize)

	for i, target := range grid {
		wg.Add(1)
		go func(idx int, targetReturn float64) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			r := Run(as, coretypes.RunFrontierPoint, constraints, nil, &targetReturn)
			r.SeriesID = seriesID
			results[idx] = r
		}(i, target)
	}
	wg.Wait()

	return results
}

func uniformStart(n int) []float64 {
	start := make([]float64, n)
	u := 1.0 / float64(n)
	for i := range start {
		start[i] = u
	}
	return start
}

// tangencyRestarts returns the three deterministic starting points: uniform,
// mu-weighted, and inverse-variance-weighted.
func tangencyRestarts(as coretypes.AssumptionSet) [][]float64 {
	n := as.N()

	uniform := uniformStart(n)

	muShifted := make([]float64, n)
	minMu := as.Mu[0]
	for _, m := range as.Mu {
		if m < minMu {
			minMu = m
		}
	}
	shift := 0.0
	if minMu < 0 {
		shift = -minMu + 1e-6
	}
	sum := 0.0
	for i, m := range as.Mu {
		muShifted[i] = m + shift
		sum += muShifted[i]
	}
	muWeighted := make([]float64, n)
	if sum > 0 {
		for i := range muWeighted {
			muWeighted[i] = muShifted[i] / sum
		}
	} else {
		muWeighted = uniform
	}

	variances := make([]float64, n)
	for i := 0; i < n; i++ {
		variances[i] = as.Sigma[i][i]
	}
	invVar := formulas.InverseVarianceWeights(variances)

	return [][]float64{uniform, muWeighted, invVar}
}

func resolveBounds(as coretypes.AssumptionSet, constraints coretypes.OptimizationConstraints) ([][2]float64, error) {
	n := as.N()
	bounds := make([][2]float64, n)

	lower, upper := 0.0, 1.0
	if !constraints.LongOnly {
		lower = -1.0
	}
	if constraints.MinWeight != nil {
		lower = *constraints.MinWeight
	}
	if constraints.MaxWeight != nil {
		upper = *constraints.MaxWeight
	}
	if constraints.ConcentrationCap != nil {
		if upper > *constraints.ConcentrationCap {
			upper = *constraints.ConcentrationCap
		}
		if lower < -*constraints.ConcentrationCap {
			lower = -*constraints.ConcentrationCap
		}
	}

	for i := range bounds {
		bounds[i] = [2]float64{lower, upper}
	}

	if constraints.PerAssetBounds != nil {
		for key, pair := range constraints.PerAssetBounds {
			idx := as.IndexOf(key)
			if idx < 0 {
				return nil, fmt.Errorf("per-asset bound supplied for unknown asset %q", key)
			}
			if pair[0] > pair[1] {
				return nil, fmt.Errorf("per-asset bound for %q is inconsistent: min %v > max %v", key, pair[0], pair[1])
			}
			bounds[idx] = pair
		}
	}

	sumLower, sumUpper := 0.0, 0.0
	for _, b := range bounds {
		sumLower += b[0]
		sumUpper += b[1]
	}
	if sumLower > 1.0 {
		return nil, fmt.Errorf("bounds are jointly infeasible with full investment: sum of lower bounds is %.6f > 1", sumLower)
	}
	if sumUpper < 1.0 {
		return nil, fmt.Errorf("bounds are jointly infeasible with full investment: sum of upper bounds is %.6f < 1", sumUpper)
	}

	return bounds, nil
}

func resolveTurnover(constraints coretypes.OptimizationConstraints, prevWeights []float64, n int) ([]float64, *float64) {
	if constraints.TurnoverCap == nil {
		return nil, nil
	}
	if prevWeights == nil || len(prevWeights) != n {
		// Drop the turnover constraint rather than fail; Run records a
		// warning in SolverMessage of the successful result.
		return nil, nil
	}
	return prevWeights, constraints.TurnoverCap
}

func feasibilityPrecheck(as coretypes.AssumptionSet, runType coretypes.RunType, constraints coretypes.OptimizationConstraints, bounds [][2]float64, targetReturn *float64) (string, bool) {
	switch runType {
	case coretypes.RunTangency:
		maxMu := as.Mu[0]
		for _, m := range as.Mu {
			if m > maxMu {
				maxMu = m
			}
		}
		if maxMu <= as.RiskFreeRate {
			return "No asset has expected return exceeding the risk-free rate; tangency portfolio undefined.", true
		}
	case coretypes.RunFrontierPoint:
		if targetReturn == nil {
			return "target return is required for FRONTIER_POINT", true
		}
		minMu, maxMu := as.Mu[0], as.Mu[0]
		for _, m := range as.Mu {
			if m < minMu {
				minMu = m
			}
			if m > maxMu {
				maxMu = m
			}
		}
		if constraints.LongOnly && *targetReturn > maxMu {
			return fmt.Sprintf("target return %.6f exceeds the maximum achievable return %.6f under long-only constraints", *targetReturn, maxMu), true
		}
		if *targetReturn < minMu {
			return fmt.Sprintf("target return %.6f is below the minimum asset return %.6f", *targetReturn, minMu), true
		}
	}
	return "", false
}

func projectToBounds(x []float64, bounds [][2]float64) []float64 {
	proj := make([]float64, len(x))
	for i := range x {
		proj[i] = math.Max(bounds[i][0], math.Min(bounds[i][1], x[i]))
	}
	return proj
}

func sumConstraintPenalty(xProj []float64) (float64, float64) {
	sum := 0.0
	for _, v := range xProj {
		sum += v
	}
	return penaltyWeight * (sum - 1.0) * (sum - 1.0), sum
}

func leveragePenalty(xProj []float64, cap *float64) float64 {
	if cap == nil {
		return 0
	}
	abs := 0.0
	for _, v := range xProj {
		abs += math.Abs(v)
	}
	if abs <= *cap {
		return 0
	}
	diff := abs - *cap
	return penaltyWeight * diff * diff
}

func turnoverPenalty(xProj, prevWeights []float64, cap *float64) float64 {
	if cap == nil || prevWeights == nil {
		return 0
	}
	turnover := 0.0
	for i := range xProj {
		turnover += math.Abs(xProj[i] - prevWeights[i])
	}
	if turnover <= *cap {
		return 0
	}
	diff := turnover - *cap
	return penaltyWeight * diff * diff
}

func solve(problem optimize.Problem, initial []float64, preferBFGS bool) (*optimize.Result, error) {
	settings := &optimize.Settings{
		MajorIterations: maxIterations,
		GradientThreshold: 1e-6,
		FunctionConverge: &optimize.FunctionConverge{
			Absolute:   1e-6,
			Iterations: maxIterations,
		},
	}

	var (
		result *optimize.Result
		err    error
	)

	if preferBFGS {
		result, err = optimize.Minimize(problem, initial, settings, &optimize.BFGS{})
		if err != nil || !successStatuses[result.Status] {
			result, err = optimize.Minimize(problem, initial, settings, &optimize.NelderMead{})
		}
	} else {
		result, err = optimize.Minimize(problem, initial, settings, &optimize.NelderMead{})
		if err != nil || !successStatuses[result.Status] {
			result, err = optimize.Minimize(problem, initial, settings, &optimize.BFGS{})
		}
	}

	if err != nil {
		return nil, err
	}
	if !successStatuses[result.Status] {
		return nil, fmt.Errorf("optimization did not converge: status=%v", result.Status)
	}
	return result, nil
}

func solveMinVariance(as coretypes.AssumptionSet, bounds [][2]float64, prevWeights []float64, turnoverCap, leverageCap *float64, starts [][]float64) ([]float64, error) {
	n := as.N()

	objective := func(xProj []float64) float64 {
		variance := risk.PortfolioVariance(xProj, as.Sigma)
		sumPenalty, _ := sumConstraintPenalty(xProj)
		return variance + sumPenalty + turnoverPenalty(xProj, prevWeights, turnoverCap) + leveragePenalty(xProj, leverageCap)
	}

	gradient := func(grad, xProj []float64) {
		for i := 0; i < n; i++ {
			var g float64
			for j := 0; j < n; j++ {
				g += 2 * as.Sigma[i][j] * xProj[j]
			}
			grad[i] = g
		}
		_, sum := sumConstraintPenalty(xProj)
		for i := range grad {
			grad[i] += 2 * penaltyWeight * (sum - 1.0)
		}
		addTurnoverGradient(grad, xProj, prevWeights, turnoverCap)
		addLeverageGradient(grad, xProj, leverageCap)
	}

	problem := buildProblem(objective, gradient, bounds)
	result, err := solve(problem, starts[0], true)
	if err != nil {
		return nil, err
	}
	return projectToBounds(result.X, bounds), nil
}

func solveFrontierPoint(as coretypes.AssumptionSet, bounds [][2]float64, targetReturn float64, prevWeights []float64, turnoverCap, leverageCap *float64, starts [][]float64) ([]float64, error) {
	n := as.N()

	objective := func(xProj []float64) float64 {
		var portfolioReturn float64
		for i := 0; i < n; i++ {
			portfolioReturn += as.Mu[i] * xProj[i]
		}
		variance := risk.PortfolioVariance(xProj, as.Sigma)
		obj := variance
		sumPenalty, _ := sumConstraintPenalty(xProj)
		obj += sumPenalty
		obj += penaltyWeight * (portfolioReturn - targetReturn) * (portfolioReturn - targetReturn)
		obj += turnoverPenalty(xProj, prevWeights, turnoverCap)
		obj += leveragePenalty(xProj, leverageCap)
		return obj
	}

	gradient := func(grad, xProj []float64) {
		var portfolioReturn float64
		for i := 0; i < n; i++ {
			portfolioReturn += as.Mu[i] * xProj[i]
		}
		for i := 0; i < n; i++ {
			var g float64
			for j := 0; j < n; j++ {
				g += 2 * as.Sigma[i][j] * xProj[j]
			}
			grad[i] = g
		}
		_, sum := sumConstraintPenalty(xProj)
		for i := range grad {
			grad[i] += 2 * penaltyWeight * (sum - 1.0)
			grad[i] += 2 * penaltyWeight * (portfolioReturn - targetReturn) * as.Mu[i]
		}
		addTurnoverGradient(grad, xProj, prevWeights, turnoverCap)
		addLeverageGradient(grad, xProj, leverageCap)
	}

	problem := buildProblem(objective, gradient, bounds)
	result, err := solve(problem, starts[0], false)
	if err != nil {
		return nil, err
	}
	return projectToBounds(result.X, bounds), nil
}

func solveTangency(as coretypes.AssumptionSet, bounds [][2]float64, prevWeights []float64, turnoverCap, leverageCap *float64, start []float64) ([]float64, error) {
	n := as.N()
	rf := as.RiskFreeRate

	objective := func(xProj []float64) float64 {
		var portfolioReturn float64
		for i := 0; i < n; i++ {
			portfolioReturn += as.Mu[i] * xProj[i]
		}
		variance := risk.PortfolioVariance(xProj, as.Sigma)
		stdDev := math.Sqrt(math.Max(variance, 1e-10))

		obj := -(portfolioReturn - rf) / stdDev
		sumPenalty, _ := sumConstraintPenalty(xProj)
		obj += sumPenalty
		obj += turnoverPenalty(xProj, prevWeights, turnoverCap)
		obj += leveragePenalty(xProj, leverageCap)
		return obj
	}

	gradient := func(grad, xProj []float64) {
		var portfolioReturn float64
		for i := 0; i < n; i++ {
			portfolioReturn += as.Mu[i] * xProj[i]
		}
		variance := risk.PortfolioVariance(xProj, as.Sigma)
		stdDev := math.Sqrt(math.Max(variance, 1e-10))

		for i := 0; i < n; i++ {
			var dVariance float64
			for j := 0; j < n; j++ {
				dVariance += 2 * as.Sigma[i][j] * xProj[j]
			}
			grad[i] = -as.Mu[i]/stdDev + (portfolioReturn-rf)*dVariance/(2*stdDev*stdDev*stdDev)
		}
		_, sum := sumConstraintPenalty(xProj)
		for i := range grad {
			grad[i] += 2 * penaltyWeight * (sum - 1.0)
		}
		addTurnoverGradient(grad, xProj, prevWeights, turnoverCap)
		addLeverageGradient(grad, xProj, leverageCap)
	}

	problem := buildProblem(objective, gradient, bounds)
	result, err := solve(problem, start, true)
	if err != nil {
		return nil, err
	}
	return projectToBounds(result.X, bounds), nil
}

func solveTangencyBestOf(as coretypes.AssumptionSet, bounds [][2]float64, prevWeights []float64, turnoverCap, leverageCap *float64, starts [][]float64) ([]float64, error) {
	var (
		best       []float64
		bestSharpe = math.Inf(-1)
		lastErr    error
	)

	for _, start := range starts {
		weights, err := solveTangency(as, bounds, prevWeights, turnoverCap, leverageCap, start)
		if err != nil {
			lastErr = err
			continue
		}
		cleaned := cleanWeights(weights)
		portfolioReturn := dot(as.Mu, cleaned)
		vol := risk.PortfolioVol(cleaned, as.Sigma)
		if vol == 0 {
			continue
		}
		sharpe := (portfolioReturn - as.RiskFreeRate) / vol
		if sharpe > bestSharpe {
			bestSharpe = sharpe
			best = weights
		}
	}

	if best == nil {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, fmt.Errorf("tangency solve failed to produce a feasible candidate across all restarts")
	}
	return best, nil
}

// buildProblem wraps a pure xProj-space objective/gradient as an
// optimize.Problem whose Func/Grad project the raw solver iterate onto
// bounds before every evaluation.
func buildProblem(objective func([]float64) float64, gradient func(grad, xProj []float64), bounds [][2]float64) optimize.Problem {
	return optimize.Problem{
		Func: func(x []float64) float64 {
			return objective(projectToBounds(x, bounds))
		},
		Grad: func(grad, x []float64) {
			gradient(grad, projectToBounds(x, bounds))
		},
	}
}

func addTurnoverGradient(grad, xProj, prevWeights []float64, cap *float64) {
	if cap == nil || prevWeights == nil {
		return
	}
	turnover := 0.0
	for i := range xProj {
		turnover += math.Abs(xProj[i] - prevWeights[i])
	}
	if turnover <= *cap {
		return
	}
	diff := turnover - *cap
	coeff := 2 * penaltyWeight * diff
	for i := range grad {
		sign := 1.0
		if xProj[i]-prevWeights[i] < 0 {
			sign = -1.0
		}
		grad[i] += coeff * sign
	}
}

func addLeverageGradient(grad, xProj []float64, cap *float64) {
	if cap == nil {
		return
	}
	abs := 0.0
	for _, v := range xProj {
		abs += math.Abs(v)
	}
	if abs <= *cap {
		return
	}
	diff := abs - *cap
	coeff := 2 * penaltyWeight * diff
	for i := range grad {
		sign := 1.0
		if xProj[i] < 0 {
			sign = -1.0
		}
		grad[i] += coeff * sign
	}
}

func cleanWeights(w []float64) []float64 {
	cleaned := make([]float64, len(w))
	sum := 0.0
	for i, v := range w {
		if math.Abs(v) < weightFloor {
			v = 0
		}
		cleaned[i] = v
		sum += v
	}
	if sum != 0 {
		for i := range cleaned {
			cleaned[i] /= sum
		}
	}
	return cleaned
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func finalizeResult(as coretypes.AssumptionSet, runType coretypes.RunType, rawWeights []float64, targetReturn *float64) coretypes.SolverResult {
	weights := cleanWeights(rawWeights)

	portfolioReturn := dot(as.Mu, weights)
	variance := risk.PortfolioVariance(weights, as.Sigma)
	vol := math.Sqrt(math.Max(variance, 0))

	var sharpe *float64
	if vol > 0 {
		s := (portfolioReturn - as.RiskFreeRate) / vol
		sharpe = &s
	}

	hhi := risk.HHI(weights)
	effN := risk.EffectiveN(weights)
	decomposition := risk.Decompose(weights, as.Sigma)
	decomposition.AssetKeys = append([]string(nil), as.AssetKeys...)

	return coretypes.SolverResult{
		Status:            coretypes.StatusSuccess,
		AssetKeys:         append([]string(nil), as.AssetKeys...),
		Weights:           weights,
		PortfolioReturn:   &portfolioReturn,
		PortfolioVariance: &variance,
		PortfolioVol:      &vol,
		Sharpe:            sharpe,
		HHI:               &hhi,
		EffectiveN:        effN,
		Decomposition:     decomposition,
		RunType:           runType,
		TargetReturn:      targetReturn,
	}
}
