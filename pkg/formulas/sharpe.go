package formulas

import "math"

// CalculateSharpeRatio computes the annualized Sharpe ratio from a periodic
// return series. Returns nil when fewer than 2 observations are given or the
// sample standard deviation is zero, since the ratio is undefined there.
func CalculateSharpeRatio(returns []float64, riskFreeRate float64, periodsPerYear int) *float64 {
	if len(returns) < 2 || periodsPerYear <= 0 {
		return nil
	}

	periodicRF := riskFreeRate / float64(periodsPerYear)
	excess := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - periodicRF
	}

	meanExcess := Mean(excess)
	sd := StdDev(excess)
	if sd == 0 {
		return nil
	}

	sharpe := (meanExcess / sd) * math.Sqrt(float64(periodsPerYear))
	return &sharpe
}

// CalculateSortinoRatio computes the annualized Sortino ratio, which
// penalizes only downside deviation below targetReturn. Returns nil when
// fewer than 2 observations are given or there is no downside deviation
// (ratio undefined, not infinite upside).
func CalculateSortinoRatio(returns []float64, riskFreeRate, targetReturn float64, periodsPerYear int) *float64 {
	if len(returns) < 2 || periodsPerYear <= 0 {
		return nil
	}

	periodicRF := riskFreeRate / float64(periodsPerYear)
	excess := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - periodicRF
	}
	meanExcess := Mean(excess)

	var downsideSumSq float64
	downsideCount := 0
	for _, r := range returns {
		if r < targetReturn {
			diff := r - targetReturn
			downsideSumSq += diff * diff
			downsideCount++
		}
	}
	if downsideCount == 0 {
		return nil
	}
	downsideDev := math.Sqrt(downsideSumSq / float64(len(returns)))
	if downsideDev == 0 {
		return nil
	}

	sortino := (meanExcess / downsideDev) * math.Sqrt(float64(periodsPerYear))
	return &sortino
}
