// Package coretypes holds the value records shared by every numerical-core
// component: estimator, risk, screener, optimizer, drift. Every record is
// immutable once constructed and is produced by exactly one component
// operation.
package coretypes

import "fmt"

// Frequency is the sampling frequency of a ReturnPanel.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// AnnualizationFactor returns the number of periods per year for f, or 0 for
// an unrecognized frequency.
func (f Frequency) AnnualizationFactor() float64 {
	switch f {
	case FrequencyDaily:
		return 252
	case FrequencyWeekly:
		return 52
	case FrequencyMonthly:
		return 12
	default:
		return 0
	}
}

// ReturnKind distinguishes simple from log returns in a ReturnPanel.
type ReturnKind string

const (
	ReturnKindSimple ReturnKind = "simple"
	ReturnKindLog    ReturnKind = "log"
)

// ReturnPanel is a matrix of per-asset periodic returns aligned on a common
// set of observation dates. Rows are dates, columns are assets.
type ReturnPanel struct {
	AssetKeys []string
	Dates     []string // ISO-8601, strictly ascending
	Returns   [][]float64
	Frequency Frequency
	Kind      ReturnKind
}

func (p ReturnPanel) NumAssets() int  { return len(p.AssetKeys) }
func (p ReturnPanel) NumPeriods() int { return len(p.Dates) }

// MuEstimator selects the expected-return estimation method.
type MuEstimator string

const (
	MuHistorical MuEstimator = "historical"
	MuEWMA       MuEstimator = "ewma"
	MuShrinkage  MuEstimator = "shrinkage"
)

// CovEstimator selects the covariance estimation method.
type CovEstimator string

const (
	CovSample     CovEstimator = "sample"
	CovLedoitWolf CovEstimator = "ledoit_wolf"
)

// AssumptionSet is the versioned bundle of return/risk assumptions that
// parameterizes every downstream computation.
type AssumptionSet struct {
	AssetKeys           []string
	Mu                  []float64   // annualized expected returns
	Sigma               [][]float64 // annualized covariance, symmetric PSD
	StdDev              []float64   // annualized sigma_i = sqrt(Sigma_ii)
	Correlation         [][]float64
	AnnualizationFactor float64
	RiskFreeRate        float64
	EstimatorTag        MuEstimator
	CovMethodTag        CovEstimator
	PSDRepairApplied    bool
	PSDRepairNote       string
}

func (a AssumptionSet) N() int { return len(a.AssetKeys) }

// IndexOf returns the column index of key, or -1 if absent.
func (a AssumptionSet) IndexOf(key string) int {
	for i, k := range a.AssetKeys {
		if k == key {
			return i
		}
	}
	return -1
}

// OptimizationConstraints bundles the feasible-region description for an
// optimizer run.
type OptimizationConstraints struct {
	LongOnly        bool
	MinWeight       *float64 // uniform lower bound, optional
	MaxWeight       *float64 // uniform upper bound, optional
	PerAssetBounds  map[string][2]float64
	LeverageCap     *float64 // Σ|w_i| <= cap, optional
	ConcentrationCap *float64 // max|w_i| <= cap, optional
	TurnoverCap     *float64 // Σ|w_i - w_i_prev| <= cap, optional
}

// RunType selects the optimization problem form.
type RunType string

const (
	RunMVP             RunType = "MVP"
	RunFrontierPoint   RunType = "FRONTIER_POINT"
	RunFrontierSeries  RunType = "FRONTIER_SERIES"
	RunTangency        RunType = "TANGENCY"
)

// Status is the terminal state of a solver run.
type Status string

const (
	StatusSuccess    Status = "SUCCESS"
	StatusInfeasible Status = "INFEASIBLE"
	StatusError      Status = "ERROR"
)

// SolverResult is the outcome of a single optimizer run.
type SolverResult struct {
	Status             Status
	AssetKeys          []string
	Weights            []float64 // valid when Status == StatusSuccess
	PortfolioReturn    *float64
	PortfolioVariance  *float64
	PortfolioVol       *float64
	Sharpe             *float64
	HHI                *float64
	EffectiveN         *float64
	Decomposition      RiskDecomposition // populated when Status == StatusSuccess
	InfeasibilityReason string
	SolverMessage      string
	RunType            RunType
	TargetReturn       *float64
	SeriesID           string // set by Frontier for FRONTIER_SERIES members
}

// RiskDecomposition holds marginal/component/percent risk contributions.
type RiskDecomposition struct {
	AssetKeys []string
	MCR       []float64
	CRC       []float64
	PRC       []float64
}

// AssetMetadata is the class/sector tag a caller supplies per asset key for
// screening gap-score computation.
type AssetMetadata struct {
	Class  string
	Sector string // empty means "unknown / non-equity"
}

// ScreeningInput bundles everything Screen needs for one run.
type ScreeningInput struct {
	Assumptions      AssumptionSet
	ReferenceWeights map[string]float64 // over reference asset keys, sums to 1
	CandidateKeys    []string
	Metadata         map[string]AssetMetadata // keyed by asset key, reference ∪ candidates
	Delta            float64                  // nominal add-weight δ
	LambdaAvgCorr    float64
	LambdaMVR        float64
	LambdaGap        float64
	LambdaHHIRed     float64
	TopK             int
}

// ScreeningScoreRow is one candidate's ranked, per-signal-broken-out score.
type ScreeningScoreRow struct {
	CandidateKey string

	AvgCorr float64
	MVR     float64
	Gap     float64
	HHIRed  float64

	AvgCorrNorm float64
	MVRNorm     float64
	GapNorm     float64
	HHIRedNorm  float64

	Composite   float64
	Rank        int
	Explanation string
}

// DriftRow is one asset's target-vs-implied-current weight comparison.
type DriftRow struct {
	AssetKey string
	Target   float64
	Current  float64
	AbsDelta float64
	Breached bool
}

// DriftReport is the outcome of one drift check.
type DriftReport struct {
	RunKey     string
	CheckDate  string
	Threshold  float64
	Rows       []DriftRow
	AnyBreach  bool
	Explanations []string
}

// ErrorKind classifies a CoreError per the three-way error taxonomy in
// SPEC_FULL.md §7.
type ErrorKind string

const (
	ErrInvalidInput   ErrorKind = "INVALID_INPUT"
	ErrDegenerateAsset ErrorKind = "DEGENERATE_ASSET"
	ErrInfeasible     ErrorKind = "INFEASIBLE"
	ErrNumerical      ErrorKind = "ERROR"
)

// CoreError is the typed error returned for input-validation and numerical
// failures. Domain infeasibility is reported on SolverResult/DriftReport
// directly rather than as a CoreError, per SPEC_FULL.md §7.
type CoreError struct {
	Kind    ErrorKind
	Field   string
	Message string
}

func (e *CoreError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func NewInvalidInput(field, message string) *CoreError {
	return &CoreError{Kind: ErrInvalidInput, Field: field, Message: message}
}

func NewDegenerateAsset(field, message string) *CoreError {
	return &CoreError{Kind: ErrDegenerateAsset, Field: field, Message: message}
}

func NewNumericalError(message string) *CoreError {
	return &CoreError{Kind: ErrNumerical, Message: message}
}
