package models

import (
	"fmt"
)

// ModelType identifies the IRT model family used for estimation
type ModelType string

const (
	OnePL   ModelType = "1PL" // Rasch: difficulty only
	TwoPL   ModelType = "2PL" // difficulty + discrimination
	ThreePL ModelType = "3PL" // difficulty + discrimination + guessing
	RSM     ModelType = "RSM" // Rating Scale Model (shared thresholds)
	PCM     ModelType = "PCM" // Partial Credit Model (per-item thresholds)
)

// ParseModelType converts a string into a ModelType
func ParseModelType(s string) (ModelType, error) {
	switch ModelType(s) {
	case OnePL, TwoPL, ThreePL, RSM, PCM:
		return ModelType(s), nil
	}
	return "", UnsupportedModelError{Model: s}
}

// IsPolytomous reports whether the model handles ordinal (multi-category) responses
func (mt ModelType) IsPolytomous() bool {
	return mt == RSM || mt == PCM
}

// ItemParamCount returns the number of estimated parameters per item
// for dichotomous models. Polytomous counts depend on the category count
// and are computed by the polytomous engine.
func (mt ModelType) ItemParamCount() (int, error) {
	switch mt {
	case OnePL:
		return 1, nil
	case TwoPL:
		return 2, nil
	case ThreePL:
		return 3, nil
	}
	return 0, UnsupportedModelError{Model: string(mt)}
}

// EstimationMode selects the polytomous estimation strategy
type EstimationMode string

const (
	ModeAuto EstimationMode = "AUTO" // fast proportion/logit heuristic
	ModeMML  EstimationMode = "MML"  // marginal maximum likelihood via optimizer
	ModeJMLE EstimationMode = "JMLE" // iterative joint maximum likelihood
)

// ParseEstimationMode converts a string into an EstimationMode
func ParseEstimationMode(s string) (EstimationMode, error) {
	switch EstimationMode(s) {
	case ModeAuto, ModeMML, ModeJMLE:
		return EstimationMode(s), nil
	}
	return "", fmt.Errorf("unknown estimation mode %q", s)
}

// ItemParameters holds fitted dichotomous item parameters.
// Standard error slices are nil when bootstrap estimation was skipped or failed.
type ItemParameters struct {
	Names            []string  `json:"names"`
	Difficulty       []float64 `json:"difficulty"`
	Discrimination   []float64 `json:"discrimination"`
	Guessing         []float64 `json:"guessing"`
	SEDifficulty     []float64 `json:"se_difficulty,omitempty"`
	SEDiscrimination []float64 `json:"se_discrimination,omitempty"`
	SEGuessing       []float64 `json:"se_guessing,omitempty"`
}

// PolytomousItemParameters holds fitted RSM/PCM item parameters.
// For RSM, Thresholds has a single shared row; for PCM one row per item.
type PolytomousItemParameters struct {
	Names        []string    `json:"names"`
	Difficulty   []float64   `json:"difficulty"`
	Thresholds   [][]float64 `json:"thresholds"`
	SEDifficulty []float64   `json:"se_difficulty,omitempty"`
	SEThresholds [][]float64 `json:"se_thresholds,omitempty"`
	InfitMNSQ    []float64   `json:"infit_mnsq,omitempty"`
	OutfitMNSQ   []float64   `json:"outfit_mnsq,omitempty"`
	InfitZstd    []float64   `json:"infit_zstd,omitempty"`
	OutfitZstd   []float64   `json:"outfit_zstd,omitempty"`
}

// ItemThresholds returns the threshold vector that applies to item j
func (p *PolytomousItemParameters) ItemThresholds(j int) []float64 {
	if len(p.Thresholds) == 1 {
		return p.Thresholds[0]
	}
	return p.Thresholds[j]
}

// AbilityEstimates holds person ability estimates on the logit scale
type AbilityEstimates struct {
	PersonIDs []string  `json:"person_ids"`
	Theta     []float64 `json:"theta"`
	SETheta   []float64 `json:"se_theta,omitempty"`
}

// ModelFit summarizes information-criterion model fit. Derived once per run,
// never mutated afterwards.
type ModelFit struct {
	LogLikelihood float64 `json:"log_likelihood"`
	AIC           float64 `json:"aic"`
	BIC           float64 `json:"bic"`
	NParameters   int     `json:"n_parameters"`
	NItems        int     `json:"n_items"`
	NPersons      int     `json:"n_persons"`
	NCategories   int     `json:"n_categories,omitempty"`
}

// FallbackReason records why an estimation strategy degraded to a simpler one
type FallbackReason string

const (
	FallbackNone      FallbackReason = ""
	FallbackTimeout   FallbackReason = "timeout"
	FallbackOptimizer FallbackReason = "optimizer_failure"
)

// ReliabilityStatistics holds Rasch reliability and separation indices
type ReliabilityStatistics struct {
	PersonReliability float64 `json:"person_reliability"` // in [0,1]
	ItemReliability   float64 `json:"item_reliability"`   // in [0,1]
	PersonSeparation  float64 `json:"person_separation"`  // >= 0
	ItemSeparation    float64 `json:"item_separation"`    // >= 0
	PersonStrata      float64 `json:"person_strata"`      // >= 1
	ItemStrata        float64 `json:"item_strata"`        // >= 1
}

// ItemLoading is an item's loading on the first residual contrast
type ItemLoading struct {
	ItemIndex int     `json:"item_index"`
	Loading   float64 `json:"loading"`
}

// PCARResult holds the principal-component residual analysis output
type PCARResult struct {
	Eigenvalues             []float64     `json:"eigenvalues"`
	VarianceExplained       []float64     `json:"variance_explained"` // percent per component
	CumulativeVariance      []float64     `json:"cumulative_variance"`
	FirstContrastEigenvalue float64       `json:"first_contrast_eigenvalue"`
	IsUnidimensional        bool          `json:"is_unidimensional"` // first eigenvalue < 2.0
	Degenerate              bool          `json:"degenerate"`        // eigendecomposition fell back to unit values
	Loadings                []ItemLoading `json:"loadings,omitempty"`
}

// DIFClassification is the ETS-style ordinal DIF class
type DIFClassification string

const (
	DIFNegligible DIFClassification = "A"
	DIFModerate   DIFClassification = "B"
	DIFLarge      DIFClassification = "C"
)

// DIFResult holds the differential-item-functioning contrast for one item
type DIFResult struct {
	ItemName            string            `json:"item_name"`
	FocalDifficulty     float64           `json:"focal_difficulty"`
	ReferenceDifficulty float64           `json:"reference_difficulty"`
	Contrast            float64           `json:"dif_contrast"`
	SE                  *float64          `json:"dif_se,omitempty"`
	T                   *float64          `json:"dif_t,omitempty"`
	P                   *float64          `json:"dif_p,omitempty"`
	Classification      DIFClassification `json:"dif_classification"`
}

// CategoryStatistics describes how one response category is functioning
type CategoryStatistics struct {
	Category         int      `json:"category"`
	Label            string   `json:"label"`
	Count            int      `json:"count"`
	Percent          float64  `json:"percent"`
	ObservedAverage  *float64 `json:"observed_average"` // mean theta of respondents choosing this category
	ObservedSD       *float64 `json:"observed_sd"`
	AndrichThreshold *float64 `json:"andrich_threshold"` // nil for category 0
	IsDisordered     bool     `json:"is_disordered"`
}

// Recommendation flags a category-structure problem for the analyst
type Recommendation struct {
	Type     string `json:"type"`     // "underutilized", "disordered", "non_monotonic"
	Severity string `json:"severity"` // "warning" or "error"
	Message  string `json:"message"`
}

// CategoryStructure is the full category functioning table
type CategoryStructure struct {
	Categories      []CategoryStatistics `json:"categories"`
	NCategories     int                  `json:"n_categories"`
	Recommendations []Recommendation     `json:"recommendations"`
	TotalResponses  int                  `json:"total_responses"`
	HasDisordered   bool                 `json:"has_disordered_thresholds"`
	HasUnderused    bool                 `json:"has_underutilized_categories"`
}
