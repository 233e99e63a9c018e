// Package polytomous fits Rating Scale and Partial Credit models to
// ordinal response matrices, with a fast heuristic, joint maximum
// likelihood, and marginal maximum likelihood estimation strategy.
package polytomous

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/calibrix/irt-estimation-service/pkg/ability"
	"github.com/calibrix/irt-estimation-service/pkg/diagnostics"
	"github.com/calibrix/irt-estimation-service/pkg/irt"
	"github.com/calibrix/irt-estimation-service/pkg/models"
)

// Result holds the complete output of a polytomous model fit.
//
// Converged reports whether the selected estimation strategy reached its
// stopping criterion; Heuristic reports whether the parameters came from
// the fast proportion/logit path. The two are deliberately separate: the
// heuristic always "runs without error" but that is a weaker statement
// than a converged likelihood iteration.
type Result struct {
	RunID          string                           `json:"run_id"`
	ModelType      models.ModelType                 `json:"model_type"`
	Mode           models.EstimationMode            `json:"estimation_mode"`
	ItemParameters *models.PolytomousItemParameters `json:"item_parameters"`
	Abilities      *models.AbilityEstimates         `json:"abilities"`
	ModelFit       *models.ModelFit                 `json:"model_fit"`
	Converged      bool                             `json:"converged"`
	Heuristic      bool                             `json:"heuristic"`
	Fallback       models.FallbackReason            `json:"fallback_reason,omitempty"`
	NCategories    int                              `json:"n_categories"`
	CategoryValues []float64                        `json:"category_values"`
	CategoryCounts []int                            `json:"category_counts"`
}

// Engine fits RSM and PCM models. Stateless per Fit call.
type Engine struct {
	config *Config
	logger zerolog.Logger
	sink   models.ProgressSink
}

// NewEngine creates an engine with the given configuration and progress
// sink. A nil sink disables progress reporting.
func NewEngine(config *Config, sink models.ProgressSink) *Engine {
	if config == nil {
		config = NewConfig()
	}
	if sink == nil {
		sink = models.NopSink{}
	}
	return &Engine{
		config: config,
		logger: config.CreateLogger(),
		sink:   sink,
	}
}

// Fit estimates a polytomous model. Matrix values may come from any sparse
// or contiguous ordinal set; they are remapped to dense 0-based category
// indices before estimation and the mapping is reported back on the result.
func (e *Engine) Fit(data models.ResponseMatrix, modelType models.ModelType, itemNames []string, mode models.EstimationMode) (*Result, error) {
	if !modelType.IsPolytomous() {
		return nil, models.UnsupportedModelError{Model: string(modelType)}
	}
	if err := data.Validate(2); err != nil {
		return nil, err
	}
	if mode == "" {
		mode = models.ModeAuto
	}

	runID := uuid.New().String()
	nPersons, nItems := data.Dims()
	if itemNames == nil {
		itemNames = models.DefaultItemNames(nItems)
	}

	dense, values := remapCategories(data)
	nCategories := len(values)
	if nCategories == 0 {
		return nil, models.InputError{Component: "matrix", Message: "no valid responses in matrix"}
	}
	counts := categoryCounts(dense, nCategories)

	e.logger.Info().
		Str("run_id", runID).
		Str("model", string(modelType)).
		Str("mode", string(mode)).
		Int("persons", nPersons).
		Int("items", nItems).
		Int("categories", nCategories).
		Msg("Fitting polytomous model")
	e.publish(runID, "fit", "info", fmt.Sprintf("starting %s fit in %s mode", modelType, mode))

	var (
		difficulty []float64
		thresholds [][]float64
		theta      []float64
		converged  bool
		heuristic  bool
		fallback   models.FallbackReason
	)

	switch mode {
	case models.ModeAuto:
		difficulty, thresholds = estimateHeuristic(dense, nCategories, modelType)
		converged = true
		heuristic = true

	case models.ModeJMLE:
		jmle := e.estimateJMLE(runID, dense, nCategories, modelType)
		difficulty, thresholds = jmle.difficulty, jmle.thresholds
		theta = jmle.theta
		converged = jmle.converged
		if !converged {
			e.publish(runID, "jmle", "warning",
				fmt.Sprintf("JMLE exhausted %d iterations without converging", jmle.iterations))
		}

	case models.ModeMML:
		outcome := e.estimateMML(dense, nCategories, modelType)
		if outcome.err != nil {
			// Documented fallback: the fit still succeeds on the heuristic
			// parameters, flagged as not converged.
			fallback = models.FallbackOptimizer
			if _, isTimeout := outcome.err.(models.EstimationTimeout); isTimeout {
				fallback = models.FallbackTimeout
			}
			e.logger.Warn().Err(outcome.err).Msg("MML estimation failed, falling back to heuristic")
			e.publish(runID, "mml", "warning", "MML failed: "+outcome.err.Error())
			difficulty, thresholds = estimateHeuristic(dense, nCategories, modelType)
			converged = false
			heuristic = true
		} else {
			difficulty, thresholds = outcome.difficulty, outcome.thresholds
			converged = true
		}

	default:
		return nil, fmt.Errorf("unknown estimation mode %q", mode)
	}

	params := &models.PolytomousItemParameters{
		Names:      itemNames,
		Difficulty: difficulty,
		Thresholds: thresholds,
	}

	// JMLE carries its own abilities out of the joint iteration; the other
	// strategies estimate them by EAP over the fitted parameters.
	if theta == nil {
		quad := ability.NewQuadrature(e.config.QuadraturePoints())
		theta = ability.EAP(dense, quad, ability.PolytomousTable(quad, params))
		if mode == models.ModeMML && fallback == models.FallbackNone {
			theta = rescaleAbilities(theta, rawScoreLogits(dense, nCategories))
		}
	}
	seTheta := ability.PersonStandardErrors(dense, params, theta)

	infit, outfit, infitZ, outfitZ := diagnostics.FitStatistics(dense, params, theta)
	params.InfitMNSQ = infit
	params.OutfitMNSQ = outfit
	params.InfitZstd = infitZ
	params.OutfitZstd = outfitZ

	logLik := LogLikelihood(dense, params, theta)

	nParams := nItems + (nCategories - 1)
	if modelType == models.PCM {
		nParams = nItems * nCategories
	}
	aic := 2*float64(nParams) - 2*logLik
	bic := float64(nParams)*math.Log(float64(nPersons)) - 2*logLik

	e.publish(runID, "fit", "info", "polytomous fit complete")

	return &Result{
		RunID:          runID,
		ModelType:      modelType,
		Mode:           mode,
		ItemParameters: params,
		Abilities: &models.AbilityEstimates{
			PersonIDs: models.DefaultPersonIDs(nPersons),
			Theta:     theta,
			SETheta:   seTheta,
		},
		ModelFit: &models.ModelFit{
			LogLikelihood: logLik,
			AIC:           aic,
			BIC:           bic,
			NParameters:   nParams,
			NItems:        nItems,
			NPersons:      nPersons,
			NCategories:   nCategories,
		},
		Converged:      converged,
		Heuristic:      heuristic,
		Fallback:       fallback,
		NCategories:    nCategories,
		CategoryValues: values,
		CategoryCounts: counts,
	}, nil
}

// LogLikelihood sums log category probabilities of the observed dense
// categories, skipping missing cells, with the documented log clamp.
func LogLikelihood(dense models.ResponseMatrix, params *models.PolytomousItemParameters, theta []float64) float64 {
	nPersons, nItems := dense.Dims()
	logLik := 0.0

	for i := 0; i < nPersons; i++ {
		for j := 0; j < nItems; j++ {
			if models.IsMissing(dense[i][j]) {
				continue
			}
			k := int(dense[i][j])
			p := irt.CategoryProbability(theta[i], params.Difficulty[j], params.ItemThresholds(j), k)
			if p < irt.ProbFloor {
				p = irt.ProbFloor
			}
			logLik += math.Log(p)
		}
	}

	return logLik
}

func (e *Engine) publish(runID, stage, severity, message string) {
	e.sink.Publish(models.ProgressEvent{
		RunID:     runID,
		Stage:     stage,
		Severity:  severity,
		Message:   message,
		Timestamp: time.Now(),
	})
}
