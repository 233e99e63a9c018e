// Package dichotomous fits 1PL, 2PL, and 3PL logistic IRT models to binary
// response matrices.
package dichotomous

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/calibrix/irt-estimation-service/pkg/ability"
	"github.com/calibrix/irt-estimation-service/pkg/irt"
	"github.com/calibrix/irt-estimation-service/pkg/models"
)

// Result holds the complete output of a dichotomous model fit
type Result struct {
	RunID          string                   `json:"run_id"`
	ModelType      models.ModelType         `json:"model_type"`
	ItemParameters *models.ItemParameters   `json:"item_parameters"`
	Abilities      *models.AbilityEstimates `json:"abilities"`
	ModelFit       *models.ModelFit         `json:"model_fit"`
	Converged      bool                     `json:"converged"`
}

// Engine fits dichotomous IRT models. An Engine is stateless per Fit call
// and safe to reuse across concurrent fits.
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

// Fit estimates item parameters and person abilities for a binary response
// matrix. Matrix values must be 0 or 1; missing cells are substituted with
// 0 before estimation.
func (e *Engine) Fit(data models.ResponseMatrix, modelType models.ModelType, itemNames []string) (*Result, error) {
	if err := data.Validate(2); err != nil {
		return nil, err
	}
	paramsPerItem, err := modelType.ItemParamCount()
	if err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	nPersons, nItems := data.Dims()

	if itemNames == nil {
		itemNames = models.DefaultItemNames(nItems)
	}

	e.publish(runID, "fit", "info", "starting dichotomous fit")
	e.logger.Info().
		Str("run_id", runID).
		Str("model", string(modelType)).
		Int("persons", nPersons).
		Int("items", nItems).
		Msg("Fitting dichotomous model")

	scored := substituteMissing(data)

	params, converged := e.estimateItems(scored, modelType)
	params.Names = itemNames

	quad := ability.NewQuadrature(e.config.QuadraturePoints())
	theta := ability.EAP(scored, quad, ability.DichotomousTable(quad, params))

	logLik := LogLikelihood(scored, params, theta)
	nParams := nItems * paramsPerItem
	aic := 2*float64(nParams) - 2*logLik
	bic := float64(nParams)*math.Log(float64(nPersons)) - 2*logLik

	if e.config.BootstrapEnabled() && modelType != models.ThreePL {
		e.publish(runID, "bootstrap", "info", "estimating bootstrap standard errors")
		e.bootstrapStandardErrors(scored, modelType, params)
	}

	e.publish(runID, "fit", "info", "dichotomous fit complete")

	return &Result{
		RunID:          runID,
		ModelType:      modelType,
		ItemParameters: params,
		Abilities: &models.AbilityEstimates{
			PersonIDs: models.DefaultPersonIDs(nPersons),
			Theta:     theta,
		},
		ModelFit: &models.ModelFit{
			LogLikelihood: logLik,
			AIC:           aic,
			BIC:           bic,
			NParameters:   nParams,
			NItems:        nItems,
			NPersons:      nPersons,
		},
		Converged: converged,
	}, nil
}

// estimateItems produces item parameters for the requested model. The 1PL
// and 2PL paths are presumed to converge; only the 3PL optimizer can signal
// non-convergence.
func (e *Engine) estimateItems(data models.ResponseMatrix, modelType models.ModelType) (*models.ItemParameters, bool) {
	_, nItems := data.Dims()

	difficulty := initialDifficulty(data)
	discrimination := make([]float64, nItems)
	guessing := make([]float64, nItems)
	for j := range discrimination {
		discrimination[j] = 1.0
	}

	params := &models.ItemParameters{
		Difficulty:     difficulty,
		Discrimination: discrimination,
		Guessing:       guessing,
	}
	if modelType == models.OnePL {
		return params, true
	}

	// Provisional abilities under the Rasch solution anchor the per-item
	// likelihood optimization for the slope (and guessing) parameters.
	quad := ability.NewQuadrature(e.config.QuadraturePoints())
	theta := ability.EAP(data, quad, ability.DichotomousTable(quad, params))

	converged := true
	for j := 0; j < nItems; j++ {
		b, a, c, ok := e.optimizeItem(data, theta, j, difficulty[j], modelType == models.ThreePL)
		if !ok {
			// Keep the Rasch difficulty and unit slope for this item.
			if modelType == models.ThreePL {
				converged = false
			}
			continue
		}
		params.Difficulty[j] = b
		params.Discrimination[j] = a
		params.Guessing[j] = c
	}

	centerInPlace(params.Difficulty)
	return params, converged
}

// initialDifficulty derives Rasch difficulties from proportion-correct
// logits, centered to mean 0 across items.
func initialDifficulty(data models.ResponseMatrix) []float64 {
	nPersons, nItems := data.Dims()
	difficulty := make([]float64, nItems)

	for j := 0; j < nItems; j++ {
		correct := 0.0
		for i := 0; i < nPersons; i++ {
			correct += data[i][j]
		}
		difficulty[j] = -irt.Logit(correct / float64(nPersons))
	}

	centerInPlace(difficulty)
	return difficulty
}

// substituteMissing returns a copy of the matrix with NaN cells scored 0
func substituteMissing(data models.ResponseMatrix) models.ResponseMatrix {
	out := data.Clone()
	for i := range out {
		for j := range out[i] {
			if models.IsMissing(out[i][j]) {
				out[i][j] = 0
			}
		}
	}
	return out
}

func centerInPlace(values []float64) {
	mean := stat.Mean(values, nil)
	for i := range values {
		values[i] -= mean
	}
}

// LogLikelihood sums log response probabilities over every cell under the
// 3PL curve, with probabilities clamped away from 0 and 1.
func LogLikelihood(data models.ResponseMatrix, params *models.ItemParameters, theta []float64) float64 {
	nPersons, nItems := data.Dims()
	logLik := 0.0

	for i := 0; i < nPersons; i++ {
		for j := 0; j < nItems; j++ {
			p := irt.ClampProb(irt.Probability(theta[i], params.Difficulty[j], params.Discrimination[j], params.Guessing[j]))
			if data[i][j] == 1.0 {
				logLik += math.Log(p)
			} else {
				logLik += math.Log(1 - p)
			}
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
