package dichotomous

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat"

	"github.com/calibrix/irt-estimation-service/pkg/models"
)

// bootstrapStandardErrors estimates item standard errors by resampling
// persons with replacement and refitting. The resampling stream is seeded
// from config, so repeated runs produce identical errors. Any failure
// leaves the SE fields nil; the primary fit is never affected.
func (e *Engine) bootstrapStandardErrors(data models.ResponseMatrix, modelType models.ModelType, params *models.ItemParameters) {
	nPersons, nItems := data.Dims()
	iterations := e.config.BootstrapIterations()
	rng := rand.New(rand.NewSource(e.config.BootstrapSeed()))

	difficulties := make([][]float64, 0, iterations)
	discriminations := make([][]float64, 0, iterations)

	for it := 0; it < iterations; it++ {
		resampled := make(models.ResponseMatrix, nPersons)
		for i := range resampled {
			resampled[i] = data[rng.Intn(nPersons)]
		}

		resampleParams, ok := e.refitResample(resampled, modelType)
		if !ok {
			continue
		}
		difficulties = append(difficulties, resampleParams.Difficulty)
		discriminations = append(discriminations, resampleParams.Discrimination)
	}

	// Too few successful resamples to say anything about spread.
	if len(difficulties) < 2 {
		e.logger.Warn().
			Int("successful", len(difficulties)).
			Msg("Bootstrap produced too few resamples, skipping standard errors")
		return
	}

	params.SEDifficulty = columnStdDev(difficulties, nItems)
	if modelType == models.TwoPL {
		params.SEDiscrimination = columnStdDev(discriminations, nItems)
	}
}

// refitResample runs the primary estimator on one bootstrap resample,
// converting panics or non-finite output into a skipped resample.
func (e *Engine) refitResample(data models.ResponseMatrix, modelType models.ModelType) (params *models.ItemParameters, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			params, ok = nil, false
		}
	}()

	params, _ = e.estimateItems(data, modelType)
	for j := range params.Difficulty {
		if math.IsNaN(params.Difficulty[j]) || math.IsInf(params.Difficulty[j], 0) {
			return nil, false
		}
	}
	return params, true
}

func columnStdDev(samples [][]float64, nItems int) []float64 {
	out := make([]float64, nItems)
	column := make([]float64, len(samples))
	for j := 0; j < nItems; j++ {
		for s := range samples {
			column[s] = samples[s][j]
		}
		out[j] = stat.StdDev(column, nil)
	}
	return out
}
