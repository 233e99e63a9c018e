package polytomous

import (
	"context"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"

	"github.com/calibrix/irt-estimation-service/pkg/ability"
	"github.com/calibrix/irt-estimation-service/pkg/irt"
	"github.com/calibrix/irt-estimation-service/pkg/models"
)

// mmlOutcome carries the result of the marginal maximum-likelihood backend
type mmlOutcome struct {
	difficulty []float64
	thresholds [][]float64
	err        error
}

// estimateMML maximizes the quadrature-marginalized likelihood over all
// item parameters with L-BFGS (finite-difference gradients), enforcing the
// configured wall-clock budget. On timeout the optimizer call is cancelled
// and an EstimationTimeout is returned; the engine falls back to the AUTO
// heuristic in that case.
func (e *Engine) estimateMML(dense models.ResponseMatrix, nCategories int, modelType models.ModelType) mmlOutcome {
	ctx, cancel := context.WithTimeout(context.Background(), e.config.MMLTimeout())
	defer cancel()

	done := make(chan mmlOutcome, 1)
	go func() {
		done <- e.runMMLOptimizer(ctx, dense, nCategories, modelType)
	}()

	select {
	case outcome := <-done:
		return outcome
	case <-ctx.Done():
		return mmlOutcome{err: models.EstimationTimeout{Stage: "mml", Seconds: e.config.MMLTimeoutSeconds()}}
	}
}

func (e *Engine) runMMLOptimizer(ctx context.Context, dense models.ResponseMatrix, nCategories int, modelType models.ModelType) mmlOutcome {
	_, nItems := dense.Dims()
	nThresholds := nCategories - 1

	// Initial point from the heuristic keeps the optimizer near the basin
	// the reporting scale expects.
	difficulty, thresholds := estimateHeuristic(dense, nCategories, modelType)
	x0 := packParameters(difficulty, thresholds)

	quad := ability.NewQuadrature(e.config.QuadraturePoints())

	objective := func(x []float64) float64 {
		if ctx.Err() != nil {
			return math.NaN()
		}
		b, tau := unpackParameters(x, modelType, nItems, nThresholds)
		return negativeMarginalLogLikelihood(dense, b, tau, quad)
	}

	problem := optimize.Problem{
		Func: objective,
		Grad: func(grad, x []float64) {
			fd.Gradient(grad, objective, x, nil)
		},
	}
	settings := &optimize.Settings{MajorIterations: e.config.MMLMaxIterations()}

	result, err := optimize.Minimize(problem, x0, settings, &optimize.LBFGS{})
	if ctx.Err() != nil {
		return mmlOutcome{err: models.EstimationTimeout{Stage: "mml", Seconds: e.config.MMLTimeoutSeconds()}}
	}
	if err != nil {
		return mmlOutcome{err: models.EstimationFailure{Stage: "mml", Message: err.Error()}}
	}
	for _, v := range result.X {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return mmlOutcome{err: models.EstimationFailure{Stage: "mml", Message: "optimizer produced non-finite parameters"}}
		}
	}

	b, tau := unpackParameters(result.X, modelType, nItems, nThresholds)

	// Identification: difficulties sum to zero, thresholds centered within
	// each row, matching the heuristic's reporting scale.
	meanB := stat.Mean(b, nil)
	for j := range b {
		b[j] -= meanB
	}
	for _, row := range tau {
		centerThresholds(row)
	}

	return mmlOutcome{difficulty: b, thresholds: tau}
}

// packParameters flattens difficulties and thresholds into one vector:
// difficulties first, then the shared threshold row (RSM) or each item's
// row in order (PCM).
func packParameters(difficulty []float64, thresholds [][]float64) []float64 {
	x := make([]float64, 0, len(difficulty)+len(thresholds)*len(thresholds[0]))
	x = append(x, difficulty...)
	for _, row := range thresholds {
		x = append(x, row...)
	}
	return x
}

func unpackParameters(x []float64, modelType models.ModelType, nItems, nThresholds int) ([]float64, [][]float64) {
	difficulty := make([]float64, nItems)
	copy(difficulty, x[:nItems])

	if modelType == models.RSM {
		shared := make([]float64, nThresholds)
		copy(shared, x[nItems:nItems+nThresholds])
		return difficulty, [][]float64{shared}
	}

	thresholds := make([][]float64, nItems)
	for j := 0; j < nItems; j++ {
		row := make([]float64, nThresholds)
		copy(row, x[nItems+j*nThresholds:nItems+(j+1)*nThresholds])
		thresholds[j] = row
	}
	return difficulty, thresholds
}

// negativeMarginalLogLikelihood integrates the person likelihood over the
// quadrature prior with the log-sum-exp trick.
func negativeMarginalLogLikelihood(dense models.ResponseMatrix, difficulty []float64, thresholds [][]float64, quad ability.Quadrature) float64 {
	nPersons, nItems := dense.Dims()
	nQuad := len(quad.Points)

	// Log category probabilities per (quad point, item, category).
	logProbs := make([][][]float64, nQuad)
	for qi, thetaQ := range quad.Points {
		logProbs[qi] = make([][]float64, nItems)
		for j := 0; j < nItems; j++ {
			dist := irt.CategoryDistribution(thetaQ, difficulty[j], itemThresholds(thresholds, j))
			row := make([]float64, len(dist))
			for k, p := range dist {
				row[k] = math.Log(irt.ClampProb(p))
			}
			logProbs[qi][j] = row
		}
	}

	total := 0.0
	personLog := make([]float64, nQuad)
	for i := 0; i < nPersons; i++ {
		for qi := 0; qi < nQuad; qi++ {
			ll := math.Log(quad.Weights[qi])
			for j := 0; j < nItems; j++ {
				if models.IsMissing(dense[i][j]) {
					continue
				}
				ll += logProbs[qi][j][int(dense[i][j])]
			}
			personLog[qi] = ll
		}
		maxLL := floats.Max(personLog)
		sum := 0.0
		for qi := 0; qi < nQuad; qi++ {
			sum += math.Exp(personLog[qi] - maxLL)
		}
		total -= maxLL + math.Log(sum)
	}
	return total
}

// rescaleAbilities maps the optimizer's internal ability scale onto the
// raw-score logit distribution's mean and spread so MML results stay
// comparable with the other estimation backends.
func rescaleAbilities(theta, anchor []float64) []float64 {
	thetaMean := stat.Mean(theta, nil)
	thetaSD := stat.StdDev(theta, nil)
	anchorMean := stat.Mean(anchor, nil)
	anchorSD := stat.StdDev(anchor, nil)

	out := make([]float64, len(theta))
	if math.IsNaN(thetaSD) || thetaSD < 1e-10 || math.IsNaN(anchorSD) {
		for i := range out {
			out[i] = anchorMean
		}
		return out
	}
	for i, t := range theta {
		out[i] = (t-thetaMean)/thetaSD*anchorSD + anchorMean
	}
	return out
}
