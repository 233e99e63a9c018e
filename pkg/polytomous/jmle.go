package polytomous

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/calibrix/irt-estimation-service/pkg/irt"
	"github.com/calibrix/irt-estimation-service/pkg/models"
)

// jmleResult carries the output of the joint maximum-likelihood iteration
type jmleResult struct {
	difficulty []float64
	thresholds [][]float64
	theta      []float64
	converged  bool
	iterations int
}

// estimateJMLE runs the iterative joint maximum-likelihood estimation.
//
// Difficulties and thresholds start from the AUTO heuristic and abilities
// from standardized raw-score logits. Each round applies a damped
// Newton-like update to every item difficulty (observed-minus-expected
// score over Fisher information); abilities get a smaller damped update
// during the first few rounds only. Ceiling and floor response patterns
// shrink the active ability range so extreme samples cannot collapse the
// estimation. Thresholds stay at their heuristic values.
func (e *Engine) estimateJMLE(runID string, dense models.ResponseMatrix, nCategories int, modelType models.ModelType) jmleResult {
	nPersons, nItems := dense.Dims()
	maxCategory := float64(nCategories - 1)

	difficulty, thresholds := estimateHeuristic(dense, nCategories, modelType)
	theta := rawScoreLogits(dense, nCategories)

	// Ceiling/floor detection on the grand mean proportion.
	grandSum, grandN := 0.0, 0
	for i := 0; i < nPersons; i++ {
		for j := 0; j < nItems; j++ {
			if !models.IsMissing(dense[i][j]) {
				grandSum += dense[i][j]
				grandN++
			}
		}
	}
	grandProp := 0.5
	if grandN > 0 && maxCategory > 0 {
		grandProp = (grandSum / float64(grandN)) / maxCategory
	}

	extreme := grandProp > e.config.JMLECeilingThreshold() || grandProp < e.config.JMLEFloorThreshold()
	thetaRange := 4.0
	thetaIterations := 5
	if extreme {
		// Extreme samples push raw-score logits toward the clamp bounds;
		// a narrower range keeps the Newton steps inside useful curvature.
		thetaRange = 2.5
		thetaIterations = 3
		for i := range theta {
			theta[i] = clamp(theta[i]*0.5, -thetaRange, thetaRange)
		}
		e.publish(runID, "jmle", "warning",
			fmt.Sprintf("ceiling/floor response pattern detected (grand proportion %.2f), rescaling ability range", grandProp))
	}

	stepSize := e.config.JMLEStepSize()
	maxStep := e.config.JMLEMaxStep()
	abilityStep := stepSize * e.config.JMLEAbilityStepFactor()
	abilityMaxStep := e.config.JMLEAbilityMaxStep()
	tolerance := e.config.JMLETolerance()
	maxIterations := e.config.JMLEMaxIterations()

	converged := false
	iteration := 0
	for iteration = 1; iteration <= maxIterations; iteration++ {
		maxChange := 0.0

		for j := 0; j < nItems; j++ {
			tau := itemThresholds(thresholds, j)
			residual, info := 0.0, 0.0
			for i := 0; i < nPersons; i++ {
				if models.IsMissing(dense[i][j]) {
					continue
				}
				expected, variance := irt.CategoryMoments(theta[i], difficulty[j], tau)
				residual += dense[i][j] - expected
				info += variance
			}
			if info < irt.VarianceFloor {
				info = irt.VarianceFloor
			}

			// Higher-than-expected scores mean the item is easier than the
			// current estimate, so the difficulty moves down.
			delta := clamp(-stepSize*residual/info, -maxStep, maxStep)
			difficulty[j] += delta
			if math.Abs(delta) > maxChange {
				maxChange = math.Abs(delta)
			}
		}

		meanDifficulty := stat.Mean(difficulty, nil)
		for j := range difficulty {
			difficulty[j] -= meanDifficulty
		}

		if iteration <= thetaIterations {
			for i := 0; i < nPersons; i++ {
				residual, info := 0.0, 0.0
				for j := 0; j < nItems; j++ {
					if models.IsMissing(dense[i][j]) {
						continue
					}
					expected, variance := irt.CategoryMoments(theta[i], difficulty[j], itemThresholds(thresholds, j))
					residual += dense[i][j] - expected
					info += variance
				}
				if info < irt.VarianceFloor {
					info = irt.VarianceFloor
				}
				delta := clamp(abilityStep*residual/info, -abilityMaxStep, abilityMaxStep)
				theta[i] = clamp(theta[i]+delta, -thetaRange, thetaRange)
			}
		}

		if maxChange < tolerance {
			converged = true
			break
		}
	}

	e.logger.Debug().
		Int("iterations", iteration).
		Bool("converged", converged).
		Msg("JMLE iteration finished")

	return jmleResult{
		difficulty: difficulty,
		thresholds: thresholds,
		theta:      theta,
		converged:  converged,
		iterations: iteration,
	}
}

func itemThresholds(thresholds [][]float64, j int) []float64 {
	if len(thresholds) == 1 {
		return thresholds[0]
	}
	return thresholds[j]
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
