package diagnostics

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/calibrix/irt-estimation-service/pkg/ability"
	"github.com/calibrix/irt-estimation-service/pkg/models"
)

// Reliability computes person and item reliability, separation, and strata
// from the variance decomposition of estimates against their standard
// errors.
//
// Person true variance = max(0, var(theta) - mean(SE^2));
// reliability = true/observed variance (clamped to [0,1]);
// separation = sqrt(true variance)/RMSE; strata = (4*separation+1)/3.
// Items mirror the computation with an approximate SE of 1/sqrt(nPersons)
// when no bootstrap SE is available.
func Reliability(dense models.ResponseMatrix, params *models.PolytomousItemParameters, theta []float64) models.ReliabilityStatistics {
	nPersons, _ := dense.Dims()

	personSE := ability.PersonStandardErrors(dense, params, theta)
	itemSE := make([]float64, len(params.Difficulty))
	for j := range itemSE {
		if params.SEDifficulty != nil {
			itemSE[j] = params.SEDifficulty[j]
		} else {
			itemSE[j] = 1.0 / math.Sqrt(float64(nPersons))
		}
	}

	return reliabilityFromEstimates(theta, personSE, params.Difficulty, itemSE)
}

// ReliabilityFromStored computes the same statistics from persisted
// summaries rather than raw matrices, for reporting on re-hydrated results.
// Persons without a stored SE use a default of 0.5.
func ReliabilityFromStored(difficulties, thetas []float64, thetaSEs []float64) models.ReliabilityStatistics {
	if len(difficulties) == 0 || len(thetas) == 0 {
		return models.ReliabilityStatistics{PersonStrata: 1.0, ItemStrata: 1.0}
	}

	personSE := make([]float64, len(thetas))
	for i := range personSE {
		if thetaSEs != nil && thetaSEs[i] > 0 {
			personSE[i] = thetaSEs[i]
		} else {
			personSE[i] = 0.5
		}
	}

	itemSE := make([]float64, len(difficulties))
	for j := range itemSE {
		itemSE[j] = 1.0 / math.Sqrt(float64(len(thetas)))
	}

	return reliabilityFromEstimates(thetas, personSE, difficulties, itemSE)
}

func reliabilityFromEstimates(theta, personSE, difficulty, itemSE []float64) models.ReliabilityStatistics {
	personReliability, personSeparation := varianceDecomposition(theta, personSE)
	itemReliability, itemSeparation := varianceDecomposition(difficulty, itemSE)

	return models.ReliabilityStatistics{
		PersonReliability: clampUnit(personReliability),
		ItemReliability:   clampUnit(itemReliability),
		PersonSeparation:  math.Max(0, personSeparation),
		ItemSeparation:    math.Max(0, itemSeparation),
		PersonStrata:      math.Max(1, (4*personSeparation+1)/3),
		ItemStrata:        math.Max(1, (4*itemSeparation+1)/3),
	}
}

// varianceDecomposition splits observed variance into true and error parts
func varianceDecomposition(estimates, standardErrors []float64) (reliability, separation float64) {
	observedVariance := populationVariance(estimates)

	meanSESquared := 0.0
	for _, se := range standardErrors {
		meanSESquared += se * se
	}
	meanSESquared /= float64(len(standardErrors))

	trueVariance := math.Max(0, observedVariance-meanSESquared)

	if observedVariance > 0 {
		reliability = trueVariance / observedVariance
	}
	rmse := math.Sqrt(meanSESquared)
	if rmse > 0 {
		separation = math.Sqrt(trueVariance) / rmse
	}
	return reliability, separation
}

// populationVariance matches the N-denominator variance the reliability
// formulas are defined with, rather than the sample (N-1) estimator.
func populationVariance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := stat.Mean(values, nil)
	sum := 0.0
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return sum / float64(len(values))
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
