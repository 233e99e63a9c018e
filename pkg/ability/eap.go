// Package ability estimates person abilities from fitted item parameters
// using Expected-A-Posteriori integration over a fixed quadrature grid.
package ability

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/calibrix/irt-estimation-service/pkg/irt"
	"github.com/calibrix/irt-estimation-service/pkg/models"
)

const (
	// GridMin and GridMax bound the theta quadrature grid
	GridMin = -4.0
	GridMax = 4.0

	// DefaultQuadPoints is the fast-path grid size used by the engines
	DefaultQuadPoints = 21

	// ReferenceQuadPoints is the denser grid for reference-precision runs
	ReferenceQuadPoints = 41
)

// Quadrature is a fixed grid of theta points with standard-normal prior
// weights normalized to sum to 1.
type Quadrature struct {
	Points  []float64
	Weights []float64
}

// NewQuadrature builds an n-point grid linearly spaced on [GridMin, GridMax]
func NewQuadrature(n int) Quadrature {
	points := make([]float64, n)
	weights := make([]float64, n)
	floats.Span(points, GridMin, GridMax)

	for i, p := range points {
		weights[i] = math.Exp(-p*p/2) / math.Sqrt(2*math.Pi)
	}
	total := floats.Sum(weights)
	for i := range weights {
		weights[i] /= total
	}

	return Quadrature{Points: points, Weights: weights}
}

// LogProbTable holds precomputed log category probabilities for every
// (quadrature point, item, category) triple. For dichotomous models the
// category axis has two entries: incorrect and correct.
type LogProbTable [][][]float64

// DichotomousTable precomputes log response probabilities for a 3PL
// parameter set over the quadrature grid.
func DichotomousTable(q Quadrature, params *models.ItemParameters) LogProbTable {
	nItems := len(params.Difficulty)
	table := make(LogProbTable, len(q.Points))
	for qi, theta := range q.Points {
		table[qi] = make([][]float64, nItems)
		for j := 0; j < nItems; j++ {
			p := irt.ClampProb(irt.Probability(theta, params.Difficulty[j], params.Discrimination[j], params.Guessing[j]))
			table[qi][j] = []float64{math.Log(1 - p), math.Log(p)}
		}
	}
	return table
}

// PolytomousTable precomputes log category probabilities for a polytomous
// parameter set over the quadrature grid.
func PolytomousTable(q Quadrature, params *models.PolytomousItemParameters) LogProbTable {
	nItems := len(params.Difficulty)
	table := make(LogProbTable, len(q.Points))
	for qi, theta := range q.Points {
		table[qi] = make([][]float64, nItems)
		for j := 0; j < nItems; j++ {
			dist := irt.CategoryDistribution(theta, params.Difficulty[j], params.ItemThresholds(j))
			logs := make([]float64, len(dist))
			for k, p := range dist {
				logs[k] = math.Log(irt.ClampProb(p))
			}
			table[qi][j] = logs
		}
	}
	return table
}

// EAP computes one theta per person. Each cell of the matrix is the dense
// category index of the observed response (0/1 for dichotomous); missing
// cells are skipped. The posterior over the grid is formed with the
// log-sum-exp trick before taking the weighted mean.
func EAP(data models.ResponseMatrix, q Quadrature, table LogProbTable) []float64 {
	nPersons, nItems := data.Dims()
	nQuad := len(q.Points)
	theta := make([]float64, nPersons)
	logLik := make([]float64, nQuad)

	for i := 0; i < nPersons; i++ {
		for qi := 0; qi < nQuad; qi++ {
			ll := 0.0
			for j := 0; j < nItems; j++ {
				if models.IsMissing(data[i][j]) {
					continue
				}
				k := int(data[i][j])
				ll += table[qi][j][k]
			}
			logLik[qi] = ll
		}

		maxLL := floats.Max(logLik)
		posteriorSum := 0.0
		weightedSum := 0.0
		for qi := 0; qi < nQuad; qi++ {
			posterior := math.Exp(logLik[qi]-maxLL) * q.Weights[qi]
			posteriorSum += posterior
			weightedSum += posterior * q.Points[qi]
		}
		theta[i] = weightedSum / posteriorSum
	}

	return theta
}

// PersonStandardErrors returns 1/sqrt(Fisher information) per person under
// the polytomous category model, with a default SE of 1.0 when a person
// carries no information (all responses missing or degenerate).
func PersonStandardErrors(data models.ResponseMatrix, params *models.PolytomousItemParameters, theta []float64) []float64 {
	nPersons, nItems := data.Dims()
	se := make([]float64, nPersons)

	for i := 0; i < nPersons; i++ {
		info := 0.0
		for j := 0; j < nItems; j++ {
			if models.IsMissing(data[i][j]) {
				continue
			}
			_, variance := irt.CategoryMoments(theta[i], params.Difficulty[j], params.ItemThresholds(j))
			info += variance
		}
		if info > 0 {
			se[i] = 1.0 / math.Sqrt(info)
		} else {
			se[i] = 1.0
		}
	}

	return se
}
