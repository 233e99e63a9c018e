// Package diagnostics derives the statistics psychometricians read after a
// fit: residual-based fit indices, reliability and separation, residual
// principal components, differential item functioning, and category
// structure tables.
package diagnostics

import (
	"math"

	"github.com/calibrix/irt-estimation-service/pkg/irt"
	"github.com/calibrix/irt-estimation-service/pkg/models"
)

// FitStatistics computes per-item infit/outfit mean-squares and their
// Wilson-Hilferty standardized forms.
//
// Outfit is the unweighted mean of standardized squared residuals; infit
// weights each squared residual by the model variance at that person's
// ability. Items with no valid responses keep the neutral values
// MNSQ=1, zstd=0.
func FitStatistics(dense models.ResponseMatrix, params *models.PolytomousItemParameters, theta []float64) (infitMNSQ, outfitMNSQ, infitZstd, outfitZstd []float64) {
	nPersons, nItems := dense.Dims()

	infitMNSQ = make([]float64, nItems)
	outfitMNSQ = make([]float64, nItems)
	infitZstd = make([]float64, nItems)
	outfitZstd = make([]float64, nItems)

	for j := 0; j < nItems; j++ {
		infitMNSQ[j] = 1.0
		outfitMNSQ[j] = 1.0

		tau := params.ItemThresholds(j)
		sumZSq := 0.0
		sumWeightedZSq := 0.0
		sumVariance := 0.0
		nValid := 0

		for i := 0; i < nPersons; i++ {
			if models.IsMissing(dense[i][j]) {
				continue
			}
			expected, variance := irt.CategoryMoments(theta[i], params.Difficulty[j], tau)
			if variance < irt.VarianceFloor {
				variance = irt.VarianceFloor
			}

			residual := dense[i][j] - expected
			zSquared := residual * residual / variance

			sumZSq += zSquared
			sumWeightedZSq += zSquared * variance
			sumVariance += variance
			nValid++
		}

		if nValid == 0 {
			continue
		}

		outfitMNSQ[j] = sumZSq / float64(nValid)
		infitMNSQ[j] = sumWeightedZSq / sumVariance

		// Wilson-Hilferty cube-root transformation to an approximate z scale.
		q := math.Sqrt(2.0 / float64(nValid))
		infitZstd[j] = (math.Cbrt(infitMNSQ[j])-1)*(3/q) + (q / 3)
		outfitZstd[j] = (math.Cbrt(outfitMNSQ[j])-1)*(3/q) + (q / 3)
	}

	return infitMNSQ, outfitMNSQ, infitZstd, outfitZstd
}
