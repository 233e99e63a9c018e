package irt

import "math"

// CategoryProbability returns P(X = category) under the Rasch-Andrich
// rating scale formulation:
//
//	P(X=k) = exp(sum_{j=1..k}(theta-beta-tau_j)) / sum_m exp(sum_{j=1..m}(theta-beta-tau_j))
//
// thresholds has length K-1 for K categories; the cumulative sum for
// category 0 is empty. If the denominator underflows below 1e-10 the
// distribution degenerates and a uniform 1/K is returned as the documented
// numerical floor.
func CategoryProbability(theta, difficulty float64, thresholds []float64, category int) float64 {
	dist := CategoryDistribution(theta, difficulty, thresholds)
	return dist[category]
}

// CategoryDistribution returns the full probability vector over the K
// categories implied by the threshold vector (K = len(thresholds)+1).
func CategoryDistribution(theta, difficulty float64, thresholds []float64) []float64 {
	nCategories := len(thresholds) + 1
	numerators := make([]float64, nCategories)

	denominator := 0.0
	for k := 0; k < nCategories; k++ {
		cumsum := 0.0
		for j := 0; j < k; j++ {
			if j < len(thresholds) {
				cumsum += theta - difficulty - thresholds[j]
			} else {
				cumsum += theta - difficulty
			}
		}
		numerators[k] = math.Exp(ClampExponent(cumsum))
		denominator += numerators[k]
	}

	if denominator < 1e-10 {
		uniform := make([]float64, nCategories)
		for k := range uniform {
			uniform[k] = 1.0 / float64(nCategories)
		}
		return uniform
	}

	for k := range numerators {
		numerators[k] /= denominator
	}
	return numerators
}

// CategoryMoments returns E[X] and Var(X) of the category index under the
// fitted category-probability model at theta. The variance is not floored;
// callers that divide by it apply VarianceFloor themselves.
func CategoryMoments(theta, difficulty float64, thresholds []float64) (expected, variance float64) {
	dist := CategoryDistribution(theta, difficulty, thresholds)
	expectedSq := 0.0
	for k, p := range dist {
		kf := float64(k)
		expected += kf * p
		expectedSq += kf * kf * p
	}
	variance = expectedSq - expected*expected
	return expected, variance
}
