package polytomous

import (
	"math"
	"sort"

	"github.com/calibrix/irt-estimation-service/pkg/models"
)

// remapCategories converts an arbitrary ordinal value set (contiguous or
// sparse, e.g. 1..7 or {2,4,6}) into dense 0-based category indices. The
// returned values slice maps each dense index back to its original value
// for reporting. Missing cells stay NaN.
func remapCategories(data models.ResponseMatrix) (dense models.ResponseMatrix, values []float64) {
	seen := make(map[float64]bool)
	for _, row := range data {
		for _, v := range row {
			if !models.IsMissing(v) {
				seen[v] = true
			}
		}
	}

	values = make([]float64, 0, len(seen))
	for v := range seen {
		values = append(values, v)
	}
	sort.Float64s(values)

	index := make(map[float64]int, len(values))
	for k, v := range values {
		index[v] = k
	}

	dense = make(models.ResponseMatrix, len(data))
	for i, row := range data {
		dense[i] = make([]float64, len(row))
		for j, v := range row {
			if models.IsMissing(v) {
				dense[i][j] = math.NaN()
			} else {
				dense[i][j] = float64(index[v])
			}
		}
	}

	return dense, values
}

// categoryCounts tallies remapped responses per dense category index
func categoryCounts(dense models.ResponseMatrix, nCategories int) []int {
	counts := make([]int, nCategories)
	for _, row := range dense {
		for _, v := range row {
			if !models.IsMissing(v) {
				counts[int(v)]++
			}
		}
	}
	return counts
}
