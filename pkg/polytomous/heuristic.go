package polytomous

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/calibrix/irt-estimation-service/pkg/irt"
	"github.com/calibrix/irt-estimation-service/pkg/models"
)

// estimateHeuristic is the fast AUTO estimation path: item difficulty from
// mean-response logits centered across items, Andrich thresholds from the
// proportions responding strictly above each cut-point. For RSM the
// proportions pool over all items (one shared threshold row); for PCM each
// item gets its own centered row.
func estimateHeuristic(dense models.ResponseMatrix, nCategories int, modelType models.ModelType) (difficulty []float64, thresholds [][]float64) {
	nPersons, nItems := dense.Dims()
	nThresholds := nCategories - 1
	maxCategory := float64(nCategories - 1)

	difficulty = make([]float64, nItems)
	for j := 0; j < nItems; j++ {
		sum, n := 0.0, 0
		for i := 0; i < nPersons; i++ {
			if !models.IsMissing(dense[i][j]) {
				sum += dense[i][j]
				n++
			}
		}
		prop := 0.5
		if n > 0 && maxCategory > 0 {
			prop = (sum / float64(n)) / maxCategory
		}
		difficulty[j] = -irt.Logit(prop)
	}
	meanDifficulty := stat.Mean(difficulty, nil)
	for j := range difficulty {
		difficulty[j] -= meanDifficulty
	}

	if nThresholds == 0 {
		if modelType == models.RSM {
			return difficulty, [][]float64{{}}
		}
		thresholds = make([][]float64, nItems)
		for j := range thresholds {
			thresholds[j] = []float64{}
		}
		return difficulty, thresholds
	}

	if modelType == models.RSM {
		shared := make([]float64, nThresholds)
		for k := 0; k < nThresholds; k++ {
			above, n := 0, 0
			for i := 0; i < nPersons; i++ {
				for j := 0; j < nItems; j++ {
					if models.IsMissing(dense[i][j]) {
						continue
					}
					n++
					if dense[i][j] > float64(k) {
						above++
					}
				}
			}
			shared[k] = thresholdLogit(above, n)
		}
		centerThresholds(shared)
		return difficulty, [][]float64{shared}
	}

	thresholds = make([][]float64, nItems)
	for j := 0; j < nItems; j++ {
		row := make([]float64, nThresholds)
		for k := 0; k < nThresholds; k++ {
			above, n := 0, 0
			for i := 0; i < nPersons; i++ {
				if models.IsMissing(dense[i][j]) {
					continue
				}
				n++
				if dense[i][j] > float64(k) {
					above++
				}
			}
			row[k] = thresholdLogit(above, n)
		}
		centerThresholds(row)
		thresholds[j] = row
	}
	return difficulty, thresholds
}

// thresholdLogit converts a strictly-above count into an Andrich threshold
// estimate on the logit scale
func thresholdLogit(above, total int) float64 {
	prop := 0.5
	if total > 0 {
		prop = float64(above) / float64(total)
	}
	return -irt.Logit(prop)
}

func centerThresholds(row []float64) {
	if len(row) == 0 {
		return
	}
	mean := stat.Mean(row, nil)
	for k := range row {
		row[k] -= mean
	}
}

// rawScoreLogits transforms raw person sum-scores to a standardized logit
// scale, used to initialize JMLE and to anchor the scale of MML abilities.
func rawScoreLogits(dense models.ResponseMatrix, nCategories int) []float64 {
	nPersons, nItems := dense.Dims()
	maxScore := float64(nItems * (nCategories - 1))

	theta := make([]float64, nPersons)
	for i := 0; i < nPersons; i++ {
		raw := 0.0
		for j := 0; j < nItems; j++ {
			if !models.IsMissing(dense[i][j]) {
				raw += dense[i][j]
			}
		}
		prop := 0.5
		if maxScore > 0 {
			prop = raw / maxScore
		}
		theta[i] = irt.Logit(prop)
	}

	mean := stat.Mean(theta, nil)
	sd := stat.StdDev(theta, nil)
	if math.IsNaN(sd) {
		sd = 0
	}
	for i := range theta {
		theta[i] = (theta[i] - mean) / (sd + 0.01) * 1.5
	}
	return theta
}
