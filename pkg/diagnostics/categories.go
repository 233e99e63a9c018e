package diagnostics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/calibrix/irt-estimation-service/pkg/models"
)

// Category usage floors below which a category is flagged as underutilized
const (
	underusedCountFloor   = 10
	underusedPercentFloor = 1.0
)

// CategoryStructureTable builds the category functioning table: per-category
// counts and usage, observed ability of the respondents choosing each
// category, the Andrich threshold separating it from the category below,
// and a disordered flag when thresholds do not increase monotonically.
// Recommendations collect the analyst-facing warnings and errors.
func CategoryStructureTable(dense models.ResponseMatrix, params *models.PolytomousItemParameters, theta []float64, nCategories int) *models.CategoryStructure {
	nPersons, nItems := dense.Dims()
	totalCells := nPersons * nItems

	avgThresholds := averageThresholds(params.Thresholds)

	categories := make([]models.CategoryStatistics, 0, nCategories)
	var previousThreshold *float64

	for k := 0; k < nCategories; k++ {
		count := 0
		var observedThetas []float64
		for i := 0; i < nPersons; i++ {
			for j := 0; j < nItems; j++ {
				if !models.IsMissing(dense[i][j]) && int(dense[i][j]) == k {
					count++
					observedThetas = append(observedThetas, theta[i])
				}
			}
		}

		percent := 0.0
		if totalCells > 0 {
			percent = float64(count) / float64(totalCells) * 100
		}

		cs := models.CategoryStatistics{
			Category: k,
			Label:    fmt.Sprintf("Category %d", k),
			Count:    count,
			Percent:  math.Round(percent*10) / 10,
		}

		if len(observedThetas) > 0 {
			mean := stat.Mean(observedThetas, nil)
			cs.ObservedAverage = &mean
			sd := 0.0
			if len(observedThetas) > 1 {
				sd = populationStdDev(observedThetas)
			}
			cs.ObservedSD = &sd
		}

		if k > 0 && k-1 < len(avgThresholds) {
			threshold := avgThresholds[k-1]
			cs.AndrichThreshold = &threshold
			if previousThreshold != nil {
				cs.IsDisordered = threshold < *previousThreshold
			}
			previousThreshold = &avgThresholds[k-1]
		}

		categories = append(categories, cs)
	}

	structure := &models.CategoryStructure{
		Categories:     categories,
		NCategories:    nCategories,
		TotalResponses: totalCells,
	}
	structure.Recommendations = buildRecommendations(categories, structure)
	return structure
}

// averageThresholds pools per-item threshold rows into one summary row;
// an RSM shared row passes through unchanged.
func averageThresholds(thresholds [][]float64) []float64 {
	if len(thresholds) == 0 {
		return nil
	}
	if len(thresholds) == 1 {
		return thresholds[0]
	}
	nThresholds := len(thresholds[0])
	avg := make([]float64, nThresholds)
	for _, row := range thresholds {
		for k, v := range row {
			avg[k] += v
		}
	}
	for k := range avg {
		avg[k] /= float64(len(thresholds))
	}
	return avg
}

func buildRecommendations(categories []models.CategoryStatistics, structure *models.CategoryStructure) []models.Recommendation {
	recommendations := []models.Recommendation{}

	var underused, disordered []int
	for _, c := range categories {
		if c.Count < underusedCountFloor || c.Percent < underusedPercentFloor {
			underused = append(underused, c.Category)
		}
		if c.IsDisordered {
			disordered = append(disordered, c.Category)
		}
	}

	if len(underused) > 0 {
		structure.HasUnderused = true
		recommendations = append(recommendations, models.Recommendation{
			Type:     "underutilized",
			Severity: "warning",
			Message:  fmt.Sprintf("Categories %v have few responses. Consider collapsing categories.", underused),
		})
	}

	if len(disordered) > 0 {
		structure.HasDisordered = true
		recommendations = append(recommendations, models.Recommendation{
			Type:     "disordered",
			Severity: "error",
			Message:  fmt.Sprintf("Disordered thresholds detected at categories %v. Categories may not be functioning as intended.", disordered),
		})
	}

	var averages []float64
	for _, c := range categories {
		if c.ObservedAverage != nil {
			averages = append(averages, *c.ObservedAverage)
		}
	}
	if len(averages) >= 2 {
		monotonic := true
		for i := 0; i+1 < len(averages); i++ {
			if averages[i] > averages[i+1] {
				monotonic = false
				break
			}
		}
		if !monotonic {
			recommendations = append(recommendations, models.Recommendation{
				Type:     "non_monotonic",
				Severity: "warning",
				Message:  "Observed averages are not monotonically increasing. This may indicate category structure issues.",
			})
		}
	}

	return recommendations
}

func populationStdDev(values []float64) float64 {
	mean := stat.Mean(values, nil)
	sum := 0.0
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}
