package diagnostics

import (
	"math"
	"testing"

	"github.com/calibrix/irt-estimation-service/pkg/models"
)

func ratingParams(thresholds []float64) *models.PolytomousItemParameters {
	return &models.PolytomousItemParameters{
		Names:      []string{"item1", "item2"},
		Difficulty: []float64{-0.3, 0.3},
		Thresholds: [][]float64{thresholds},
	}
}

func TestCategoryStructureTable_Counts(t *testing.T) {
	data := models.ResponseMatrix{
		{0, 1},
		{1, 2},
		{2, 2},
		{1, math.NaN()},
	}
	theta := []float64{-1.0, 0.0, 1.0, 0.2}

	structure := CategoryStructureTable(data, ratingParams([]float64{-1.0, 1.0}), theta, 3)

	if structure.NCategories != 3 || len(structure.Categories) != 3 {
		t.Fatalf("expected 3 categories, got %d", len(structure.Categories))
	}
	wantCounts := []int{1, 3, 3}
	for k, c := range structure.Categories {
		if c.Count != wantCounts[k] {
			t.Errorf("category %d count = %d, want %d", k, c.Count, wantCounts[k])
		}
	}
	if structure.TotalResponses != 8 {
		t.Errorf("total responses = %d, want 8 cells", structure.TotalResponses)
	}

	// Category 0 has no threshold below it.
	if structure.Categories[0].AndrichThreshold != nil {
		t.Error("category 0 must not carry an Andrich threshold")
	}
	if structure.Categories[1].AndrichThreshold == nil || *structure.Categories[1].AndrichThreshold != -1.0 {
		t.Errorf("category 1 threshold wrong: %v", structure.Categories[1].AndrichThreshold)
	}
}

func TestCategoryStructureTable_ObservedAverages(t *testing.T) {
	// Persons choosing higher categories sit higher on theta, so observed
	// averages increase and no monotonicity warning fires.
	data := models.ResponseMatrix{
		{0, 0},
		{1, 1},
		{2, 2},
	}
	theta := []float64{-1.5, 0.0, 1.5}

	structure := CategoryStructureTable(data, ratingParams([]float64{-1.0, 1.0}), theta, 3)

	for k, c := range structure.Categories {
		if c.ObservedAverage == nil {
			t.Fatalf("category %d missing observed average", k)
		}
	}
	if *structure.Categories[0].ObservedAverage >= *structure.Categories[1].ObservedAverage ||
		*structure.Categories[1].ObservedAverage >= *structure.Categories[2].ObservedAverage {
		t.Error("observed averages should increase with category")
	}
	for _, r := range structure.Recommendations {
		if r.Type == "non_monotonic" {
			t.Error("monotone averages must not trigger a non_monotonic warning")
		}
	}
}

func TestCategoryStructureTable_DisorderedThresholds(t *testing.T) {
	data := models.ResponseMatrix{
		{0, 1},
		{1, 2},
		{2, 0},
	}
	theta := []float64{-0.5, 0.0, 0.5}

	// Second threshold below the first: category 2 is disordered.
	structure := CategoryStructureTable(data, ratingParams([]float64{1.0, -1.0}), theta, 3)

	if !structure.HasDisordered {
		t.Fatal("descending thresholds must set HasDisordered")
	}
	if !structure.Categories[2].IsDisordered {
		t.Error("category 2 should be flagged disordered")
	}
	if structure.Categories[1].IsDisordered {
		t.Error("category 1 has no threshold below it to compare against")
	}

	found := false
	for _, r := range structure.Recommendations {
		if r.Type == "disordered" && r.Severity == "error" {
			found = true
		}
	}
	if !found {
		t.Error("expected a disordered error recommendation")
	}
}

func TestCategoryStructureTable_UnderusedCategory(t *testing.T) {
	// Category 2 appears once across 40 cells: both the count floor and the
	// percent floor flag it.
	data := make(models.ResponseMatrix, 20)
	theta := make([]float64, 20)
	for i := range data {
		data[i] = []float64{0, 1}
		theta[i] = 0
	}
	data[0][1] = 2

	structure := CategoryStructureTable(data, ratingParams([]float64{-1.0, 1.0}), theta, 3)

	if !structure.HasUnderused {
		t.Fatal("rare category must set HasUnderused")
	}
	found := false
	for _, r := range structure.Recommendations {
		if r.Type == "underutilized" && r.Severity == "warning" {
			found = true
		}
	}
	if !found {
		t.Error("expected an underutilized warning recommendation")
	}
}

func TestAverageThresholds(t *testing.T) {
	t.Run("shared_row_passthrough", func(t *testing.T) {
		avg := averageThresholds([][]float64{{-1.0, 1.0}})
		if len(avg) != 2 || avg[0] != -1.0 || avg[1] != 1.0 {
			t.Errorf("shared row should pass through unchanged: %v", avg)
		}
	})

	t.Run("per_item_rows_pooled", func(t *testing.T) {
		avg := averageThresholds([][]float64{
			{-2.0, 0.0},
			{0.0, 2.0},
		})
		if avg[0] != -1.0 || avg[1] != 1.0 {
			t.Errorf("pooled thresholds = %v, want [-1 1]", avg)
		}
	})

	t.Run("empty", func(t *testing.T) {
		if avg := averageThresholds(nil); avg != nil {
			t.Errorf("expected nil for no thresholds, got %v", avg)
		}
	})
}
