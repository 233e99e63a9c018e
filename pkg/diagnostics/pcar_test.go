package diagnostics

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/calibrix/irt-estimation-service/pkg/irt"
	"github.com/calibrix/irt-estimation-service/pkg/models"
)

func TestPCAR_RequiresThreeItems(t *testing.T) {
	data := models.ResponseMatrix{{1, 0}, {0, 1}}
	params := binaryRaschParams([]float64{0.0, 0.0})

	_, err := PCAR(data, params, []float64{0.0, 0.0}, 0)
	var inputErr models.InputError
	if !errors.As(err, &inputErr) {
		t.Errorf("expected InputError for 2 items, got %v", err)
	}
}

func TestPCAR_UnidimensionalData(t *testing.T) {
	// A single latent trait drives all items; once abilities absorb it, the
	// residual first contrast stays below the 2.0 criterion.
	difficulties := []float64{-1.5, -1.0, -0.5, 0.0, 0.5, 1.0, 1.5, 0.2}
	data, _ := simulateRasch(42, 400, difficulties)
	params := binaryRaschParams(difficulties)
	theta := estimateTheta(data, params)

	result, err := PCAR(data, params, theta, 0)
	if err != nil {
		t.Fatalf("PCAR failed: %v", err)
	}

	if result.Degenerate {
		t.Fatal("eigendecomposition should succeed on full-rank residuals")
	}
	if len(result.Eigenvalues) != DefaultPCARComponents {
		t.Fatalf("expected %d eigenvalues, got %d", DefaultPCARComponents, len(result.Eigenvalues))
	}
	if result.FirstContrastEigenvalue >= 2.0 {
		t.Errorf("first contrast %f should stay below 2.0 for one-factor data", result.FirstContrastEigenvalue)
	}
	if !result.IsUnidimensional {
		t.Error("one-factor data must be flagged unidimensional")
	}

	for k := 1; k < len(result.Eigenvalues); k++ {
		if result.Eigenvalues[k] > result.Eigenvalues[k-1] {
			t.Errorf("eigenvalues not sorted descending: %v", result.Eigenvalues)
		}
	}
	for k := 1; k < len(result.CumulativeVariance); k++ {
		if result.CumulativeVariance[k] < result.CumulativeVariance[k-1] {
			t.Errorf("cumulative variance not increasing: %v", result.CumulativeVariance)
		}
	}
	if len(result.Loadings) != len(difficulties) {
		t.Errorf("expected one loading per item, got %d", len(result.Loadings))
	}
}

func TestPCAR_TwoFactorData(t *testing.T) {
	// Two independent traits drive two item clusters. Scoring against a
	// single flat ability leaves the cluster structure in the residuals,
	// pushing the first contrast past the criterion.
	rng := rand.New(rand.NewSource(9))
	nPersons := 400
	data := make(models.ResponseMatrix, nPersons)
	for i := range data {
		factor1 := 2.0 * rng.NormFloat64()
		factor2 := 2.0 * rng.NormFloat64()
		data[i] = make([]float64, 8)
		for j := 0; j < 8; j++ {
			trait := factor1
			if j >= 4 {
				trait = factor2
			}
			if rng.Float64() < irt.Probability(trait, 0.0, 1.0, 0.0) {
				data[i][j] = 1.0
			}
		}
	}

	params := binaryRaschParams(make([]float64, 8))
	theta := make([]float64, nPersons)

	result, err := PCAR(data, params, theta, 3)
	if err != nil {
		t.Fatalf("PCAR failed: %v", err)
	}

	if len(result.Eigenvalues) != 3 {
		t.Fatalf("expected 3 requested components, got %d", len(result.Eigenvalues))
	}
	if result.FirstContrastEigenvalue < 2.0 {
		t.Errorf("first contrast %f should flag the second dimension", result.FirstContrastEigenvalue)
	}
	if result.IsUnidimensional {
		t.Error("two-factor data must not be flagged unidimensional")
	}

	// Items inside a cluster load together on the first contrast.
	sameCluster := result.Loadings[0].Loading * result.Loadings[1].Loading
	if sameCluster <= 0 {
		t.Errorf("within-cluster loadings should share sign: %f and %f",
			result.Loadings[0].Loading, result.Loadings[1].Loading)
	}
}

func TestPCAR_ComponentCountClamped(t *testing.T) {
	difficulties := []float64{-0.5, 0.0, 0.5}
	data, _ := simulateRasch(5, 100, difficulties)
	params := binaryRaschParams(difficulties)
	theta := estimateTheta(data, params)

	result, err := PCAR(data, params, theta, 10)
	if err != nil {
		t.Fatalf("PCAR failed: %v", err)
	}
	if len(result.Eigenvalues) != 3 {
		t.Errorf("component count must clamp to item count, got %d", len(result.Eigenvalues))
	}
}

func TestDegeneratePCAR(t *testing.T) {
	result := degeneratePCAR(4)

	if !result.Degenerate {
		t.Error("fallback result must carry the Degenerate flag")
	}
	if !result.IsUnidimensional {
		t.Error("unit eigenvalues sit below the 2.0 criterion")
	}
	for k, ev := range result.Eigenvalues {
		if ev != 1.0 {
			t.Errorf("eigenvalue[%d] = %f, want 1.0", k, ev)
		}
	}
	last := result.CumulativeVariance[len(result.CumulativeVariance)-1]
	if math.Abs(last-100.0) > 1e-9 {
		t.Errorf("cumulative variance should reach 100%%, got %f", last)
	}
}
