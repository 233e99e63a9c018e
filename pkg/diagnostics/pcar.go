package diagnostics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/calibrix/irt-estimation-service/pkg/irt"
	"github.com/calibrix/irt-estimation-service/pkg/models"
)

// DefaultPCARComponents is the number of eigenvalues reported by default
const DefaultPCARComponents = 5

// unidimensionalityThreshold is the fixed Rasch criterion: a first contrast
// eigenvalue below 2.0 indicates an essentially unidimensional test.
const unidimensionalityThreshold = 2.0

// PCAR runs a Principal Component Analysis of standardized Residuals to
// check unidimensionality. Requires at least 3 items. If the symmetric
// eigendecomposition fails, the result degrades to unit eigenvalues with
// the Degenerate flag set instead of erroring.
func PCAR(dense models.ResponseMatrix, params *models.PolytomousItemParameters, theta []float64, nComponents int) (*models.PCARResult, error) {
	nPersons, nItems := dense.Dims()
	if nItems < 3 {
		return nil, models.InputError{Component: "pcar", Message: "PCAR requires at least 3 items"}
	}
	if nComponents <= 0 {
		nComponents = DefaultPCARComponents
	}
	if nComponents > nItems {
		nComponents = nItems
	}

	// Standardized residuals; missing cells contribute 0.
	residuals := mat.NewDense(nPersons, nItems, nil)
	for i := 0; i < nPersons; i++ {
		for j := 0; j < nItems; j++ {
			if models.IsMissing(dense[i][j]) {
				continue
			}
			expected, variance := irt.CategoryMoments(theta[i], params.Difficulty[j], params.ItemThresholds(j))
			if variance < irt.VarianceFloor {
				variance = irt.VarianceFloor
			}
			residuals.Set(i, j, (dense[i][j]-expected)/math.Sqrt(variance))
		}
	}

	// Column-center, then correlate items over persons.
	for j := 0; j < nItems; j++ {
		col := mat.Col(nil, j, residuals)
		mean := stat.Mean(col, nil)
		for i := 0; i < nPersons; i++ {
			residuals.Set(i, j, residuals.At(i, j)-mean)
		}
	}

	corr := mat.NewSymDense(nItems, nil)
	stat.CorrelationMatrix(corr, residuals, nil)

	// Zero-variance residual columns produce NaN correlations; treat them
	// as uncorrelated rather than poisoning the eigensolver.
	for i := 0; i < nItems; i++ {
		for j := i; j < nItems; j++ {
			if math.IsNaN(corr.At(i, j)) {
				corr.SetSym(i, j, 0)
			}
		}
	}

	var eig mat.EigenSym
	if !eig.Factorize(corr, true) {
		return degeneratePCAR(nComponents), nil
	}

	ascending := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	// Sort eigenvalues descending, tracking original column order for the
	// eigenvector lookup.
	order := make([]int, len(ascending))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return ascending[order[a]] > ascending[order[b]] })

	eigenvalues := make([]float64, len(ascending))
	for rank, idx := range order {
		eigenvalues[rank] = ascending[idx]
	}

	totalVariance := 0.0
	for _, ev := range eigenvalues {
		totalVariance += math.Abs(ev)
	}
	if totalVariance == 0 {
		totalVariance = 1.0
	}

	top := eigenvalues[:nComponents]
	varianceExplained := make([]float64, nComponents)
	cumulative := make([]float64, nComponents)
	running := 0.0
	for k, ev := range top {
		varianceExplained[k] = ev / totalVariance * 100
		running += varianceExplained[k]
		cumulative[k] = running
	}

	first := eigenvalues[0]

	loadings := make([]models.ItemLoading, nItems)
	firstColumn := order[0]
	for j := 0; j < nItems; j++ {
		loadings[j] = models.ItemLoading{ItemIndex: j, Loading: vectors.At(j, firstColumn)}
	}

	return &models.PCARResult{
		Eigenvalues:             append([]float64(nil), top...),
		VarianceExplained:       varianceExplained,
		CumulativeVariance:      cumulative,
		FirstContrastEigenvalue: first,
		IsUnidimensional:        first < unidimensionalityThreshold,
		Loadings:                loadings,
	}, nil
}

// degeneratePCAR is the documented fallback when the eigendecomposition
// fails: one unit eigenvalue per requested component.
func degeneratePCAR(nComponents int) *models.PCARResult {
	eigenvalues := make([]float64, nComponents)
	varianceExplained := make([]float64, nComponents)
	cumulative := make([]float64, nComponents)
	running := 0.0
	for k := range eigenvalues {
		eigenvalues[k] = 1.0
		varianceExplained[k] = 100.0 / float64(nComponents)
		running += varianceExplained[k]
		cumulative[k] = running
	}
	return &models.PCARResult{
		Eigenvalues:             eigenvalues,
		VarianceExplained:       varianceExplained,
		CumulativeVariance:      cumulative,
		FirstContrastEigenvalue: 1.0,
		IsUnidimensional:        true,
		Degenerate:              true,
	}
}
