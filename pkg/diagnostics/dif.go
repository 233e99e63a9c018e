package diagnostics

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/calibrix/irt-estimation-service/pkg/irt"
	"github.com/calibrix/irt-estimation-service/pkg/models"
)

// ETS-style DIF contrast cutoffs (fixed, in logits)
const (
	difModerateCutoff = 0.43
	difLargeCutoff    = 0.64
)

// DIFOptions selects the focal and reference groups. Nil values default to
// the first two distinct group values encountered in sorted order.
type DIFOptions struct {
	FocalGroup     *float64
	ReferenceGroup *float64
}

// DIF computes per-item differential item functioning contrasts between a
// focal and a reference group. The group vector aligns with persons; NaN
// entries are ignored. Fewer than 2 distinct groups is a valid non-error
// outcome producing an empty result set.
func DIF(dense models.ResponseMatrix, groups []float64, theta []float64, itemNames []string, opts DIFOptions) ([]models.DIFResult, error) {
	nPersons, nItems := dense.Dims()
	if len(groups) != nPersons {
		return nil, models.InputError{Component: "dif", Message: "group vector length does not match person count"}
	}

	distinct := distinctSorted(groups)
	if len(distinct) < 2 {
		return []models.DIFResult{}, nil
	}

	focal := distinct[0]
	reference := distinct[1]
	if opts.FocalGroup != nil {
		focal = *opts.FocalGroup
	}
	if opts.ReferenceGroup != nil {
		reference = *opts.ReferenceGroup
	}

	var focalRows, referenceRows []int
	for i, g := range groups {
		switch {
		case models.IsMissing(g):
		case g == focal:
			focalRows = append(focalRows, i)
		case g == reference:
			referenceRows = append(referenceRows, i)
		}
	}

	normal := distuv.Normal{Mu: 0, Sigma: 1}
	results := make([]models.DIFResult, 0, nItems)

	for j := 0; j < nItems; j++ {
		focalDifficulty := groupDifficulty(dense, theta, focalRows, j)
		referenceDifficulty := groupDifficulty(dense, theta, referenceRows, j)
		contrast := focalDifficulty - referenceDifficulty

		result := models.DIFResult{
			ItemName:            itemNames[j],
			FocalDifficulty:     focalDifficulty,
			ReferenceDifficulty: referenceDifficulty,
			Contrast:            contrast,
			Classification:      classifyDIF(contrast),
		}

		if len(focalRows) > 0 && len(referenceRows) > 0 {
			se := math.Sqrt(1.0/float64(len(focalRows)) + 1.0/float64(len(referenceRows)))
			t := contrast / se
			p := 2 * (1 - normal.CDF(math.Abs(t)))
			result.SE = &se
			result.T = &t
			result.P = &p
		}

		results = append(results, result)
	}

	return results, nil
}

// groupDifficulty estimates one item's difficulty within a subgroup:
// the subgroup's mean ability offset by the logit of its clamped mean
// response proportion.
func groupDifficulty(dense models.ResponseMatrix, theta []float64, rows []int, item int) float64 {
	var responses, thetas []float64
	for _, i := range rows {
		if !models.IsMissing(dense[i][item]) {
			responses = append(responses, dense[i][item])
			thetas = append(thetas, theta[i])
		}
	}
	if len(responses) == 0 {
		return 0.0
	}

	meanResponse := stat.Mean(responses, nil)
	maxResponse := responses[0]
	for _, r := range responses {
		if r > maxResponse {
			maxResponse = r
		}
	}
	meanTheta := stat.Mean(thetas, nil)

	if maxResponse == 0 {
		return meanTheta
	}

	return meanTheta - irt.Logit(meanResponse/maxResponse)
}

func classifyDIF(contrast float64) models.DIFClassification {
	abs := math.Abs(contrast)
	switch {
	case abs < difModerateCutoff:
		return models.DIFNegligible
	case abs < difLargeCutoff:
		return models.DIFModerate
	default:
		return models.DIFLarge
	}
}

func distinctSorted(values []float64) []float64 {
	seen := make(map[float64]bool)
	var out []float64
	for _, v := range values {
		if models.IsMissing(v) || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	// Insertion sort keeps "first two distinct values" deterministic on the
	// sorted scale regardless of person order.
	for i := 1; i < len(out); i++ {
		for k := i; k > 0 && out[k] < out[k-1]; k-- {
			out[k], out[k-1] = out[k-1], out[k]
		}
	}
	return out
}
