// Package visualization shapes already-fitted parameter summaries into
// plottable coordinate series. Builders never re-estimate anything; they
// work from the stored records a persistence layer re-hydrates.
package visualization

import (
	"gonum.org/v1/gonum/floats"

	"github.com/calibrix/irt-estimation-service/pkg/irt"
	"github.com/calibrix/irt-estimation-service/pkg/models"
)

const (
	// ThetaGridPoints is the fixed curve resolution over [GridMin, GridMax]
	ThetaGridPoints = 81

	// GridMin and GridMax bound every curve's theta axis
	GridMin = -4.0
	GridMax = 4.0
)

// ItemSummary is the stored per-item parameter record the builders accept.
// Dichotomous items carry difficulty/discrimination/guessing; polytomous
// items carry difficulty and thresholds.
type ItemSummary struct {
	Name           string    `json:"name"`
	Difficulty     float64   `json:"difficulty"`
	Discrimination float64   `json:"discrimination,omitempty"`
	Guessing       float64   `json:"guessing,omitempty"`
	Thresholds     []float64 `json:"thresholds,omitempty"`
}

// PersonSummary is the stored per-person ability record
type PersonSummary struct {
	ID    string  `json:"id"`
	Theta float64 `json:"theta"`
}

// CurvePoint is one (theta, probability) coordinate
type CurvePoint struct {
	Theta       float64 `json:"theta"`
	Probability float64 `json:"probability"`
}

// InfoPoint is one (theta, information) coordinate
type InfoPoint struct {
	Theta       float64 `json:"theta"`
	Information float64 `json:"information"`
}

// ICCCurve is one item's characteristic curve
type ICCCurve struct {
	ItemName string       `json:"item_name"`
	Data     []CurvePoint `json:"data"`
}

// CategoryCurve is one (item, category) probability curve
type CategoryCurve struct {
	ItemName string       `json:"item_name"`
	Category int          `json:"category"`
	Data     []CurvePoint `json:"data"`
}

// InformationFunctions holds per-item and summed test information
type InformationFunctions struct {
	ItemInformation []ItemInformationCurve `json:"item_information"`
	TestInformation []InfoPoint            `json:"test_information"`
}

// ItemInformationCurve is one item's information function
type ItemInformationCurve struct {
	ItemName string      `json:"item_name"`
	Data     []InfoPoint `json:"data"`
}

func thetaGrid() []float64 {
	grid := make([]float64, ThetaGridPoints)
	floats.Span(grid, GridMin, GridMax)
	return grid
}

// ICCCurves builds item characteristic curves over the fixed theta grid.
// Items with a zero discrimination default to 1.0 (stored 1PL records omit
// the field).
func ICCCurves(items []ItemSummary) ([]ICCCurve, error) {
	if len(items) == 0 {
		return nil, models.InsufficientDataError{Builder: "icc", Message: "no stored item parameters"}
	}

	grid := thetaGrid()
	curves := make([]ICCCurve, len(items))
	for idx, item := range items {
		a := item.Discrimination
		if a == 0 {
			a = 1.0
		}
		data := make([]CurvePoint, len(grid))
		for g, theta := range grid {
			data[g] = CurvePoint{
				Theta:       theta,
				Probability: irt.Probability(theta, item.Difficulty, a, item.Guessing),
			}
		}
		curves[idx] = ICCCurve{ItemName: item.Name, Data: data}
	}
	return curves, nil
}

// Information builds per-item and test information functions over the grid
func Information(items []ItemSummary) (*InformationFunctions, error) {
	if len(items) == 0 {
		return nil, models.InsufficientDataError{Builder: "information", Message: "no stored item parameters"}
	}

	grid := thetaGrid()
	test := make([]InfoPoint, len(grid))
	for g, theta := range grid {
		test[g] = InfoPoint{Theta: theta}
	}

	itemCurves := make([]ItemInformationCurve, len(items))
	for idx, item := range items {
		a := item.Discrimination
		if a == 0 {
			a = 1.0
		}
		data := make([]InfoPoint, len(grid))
		for g, theta := range grid {
			info := irt.ItemInformation(theta, item.Difficulty, a, item.Guessing)
			data[g] = InfoPoint{Theta: theta, Information: info}
			test[g].Information += info
		}
		itemCurves[idx] = ItemInformationCurve{ItemName: item.Name, Data: data}
	}

	return &InformationFunctions{ItemInformation: itemCurves, TestInformation: test}, nil
}

// CategoryCurves builds category probability curves for polytomous items.
// selectedItem filters to one item by name; empty means all items.
func CategoryCurves(items []ItemSummary, selectedItem string) ([]CategoryCurve, error) {
	if len(items) == 0 {
		return nil, models.InsufficientDataError{Builder: "category_curves", Message: "no stored item parameters"}
	}

	grid := thetaGrid()
	var curves []CategoryCurve
	for _, item := range items {
		if selectedItem != "" && item.Name != selectedItem {
			continue
		}
		if len(item.Thresholds) == 0 {
			return nil, models.InsufficientDataError{Builder: "category_curves", Message: "item " + item.Name + " has no stored thresholds"}
		}
		nCategories := len(item.Thresholds) + 1
		for k := 0; k < nCategories; k++ {
			data := make([]CurvePoint, len(grid))
			for g, theta := range grid {
				data[g] = CurvePoint{
					Theta:       theta,
					Probability: irt.CategoryProbability(theta, item.Difficulty, item.Thresholds, k),
				}
			}
			curves = append(curves, CategoryCurve{ItemName: item.Name, Category: k, Data: data})
		}
	}
	return curves, nil
}
