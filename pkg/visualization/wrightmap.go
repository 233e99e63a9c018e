package visualization

import (
	"math"

	"github.com/calibrix/irt-estimation-service/pkg/models"
)

// WrightMapBins is the fixed person histogram resolution
const WrightMapBins = 32

// PersonBin is one non-empty histogram bin of person abilities
type PersonBin struct {
	Theta float64 `json:"theta"` // bin midpoint
	Count int     `json:"count"`
}

// ItemLocation pairs an item's difficulty with its thresholds on the map
type ItemLocation struct {
	Name       string    `json:"name"`
	Difficulty float64   `json:"difficulty"`
	Thresholds []float64 `json:"thresholds"`
}

// WrightMapData is the person-item targeting map
type WrightMapData struct {
	Persons  []PersonBin    `json:"persons"`
	Items    []ItemLocation `json:"items"`
	MinLogit float64        `json:"min_logit"`
	MaxLogit float64        `json:"max_logit"`
}

// WrightMap bins person abilities into a 32-bin histogram over [-4, 4] and
// pairs it with item and threshold locations. Axis bounds expand 0.5 logits
// past the observed parameter extremes so nothing plots on the edge.
func WrightMap(items []ItemSummary, persons []PersonSummary) (*WrightMapData, error) {
	if len(items) == 0 || len(persons) == 0 {
		return nil, models.InsufficientDataError{Builder: "wright_map", Message: "need stored item parameters and person abilities"}
	}

	binWidth := (GridMax - GridMin) / float64(WrightMapBins)
	counts := make([]int, WrightMapBins)
	for _, p := range persons {
		bin := int((p.Theta - GridMin) / binWidth)
		if bin < 0 {
			bin = 0
		}
		if bin >= WrightMapBins {
			bin = WrightMapBins - 1
		}
		counts[bin]++
	}

	var bins []PersonBin
	for b, count := range counts {
		if count == 0 {
			continue
		}
		mid := GridMin + (float64(b)+0.5)*binWidth
		bins = append(bins, PersonBin{Theta: mid, Count: count})
	}

	locations := make([]ItemLocation, len(items))
	minLogit, maxLogit := GridMin, GridMax
	for idx, item := range items {
		thresholds := item.Thresholds
		if thresholds == nil {
			thresholds = []float64{}
		}
		locations[idx] = ItemLocation{
			Name:       item.Name,
			Difficulty: item.Difficulty,
			Thresholds: thresholds,
		}
		minLogit = math.Min(minLogit, item.Difficulty-0.5)
		maxLogit = math.Max(maxLogit, item.Difficulty+0.5)
		for _, t := range thresholds {
			minLogit = math.Min(minLogit, t-0.5)
			maxLogit = math.Max(maxLogit, t+0.5)
		}
	}
	for _, p := range persons {
		minLogit = math.Min(minLogit, p.Theta-0.5)
		maxLogit = math.Max(maxLogit, p.Theta+0.5)
	}

	return &WrightMapData{
		Persons:  bins,
		Items:    locations,
		MinLogit: minLogit,
		MaxLogit: maxLogit,
	}, nil
}
