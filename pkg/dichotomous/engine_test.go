package dichotomous

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/calibrix/irt-estimation-service/pkg/irt"
	"github.com/calibrix/irt-estimation-service/pkg/models"
)

func quietConfig() *Config {
	config := NewConfig()
	config.Set("logging.level", "error")
	return config
}

// simulateBinary draws a nPersons x nItems Rasch response matrix with
// theta ~ N(0,1) and the given item difficulties.
func simulateBinary(seed int64, nPersons int, difficulties []float64) models.ResponseMatrix {
	rng := rand.New(rand.NewSource(seed))
	data := make(models.ResponseMatrix, nPersons)
	for i := range data {
		theta := rng.NormFloat64()
		data[i] = make([]float64, len(difficulties))
		for j, b := range difficulties {
			if rng.Float64() < irt.Probability(theta, b, 1.0, 0.0) {
				data[i][j] = 1.0
			}
		}
	}
	return data
}

func randomDifficulties(seed int64, n int) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.NormFloat64()
	}
	return out
}

func TestFit_OnePL(t *testing.T) {
	data := simulateBinary(42, 100, randomDifficulties(7, 10))

	engine := NewEngine(quietConfig(), nil)
	result, err := engine.Fit(data, models.OnePL, nil)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	if !result.Converged {
		t.Error("1PL fit should always converge")
	}
	if result.RunID == "" {
		t.Error("result must carry a run ID")
	}
	if len(result.ItemParameters.Difficulty) != 10 {
		t.Fatalf("expected 10 difficulties, got %d", len(result.ItemParameters.Difficulty))
	}
	for j := 0; j < 10; j++ {
		if result.ItemParameters.Discrimination[j] != 1.0 {
			t.Errorf("item %d: 1PL discrimination must be exactly 1.0, got %f", j, result.ItemParameters.Discrimination[j])
		}
		if result.ItemParameters.Guessing[j] != 0.0 {
			t.Errorf("item %d: 1PL guessing must be exactly 0.0, got %f", j, result.ItemParameters.Guessing[j])
		}
		if math.IsNaN(result.ItemParameters.Difficulty[j]) {
			t.Errorf("item %d: NaN difficulty", j)
		}
	}
	if len(result.Abilities.Theta) != 100 {
		t.Errorf("expected 100 abilities, got %d", len(result.Abilities.Theta))
	}
	if result.ModelFit.NParameters != 10 {
		t.Errorf("1PL parameter count = %d, want 10", result.ModelFit.NParameters)
	}
	if result.ModelFit.LogLikelihood >= 0 {
		t.Errorf("log-likelihood %f should be negative", result.ModelFit.LogLikelihood)
	}
}

func TestFit_DifficultyCenteredAndOrdered(t *testing.T) {
	// Items span easy to hard; recovered difficulties must be mean-centered
	// and preserve the generating order.
	trueDifficulty := []float64{-2.0, -1.0, 0.0, 1.0, 2.0}
	data := simulateBinary(11, 500, trueDifficulty)

	engine := NewEngine(quietConfig(), nil)
	result, err := engine.Fit(data, models.OnePL, nil)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	b := result.ItemParameters.Difficulty
	mean := 0.0
	for _, v := range b {
		mean += v
	}
	mean /= float64(len(b))
	if math.Abs(mean) > 1e-9 {
		t.Errorf("difficulties not centered: mean %f", mean)
	}
	for j := 1; j < len(b); j++ {
		if b[j] <= b[j-1] {
			t.Errorf("difficulty order not recovered: b[%d]=%f <= b[%d]=%f", j, b[j], j-1, b[j-1])
		}
	}
}

func TestFit_TwoPL(t *testing.T) {
	data := simulateBinary(23, 200, randomDifficulties(5, 8))

	config := quietConfig()
	config.Set("bootstrap.enabled", false)
	engine := NewEngine(config, nil)
	result, err := engine.Fit(data, models.TwoPL, nil)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	if result.ModelFit.NParameters != 16 {
		t.Errorf("2PL parameter count = %d, want 16", result.ModelFit.NParameters)
	}
	for j, a := range result.ItemParameters.Discrimination {
		if a <= 0 || math.IsNaN(a) || math.IsInf(a, 0) {
			t.Errorf("item %d: invalid discrimination %f", j, a)
		}
		if result.ItemParameters.Guessing[j] != 0.0 {
			t.Errorf("item %d: 2PL guessing must stay 0, got %f", j, result.ItemParameters.Guessing[j])
		}
	}
}

func TestFit_ThreePL(t *testing.T) {
	data := simulateBinary(31, 300, randomDifficulties(9, 6))

	config := quietConfig()
	config.Set("bootstrap.enabled", false)
	engine := NewEngine(config, nil)
	result, err := engine.Fit(data, models.ThreePL, nil)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	if result.ModelFit.NParameters != 18 {
		t.Errorf("3PL parameter count = %d, want 18", result.ModelFit.NParameters)
	}
	for j, c := range result.ItemParameters.Guessing {
		if c < 0 || c >= 1 || math.IsNaN(c) {
			t.Errorf("item %d: guessing %f outside [0,1)", j, c)
		}
	}
}

func TestFit_ZeroVarianceItem(t *testing.T) {
	// A column everyone answers correctly must not panic or produce
	// non-finite parameters.
	data := simulateBinary(13, 50, []float64{-0.5, 0.5, 0.0})
	for i := range data {
		data[i][2] = 1.0
	}

	config := quietConfig()
	config.Set("bootstrap.enabled", false)
	engine := NewEngine(config, nil)
	result, err := engine.Fit(data, models.OnePL, nil)
	if err != nil {
		t.Fatalf("Fit failed on zero-variance item: %v", err)
	}
	for j, b := range result.ItemParameters.Difficulty {
		if math.IsNaN(b) || math.IsInf(b, 0) {
			t.Errorf("item %d: non-finite difficulty %f", j, b)
		}
	}
}

func TestFit_MissingResponsesScoredIncorrect(t *testing.T) {
	complete := models.ResponseMatrix{
		{1, 0, 1},
		{0, 0, 1},
		{1, 1, 1},
		{0, 1, 0},
	}
	withMissing := complete.Clone()
	withMissing[1][0] = math.NaN()

	zeroed := complete.Clone()
	zeroed[1][0] = 0

	config := quietConfig()
	config.Set("bootstrap.enabled", false)
	engine := NewEngine(config, nil)

	a, err := engine.Fit(withMissing, models.OnePL, nil)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	b, err := engine.Fit(zeroed, models.OnePL, nil)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	for j := range a.ItemParameters.Difficulty {
		if a.ItemParameters.Difficulty[j] != b.ItemParameters.Difficulty[j] {
			t.Errorf("missing cell not scored as 0: item %d differs (%f vs %f)",
				j, a.ItemParameters.Difficulty[j], b.ItemParameters.Difficulty[j])
		}
	}
}

func TestFit_InputValidation(t *testing.T) {
	engine := NewEngine(quietConfig(), nil)

	tests := []struct {
		name string
		data models.ResponseMatrix
	}{
		{"empty", models.ResponseMatrix{}},
		{"single_item", models.ResponseMatrix{{1}, {0}}},
		{"ragged", models.ResponseMatrix{{1, 0}, {1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Fit(tt.data, models.OnePL, nil)
			var inputErr models.InputError
			if !errors.As(err, &inputErr) {
				t.Errorf("expected InputError, got %v", err)
			}
		})
	}
}

func TestFit_UnsupportedModel(t *testing.T) {
	data := simulateBinary(3, 20, []float64{0, 0})
	engine := NewEngine(quietConfig(), nil)

	_, err := engine.Fit(data, models.ModelType("GRM"), nil)
	var unsupported models.UnsupportedModelError
	if !errors.As(err, &unsupported) {
		t.Errorf("expected UnsupportedModelError, got %v", err)
	}
}

func TestFit_InformationCriteria(t *testing.T) {
	data := simulateBinary(17, 100, randomDifficulties(21, 10))

	config := quietConfig()
	config.Set("bootstrap.enabled", false)
	engine := NewEngine(config, nil)
	result, err := engine.Fit(data, models.OnePL, nil)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	fit := result.ModelFit
	k := float64(fit.NParameters)
	wantAIC := 2*k - 2*fit.LogLikelihood
	wantBIC := k*math.Log(float64(fit.NPersons)) - 2*fit.LogLikelihood
	if math.Abs(fit.AIC-wantAIC) > 1e-9 {
		t.Errorf("AIC = %f, want %f", fit.AIC, wantAIC)
	}
	if math.Abs(fit.BIC-wantBIC) > 1e-9 {
		t.Errorf("BIC = %f, want %f", fit.BIC, wantBIC)
	}
	// ln(100) > 2, so BIC penalizes harder than AIC here.
	if fit.BIC <= fit.AIC {
		t.Errorf("BIC %f should exceed AIC %f for 100 persons", fit.BIC, fit.AIC)
	}
}

func TestFit_BootstrapStandardErrors(t *testing.T) {
	data := simulateBinary(29, 150, randomDifficulties(33, 5))

	engine := NewEngine(quietConfig(), nil)
	result, err := engine.Fit(data, models.OnePL, nil)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	if result.ItemParameters.SEDifficulty == nil {
		t.Fatal("expected bootstrap difficulty standard errors")
	}
	for j, se := range result.ItemParameters.SEDifficulty {
		if se <= 0 || math.IsNaN(se) {
			t.Errorf("item %d: invalid SE %f", j, se)
		}
	}
}

func TestFit_ItemNames(t *testing.T) {
	data := simulateBinary(5, 30, []float64{-0.5, 0.5})
	config := quietConfig()
	config.Set("bootstrap.enabled", false)
	engine := NewEngine(config, nil)

	named, err := engine.Fit(data, models.OnePL, []string{"Q1", "Q2"})
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if named.ItemParameters.Names[0] != "Q1" || named.ItemParameters.Names[1] != "Q2" {
		t.Errorf("supplied names not preserved: %v", named.ItemParameters.Names)
	}

	defaulted, err := engine.Fit(data, models.OnePL, nil)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if defaulted.ItemParameters.Names[0] != "Item_1" {
		t.Errorf("expected generated Item_1 name, got %q", defaulted.ItemParameters.Names[0])
	}
}

func TestFit_ProgressEvents(t *testing.T) {
	data := simulateBinary(2, 40, []float64{-1, 0, 1})
	sink := models.NewChannelSink(16)
	config := quietConfig()
	config.Set("bootstrap.enabled", false)
	engine := NewEngine(config, sink)

	if _, err := engine.Fit(data, models.OnePL, nil); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	var events []models.ProgressEvent
	for {
		select {
		case ev := <-sink.C:
			events = append(events, ev)
			continue
		default:
		}
		break
	}

	if len(events) < 2 {
		t.Fatalf("expected start and completion events, got %d", len(events))
	}
	runID := events[0].RunID
	if runID == "" {
		t.Error("events must carry a run ID")
	}
	for _, ev := range events {
		if ev.RunID != runID {
			t.Errorf("mixed run IDs in one fit: %q vs %q", ev.RunID, runID)
		}
	}
}
