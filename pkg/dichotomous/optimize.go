package dichotomous

import (
	"math"

	"gonum.org/v1/gonum/optimize"

	"github.com/calibrix/irt-estimation-service/pkg/irt"
	"github.com/calibrix/irt-estimation-service/pkg/models"
)

// optimizeItem refines one item's parameters against provisional abilities
// by minimizing the item's negative log-likelihood with Nelder-Mead.
// Discrimination is optimized on the log scale and guessing on the logit
// scale so the simplex stays inside the admissible region. Returns ok=false
// when the optimizer errors out or produces non-finite parameters.
func (e *Engine) optimizeItem(data models.ResponseMatrix, theta []float64, item int, initialB float64, withGuessing bool) (b, a, c float64, ok bool) {
	nPersons, _ := data.Dims()

	objective := func(x []float64) float64 {
		b := x[0]
		a := math.Exp(x[1])
		c := 0.0
		if withGuessing {
			c = 1.0 / (1.0 + math.Exp(-x[2]))
		}

		negLogLik := 0.0
		for i := 0; i < nPersons; i++ {
			p := irt.ClampProb(irt.Probability(theta[i], b, a, c))
			if data[i][item] == 1.0 {
				negLogLik -= math.Log(p)
			} else {
				negLogLik -= math.Log(1 - p)
			}
		}
		return negLogLik
	}

	x0 := []float64{initialB, 0.0}
	if withGuessing {
		// Start guessing near 0.1 on the logit scale.
		x0 = append(x0, irt.Logit(0.1))
	}

	problem := optimize.Problem{Func: objective}
	settings := &optimize.Settings{MajorIterations: e.config.OptimizerMaxIterations()}

	result, err := optimize.Minimize(problem, x0, settings, &optimize.NelderMead{})
	if err != nil || result == nil {
		return 0, 0, 0, false
	}

	b = result.X[0]
	a = math.Exp(result.X[1])
	c = 0.0
	if withGuessing {
		c = 1.0 / (1.0 + math.Exp(-result.X[2]))
	}

	if math.IsNaN(b) || math.IsInf(b, 0) || math.IsNaN(a) || math.IsInf(a, 0) || math.IsNaN(c) {
		return 0, 0, 0, false
	}
	return b, a, c, true
}
