// Package irt contains the response-probability primitives shared by the
// dichotomous and polytomous estimation engines and their diagnostics.
package irt

import "math"

const (
	// ExponentClamp bounds logistic exponents before calling math.Exp
	ExponentClamp = 700.0

	// ProbFloor bounds probabilities away from 0 and 1 before taking logs
	ProbFloor = 1e-10

	// VarianceFloor keeps category variances away from zero so standardized
	// residuals cannot blow up on near-deterministic responses
	VarianceFloor = 0.01

	// PropClamp bounds observed proportions before logit transforms
	PropClamp = 0.01
)

// ClampExponent restricts x to [-ExponentClamp, ExponentClamp]
func ClampExponent(x float64) float64 {
	if x > ExponentClamp {
		return ExponentClamp
	}
	if x < -ExponentClamp {
		return -ExponentClamp
	}
	return x
}

// ClampProb restricts p to [ProbFloor, 1-ProbFloor]
func ClampProb(p float64) float64 {
	if p < ProbFloor {
		return ProbFloor
	}
	if p > 1-ProbFloor {
		return 1 - ProbFloor
	}
	return p
}

// Logit transforms a proportion to the logit scale, clamping to
// [PropClamp, 1-PropClamp] first
func Logit(p float64) float64 {
	if p < PropClamp {
		p = PropClamp
	}
	if p > 1-PropClamp {
		p = 1 - PropClamp
	}
	return math.Log(p / (1 - p))
}

// Probability returns P(correct) under the 3-parameter logistic model:
//
//	P(theta) = c + (1-c) / (1 + exp(-a(theta-b)))
//
// The 1PL and 2PL models are the special cases c=0 (and a=1 for 1PL).
func Probability(theta, difficulty, discrimination, guessing float64) float64 {
	exponent := ClampExponent(discrimination * (theta - difficulty))
	return guessing + (1-guessing)/(1+math.Exp(-exponent))
}

// ItemInformation returns the Fisher information of a dichotomous item at
// theta. Returns 0 when the denominator underflows.
func ItemInformation(theta, difficulty, discrimination, guessing float64) float64 {
	p := Probability(theta, difficulty, discrimination, guessing)
	q := 1 - p

	numerator := discrimination * discrimination * (p - guessing) * (p - guessing) * q
	denominator := p * (1 - guessing) * (1 - guessing)

	if denominator < 1e-10 {
		return 0.0
	}
	return numerator / denominator
}
