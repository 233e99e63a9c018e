package models

import "fmt"

// InputError represents a malformed or insufficient response matrix.
// It is fatal to the caller: the fit does not proceed.
type InputError struct {
	Component string `json:"component"`
	Message   string `json:"message"`
}

func (e InputError) Error() string {
	return fmt.Sprintf("invalid input in %s: %s", e.Component, e.Message)
}

// UnsupportedModelError represents an unknown model type. Fatal to the caller.
type UnsupportedModelError struct {
	Model string `json:"model"`
}

func (e UnsupportedModelError) Error() string {
	return fmt.Sprintf("unsupported model type: %s", e.Model)
}

// EstimationTimeout signals that an external optimizer exceeded its time
// budget. Engines recover from it locally by falling back to the fast
// heuristic; it never propagates to the caller as a fatal error.
type EstimationTimeout struct {
	Stage   string `json:"stage"`
	Seconds int    `json:"seconds"`
}

func (e EstimationTimeout) Error() string {
	return fmt.Sprintf("%s estimation timed out after %ds", e.Stage, e.Seconds)
}

// EstimationFailure signals that an optimizer threw or produced degenerate
// output. Engines recover from it locally with a documented fallback.
type EstimationFailure struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

func (e EstimationFailure) Error() string {
	return fmt.Sprintf("estimation failed in %s: %s", e.Stage, e.Message)
}

// InsufficientDataError signals that a visualization builder was asked to
// build series from absent stored parameters. Fatal to the builder call.
type InsufficientDataError struct {
	Builder string `json:"builder"`
	Message string `json:"message"`
}

func (e InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for %s: %s", e.Builder, e.Message)
}
