package models

import (
	"fmt"
	"math"
)

// ResponseMatrix is an n_persons x n_items score matrix. Missing responses
// are represented by NaN. The matrix is treated as immutable by every
// engine: each estimation run works on the values it was given.
type ResponseMatrix [][]float64

// Dims returns (nPersons, nItems). An empty matrix has zero items.
func (m ResponseMatrix) Dims() (int, int) {
	if len(m) == 0 {
		return 0, 0
	}
	return len(m), len(m[0])
}

// Validate checks the minimal shape invariants for estimation
func (m ResponseMatrix) Validate(minItems int) error {
	nPersons, nItems := m.Dims()
	if nPersons == 0 {
		return InputError{Component: "matrix", Message: "response matrix is empty"}
	}
	if nItems < minItems {
		return InputError{
			Component: "matrix",
			Message:   fmt.Sprintf("need at least %d items, got %d", minItems, nItems),
		}
	}
	for i := 1; i < nPersons; i++ {
		if len(m[i]) != nItems {
			return InputError{
				Component: "matrix",
				Message:   fmt.Sprintf("ragged matrix: row %d has %d items, expected %d", i, len(m[i]), nItems),
			}
		}
	}
	return nil
}

// Row returns a copy of person i's responses
func (m ResponseMatrix) Row(i int) []float64 {
	out := make([]float64, len(m[i]))
	copy(out, m[i])
	return out
}

// Clone returns a deep copy of the matrix
func (m ResponseMatrix) Clone() ResponseMatrix {
	out := make(ResponseMatrix, len(m))
	for i, row := range m {
		out[i] = make([]float64, len(row))
		copy(out[i], row)
	}
	return out
}

// IsMissing reports whether a cell value is the missing sentinel
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

// CountValid returns the number of non-missing cells in the matrix
func (m ResponseMatrix) CountValid() int {
	n := 0
	for _, row := range m {
		for _, v := range row {
			if !IsMissing(v) {
				n++
			}
		}
	}
	return n
}

// ColumnValid returns the non-missing values of column j, in row order
func (m ResponseMatrix) ColumnValid(j int) []float64 {
	out := make([]float64, 0, len(m))
	for _, row := range m {
		if !IsMissing(row[j]) {
			out = append(out, row[j])
		}
	}
	return out
}

// DefaultItemNames generates Item_1..Item_n labels
func DefaultItemNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("Item_%d", i+1)
	}
	return names
}

// DefaultPersonIDs generates Person_1..Person_n identifiers
func DefaultPersonIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("Person_%d", i+1)
	}
	return ids
}
