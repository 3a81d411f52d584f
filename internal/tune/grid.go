package tune

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Default search bounds, in log space. Process variance candidates span
// roughly [0.05, 2.7] and overdispersion candidates roughly [0.37, 7.4].
const (
	processLogMin  = -3
	processLogMax  = 1
	overdispLogMin = -1
	overdispLogMax = 2
)

// Grid holds the candidate axes of a hyperparameter search. Cells are
// addressed row-major: process variance outer, overdispersion inner.
type Grid struct {
	ProcessVar     []float64
	Overdispersion []float64
}

// NewGrid builds the default log-spaced axes with n points each.
func NewGrid(n int) Grid {
	return Grid{
		ProcessVar:     logSpace(processLogMin, processLogMax, n),
		Overdispersion: logSpace(overdispLogMin, overdispLogMax, n),
	}
}

// Cells reports the number of (q, phi) pairs the grid spans.
func (g Grid) Cells() int {
	return len(g.ProcessVar) * len(g.Overdispersion)
}

// logSpace returns n values evenly spaced in log space over [lo, hi],
// exponentiated. A one-point grid collapses to exp(lo), matching the
// left endpoint. floats.Span requires at least two points, so the
// single-point case is handled here.
func logSpace(lo, hi float64, n int) []float64 {
	switch {
	case n <= 0:
		return nil
	case n == 1:
		return []float64{math.Exp(lo)}
	}
	dst := floats.Span(make([]float64, n), lo, hi)
	for i, v := range dst {
		dst[i] = math.Exp(v)
	}
	return dst
}
