// Package series prepares raw per-year citation counts for state-space
// estimation: a sorted year grid, exposure fractions annualizing partial
// final years, empirical rates, and log-transformed observations.
package series

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"time"
)

// minExposure guards the annualization divide when a capture instant falls
// almost exactly on a year boundary.
const minExposure = 1e-6

// Series is one paper's prepared citation history. All slices share one
// length and are index-aligned by year; an empty series carries no years
// and every derived sequence is empty. Values are never mutated after
// Prepare returns.
type Series struct {
	Years     []int     // observed years, strictly increasing
	Counts    []float64 // citations per year, as captured
	Exposure  []float64 // observed fraction of each year, (0, 1]
	Empirical []float64 // annualized rate: count / exposure
	Z         []float64 // log(empirical + pseudocount), filter input
}

// Len returns the number of observed years.
func (s *Series) Len() int { return len(s.Years) }

// Empty reports whether the series carries no observations.
func (s *Series) Empty() bool { return len(s.Years) == 0 }

// Prepare builds a Series from a raw year-to-count mapping and the capture
// instant. Year keys must parse as decimal integers; a malformed key aborts
// the item. An empty mapping is valid and yields an all-empty series.
//
// Every year has exposure 1.0 except the final year when it equals the
// capture year, which gets the elapsed fraction of that year (falling back
// to 1.0 if the fraction leaves (0, 1]). The pseudocount stabilizes the log
// transform for zero-count years and must be positive.
func Prepare(citations map[string]float64, capturedAt time.Time, pseudocount float64) (*Series, error) {
	if !(pseudocount > 0) {
		return nil, fmt.Errorf("pseudocount must be positive, got %g", pseudocount)
	}

	if len(citations) == 0 {
		return &Series{}, nil
	}

	byYear := make(map[int]float64, len(citations))
	for key, count := range citations {
		year, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("malformed year key %q: %w", key, err)
		}
		byYear[year] = count
	}

	years := make([]int, 0, len(byYear))
	for year := range byYear {
		years = append(years, year)
	}
	slices.Sort(years)

	n := len(years)
	s := &Series{
		Years:     years,
		Counts:    make([]float64, n),
		Exposure:  make([]float64, n),
		Empirical: make([]float64, n),
		Z:         make([]float64, n),
	}

	for i, year := range years {
		s.Counts[i] = byYear[year]
		s.Exposure[i] = 1.0
	}
	if years[n-1] == capturedAt.Year() {
		s.Exposure[n-1] = ExposureFraction(capturedAt)
	}

	for i := range years {
		s.Empirical[i] = s.Counts[i] / math.Max(s.Exposure[i], minExposure)
		s.Z[i] = math.Log(s.Empirical[i] + pseudocount)
	}

	return s, nil
}

// ExposureFraction returns the fraction of the capture year elapsed at the
// capture instant, in the instant's own location. Fractions outside (0, 1]
// fall back to 1.0, which treats an instant recorded exactly on a year
// boundary as a fully observed year.
func ExposureFraction(capturedAt time.Time) float64 {
	year := capturedAt.Year()
	loc := capturedAt.Location()

	yearStart := time.Date(year, 1, 1, 0, 0, 0, 0, loc)
	nextStart := time.Date(year+1, 1, 1, 0, 0, 0, 0, loc)

	fraction := capturedAt.Sub(yearStart).Seconds() / nextStart.Sub(yearStart).Seconds()
	if !(fraction > 0 && fraction <= 1) {
		return 1.0
	}
	return fraction
}
