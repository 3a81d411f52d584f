// Package tune selects filter hyperparameters by exhaustive grid
// search, scoring each (process variance, overdispersion) pair by the
// summed filter log-likelihood over every series with enough history.
package tune

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/roach88/citerate/internal/config"
	"github.com/roach88/citerate/internal/corpus"
	"github.com/roach88/citerate/internal/kalman"
	"github.com/roach88/citerate/internal/series"
)

// DefaultMinObservations is the minimum series length considered during
// tuning. Shorter series carry no information about temporal dynamics.
const DefaultMinObservations = 2

// Tuner sweeps hyperparameter candidates over a prepared corpus.
type Tuner struct {
	MinCount        float64
	VarianceFloor   float64
	MinObservations int
	GridSize        int
	IncludeGrid     bool
	Workers         int

	log *slog.Logger
}

// NewTuner builds a tuner from run configuration. A nil logger falls
// back to slog.Default.
func NewTuner(cfg config.Config, log *slog.Logger) *Tuner {
	if log == nil {
		log = slog.Default()
	}
	return &Tuner{
		MinCount:        cfg.MinCount,
		VarianceFloor:   cfg.VarianceFloor,
		MinObservations: DefaultMinObservations,
		GridSize:        cfg.GridSize,
		Workers:         cfg.Workers,
		log:             log,
	}
}

// Optimal is the winning grid cell of a search.
type Optimal struct {
	ProcessVar     float64 `json:"process_var"`
	Overdispersion float64 `json:"overdispersion"`
	LogLikelihood  float64 `json:"log_likelihood"`
}

// GridScores carries the full score surface for diagnostics. Rows
// follow the process-variance axis, columns the overdispersion axis.
type GridScores struct {
	ProcessVar     []float64   `json:"process_var"`
	Overdispersion []float64   `json:"overdispersion"`
	LogLikelihood  [][]float64 `json:"log_likelihood"`
}

// Result is the tuning report written for a corpus sweep.
type Result struct {
	InputFile string      `json:"input_file"`
	Papers    int         `json:"n_papers"`
	Eligible  int         `json:"n_papers_with_2plus_years"`
	MinCount  float64     `json:"min_count"`
	GridSize  int         `json:"n_grid"`
	Optimal   Optimal     `json:"optimal"`
	Grid      *GridScores `json:"grid,omitempty"`
}

// GridResult holds the evaluated score grid and its best cell.
type GridResult struct {
	Grid   Grid
	Scores [][]float64
	Best   Optimal
}

// Run prepares every paper in the document, sweeps the default grid at
// the configured resolution, and assembles the tuning report. Papers
// that cannot be prepared are logged and skipped; an unparsable capture
// timestamp aborts the run. Scoring never reads paper identity, so
// untitled papers still contribute their series.
func (t *Tuner) Run(doc *corpus.Document) (*Result, error) {
	capturedAt, err := doc.CaptureTime()
	if err != nil {
		return nil, err
	}

	var (
		papers   int
		eligible []*series.Series
	)
	for i := range doc.Papers {
		p := &doc.Papers[i]
		if len(p.CitationsByYear) == 0 {
			continue
		}
		s, err := series.Prepare(p.CitationsByYear, capturedAt, t.MinCount)
		if err != nil {
			t.log.Warn("paper skipped", "index", i, "title", p.Title, "err", err)
			continue
		}
		papers++
		if s.Len() < t.MinObservations {
			continue
		}
		eligible = append(eligible, s)
	}
	if len(eligible) == 0 {
		t.log.Warn("no series meet the length threshold, scores will be vacuous",
			"min_observations", t.MinObservations)
	}

	grid := NewGrid(t.GridSize)
	gr, err := t.Search(eligible, grid)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Papers:   papers,
		Eligible: len(eligible),
		MinCount: t.MinCount,
		GridSize: t.GridSize,
		Optimal:  gr.Best,
	}
	if t.IncludeGrid {
		res.Grid = &GridScores{
			ProcessVar:     grid.ProcessVar,
			Overdispersion: grid.Overdispersion,
			LogLikelihood:  gr.Scores,
		}
	}
	return res, nil
}

// Search evaluates every cell of the grid against the prepared series.
// Cells are independent and fan out across workers; the argmax scan
// stays sequential so ties resolve to the first cell in row-major
// order (process variance outer, overdispersion inner).
func (t *Tuner) Search(eligible []*series.Series, grid Grid) (*GridResult, error) {
	nq, np := len(grid.ProcessVar), len(grid.Overdispersion)
	if nq == 0 || np == 0 {
		return nil, errors.New("hyperparameter grid is empty")
	}

	// Observation variances depend on the overdispersion alone, so each
	// column's sequences are shared across the process-variance axis.
	varsByPhi := make([][][]float64, np)
	for j, phi := range grid.Overdispersion {
		noise := kalman.OverdispersedNoise(phi, t.MinCount, t.VarianceFloor)
		varsByPhi[j] = make([][]float64, len(eligible))
		for k, s := range eligible {
			varsByPhi[j][k] = noise.Variances(s.Empirical)
		}
	}

	cells := nq * np
	scores := make([]float64, cells)
	errs := make([]error, cells)

	workers := min(t.Workers, cells)
	if workers < 1 {
		workers = 1
	}
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				scores[c], errs[c] = t.score(eligible, grid.ProcessVar[c/np], varsByPhi[c%np])
			}
		}()
	}
	for c := 0; c < cells; c++ {
		jobs <- c
	}
	close(jobs)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	rows := make([][]float64, nq)
	best := Optimal{LogLikelihood: math.Inf(-1)}
	for i, q := range grid.ProcessVar {
		rows[i] = scores[i*np : (i+1)*np]
		for j, phi := range grid.Overdispersion {
			if s := rows[i][j]; s > best.LogLikelihood {
				best = Optimal{ProcessVar: q, Overdispersion: phi, LogLikelihood: s}
			}
		}
	}
	return &GridResult{Grid: grid, Scores: rows, Best: best}, nil
}

// score sums the filter log-likelihood of every series at one cell.
func (t *Tuner) score(eligible []*series.Series, processVar float64, vars [][]float64) (float64, error) {
	var total float64
	for k, s := range eligible {
		r, err := kalman.Filter(s.Z, processVar, vars[k], kalman.DefaultInit(s.Z))
		if err != nil {
			return 0, fmt.Errorf("score series %d: %w", k, err)
		}
		total += r.LogLik
	}
	return total, nil
}
