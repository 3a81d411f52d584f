// Package rates runs the citation-rate analysis pipeline: prepared series
// through the Kalman filter and smoother, back-transformed to rate space,
// optionally extended by a Monte-Carlo forecast.
package rates

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/roach88/citerate/internal/config"
	"github.com/roach88/citerate/internal/corpus"
	"github.com/roach88/citerate/internal/kalman"
	"github.com/roach88/citerate/internal/series"
)

// ForecastModelName identifies the forecast distribution in report
// assumption blocks.
const ForecastModelName = "local_level_poisson"

// ItemError is a per-paper failure. It aborts only its own paper; the rest
// of the corpus is still analyzed.
type ItemError struct {
	Index int
	Title string
	Err   error
}

func (e ItemError) Error() string {
	if e.Title != "" {
		return fmt.Sprintf("paper %d (%s): %v", e.Index, e.Title, e.Err)
	}
	return fmt.Sprintf("paper %d: %v", e.Index, e.Err)
}

func (e ItemError) Unwrap() error { return e.Err }

// Analyzer runs the smoothing pipeline over capture documents.
type Analyzer struct {
	cfg config.Config
	log *slog.Logger
}

// NewAnalyzer creates an analyzer with the given run configuration.
// A nil logger falls back to slog's default.
func NewAnalyzer(cfg config.Config, log *slog.Logger) *Analyzer {
	if log == nil {
		log = slog.Default()
	}
	return &Analyzer{cfg: cfg, log: log}
}

// Analyze processes every paper in doc. Papers are independent, so the
// pass fans out across a worker pool and reassembles results by paper
// index; per-paper failures come back as ItemErrors and leave the rest of
// the corpus intact. The returned error is reserved for run-fatal
// conditions, currently only an unparsable capture timestamp.
func (a *Analyzer) Analyze(doc *corpus.Document) (*Report, []ItemError, error) {
	capturedAt, err := doc.CaptureTime()
	if err != nil {
		return nil, nil, err
	}

	// One base seed per run: paper draws stay reproducible under any
	// worker interleaving because each paper derives its own source from
	// (seed, index).
	seed := a.cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	n := len(doc.Papers)
	results := make([]*PaperAnalysis, n)
	failures := make([]error, n)

	workers := min(a.cfg.Workers, n)
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i], failures[i] = a.analyzePaper(&doc.Papers[i], capturedAt, seed, i)
			}
		}()
	}
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	report := &Report{
		UserID:    doc.UserID,
		ScrapedAt: capturedAt.Format(corpus.CaptureTimeLayout),
		Model:     a.modelInfo(),
		Papers:    make([]PaperAnalysis, 0, n),
	}

	var itemErrs []ItemError
	for i := 0; i < n; i++ {
		if failures[i] != nil {
			itemErr := ItemError{Index: i, Title: doc.Papers[i].Title, Err: failures[i]}
			itemErrs = append(itemErrs, itemErr)
			a.log.Warn("paper skipped", "index", i, "title", doc.Papers[i].Title, "error", failures[i])
			continue
		}
		report.Papers = append(report.Papers, *results[i])
	}

	return report, itemErrs, nil
}

// analyzePaper runs one paper through preparation, filtering, smoothing
// and the optional forecast. index seeds the paper's private random
// source.
func (a *Analyzer) analyzePaper(paper *corpus.Paper, capturedAt time.Time, seed uint64, index int) (*PaperAnalysis, error) {
	if paper.Title == "" {
		return nil, fmt.Errorf("missing title")
	}

	if sum, mismatch := paper.TotalMismatch(); mismatch {
		a.log.Warn("citation total mismatch, using per-year counts",
			"title", paper.Title, "year_sum", sum, "total_citations", paper.TotalCitations)
	}

	s, err := series.Prepare(paper.CitationsByYear, capturedAt, a.cfg.MinCount)
	if err != nil {
		return nil, err
	}
	if s.Empty() {
		return emptyAnalysis(paper.Title), nil
	}

	obsVar := a.cfg.Noise().Variances(s.Empirical)
	filtered, err := kalman.Filter(s.Z, a.cfg.ProcessVar, obsVar, kalman.DefaultInit(s.Z))
	if err != nil {
		return nil, err
	}
	smoothed, err := kalman.Smooth(filtered)
	if err != nil {
		return nil, err
	}

	out := &PaperAnalysis{
		Title:             paper.Title,
		Years:             s.Years,
		ObservedCitations: s.Counts,
		ExposureFraction:  s.Exposure,
		EmpiricalRate:     s.Empirical,
		SmoothedLogRate:   smoothed.Mean,
		SmoothedRate:      make([]float64, s.Len()),
		SmoothedRateStd:   make([]float64, s.Len()),
	}
	for i := 0; i < s.Len(); i++ {
		out.SmoothedRate[i] = math.Exp(smoothed.Mean[i])
		out.SmoothedRateStd[i] = out.SmoothedRate[i] * math.Sqrt(smoothed.Var[i])
	}

	if a.cfg.ForecastYears > 0 {
		out.Forecast, err = a.forecastPaper(s, smoothed, seed, index)
		if err != nil {
			return nil, err
		}
	}

	return out, nil
}

// forecastPaper extends one smoothed series by the configured horizon.
// Sampling always draws through the Poisson observation model, also in
// constant-variance runs.
func (a *Analyzer) forecastPaper(s *series.Series, smoothed *kalman.SmoothResult, seed uint64, index int) (*PaperForecast, error) {
	last := kalman.State{
		Mean: smoothed.Mean[smoothed.Len()-1],
		Var:  smoothed.Var[smoothed.Len()-1],
	}
	forecaster := kalman.Forecaster{
		ProcessVar:     a.cfg.ProcessVar,
		Overdispersion: a.cfg.ObsOverdispersion,
		Pseudocount:    a.cfg.MinCount,
		Src:            rand.NewPCG(seed, uint64(index)),
	}
	steps, err := forecaster.Forecast(last, a.cfg.ForecastYears)
	if err != nil {
		return nil, err
	}

	horizon := len(steps)
	lastYear := s.Years[s.Len()-1]
	fc := &PaperForecast{
		Years:          make([]int, horizon),
		LogRateVar:     make([]float64, horizon),
		RateMedian:     make([]float64, horizon),
		RateStd:        make([]float64, horizon),
		SampledLogRate: make([]float64, horizon),
		SampledRate:    make([]float64, horizon),
		Assumptions: ForecastAssumptions{
			Model:             ForecastModelName,
			ProcessVar:        a.cfg.ProcessVar,
			ObsOverdispersion: a.cfg.ObsOverdispersion,
			MinCount:          a.cfg.MinCount,
		},
	}
	for h, step := range steps {
		fc.Years[h] = lastYear + h + 1
		fc.LogRateVar[h] = step.LogVar
		fc.RateMedian[h] = step.Median
		fc.RateStd[h] = step.Std
		fc.SampledLogRate[h] = step.SampledLog
		fc.SampledRate[h] = step.SampledRate
	}

	return fc, nil
}

// modelInfo records the variance mode for the report header.
func (a *Analyzer) modelInfo() ModelInfo {
	info := ModelInfo{
		Type:       "kalman",
		ProcessVar: a.cfg.ProcessVar,
		MinCount:   a.cfg.MinCount,
	}
	if a.cfg.ConstantVariance() {
		info.ObsVar = a.cfg.ObsVar
	} else {
		phi := a.cfg.ObsOverdispersion
		info.ObsOverdispersion = &phi
	}
	return info
}
