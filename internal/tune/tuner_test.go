package tune

import (
	"bytes"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/citerate/internal/config"
	"github.com/roach88/citerate/internal/corpus"
	"github.com/roach88/citerate/internal/kalman"
	"github.com/roach88/citerate/internal/series"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func tuneDocument() *corpus.Document {
	return &corpus.Document{
		UserID:    "u-9",
		ScrapedAt: "2022-07-01T12:00:00Z",
		Papers: []corpus.Paper{
			{Title: "Long History", CitationsByYear: map[string]float64{"2018": 1, "2019": 4, "2020": 9, "2021": 12}},
			{Title: "Short History", CitationsByYear: map[string]float64{"2021": 2}},
			{Title: "No Citations", CitationsByYear: map[string]float64{}},
			{Title: "Bad Year", CitationsByYear: map[string]float64{"20xx": 3}},
		},
	}
}

func TestGridAxes(t *testing.T) {
	g := NewGrid(5)

	require.Len(t, g.ProcessVar, 5)
	require.Len(t, g.Overdispersion, 5)
	assert.Equal(t, 25, g.Cells())

	assert.InDelta(t, math.Exp(-3), g.ProcessVar[0], 1e-12)
	assert.InDelta(t, math.Exp(1), g.ProcessVar[4], 1e-12)
	assert.InDelta(t, math.Exp(-1), g.Overdispersion[0], 1e-12)
	assert.InDelta(t, math.Exp(2), g.Overdispersion[4], 1e-12)

	for i := 1; i < 5; i++ {
		assert.Greater(t, g.ProcessVar[i], g.ProcessVar[i-1])
		assert.Greater(t, g.Overdispersion[i], g.Overdispersion[i-1])
	}
}

func TestGridSinglePoint(t *testing.T) {
	g := NewGrid(1)

	require.Equal(t, 1, g.Cells())
	assert.InDelta(t, math.Exp(-3), g.ProcessVar[0], 1e-12)
	assert.InDelta(t, math.Exp(-1), g.Overdispersion[0], 1e-12)
}

func TestGridZeroPoints(t *testing.T) {
	g := NewGrid(0)
	assert.Equal(t, 0, g.Cells())

	tuner := NewTuner(config.Defaults(), discardLogger())
	_, err := tuner.Search(nil, g)
	require.Error(t, err)
}

func TestSearchSinglePointMatchesDirectFilter(t *testing.T) {
	cfg := config.Defaults()
	tuner := NewTuner(cfg, discardLogger())

	eligible := []*series.Series{
		{Empirical: []float64{0, 3, 5}, Z: []float64{math.Log(0.5), math.Log(3.5), math.Log(5.5)}},
		{Empirical: []float64{2, 2}, Z: []float64{math.Log(2.5), math.Log(2.5)}},
	}

	grid := NewGrid(1)
	res, err := tuner.Search(eligible, grid)
	require.NoError(t, err)

	q, phi := math.Exp(-3), math.Exp(-1)
	noise := kalman.OverdispersedNoise(phi, cfg.MinCount, cfg.VarianceFloor)
	var want float64
	for _, s := range eligible {
		fr, err := kalman.Filter(s.Z, q, noise.Variances(s.Empirical), kalman.DefaultInit(s.Z))
		require.NoError(t, err)
		want += fr.LogLik
	}

	assert.InDelta(t, q, res.Best.ProcessVar, 1e-12)
	assert.InDelta(t, phi, res.Best.Overdispersion, 1e-12)
	assert.InDelta(t, want, res.Best.LogLikelihood, 1e-12)

	require.Len(t, res.Scores, 1)
	require.Len(t, res.Scores[0], 1)
	assert.Equal(t, res.Best.LogLikelihood, res.Scores[0][0])
}

func TestSearchTieBreakIsRowMajor(t *testing.T) {
	tuner := NewTuner(config.Defaults(), discardLogger())
	grid := NewGrid(3)

	// With no eligible series every cell scores zero, so the winner must
	// be the first cell scanned.
	res, err := tuner.Search(nil, grid)
	require.NoError(t, err)

	assert.Equal(t, grid.ProcessVar[0], res.Best.ProcessVar)
	assert.Equal(t, grid.Overdispersion[0], res.Best.Overdispersion)
	assert.Equal(t, 0.0, res.Best.LogLikelihood)
}

func TestRunCountsAndOptimal(t *testing.T) {
	cfg := config.Defaults()
	cfg.GridSize = 4
	cfg.Workers = 2

	res, err := NewTuner(cfg, discardLogger()).Run(tuneDocument())
	require.NoError(t, err)

	// "No Citations" and the unpreparable "Bad Year" are excluded from
	// the paper count; only "Long History" clears the length threshold.
	assert.Equal(t, 2, res.Papers)
	assert.Equal(t, 1, res.Eligible)
	assert.Equal(t, 0.5, res.MinCount)
	assert.Equal(t, 4, res.GridSize)
	assert.Nil(t, res.Grid)

	assert.False(t, math.IsInf(res.Optimal.LogLikelihood, 0))
	assert.False(t, math.IsNaN(res.Optimal.LogLikelihood))
	assert.Greater(t, res.Optimal.ProcessVar, 0.0)
	assert.Greater(t, res.Optimal.Overdispersion, 0.0)
}

func TestRunDeterministicAcrossWorkers(t *testing.T) {
	cfg := config.Defaults()
	cfg.GridSize = 6
	cfg.Workers = 1

	serial := NewTuner(cfg, discardLogger())
	serial.IncludeGrid = true
	first, err := serial.Run(tuneDocument())
	require.NoError(t, err)

	cfg.Workers = 8
	parallel := NewTuner(cfg, discardLogger())
	parallel.IncludeGrid = true
	second, err := parallel.Run(tuneDocument())
	require.NoError(t, err)

	// Identical input and resolution must reproduce the identical
	// (q, phi, score) triple and score surface, whatever the fan-out.
	assert.Equal(t, first.Optimal, second.Optimal)
	assert.Equal(t, first.Grid, second.Grid)
}

func TestRunIncludeGrid(t *testing.T) {
	cfg := config.Defaults()
	cfg.GridSize = 3

	tuner := NewTuner(cfg, discardLogger())
	tuner.IncludeGrid = true

	res, err := tuner.Run(tuneDocument())
	require.NoError(t, err)

	require.NotNil(t, res.Grid)
	assert.Len(t, res.Grid.ProcessVar, 3)
	assert.Len(t, res.Grid.Overdispersion, 3)
	require.Len(t, res.Grid.LogLikelihood, 3)
	for _, row := range res.Grid.LogLikelihood {
		assert.Len(t, row, 3)
	}
}

func TestRunIncludesUntitledPapers(t *testing.T) {
	// Scoring never reads titles, so an untitled paper with enough
	// history still counts toward the sweep.
	doc := tuneDocument()
	doc.Papers = append(doc.Papers, corpus.Paper{
		CitationsByYear: map[string]float64{"2020": 1, "2021": 2},
	})

	cfg := config.Defaults()
	cfg.GridSize = 2

	res, err := NewTuner(cfg, discardLogger()).Run(doc)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Papers)
	assert.Equal(t, 2, res.Eligible)
}

func TestRunLogsUnpreparablePapers(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	cfg := config.Defaults()
	cfg.GridSize = 2

	_, err := NewTuner(cfg, logger).Run(tuneDocument())
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "paper skipped")
	assert.Contains(t, buf.String(), "Bad Year")
}

func TestRunUnparsableTimestampIsFatal(t *testing.T) {
	doc := tuneDocument()
	doc.ScrapedAt = "not-a-time"

	_, err := NewTuner(config.Defaults(), discardLogger()).Run(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "capture timestamp")
}
