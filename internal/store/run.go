package store

import "time"

// Run kinds accepted by the registry. The schema enforces the same set
// with a CHECK constraint.
const (
	KindAnalyze = "analyze"
	KindTune    = "tune"
)

// Run is one recorded invocation of the analyze or tune pipeline.
//
// Params is the configuration snapshot the run executed with; Summary
// holds a few result figures (paper counts, optimal pair) so listings
// are useful without reopening the output file. Both are free-form
// maps, stored as JSON text.
type Run struct {
	ID         string
	Kind       string
	InputFile  string
	OutputFile string
	StartedAt  time.Time
	Duration   time.Duration
	Params     map[string]any
	Summary    map[string]any
}
