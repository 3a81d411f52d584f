package store

import (
	"path/filepath"
	"testing"
	"time"
)

// createTestStore creates a store backed by a temp file for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun creates a run record with minimal realistic fields.
func createTestRun(id, kind string, startedAt time.Time) Run {
	return Run{
		ID:         id,
		Kind:       kind,
		InputFile:  "citations.json",
		OutputFile: "rates.json",
		StartedAt:  startedAt,
		Duration:   1500 * time.Millisecond,
		Params:     map[string]any{"process_var": 0.25, "min_count": 0.5},
		Summary:    map[string]any{"n_papers": 12},
	}
}
