package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// GetRun retrieves a single run by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, kind, input_file, output_file, started_at, duration_ms, params, summary
		FROM runs
		WHERE id = ?
	`, id)

	return scanRun(row)
}

// ListRuns returns registry records, newest first. A non-empty kind
// filters to one pipeline; limit caps the result size (limit <= 0
// means no cap).
//
// Results are ordered by started_at DESC, id DESC so listings stay
// stable when timestamps collide. Returns an empty slice (not nil) if
// no records match.
func (s *Store) ListRuns(ctx context.Context, kind string, limit int) ([]Run, error) {
	query := `
		SELECT id, kind, input_file, output_file, started_at, duration_ms, params, summary
		FROM runs
	`
	var args []any
	if kind != "" {
		query += " WHERE kind = ?"
		args = append(args, kind)
	}
	query += " ORDER BY started_at DESC, id COLLATE BINARY DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	// Return empty slice instead of nil
	if runs == nil {
		runs = []Run{}
	}

	return runs, nil
}

// LatestRun returns the most recent run of a kind (or of any kind when
// kind is empty). Returns sql.ErrNoRows if the registry is empty.
func (s *Store) LatestRun(ctx context.Context, kind string) (Run, error) {
	runs, err := s.ListRuns(ctx, kind, 1)
	if err != nil {
		return Run{}, err
	}
	if len(runs) == 0 {
		return Run{}, sql.ErrNoRows
	}
	return runs[0], nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanRun scans a row into a Run struct.
func scanRun(sc scanner) (Run, error) {
	var (
		run         Run
		startedAt   string
		durationMS  int64
		paramsJSON  string
		summaryJSON string
	)

	if err := sc.Scan(
		&run.ID, &run.Kind, &run.InputFile, &run.OutputFile,
		&startedAt, &durationMS, &paramsJSON, &summaryJSON,
	); err != nil {
		return Run{}, err
	}

	ts, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return Run{}, fmt.Errorf("parse started_at %q: %w", startedAt, err)
	}
	run.StartedAt = ts
	run.Duration = time.Duration(durationMS) * time.Millisecond

	params, err := unmarshalDetails(paramsJSON)
	if err != nil {
		return Run{}, err
	}
	run.Params = params

	summary, err := unmarshalDetails(summaryJSON)
	if err != nil {
		return Run{}, err
	}
	run.Summary = summary

	return run, nil
}
