package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RecordRun inserts a run record into the registry and returns its ID.
// A blank ID is filled with a fresh UUIDv7 so record order follows
// creation time; callers that need reproducible IDs supply their own.
//
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are
// silently ignored. Other constraint violations (e.g., the kind CHECK)
// still return errors.
func (s *Store) RecordRun(ctx context.Context, run Run) (string, error) {
	if run.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return "", fmt.Errorf("record run: new id: %w", err)
		}
		run.ID = id.String()
	}

	paramsJSON, err := marshalDetails(run.Params)
	if err != nil {
		return "", fmt.Errorf("record run: %w", err)
	}

	summaryJSON, err := marshalDetails(run.Summary)
	if err != nil {
		return "", fmt.Errorf("record run: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, kind, input_file, output_file, started_at, duration_ms, params, summary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Kind,
		run.InputFile,
		run.OutputFile,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.Duration.Milliseconds(),
		paramsJSON,
		summaryJSON,
	)
	if err != nil {
		return "", fmt.Errorf("record run: %w", err)
	}

	return run.ID, nil
}
