package cli

import (
	"context"
	"log/slog"

	"github.com/roach88/citerate/internal/config"
	"github.com/roach88/citerate/internal/store"
)

// recordRun appends a completed run to the registry database when one
// is configured. Registry problems are logged and never fail the
// command: the report has already been written by the time we get here.
func recordRun(dbPath string, run store.Run) {
	if dbPath == "" {
		return
	}

	st, err := store.Open(dbPath)
	if err != nil {
		slog.Warn("run registry unavailable", "db", dbPath, "err", err)
		return
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing run registry", "error", closeErr)
		}
	}()

	id, err := st.RecordRun(context.Background(), run)
	if err != nil {
		slog.Warn("failed to record run", "db", dbPath, "err", err)
		return
	}
	slog.Info("run recorded", "id", id, "kind", run.Kind)
}

// configParams snapshots the effective configuration for the registry.
func configParams(cfg config.Config) map[string]any {
	params := map[string]any{
		"process_var":        cfg.ProcessVar,
		"obs_overdispersion": cfg.ObsOverdispersion,
		"min_count":          cfg.MinCount,
		"variance_floor":     cfg.VarianceFloor,
		"n_grid":             cfg.GridSize,
		"forecast_years":     cfg.ForecastYears,
		"seed":               cfg.Seed,
		"workers":            cfg.Workers,
	}
	if cfg.ObsVar != nil {
		params["obs_var"] = *cfg.ObsVar
	}
	return params
}
