package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/citerate/internal/store"
)

// RunsOptions holds flags shared by the runs subcommands.
type RunsOptions struct {
	*RootOptions
	Database string
	Kind     string
	Limit    int
}

// runView is the JSON shape of one registry run.
type runView struct {
	ID         string         `json:"id"`
	Kind       string         `json:"kind"`
	InputFile  string         `json:"input_file"`
	OutputFile string         `json:"output_file,omitempty"`
	StartedAt  string         `json:"started_at"`
	DurationMS int64          `json:"duration_ms"`
	Params     map[string]any `json:"params,omitempty"`
	Summary    map[string]any `json:"summary,omitempty"`
}

func toRunView(run store.Run) runView {
	return runView{
		ID:         run.ID,
		Kind:       run.Kind,
		InputFile:  run.InputFile,
		OutputFile: run.OutputFile,
		StartedAt:  run.StartedAt.UTC().Format(time.RFC3339),
		DurationMS: run.Duration.Milliseconds(),
		Params:     run.Params,
		Summary:    run.Summary,
	}
}

// NewRunsCommand creates the runs command group.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Browse the run registry",
		Long: `Browse analysis and tuning runs recorded with --store.

Every analyze or tune invoked with --store appends a row with its
parameters and result summary. The registry answers "what did I run,
with which settings, and what came out".

Example:
  citerate runs list --store runs.db
  citerate runs list --store runs.db --kind tune --limit 5
  citerate runs show 0190c8a1-7c3e-7f12-b3d4-9e8f7a6b5c4d --store runs.db`,
	}

	cmd.AddCommand(newRunsListCommand(rootOpts))
	cmd.AddCommand(newRunsShowCommand(rootOpts))

	return cmd
}

func newRunsListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List recorded runs, newest first",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRunsList(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "store", "", "path to run registry database (required)")
	_ = cmd.MarkFlagRequired("store")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", `filter by run kind ("analyze" or "tune")`)
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum runs to list (0 = no limit)")

	return cmd
}

func runRunsList(opts *RunsOptions, cmd *cobra.Command) error {
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open run registry", err)
	}
	defer st.Close()

	runs, err := st.ListRuns(context.Background(), opts.Kind, opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	if opts.Format == "json" {
		views := make([]runView, len(runs))
		for i, run := range runs {
			views[i] = toRunView(run)
		}
		return outputRunsJSON(cmd, views)
	}

	w := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}

	fmt.Fprintf(w, "%-19s  %-7s  %-20s  %9s  %s\n", "ID", "KIND", "STARTED", "DURATION", "INPUT")
	for _, run := range runs {
		fmt.Fprintf(w, "%-19s  %-7s  %-20s  %9s  %s\n",
			truncateID(run.ID),
			run.Kind,
			run.StartedAt.UTC().Format(time.RFC3339),
			run.Duration.Round(time.Millisecond),
			run.InputFile)
	}
	return nil
}

func newRunsShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "show <run-id>",
		Short:         "Show one recorded run in full",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRunsShow(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "store", "", "path to run registry database (required)")
	_ = cmd.MarkFlagRequired("store")

	return cmd
}

func runRunsShow(opts *RunsOptions, id string, cmd *cobra.Command) error {
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open run registry", err)
	}
	defer st.Close()

	run, err := st.GetRun(context.Background(), id)
	if errors.Is(err, sql.ErrNoRows) {
		return NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", id))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	if opts.Format == "json" {
		return outputRunsJSON(cmd, toRunView(run))
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Run: %s\n", run.ID)
	fmt.Fprintf(w, "Kind: %s\n", run.Kind)
	fmt.Fprintf(w, "Started: %s\n", run.StartedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "Duration: %s\n", run.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Input: %s\n", run.InputFile)
	if run.OutputFile != "" {
		fmt.Fprintf(w, "Output: %s\n", run.OutputFile)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Params ===")
	fmt.Fprintf(w, "  %s\n", formatDetails(run.Params))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Summary ===")
	fmt.Fprintf(w, "  %s\n", formatDetails(run.Summary))

	return nil
}

// outputRunsJSON wraps registry data in the standard response envelope.
func outputRunsJSON(cmd *cobra.Command, data any) error {
	response := CLIResponse{
		Status: "ok",
		Data:   data,
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// formatDetails formats a params or summary map for display.
// Uses sorted keys to ensure deterministic output.
func formatDetails(details map[string]any) string {
	if len(details) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, details[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
