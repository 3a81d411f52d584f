package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/citerate/internal/config"
	"github.com/roach88/citerate/internal/store"
	"github.com/roach88/citerate/internal/tune"
)

// TuneOptions holds flags for the tune command.
type TuneOptions struct {
	*RootOptions
	Input       string
	Output      string
	ConfigFile  string
	StorePath   string
	Strict      bool
	GridSize    int
	Workers     int
	IncludeGrid bool
	MinCount    float64
}

// NewTuneCommand creates the tune command.
func NewTuneCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TuneOptions{RootOptions: rootOpts}
	defaults := config.Defaults()

	cmd := &cobra.Command{
		Use:   "tune",
		Short: "Grid-search filter hyperparameters over a corpus",
		Long: `Search process variance and overdispersion over a log-spaced grid,
scoring each candidate by the summed filter log-likelihood across every
paper with enough observed years.

The winning cell and corpus counts are written as a JSON report. Pass
--grid to include the full score surface for plotting.

Example:
  citerate tune -i citations.json -o tune.json
  citerate tune -i citations.json --n-grid 20 --workers 4
  citerate tune -i citations.json --grid --store runs.db`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTune(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "path to capture document (required)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "path for the JSON report (default: stdout)")
	cmd.Flags().StringVar(&opts.ConfigFile, "config", "", "path to YAML config file")
	cmd.Flags().StringVar(&opts.StorePath, "store", "", "path to run registry database")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "validate the document against the schema before tuning")
	cmd.Flags().IntVar(&opts.GridSize, "n-grid", defaults.GridSize, "points per grid axis")
	cmd.Flags().IntVar(&opts.Workers, "workers", defaults.Workers, "concurrent grid-cell evaluations")
	cmd.Flags().BoolVar(&opts.IncludeGrid, "grid", false, "include the full score surface in the report")
	cmd.Flags().Float64Var(&opts.MinCount, "min-count", defaults.MinCount, "pseudocount added before the log transform")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func runTune(opts *TuneOptions, cmd *cobra.Command) error {
	// Configure logging based on verbose flag
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := tuneConfig(opts, cmd)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	doc, verrs, err := LoadDocument(opts.Input, opts.Strict)
	if err != nil {
		_ = formatter.Error(loadErrorCode(err), err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load document", err)
	}
	if len(verrs) > 0 {
		return outputValidationErrors(formatter, opts.Input, verrs)
	}

	slog.Info("tuning hyperparameters", "input", opts.Input, "papers", len(doc.Papers), "n_grid", cfg.GridSize)
	started := time.Now()

	tuner := tune.NewTuner(cfg, slog.Default())
	tuner.IncludeGrid = opts.IncludeGrid

	res, err := tuner.Run(doc)
	if err != nil {
		return WrapExitError(ExitFailure, "tuning failed", err)
	}
	res.InputFile = opts.Input

	if err := writeReport(opts.Output, res, cmd); err != nil {
		_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to write report", err)
	}

	recordRun(opts.StorePath, store.Run{
		Kind:       store.KindTune,
		InputFile:  opts.Input,
		OutputFile: opts.Output,
		StartedAt:  started,
		Duration:   time.Since(started),
		Params:     configParams(cfg),
		Summary: map[string]any{
			"n_papers":           res.Papers,
			"n_eligible":         res.Eligible,
			"opt_process_var":    res.Optimal.ProcessVar,
			"opt_overdispersion": res.Optimal.Overdispersion,
			"opt_log_likelihood": res.Optimal.LogLikelihood,
		},
	})

	if opts.Output == "" {
		return nil
	}
	return outputTuneSummary(formatter, opts.Output, res)
}

// tuneConfig layers defaults, the optional config file, and explicitly
// set flags, in that order of precedence.
func tuneConfig(opts *TuneOptions, cmd *cobra.Command) (config.Config, error) {
	cfg := config.Defaults()
	if opts.ConfigFile != "" {
		loaded, err := config.Load(opts.ConfigFile)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("n-grid") {
		cfg.GridSize = opts.GridSize
	}
	if flags.Changed("workers") {
		cfg.Workers = opts.Workers
	}
	if flags.Changed("min-count") {
		cfg.MinCount = opts.MinCount
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// tuneSummary is the success payload for JSON output mode.
type tuneSummary struct {
	Output         string  `json:"output"`
	Papers         int     `json:"n_papers"`
	Eligible       int     `json:"n_papers_with_2plus_years"`
	ProcessVar     float64 `json:"process_var"`
	Overdispersion float64 `json:"overdispersion"`
	LogLikelihood  float64 `json:"log_likelihood"`
}

func outputTuneSummary(formatter *OutputFormatter, output string, res *tune.Result) error {
	if formatter.Format == "json" {
		return formatter.Success(tuneSummary{
			Output:         output,
			Papers:         res.Papers,
			Eligible:       res.Eligible,
			ProcessVar:     res.Optimal.ProcessVar,
			Overdispersion: res.Optimal.Overdispersion,
			LogLikelihood:  res.Optimal.LogLikelihood,
		})
	}

	msg := fmt.Sprintf("Tuned over %d eligible paper(s): process_var=%.4g overdispersion=%.4g (log-likelihood %.4f), report written to %s",
		res.Eligible, res.Optimal.ProcessVar, res.Optimal.Overdispersion, res.Optimal.LogLikelihood, output)
	return formatter.Success(msg)
}
