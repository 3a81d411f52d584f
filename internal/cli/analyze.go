package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/citerate/internal/config"
	"github.com/roach88/citerate/internal/rates"
	"github.com/roach88/citerate/internal/store"
)

// AnalyzeOptions holds flags for the analyze command.
type AnalyzeOptions struct {
	*RootOptions
	Input             string
	Output            string
	ConfigFile        string
	StorePath         string
	Strict            bool
	ProcessVar        float64
	ObsVar            float64
	ObsOverdispersion float64
	MinCount          float64
	ForecastYears     int
	Seed              uint64
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AnalyzeOptions{RootOptions: rootOpts}
	defaults := config.Defaults()

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Estimate smoothed citation rates for every paper",
		Long: `Estimate a smoothed citation-rate trajectory for every paper in a
capture document.

Reads a JSON capture document, filters and smooths each paper's yearly
counts, and writes a JSON report with per-year rate estimates. With
--forecast-years a Monte-Carlo forecast is appended per paper.

Example:
  citerate analyze -i citations.json -o rates.json
  citerate analyze -i citations.json --forecast-years 5 --seed 42
  citerate analyze -i citations.json --obs-var 0.3 --store runs.db`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "path to capture document (required)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "path for the JSON report (default: stdout)")
	cmd.Flags().StringVar(&opts.ConfigFile, "config", "", "path to YAML config file")
	cmd.Flags().StringVar(&opts.StorePath, "store", "", "path to run registry database")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "validate the document against the schema before analyzing")
	cmd.Flags().Float64Var(&opts.ProcessVar, "process-var", defaults.ProcessVar, "process variance of the latent log-rate walk")
	cmd.Flags().Float64Var(&opts.ObsVar, "obs-var", 0, "constant observation variance (replaces the count-based noise model)")
	cmd.Flags().Float64Var(&opts.ObsOverdispersion, "obs-overdispersion", defaults.ObsOverdispersion, "overdispersion scale of the count-based noise model")
	cmd.Flags().Float64Var(&opts.MinCount, "min-count", defaults.MinCount, "pseudocount added before the log transform")
	cmd.Flags().IntVar(&opts.ForecastYears, "forecast-years", defaults.ForecastYears, "forecast horizon in years (0 disables forecasting)")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 0, "random seed for forecast sampling (0 = derived from clock)")
	cmd.MarkFlagsMutuallyExclusive("obs-var", "obs-overdispersion")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func runAnalyze(opts *AnalyzeOptions, cmd *cobra.Command) error {
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

	cfg, err := analyzeConfig(opts, cmd)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	// Load document (strict mode pre-validates against the schema)
	doc, verrs, err := LoadDocument(opts.Input, opts.Strict)
	if err != nil {
		_ = formatter.Error(loadErrorCode(err), err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load document", err)
	}
	if len(verrs) > 0 {
		return outputValidationErrors(formatter, opts.Input, verrs)
	}

	slog.Info("analyzing corpus", "input", opts.Input, "papers", len(doc.Papers))
	started := time.Now()

	// The analyzer logs each skipped paper itself; itemErrs only feeds
	// the summary count here.
	report, itemErrs, err := rates.NewAnalyzer(cfg, slog.Default()).Analyze(doc)
	if err != nil {
		return WrapExitError(ExitFailure, "analysis failed", err)
	}

	if err := writeReport(opts.Output, report, cmd); err != nil {
		_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to write report", err)
	}

	recordRun(opts.StorePath, store.Run{
		Kind:       store.KindAnalyze,
		InputFile:  opts.Input,
		OutputFile: opts.Output,
		StartedAt:  started,
		Duration:   time.Since(started),
		Params:     configParams(cfg),
		Summary: map[string]any{
			"n_papers":  len(report.Papers),
			"n_skipped": len(itemErrs),
		},
	})

	// With no output path the report already went to stdout; a summary
	// envelope on top would corrupt it.
	if opts.Output == "" {
		return nil
	}
	return outputAnalyzeSummary(formatter, opts.Output, report, len(itemErrs))
}

// analyzeConfig layers defaults, the optional config file, and
// explicitly set flags, in that order of precedence.
func analyzeConfig(opts *AnalyzeOptions, cmd *cobra.Command) (config.Config, error) {
	cfg := config.Defaults()
	if opts.ConfigFile != "" {
		loaded, err := config.Load(opts.ConfigFile)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("process-var") {
		cfg.ProcessVar = opts.ProcessVar
	}
	if flags.Changed("obs-overdispersion") {
		cfg.ObsOverdispersion = opts.ObsOverdispersion
		cfg.ObsVar = nil
	}
	if flags.Changed("obs-var") {
		v := opts.ObsVar
		cfg.ObsVar = &v
	}
	if flags.Changed("min-count") {
		cfg.MinCount = opts.MinCount
	}
	if flags.Changed("forecast-years") {
		cfg.ForecastYears = opts.ForecastYears
	}
	if flags.Changed("seed") {
		cfg.Seed = opts.Seed
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// writeReport writes the indented JSON report to path, or to the
// command's stdout when no path is given.
func writeReport(path string, report any, cmd *cobra.Command) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	data = append(data, '\n')

	if path == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

// analyzeSummary is the success payload for JSON output mode.
type analyzeSummary struct {
	Output   string `json:"output"`
	Papers   int    `json:"n_papers"`
	Skipped  int    `json:"n_skipped"`
	Forecast bool   `json:"forecast"`
}

func outputAnalyzeSummary(formatter *OutputFormatter, output string, report *rates.Report, skipped int) error {
	forecast := false
	for _, p := range report.Papers {
		if p.Forecast != nil {
			forecast = true
			break
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(analyzeSummary{
			Output:   output,
			Papers:   len(report.Papers),
			Skipped:  skipped,
			Forecast: forecast,
		})
	}

	msg := fmt.Sprintf("Analyzed %d paper(s), report written to %s", len(report.Papers), output)
	if skipped > 0 {
		msg = fmt.Sprintf("Analyzed %d paper(s) (%d skipped), report written to %s", len(report.Papers), skipped, output)
	}
	return formatter.Success(msg)
}
