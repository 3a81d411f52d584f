// Package config holds the run defaults shared by the analyze and tune
// pipelines. Precedence is flags over file over built-in defaults; the CLI
// applies flag overrides after Load returns.
package config

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/roach88/citerate/internal/kalman"
)

// Config holds all tunable run parameters.
//
// ObsVar and ObsOverdispersion are mutually exclusive: a set obs_var
// selects constant observation variance and disables the time-varying
// Poisson model. Noise resolves the choice once per run.
type Config struct {
	ProcessVar        float64  `yaml:"process_var"`
	ObsOverdispersion float64  `yaml:"obs_overdispersion"`
	ObsVar            *float64 `yaml:"obs_var"`
	MinCount          float64  `yaml:"min_count"`
	VarianceFloor     float64  `yaml:"variance_floor"`
	GridSize          int      `yaml:"n_grid"`
	ForecastYears     int      `yaml:"forecast_years"`
	Seed              uint64   `yaml:"seed"`
	Workers           int      `yaml:"workers"`
}

// Defaults returns a Config with all default values set.
func Defaults() Config {
	return Config{
		ProcessVar:        0.25,
		ObsOverdispersion: 0.56,
		MinCount:          0.5,
		VarianceFloor:     kalman.DefaultVarianceFloor,
		GridSize:          40,
		ForecastYears:     0,
		Seed:              0,
		Workers:           runtime.GOMAXPROCS(0),
	}
}

// Load reads a YAML config file over the defaults and validates the
// result. Keys absent from the file keep their default values.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks that all parameters are in range.
func (c *Config) Validate() error {
	if c.ProcessVar < 0 {
		return fmt.Errorf("process_var must be non-negative, got %g", c.ProcessVar)
	}
	if c.ObsVar != nil && *c.ObsVar <= 0 {
		return fmt.Errorf("obs_var must be positive, got %g", *c.ObsVar)
	}
	if c.ObsOverdispersion < 0 {
		return fmt.Errorf("obs_overdispersion must be non-negative, got %g", c.ObsOverdispersion)
	}
	if c.MinCount <= 0 {
		return fmt.Errorf("min_count must be positive, got %g", c.MinCount)
	}
	if c.VarianceFloor < 0 {
		return fmt.Errorf("variance_floor must be non-negative, got %g", c.VarianceFloor)
	}
	if c.GridSize < 1 {
		return fmt.Errorf("n_grid must be at least 1, got %d", c.GridSize)
	}
	if c.ForecastYears < 0 {
		return fmt.Errorf("forecast_years must be non-negative, got %d", c.ForecastYears)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	return nil
}

// Noise resolves the observation-variance mode for this run.
func (c *Config) Noise() kalman.NoiseModel {
	if c.ObsVar != nil {
		return kalman.ConstantNoise(*c.ObsVar)
	}
	return kalman.OverdispersedNoise(c.ObsOverdispersion, c.MinCount, c.VarianceFloor)
}

// ConstantVariance reports whether the run uses a fixed observation
// variance instead of the time-varying Poisson model.
func (c *Config) ConstantVariance() bool {
	return c.ObsVar != nil
}
