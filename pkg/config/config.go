// Package config loads compass settings. Values start from Default, are
// overlaid by an optional YAML file and finally by COMPASS_* environment
// variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/chazu/compass/pkg/kernel"
	"github.com/chazu/compass/pkg/sketch"
	"github.com/chazu/compass/pkg/snap"
	"github.com/chazu/compass/pkg/spatial"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable, e.g. COMPASS_CELL_SIZE.
const EnvPrefix = "COMPASS"

type Config struct {
	PointThreshold  float64 `yaml:"point_threshold" envconfig:"POINT_THRESHOLD"`
	LineThreshold   float64 `yaml:"line_threshold" envconfig:"LINE_THRESHOLD"`
	SelectThreshold float64 `yaml:"select_threshold" envconfig:"SELECT_THRESHOLD"`
	CellSize        float64 `yaml:"cell_size" envconfig:"CELL_SIZE"`
	Epsilon         float64 `yaml:"epsilon" envconfig:"EPSILON"`

	Width  float64 `yaml:"width" envconfig:"WIDTH"`
	Height float64 `yaml:"height" envconfig:"HEIGHT"`
	Scale  float64 `yaml:"scale" envconfig:"SCALE"`

	EvalTimeout    time.Duration `yaml:"eval_timeout" envconfig:"EVAL_TIMEOUT"`
	Addr           string        `yaml:"addr" envconfig:"ADDR"`
	AllowedOrigins []string      `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	LogLevel       string        `yaml:"log_level" envconfig:"LOG_LEVEL"`
}

// Default returns the built-in settings.
func Default() *Config {
	opts := sketch.DefaultOptions()
	return &Config{
		PointThreshold:  opts.Thresholds.Point,
		LineThreshold:   opts.Thresholds.Line,
		SelectThreshold: opts.SelectThreshold,
		CellSize:        spatial.DefaultCellSize,
		Epsilon:         kernel.DefaultEpsilon,
		Width:           opts.Width,
		Height:          opts.Height,
		Scale:           opts.Scale,
		EvalTimeout:     5 * time.Second,
		Addr:            ":8080",
		AllowedOrigins:  []string{"localhost:*", "127.0.0.1:*"},
		LogLevel:        "info",
	}
}

// Load builds the configuration. path may be empty, in which case only the
// defaults and the environment apply.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := cfg.decodeYAML(data); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decodeYAML(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate rejects settings the engine cannot run with. The snap search
// only looks one cell around the cursor, so a cell must be at least as wide
// as the largest threshold.
func (c *Config) Validate() error {
	var errs []error
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"point_threshold", c.PointThreshold},
		{"line_threshold", c.LineThreshold},
		{"select_threshold", c.SelectThreshold},
		{"cell_size", c.CellSize},
		{"width", c.Width},
		{"height", c.Height},
		{"scale", c.Scale},
	} {
		if f.v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %g", f.name, f.v))
		}
	}
	if c.Epsilon < 0 {
		errs = append(errs, fmt.Errorf("epsilon must not be negative, got %g", c.Epsilon))
	}
	if m := max(c.PointThreshold, c.LineThreshold, c.SelectThreshold); c.CellSize < m {
		errs = append(errs, fmt.Errorf("cell_size %g is smaller than the largest threshold %g", c.CellSize, m))
	}
	if c.EvalTimeout <= 0 {
		errs = append(errs, fmt.Errorf("eval_timeout must be positive, got %s", c.EvalTimeout))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// SketchOptions converts the settings into sketch options.
func (c *Config) SketchOptions() sketch.Options {
	return sketch.Options{
		CellSize:        c.CellSize,
		Epsilon:         c.Epsilon,
		Thresholds:      snap.Thresholds{Point: c.PointThreshold, Line: c.LineThreshold},
		SelectThreshold: c.SelectThreshold,
		Width:           c.Width,
		Height:          c.Height,
		Scale:           c.Scale,
	}
}
