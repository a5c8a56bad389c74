// Package config loads the YAML run configuration used by the epochwatch CLI.
package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/tsawler/epochwatch/checkpoints"
	"github.com/tsawler/epochwatch/training"
)

// Config is the run configuration. All sections must be listed to satisfy
// KnownFields(true) strict parsing.
type Config struct {
	ModelName   string                    `yaml:"model_name"`
	Title       string                    `yaml:"title"`
	NumEpochs   int                       `yaml:"epochs"`
	Verbose     int                       `yaml:"verbose"`
	LogLevel    string                    `yaml:"log_level"`
	Patience    int                       `yaml:"patience"` // 0 disables early stop
	Progress    bool                      `yaml:"progress"` // progress bar on stderr during replay
	Snapshot    SnapshotConfig            `yaml:"snapshot"`
	Report      string                    `yaml:"report"` // per-subject AUC report path, empty to skip
	Checkpoints checkpoints.ManagerConfig `yaml:"checkpoints"`
	Plotting    PlottingConfig            `yaml:"plotting"`
}

// SnapshotConfig controls where the metric history is written
type SnapshotConfig struct {
	Path         string `yaml:"path"`
	Format       string `yaml:"format"` // json or proto
	HostMetadata bool   `yaml:"host_metadata"`
}

// PlottingConfig configures the optional plotting sidecar
type PlottingConfig struct {
	Enabled bool                           `yaml:"enabled"`
	Service training.PlottingServiceConfig `yaml:",inline"`
}

// Default returns the configuration used when no file is given
func Default() Config {
	return Config{
		ModelName: "model",
		Title:     "model",
		Verbose:   1,
		LogLevel:  "info",
		Snapshot: SnapshotConfig{
			Path:         "history.json",
			Format:       "json",
			HostMetadata: true,
		},
		Checkpoints: checkpoints.DefaultManagerConfig(),
		Plotting: PlottingConfig{
			Service: training.DefaultPlottingServiceConfig(),
		},
	}
}

// Load reads path over the defaults with strict field checking, then
// validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field ranges
func (c Config) Validate() error {
	if c.NumEpochs < 0 {
		return fmt.Errorf("epochs must be >= 0, got %d", c.NumEpochs)
	}
	if c.Patience < 0 {
		return fmt.Errorf("patience must be >= 0, got %d", c.Patience)
	}
	if c.LogLevel != "" {
		if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("log_level: %w", err)
		}
	}
	if _, err := checkpoints.ParseFormat(c.Snapshot.Format); err != nil {
		return fmt.Errorf("snapshot.format: %w", err)
	}
	if c.Checkpoints.SaveFrequency < 0 {
		return fmt.Errorf("checkpoints.save_frequency must be >= 0, got %d", c.Checkpoints.SaveFrequency)
	}
	if c.Checkpoints.MaxCheckpoints < 0 {
		return fmt.Errorf("checkpoints.max_checkpoints must be >= 0, got %d", c.Checkpoints.MaxCheckpoints)
	}
	if c.Plotting.Enabled {
		if c.Plotting.Service.BaseURL == "" {
			return fmt.Errorf("plotting.base_url is required when plotting is enabled")
		}
		if c.Plotting.Service.RetryAttempts < 1 {
			return fmt.Errorf("plotting.retry_attempts must be >= 1, got %d", c.Plotting.Service.RetryAttempts)
		}
	}
	return nil
}
