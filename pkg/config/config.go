// Package config loads the module's YAML configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/offloadio/offload/pkg/logging"
	"github.com/offloadio/offload/pkg/pool"
	"github.com/offloadio/offload/pkg/tracing"
)

// InspectorConfig configures the debug HTTP endpoint.
type InspectorConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Config aggregates per-component configuration.
type Config struct {
	Pool      pool.Config     `yaml:"pool"`
	Logging   logging.Config  `yaml:"logging"`
	Tracing   tracing.Config  `yaml:"tracing"`
	Inspector InspectorConfig `yaml:"inspector"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Pool:    pool.Config{Workers: 4},
		Logging: logging.Config{Level: "info"},
		Tracing: tracing.Config{
			ServiceName: "offload",
			Exporter:    "none",
			SampleRate:  1,
		},
		Inspector: InspectorConfig{Addr: "127.0.0.1:8087"},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if err := LoadYAML(path, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	if c.Pool.Workers < 1 {
		return fmt.Errorf("config: pool.workers must be at least 1, got %d", c.Pool.Workers)
	}
	if err := c.Tracing.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Inspector.Enabled && c.Inspector.Addr == "" {
		return fmt.Errorf("config: inspector.addr is required when the inspector is enabled")
	}
	return nil
}

// LoadYAML loads configuration from a YAML file into target.
func LoadYAML(path string, target interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read YAML file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to unmarshal YAML: %w", err)
	}
	return nil
}

// SaveYAML saves configuration to a YAML file.
func SaveYAML(path string, config interface{}) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write YAML file: %w", err)
	}
	return nil
}
