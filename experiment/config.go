// Package experiment provides multi-stage experiment assembly: YAML stage
// configuration and a staged implementation of the runner's Experiment
// interface.
package experiment

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tsawler/go-trainer/runner"
)

// StageConfig is the YAML shape of one stage. Options the loop does not
// recognize stay available to observers through Extra.
type StageConfig struct {
	Name           string                 `yaml:"name"`
	NEpochs        int                    `yaml:"n_epochs"`
	ValidLoader    string                 `yaml:"valid_loader"`
	MainMetric     string                 `yaml:"main_metric"`
	MinimizeMetric *bool                  `yaml:"minimize_metric"`
	Verbose        bool                   `yaml:"verbose"`
	Extra          map[string]interface{} `yaml:",inline"`
}

// Config is the YAML shape of a whole experiment.
type Config struct {
	Name   string        `yaml:"name"`
	Stages []StageConfig `yaml:"stages"`
}

// Default returns an experiment config with one default training stage.
func Default() *Config {
	return &Config{
		Name: "experiment",
		Stages: []StageConfig{
			{Name: "train"},
		},
	}
}

// Load reads and validates an experiment config file.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the config for structural problems.
func (c *Config) Validate() error {
	if len(c.Stages) == 0 {
		return fmt.Errorf("experiment must have at least one stage")
	}

	seen := make(map[string]bool, len(c.Stages))
	for i, stage := range c.Stages {
		if stage.Name == "" {
			return fmt.Errorf("stage %d has no name", i)
		}
		if seen[stage.Name] {
			return fmt.Errorf("duplicate stage name %q", stage.Name)
		}
		seen[stage.Name] = true

		if stage.NEpochs < 0 {
			return fmt.Errorf("stage %q: n_epochs must not be negative", stage.Name)
		}
	}
	return nil
}

// StateConfig converts one stage's YAML options to the loop's StateConfig,
// filling in defaults for omitted fields.
func (s StageConfig) StateConfig() runner.StateConfig {
	cfg := runner.DefaultStateConfig()

	if s.NEpochs > 0 {
		cfg.NEpochs = s.NEpochs
	}
	if s.ValidLoader != "" {
		cfg.ValidLoader = s.ValidLoader
	}
	if s.MainMetric != "" {
		cfg.MainMetric = s.MainMetric
	}
	if s.MinimizeMetric != nil {
		cfg.MinimizeMetric = *s.MinimizeMetric
	}
	cfg.Verbose = s.Verbose
	cfg.Extra = s.Extra

	return cfg
}
