// Package config loads scoring configuration from YAML. The loaded object is
// passed explicitly into each engine; nothing here is process-wide mutable
// state.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/skillmeter-io/skillmeter/internal/score"
)

// Default returns the shipped scoring configuration: one axis per activity
// category with the production composite parameters.
func Default() score.Config {
	return score.Config{
		Axes: map[string]score.AxisSpec{
			"code": {
				Signals: []score.SignalSpec{{ID: "code", Weight: 1}},
				Combine: score.CombineWeightedAverage,
			},
			"articles": {
				Signals: []score.SignalSpec{{ID: "articles", Weight: 1}},
				Combine: score.CombineWeightedAverage,
			},
			"events": {
				Signals: []score.SignalSpec{{ID: "events", Weight: 1}},
				Combine: score.CombineWeightedAverage,
			},
			"tags": {
				Signals: []score.SignalSpec{{ID: "tags", Weight: 1}},
				Combine: score.CombineWeightedAverage,
			},
		},
		Composite: score.CompositeSpec{
			Weights: map[string]score.LogWeight{
				"code":     {A: 0.32, B: 1.17},
				"articles": {A: 0.21, B: 0.31},
				"events":   {A: 0.30, B: 0.27},
				"tags":     {A: 0.10, B: 0.79},
			},
			ReferenceID: "composite",
			Optional:    true,
		},
		MinPopulation:  1,
		UnratableFloor: 0.12,
	}
}

// Load reads a scoring configuration file. A missing path falls back to the
// shipped defaults.
func Load(path string) (score.Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return score.Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg score.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return score.Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return score.Config{}, err
	}
	return cfg, nil
}

// Save writes a scoring configuration file.
func Save(path string, cfg score.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}
