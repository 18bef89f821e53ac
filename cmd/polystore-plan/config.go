package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/grafana/dskit/flagext"
	"gopkg.in/yaml.v3"

	"github.com/polystore/polystore/pkg/engine"
)

// Config is the configuration file of polystore-plan.
type Config struct {
	Engine engine.Config `yaml:"engine"`
}

// loadConfig returns the flag defaults, overridden by the YAML file at path
// and then by the command line flags.
func loadConfig(path string, flags *globalFlags) (Config, error) {
	var cfg Config
	flagext.DefaultValues(&cfg.Engine)

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return cfg, fmt.Errorf("opening config file: %w", err)
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return cfg, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if flags.maxIterations != 0 {
		cfg.Engine.Optimizer.MaxIterations = flags.maxIterations
	}
	for _, r := range flags.disabledRules {
		if !slices.Contains(cfg.Engine.Optimizer.DisabledRules, r) {
			cfg.Engine.Optimizer.DisabledRules = append(cfg.Engine.Optimizer.DisabledRules, r)
		}
	}

	if err := cfg.Engine.Optimizer.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
