// Package config loads the options of a sampler run from defaults,
// an optional YAML file and DLM_* environment variables, in this
// order of precedence.
package config

import (
	"bitbucket.org/dtolpin/dlmpoll/panel"
	"bitbucket.org/dtolpin/dlmpoll/sampler"
	"fmt"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
	"os"
)

// Prefix of environment variables.
const Prefix = "DLM_"

type Config struct {
	PeriodsToElection int           `yaml:"periods_to_election" env:"PERIODS_TO_ELECTION"`
	Iterations        int           `yaml:"iterations" env:"ITERATIONS"`
	FinalPriorMean    float64       `yaml:"final_prior_mean" env:"FINAL_PRIOR_MEAN"`
	FinalPriorSD      float64       `yaml:"final_prior_sd" env:"FINAL_PRIOR_SD"`
	Seed              uint64        `yaml:"seed" env:"SEED"`
	Burn              int           `yaml:"burn" env:"BURN"`
	Hyper             sampler.Hyper `yaml:"hyper" envPrefix:"HYPER_"`
}

func Default() Config {
	return Config{
		PeriodsToElection: 1,
		Iterations:        1000,
		FinalPriorMean:    0.5,
		FinalPriorSD:      0.03,
		Seed:              1,
		Burn:              0,
		Hyper:             sampler.DefaultHyper(),
	}
}

// Load returns the configuration from path, if not empty, with
// environment overrides.
func Load(path string) (Config, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return c, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &c); err != nil {
			return c, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(&c, env.Options{Prefix: Prefix}); err != nil {
		return c, fmt.Errorf("parse env: %w", err)
	}
	return c, nil
}

// Validate checks the recognized ranges of the options.
func (c *Config) Validate() error {
	switch {
	case c.PeriodsToElection < 1:
		return fmt.Errorf("%w: periods_to_election %d < 1",
			panel.ErrInput, c.PeriodsToElection)
	case c.Iterations < 1:
		return fmt.Errorf("%w: iterations %d < 1", panel.ErrInput, c.Iterations)
	case !(c.FinalPriorMean >= 0 && c.FinalPriorMean <= 1):
		return fmt.Errorf("%w: final_prior_mean %v outside [0, 1]",
			panel.ErrInput, c.FinalPriorMean)
	case !(c.FinalPriorSD > 0):
		return fmt.Errorf("%w: final_prior_sd %v not positive",
			panel.ErrInput, c.FinalPriorSD)
	case c.Burn < 0 || c.Burn >= c.Iterations:
		return fmt.Errorf("%w: burn %d outside [0, %d)",
			panel.ErrInput, c.Burn, c.Iterations)
	}
	return nil
}

// Options returns the sampler options of the configuration.
func (c *Config) Options() sampler.Options {
	return sampler.Options{
		Iterations: c.Iterations,
		FinalMean:  c.FinalPriorMean,
		FinalSD:    c.FinalPriorSD,
		Hyper:      c.Hyper,
		Seed:       c.Seed,
	}
}
