// Package config reads training runs from YAML files.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bobonovski/plda/model"
)

var ErrInvalid = errors.New("config: invalid value")

// Config describes one training run.
type Config struct {
	Input string `yaml:"input"`
	Model string `yaml:"model"`

	Topics             int     `yaml:"topics"`
	AlphaSum           float64 `yaml:"alpha_sum"`
	Beta               float64 `yaml:"beta"`
	Threads            int     `yaml:"threads"`
	Iterations         int     `yaml:"iterations"`
	Burnin             int     `yaml:"burnin"`
	OptimizeInterval   int     `yaml:"optimize_interval"`
	SaveSampleInterval int     `yaml:"save_sample_interval"`
	TemperingInterval  int     `yaml:"tempering_interval"`
	SymmetricAlpha     bool    `yaml:"symmetric_alpha"`
	Seed               int64   `yaml:"seed"`
	LikelihoodInterval int     `yaml:"likelihood_interval"`
	ShowTopicsInterval int     `yaml:"show_topics_interval"`
	SaveStateInterval  int     `yaml:"save_state_interval"`

	StateIn   string `yaml:"state_in"`
	StateOut  string `yaml:"state_out"`
	CountsOut string `yaml:"counts_out"`
	PhiOut    string `yaml:"phi_out"`
	ThetaOut  string `yaml:"theta_out"`
	TopWords  int    `yaml:"top_words"`
}

func Default() *Config {
	opts := model.DefaultOptions()
	return &Config{
		Model:              "parallellda",
		Topics:             opts.NumTopics,
		AlphaSum:           opts.AlphaSum,
		Beta:               opts.Beta,
		Threads:            opts.NumThreads,
		Iterations:         1000,
		Burnin:             opts.BurninPeriod,
		OptimizeInterval:   opts.OptimizeInterval,
		SaveSampleInterval: opts.SaveSampleInterval,
		TemperingInterval:  opts.TemperingInterval,
		Seed:               opts.Seed,
		LikelihoodInterval: opts.LikelihoodInterval,
		TopWords:           opts.WordsPerTopic,
	}
}

// Load reads path over the defaults. Unknown keys are an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if len(data) == 0 {
		return cfg, nil
	}

	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	known := make(map[string]bool)
	for _, key := range keys() {
		known[key] = true
	}
	for key := range raw {
		if !known[key] {
			return nil, fmt.Errorf("%w: unknown key %q", ErrInvalid, key)
		}
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func keys() []string {
	return []string{"input", "model", "topics", "alpha_sum", "beta", "threads",
		"iterations", "burnin", "optimize_interval", "save_sample_interval",
		"tempering_interval", "symmetric_alpha", "seed", "likelihood_interval",
		"show_topics_interval", "save_state_interval",
		"state_in", "state_out", "counts_out", "phi_out", "theta_out", "top_words"}
}

func (c *Config) Validate() error {
	switch {
	case c.Input == "":
		return fmt.Errorf("%w: input is required", ErrInvalid)
	case c.Topics <= 0:
		return fmt.Errorf("%w: topics must be positive, got %d", ErrInvalid, c.Topics)
	case c.AlphaSum <= 0:
		return fmt.Errorf("%w: alpha_sum must be positive, got %g", ErrInvalid, c.AlphaSum)
	case c.Beta <= 0:
		return fmt.Errorf("%w: beta must be positive, got %g", ErrInvalid, c.Beta)
	case c.Threads <= 0:
		return fmt.Errorf("%w: threads must be positive, got %d", ErrInvalid, c.Threads)
	case c.Iterations < 0:
		return fmt.Errorf("%w: iterations must not be negative, got %d", ErrInvalid, c.Iterations)
	case c.Burnin < 0 || c.OptimizeInterval < 0 || c.SaveSampleInterval < 0 ||
		c.TemperingInterval < 0 || c.LikelihoodInterval < 0 ||
		c.ShowTopicsInterval < 0 || c.SaveStateInterval < 0:
		return fmt.Errorf("%w: intervals must not be negative", ErrInvalid)
	case c.SaveStateInterval > 0 && c.StateOut == "":
		return fmt.Errorf("%w: save_state_interval needs state_out", ErrInvalid)
	case c.TopWords < 0:
		return fmt.Errorf("%w: top_words must not be negative, got %d", ErrInvalid, c.TopWords)
	}
	if _, err := model.GetModel(c.Model); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Options converts the sampler settings.
func (c *Config) Options() model.Options {
	return model.Options{
		NumTopics:          c.Topics,
		AlphaSum:           c.AlphaSum,
		Beta:               c.Beta,
		NumThreads:         c.Threads,
		BurninPeriod:       c.Burnin,
		OptimizeInterval:   c.OptimizeInterval,
		SaveSampleInterval: c.SaveSampleInterval,
		TemperingInterval:  c.TemperingInterval,
		SymmetricAlpha:     c.SymmetricAlpha,
		Seed:               c.Seed,
		LikelihoodInterval: c.LikelihoodInterval,
		ShowTopicsInterval: c.ShowTopicsInterval,
		WordsPerTopic:      c.TopWords,
		SaveStateInterval:  c.SaveStateInterval,
		StatePath:          c.StateOut,
	}
}
