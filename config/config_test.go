package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
input: docs.txt
topics: 50
beta: 0.05
threads: 4
symmetric_alpha: true
state_out: run.state
show_topics_interval: 25
save_state_interval: 100
`))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "docs.txt", cfg.Input)
	assert.Equal(t, 50, cfg.Topics)
	assert.Equal(t, 0.05, cfg.Beta)
	assert.True(t, cfg.SymmetricAlpha)
	assert.Equal(t, Default().AlphaSum, cfg.AlphaSum)
	assert.Equal(t, "parallellda", cfg.Model)

	opts := cfg.Options()
	assert.Equal(t, 50, opts.NumTopics)
	assert.Equal(t, 4, opts.NumThreads)
	assert.Equal(t, Default().Burnin, opts.BurninPeriod)
	assert.Equal(t, 25, opts.ShowTopicsInterval)
	assert.Equal(t, Default().TopWords, opts.WordsPerTopic)
	assert.Equal(t, 100, opts.SaveStateInterval)
	assert.Equal(t, "run.state", opts.StatePath)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("input: a\ntopic: 3\n"))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"no input":        func(c *Config) { c.Input = "" },
		"zero topics":     func(c *Config) { c.Topics = 0 },
		"zero alpha":      func(c *Config) { c.AlphaSum = 0 },
		"negative beta":   func(c *Config) { c.Beta = -0.1 },
		"no threads":      func(c *Config) { c.Threads = 0 },
		"negative burnin": func(c *Config) { c.Burnin = -1 },
		"unknown model":   func(c *Config) { c.Model = "hdp" },
		"state interval without output": func(c *Config) {
			c.SaveStateInterval = 10
			c.StateOut = ""
		},
	}
	for name, mutate := range cases {
		cfg := Default()
		cfg.Input = "docs.txt"
		mutate(cfg)
		assert.ErrorIs(t, cfg.Validate(), ErrInvalid, name)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("input: x\niterations: 7\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Iterations)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
