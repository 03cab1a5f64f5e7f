package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobonovski/plda/config"
	"github.com/bobonovski/plda/model"
)

func TestTrainAndResume(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "docs.txt")
	require.NoError(t, os.WriteFile(input, []byte(strings.Join([]string{
		"0 0:3 1:2 2:1",
		"1 3:2 4:4",
		"2 0:1 2:2 4:1",
		"3 1:5",
	}, "\n")), 0o644))

	cfg := config.Default()
	cfg.Input = input
	cfg.Topics = 3
	cfg.Threads = 2
	cfg.Iterations = 5
	cfg.Burnin = 1
	cfg.OptimizeInterval = 2
	cfg.Seed = 1
	cfg.SaveStateInterval = 2
	cfg.StateOut = filepath.Join(dir, "run.state")
	cfg.CountsOut = filepath.Join(dir, "counts.txt")
	cfg.PhiOut = filepath.Join(dir, "phi.txt")
	cfg.ThetaOut = filepath.Join(dir, "theta.txt")
	require.NoError(t, cfg.Validate())
	require.NoError(t, train(context.Background(), cfg))

	counts, err := os.ReadFile(cfg.CountsOut)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(counts), "5,3\n"))
	for _, fn := range []string{cfg.StateOut, cfg.StateOut + ".2", cfg.StateOut + ".4", cfg.PhiOut, cfg.ThetaOut} {
		info, err := os.Stat(fn)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}

	resumed := *cfg
	resumed.StateIn = cfg.StateOut
	resumed.StateOut = filepath.Join(dir, "resumed.state")
	resumed.CountsOut = ""
	resumed.SaveStateInterval = 0
	require.NoError(t, train(context.Background(), &resumed))

	resumed.Threads = 3
	resumed.StateIn = resumed.StateOut
	assert.Error(t, train(context.Background(), &resumed))
}

func TestTrainFlagOverrides(t *testing.T) {
	var configPath string
	overrides := config.Default()
	f := pflag.NewFlagSet("train", pflag.ContinueOnError)
	bindFlags(f, &configPath, overrides)
	require.NoError(t, f.Parse([]string{
		"--input", "docs.txt",
		"--save-sample-interval", "5",
		"--tempering-interval", "40",
		"--likelihood-interval", "0",
		"--show-topics-interval", "20",
		"--save-state-interval", "100",
		"--state-out", "run.state",
		"-k", "7",
	}))

	cfg := config.Default()
	cfg.Burnin = 3
	applyOverrides(f, cfg, overrides)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "docs.txt", cfg.Input)
	assert.Equal(t, 5, cfg.SaveSampleInterval)
	assert.Equal(t, 40, cfg.TemperingInterval)
	assert.Equal(t, 0, cfg.LikelihoodInterval)
	assert.Equal(t, 20, cfg.ShowTopicsInterval)
	assert.Equal(t, 100, cfg.SaveStateInterval)
	assert.Equal(t, "run.state", cfg.StateOut)
	assert.Equal(t, 7, cfg.Topics)
	// flags that were not given keep the loaded value
	assert.Equal(t, 3, cfg.Burnin)
}

func TestInferFromTrainedModel(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "docs.txt")
	require.NoError(t, os.WriteFile(input, []byte(strings.Join([]string{
		"0 0:4 1:3",
		"1 2:5 3:2",
		"2 0:2 1:2",
		"3 2:3 3:3",
	}, "\n")), 0o644))
	held := filepath.Join(dir, "held.txt")
	require.NoError(t, os.WriteFile(held, []byte("0 0:2 1:1\n1 3:2 7:1\n"), 0o644))

	cfg := config.Default()
	cfg.Input = input
	cfg.Topics = 2
	cfg.Iterations = 10
	cfg.Seed = 4
	cfg.StateOut = filepath.Join(dir, "run.state")
	cfg.CountsOut = filepath.Join(dir, "counts.txt")
	cfg.PhiOut = filepath.Join(dir, "phi.txt")
	require.NoError(t, train(context.Background(), cfg))

	opts := model.DefaultInferOptions()
	opts.Iterations = 20
	opts.Seed = 9
	for name, in := range map[string]inferConfig{
		"state":  {StateIn: cfg.StateOut},
		"counts": {CountsIn: cfg.CountsOut, AlphaSum: 1, Beta: 0.01},
		"phi":    {PhiIn: cfg.PhiOut, AlphaSum: 1},
	} {
		in.Input = held
		in.ThetaOut = filepath.Join(dir, name+".theta")
		in.Options = opts
		require.NoError(t, infer(context.Background(), &in), name)

		out, err := os.ReadFile(in.ThetaOut)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(out), "2,2\n"), name)
	}

	assert.Error(t, infer(context.Background(), &inferConfig{Input: held, Options: opts}))
	assert.Error(t, infer(context.Background(), &inferConfig{
		Input: held, StateIn: cfg.StateOut, PhiIn: cfg.PhiOut, Options: opts,
	}))
}
