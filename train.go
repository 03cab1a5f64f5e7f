package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	log "github.com/golang/glog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/bobonovski/plda/config"
	"github.com/bobonovski/plda/corpus"
	"github.com/bobonovski/plda/model"
)

func newTrainCmd() *cobra.Command {
	var configPath string
	overrides := config.Default()

	cmd := &cobra.Command{
		Use:   "train",
		Short: "estimate a topic model from a corpus file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configPath != "" {
				var err error
				if cfg, err = config.Load(configPath); err != nil {
					return err
				}
			}
			applyOverrides(cmd.Flags(), cfg, overrides)
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return train(ctx, cfg)
		},
	}

	bindFlags(cmd.Flags(), &configPath, overrides)
	return cmd
}

func bindFlags(f *pflag.FlagSet, configPath *string, overrides *config.Config) {
	f.StringVarP(configPath, "config", "c", "", "yaml run configuration")
	f.StringVar(&overrides.Input, "input", "", "input training file")
	f.StringVar(&overrides.Model, "model", overrides.Model, "model type: "+strings.Join(model.Models(), ", "))
	f.IntVarP(&overrides.Topics, "topics", "k", overrides.Topics, "number of topics")
	f.Float64Var(&overrides.AlphaSum, "alpha-sum", overrides.AlphaSum, "sum of the document-topic prior")
	f.Float64Var(&overrides.Beta, "beta", overrides.Beta, "topic-word prior")
	f.IntVarP(&overrides.Threads, "threads", "t", overrides.Threads, "number of sampling threads")
	f.IntVarP(&overrides.Iterations, "iterations", "n", overrides.Iterations, "number of iterations")
	f.IntVar(&overrides.Burnin, "burnin", overrides.Burnin, "iterations before hyperparameter optimization")
	f.IntVar(&overrides.OptimizeInterval, "optimize-interval", overrides.OptimizeInterval, "iterations between hyperparameter optimization, 0 disables it")
	f.IntVar(&overrides.SaveSampleInterval, "save-sample-interval", overrides.SaveSampleInterval, "iterations between collecting alpha statistics")
	f.IntVar(&overrides.TemperingInterval, "tempering-interval", overrides.TemperingInterval, "iterations between resetting alpha, 0 disables it")
	f.IntVar(&overrides.LikelihoodInterval, "likelihood-interval", overrides.LikelihoodInterval, "iterations between log likelihood reports, 0 disables them")
	f.IntVar(&overrides.ShowTopicsInterval, "show-topics-interval", overrides.ShowTopicsInterval, "iterations between top word reports, 0 disables them")
	f.IntVar(&overrides.SaveStateInterval, "save-state-interval", overrides.SaveStateInterval, "iterations between state checkpoints written to <state-out>.<iteration>")
	f.BoolVar(&overrides.SymmetricAlpha, "symmetric-alpha", overrides.SymmetricAlpha, "keep the document-topic prior symmetric")
	f.Int64Var(&overrides.Seed, "seed", overrides.Seed, "random seed, negative seeds from the clock")
	f.StringVar(&overrides.StateIn, "state-in", "", "resume from a saved state")
	f.StringVar(&overrides.StateOut, "state-out", "", "save the final state")
	f.StringVar(&overrides.CountsOut, "counts-out", "", "write the type-topic counts")
	f.StringVar(&overrides.PhiOut, "phi-out", "", "write the topic-word distributions")
	f.StringVar(&overrides.ThetaOut, "theta-out", "", "write the document-topic distributions")
	f.IntVar(&overrides.TopWords, "top-words", overrides.TopWords, "words to print per topic")
}

// applyOverrides copies the flags given on the command line over cfg.
func applyOverrides(f *pflag.FlagSet, cfg, overrides *config.Config) {
	set := func(name string, apply func()) {
		if f.Changed(name) {
			apply()
		}
	}
	set("input", func() { cfg.Input = overrides.Input })
	set("model", func() { cfg.Model = overrides.Model })
	set("topics", func() { cfg.Topics = overrides.Topics })
	set("alpha-sum", func() { cfg.AlphaSum = overrides.AlphaSum })
	set("beta", func() { cfg.Beta = overrides.Beta })
	set("threads", func() { cfg.Threads = overrides.Threads })
	set("iterations", func() { cfg.Iterations = overrides.Iterations })
	set("burnin", func() { cfg.Burnin = overrides.Burnin })
	set("optimize-interval", func() { cfg.OptimizeInterval = overrides.OptimizeInterval })
	set("save-sample-interval", func() { cfg.SaveSampleInterval = overrides.SaveSampleInterval })
	set("tempering-interval", func() { cfg.TemperingInterval = overrides.TemperingInterval })
	set("likelihood-interval", func() { cfg.LikelihoodInterval = overrides.LikelihoodInterval })
	set("show-topics-interval", func() { cfg.ShowTopicsInterval = overrides.ShowTopicsInterval })
	set("save-state-interval", func() { cfg.SaveStateInterval = overrides.SaveStateInterval })
	set("symmetric-alpha", func() { cfg.SymmetricAlpha = overrides.SymmetricAlpha })
	set("seed", func() { cfg.Seed = overrides.Seed })
	set("state-in", func() { cfg.StateIn = overrides.StateIn })
	set("state-out", func() { cfg.StateOut = overrides.StateOut })
	set("counts-out", func() { cfg.CountsOut = overrides.CountsOut })
	set("phi-out", func() { cfg.PhiOut = overrides.PhiOut })
	set("theta-out", func() { cfg.ThetaOut = overrides.ThetaOut })
	set("top-words", func() { cfg.TopWords = overrides.TopWords })
}

func train(ctx context.Context, cfg *config.Config) error {
	// read training data
	data, err := corpus.Load(cfg.Input)
	if err != nil {
		return err
	}

	// init model
	m, err := newModel(cfg, data)
	if err != nil {
		return err
	}

	if err := m.Estimate(ctx, cfg.Iterations); err != nil {
		return err
	}

	if cfg.StateOut != "" {
		if err := writeFile(cfg.StateOut, m.WriteState); err != nil {
			return err
		}
	}
	if cfg.CountsOut != "" {
		if err := writeFile(cfg.CountsOut, m.Table().Serialize); err != nil {
			return err
		}
	}
	if cfg.PhiOut != "" {
		if err := writeFile(cfg.PhiOut, m.Phi().Serialize); err != nil {
			return err
		}
	}
	if cfg.ThetaOut != "" {
		if err := writeFile(cfg.ThetaOut, m.Theta().Serialize); err != nil {
			return err
		}
	}

	for topic, words := range m.TopWords(cfg.TopWords) {
		log.Infof("topic %d: %s", topic, model.FormatTopWords(words))
	}
	return nil
}

func newModel(cfg *config.Config, data *corpus.Corpus) (model.Model, error) {
	if cfg.StateIn == "" {
		ctor, err := model.GetModel(cfg.Model)
		if err != nil {
			return nil, err
		}
		return ctor(data, cfg.Options())
	}

	f, err := os.Open(cfg.StateIn)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	st, err := model.ReadState(bufio.NewReader(f))
	if err != nil {
		return nil, err
	}
	log.Infof("resuming from %s at iteration %d", cfg.StateIn, st.Iteration)
	return model.Restore(data, cfg.Options(), st)
}

func writeFile(fn string, write func(w io.Writer) error) error {
	out, err := os.OpenFile(fn, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	if err := write(out); err != nil {
		out.Close()
		return fmt.Errorf("write %s: %w", fn, err)
	}
	log.Infof("wrote %s", fn)
	return out.Close()
}
