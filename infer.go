package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/bobonovski/plda/corpus"
	"github.com/bobonovski/plda/matrix"
	"github.com/bobonovski/plda/model"
	"github.com/bobonovski/plda/sstable"
)

// inferConfig describes one inference run. Exactly one of StateIn,
// CountsIn and PhiIn names the trained model.
type inferConfig struct {
	Input    string
	StateIn  string
	CountsIn string
	PhiIn    string
	ThetaOut string

	// prior for counts and phi input, a state carries its own
	AlphaSum float64
	Beta     float64

	Options model.InferOptions
}

func newInferCmd() *cobra.Command {
	defaults := model.DefaultOptions()
	cfg := inferConfig{
		AlphaSum: defaults.AlphaSum,
		Beta:     defaults.Beta,
		Options:  model.DefaultInferOptions(),
	}

	cmd := &cobra.Command{
		Use:   "infer",
		Short: "estimate the topic proportions of new documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return infer(ctx, &cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.Input, "input", "", "documents to infer")
	f.StringVar(&cfg.StateIn, "state-in", "", "trained model state")
	f.StringVar(&cfg.CountsIn, "counts-in", "", "trained type-topic counts")
	f.StringVar(&cfg.PhiIn, "phi-in", "", "trained topic-word distributions")
	f.StringVar(&cfg.ThetaOut, "theta-out", "", "write the document-topic distributions")
	f.Float64Var(&cfg.AlphaSum, "alpha-sum", cfg.AlphaSum, "sum of the document-topic prior for counts or phi input")
	f.Float64Var(&cfg.Beta, "beta", cfg.Beta, "topic-word prior for counts input")
	f.IntVarP(&cfg.Options.Iterations, "iterations", "n", cfg.Options.Iterations, "number of iterations")
	f.IntVar(&cfg.Options.BurninPeriod, "burnin", cfg.Options.BurninPeriod, "iterations before averaging")
	f.IntVarP(&cfg.Options.NumThreads, "threads", "t", cfg.Options.NumThreads, "number of sampling threads")
	f.Int64Var(&cfg.Options.Seed, "seed", cfg.Options.Seed, "random seed, negative seeds from the clock")
	return cmd
}

func infer(ctx context.Context, cfg *inferConfig) error {
	if cfg.Input == "" {
		return errors.New("infer: input is required")
	}
	inf, err := loadInferencer(cfg)
	if err != nil {
		return err
	}

	data, err := corpus.Load(cfg.Input)
	if err != nil {
		return err
	}
	theta, err := inf.Infer(ctx, data, cfg.Options)
	if err != nil {
		return err
	}

	if cfg.ThetaOut != "" {
		return writeFile(cfg.ThetaOut, theta.Serialize)
	}
	return nil
}

func loadInferencer(cfg *inferConfig) (*model.Inferencer, error) {
	given := 0
	for _, fn := range []string{cfg.StateIn, cfg.CountsIn, cfg.PhiIn} {
		if fn != "" {
			given++
		}
	}
	if given != 1 {
		return nil, errors.New("infer: exactly one of state-in, counts-in and phi-in is required")
	}
	if cfg.StateIn == "" && cfg.AlphaSum <= 0 {
		return nil, fmt.Errorf("infer: alpha sum must be positive, got %g", cfg.AlphaSum)
	}

	switch {
	case cfg.StateIn != "":
		f, err := os.Open(cfg.StateIn)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		st, err := model.ReadState(bufio.NewReader(f))
		if err != nil {
			return nil, err
		}
		log.Infof("inferring with %s from iteration %d", cfg.StateIn, st.Iteration)
		return model.StateInferencer(st)

	case cfg.CountsIn != "":
		f, err := os.Open(cfg.CountsIn)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		table, err := sstable.Deserialize(bufio.NewReader(f), nil)
		if err != nil {
			return nil, err
		}
		return model.NewTableInferencer(table, symmetricAlpha(cfg.AlphaSum, table.NumTopics()), cfg.Beta)

	default:
		f, err := os.Open(cfg.PhiIn)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		phi, err := matrix.Deserialize(bufio.NewReader(f))
		if err != nil {
			return nil, err
		}
		_, numTopics := phi.Shape()
		return model.NewInferencer(phi, symmetricAlpha(cfg.AlphaSum, numTopics))
	}
}

func symmetricAlpha(alphaSum float64, numTopics int) []float64 {
	alpha := make([]float64, numTopics)
	for topic := range alpha {
		alpha[topic] = alphaSum / float64(numTopics)
	}
	return alpha
}
