package model

import "fmt"

// Options configures a ParallelLDA.
type Options struct {
	NumTopics int
	// AlphaSum is split evenly over the topics at start.
	AlphaSum float64
	Beta     float64

	NumThreads int

	// hyperparameters are re-estimated every OptimizeInterval
	// iterations once BurninPeriod iterations have passed; 0 disables it
	BurninPeriod       int
	OptimizeInterval   int
	SaveSampleInterval int
	TemperingInterval  int
	SymmetricAlpha     bool

	// Seed < 0 seeds from the clock.
	Seed               int64
	LikelihoodInterval int

	// every ShowTopicsInterval iterations the WordsPerTopic most
	// frequent types of each topic are logged
	ShowTopicsInterval int
	WordsPerTopic      int

	// every SaveStateInterval iterations the state is written to
	// StatePath.<iteration>
	SaveStateInterval int
	StatePath         string

	// Prior replaces the shared alpha with a per-document one when set.
	Prior PriorProvider
}

func DefaultOptions() Options {
	return Options{
		NumTopics:          100,
		AlphaSum:           50.0,
		Beta:               0.01,
		NumThreads:         1,
		BurninPeriod:       200,
		OptimizeInterval:   50,
		SaveSampleInterval: 10,
		LikelihoodInterval: 10,
		WordsPerTopic:      10,
		Seed:               -1,
	}
}

func (o *Options) validate() error {
	switch {
	case o.NumTopics <= 0:
		return fmt.Errorf("%w: %d topics", ErrBadOptions, o.NumTopics)
	case o.AlphaSum <= 0:
		return fmt.Errorf("%w: alpha sum %g", ErrBadOptions, o.AlphaSum)
	case o.Beta <= 0:
		return fmt.Errorf("%w: beta %g", ErrBadOptions, o.Beta)
	case o.NumThreads <= 0:
		return fmt.Errorf("%w: %d threads", ErrBadOptions, o.NumThreads)
	case o.BurninPeriod < 0 || o.OptimizeInterval < 0 || o.SaveSampleInterval < 0 ||
		o.TemperingInterval < 0 || o.LikelihoodInterval < 0 ||
		o.ShowTopicsInterval < 0 || o.SaveStateInterval < 0:
		return fmt.Errorf("%w: negative interval", ErrBadOptions)
	case o.WordsPerTopic < 0:
		return fmt.Errorf("%w: %d words per topic", ErrBadOptions, o.WordsPerTopic)
	case o.SaveStateInterval > 0 && o.StatePath == "":
		return fmt.Errorf("%w: state saving needs a path", ErrBadOptions)
	}

	// make sure there is at least one sample before optimizing
	if o.SaveSampleInterval == 0 || o.SaveSampleInterval > o.OptimizeInterval {
		o.SaveSampleInterval = o.OptimizeInterval
	}
	return nil
}
