package model

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/bobonovski/plda/corpus"
	"github.com/bobonovski/plda/matrix"
	"github.com/bobonovski/plda/sstable"
)

var constructors = make(map[string]ModelCtor)

func init() {
	Register("parallellda", func(data *corpus.Corpus, opts Options) (Model, error) {
		return NewParallelLDA(data, opts)
	})
}

// the common interface topic model samplers should follow
type Model interface {
	// run iterations more sweeps of the sampler
	Estimate(ctx context.Context, iterations int) error
	// get word-topic distribution
	Phi() *matrix.Float64Matrix
	// get doc-topic distribution
	Theta() *matrix.Float64Matrix
	// most frequent types of every topic
	TopWords(n int) [][]TypeCount
	LogLikelihood() float64
	// word topic count table
	Table() *sstable.TypeTopicTable
	// serialize the sampler state for resuming
	WriteState(w io.Writer) error
	// freeze the counts for inference on new documents
	Inferencer() (*Inferencer, error)
}

var _ Model = (*ParallelLDA)(nil)

// new samplers should register themselves using this function
func Register(modelType string, m ModelCtor) {
	constructors[modelType] = m
}

type ModelCtor func(data *corpus.Corpus, opts Options) (Model, error)

func GetModel(modelType string) (ModelCtor, error) {
	if _, ok := constructors[modelType]; !ok {
		return nil, fmt.Errorf("model %s not registered", modelType)
	}
	return constructors[modelType], nil
}

// Models lists the registered model types.
func Models() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
