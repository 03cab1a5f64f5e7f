package model

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	log "github.com/golang/glog"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/bobonovski/plda/corpus"
	"github.com/bobonovski/plda/matrix"
	"github.com/bobonovski/plda/sstable"
)

// Inferencer samples the topics of new documents against a fixed
// topic-word distribution. Nothing learned in training is modified, so
// documents are sampled independently of each other.
type Inferencer struct {
	phi      *matrix.Float64Matrix
	known    []bool
	alpha    []float64
	alphaSum float64
	prior    PriorProvider
}

// InferOptions configures Infer.
type InferOptions struct {
	Iterations   int
	BurninPeriod int
	NumThreads   int
	// Seed < 0 seeds from the clock.
	Seed int64
}

func DefaultInferOptions() InferOptions {
	return InferOptions{
		Iterations:   100,
		BurninPeriod: 10,
		NumThreads:   1,
		Seed:         -1,
	}
}

// NewInferencer uses phi (one row per type) and the document-topic
// prior alpha. Every type of phi is considered known.
func NewInferencer(phi *matrix.Float64Matrix, alpha []float64) (*Inferencer, error) {
	_, numTopics := phi.Shape()
	if numTopics != len(alpha) || numTopics == 0 {
		return nil, fmt.Errorf("%w: %d topics with %d alpha values", ErrBadOptions, numTopics, len(alpha))
	}
	for topic, a := range alpha {
		if !positive(a) {
			return nil, fmt.Errorf("%w: alpha[%d] is %g", ErrBadOptions, topic, a)
		}
	}
	return &Inferencer{
		phi:      phi,
		alpha:    append([]float64(nil), alpha...),
		alphaSum: floats.Sum(alpha),
	}, nil
}

// NewTableInferencer smooths the counts of table with beta. Types that
// never occurred in training are skipped.
func NewTableInferencer(table *sstable.TypeTopicTable, alpha []float64, beta float64) (*Inferencer, error) {
	if !positive(beta) {
		return nil, fmt.Errorf("%w: beta %g", ErrBadOptions, beta)
	}
	tokensPerTopic := make([]int, table.NumTopics())
	known := make([]bool, table.NumTypes())
	for typ := range known {
		known[typ] = table.TypeTotal(typ) > 0
		table.ForEach(typ, func(topic, count int) {
			tokensPerTopic[topic] += count
		})
	}

	phi := tablePhi(table, tokensPerTopic, beta, beta*float64(table.NumTypes()))
	inf, err := NewInferencer(phi, alpha)
	if err != nil {
		return nil, err
	}
	inf.known = known
	return inf, nil
}

// StateInferencer loads the counts and hyperparameters of a saved state.
func StateInferencer(st *State) (*Inferencer, error) {
	typeTotals := make([]int, st.NumTypes)
	for d, types := range st.Types {
		for _, typ := range types {
			if typ < 0 || typ >= st.NumTypes {
				return nil, fmt.Errorf("%w: document %d has type %d of %d", ErrStateMismatch, d, typ, st.NumTypes)
			}
			typeTotals[typ]++
		}
	}
	table, err := sstable.NewTypeTopicTable(st.NumTopics, typeTotals)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStateMismatch, err)
	}
	if err := table.SetRows(st.TypeTopic); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStateMismatch, err)
	}
	return NewTableInferencer(table, st.Alpha, st.Beta)
}

// Inferencer freezes the current counts for inference on new documents.
func (m *ParallelLDA) Inferencer() (*Inferencer, error) {
	inf, err := NewTableInferencer(m.table, m.alpha, m.beta)
	if err != nil {
		return nil, err
	}
	inf.prior = m.opts.Prior
	return inf, nil
}

func (inf *Inferencer) NumTopics() int { return len(inf.alpha) }

func (inf *Inferencer) knows(typ int) bool {
	rows, _ := inf.phi.Shape()
	return typ >= 0 && typ < rows && (inf.known == nil || inf.known[typ])
}

// Infer returns the document-topic distributions of data, one row per
// document, averaged over the sweeps after the burn-in.
func (inf *Inferencer) Infer(ctx context.Context, data *corpus.Corpus, opts InferOptions) (*matrix.Float64Matrix, error) {
	switch {
	case opts.NumThreads <= 0:
		return nil, fmt.Errorf("%w: %d threads", ErrBadOptions, opts.NumThreads)
	case opts.BurninPeriod < 0 || opts.Iterations <= opts.BurninPeriod:
		return nil, fmt.Errorf("%w: %d iterations with burn-in %d",
			ErrBadOptions, opts.Iterations, opts.BurninPeriod)
	}
	seed := opts.Seed
	if seed < 0 {
		seed = time.Now().UnixNano()
	}
	start := time.Now()

	theta, err := matrix.NewFloat64Matrix(len(data.Docs), inf.NumTopics())
	if err != nil {
		return nil, err
	}
	var skipped atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.NumThreads)
	for d, doc := range data.Docs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewPCG(uint64(seed), uint64(d)))
			skipped.Add(int64(inf.sampleDocument(doc, theta.Row(d), opts, rng)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Infof("inferred %d documents in %v, %d unknown tokens skipped",
		len(data.Docs), time.Since(start).Round(time.Millisecond), skipped.Load())
	return theta, nil
}

// sampleDocument writes the topic distribution of doc into row and
// returns the number of tokens it could not sample.
func (inf *Inferencer) sampleDocument(doc *corpus.Document, row []float64,
	opts InferOptions, rng *rand.Rand) int {
	numTopics := inf.NumTopics()
	alpha, alphaSum := inf.alpha, inf.alphaSum
	if inf.prior != nil {
		alpha = make([]float64, numTopics)
		alphaSum = inf.prior.DocumentAlpha(doc, alpha)
	}

	tokens := make([]int, 0, doc.Len())
	for _, typ := range doc.Tokens {
		if inf.knows(typ) {
			tokens = append(tokens, typ)
		}
	}

	topics := make([]int, len(tokens))
	topicCounts := make([]int, numTopics)
	for pos := range topics {
		topics[pos] = rng.IntN(numTopics)
		topicCounts[topics[pos]]++
	}

	cumulative := make([]float64, numTopics)
	samples := 0
	for iteration := 1; iteration <= opts.Iterations; iteration++ {
		for pos, typ := range tokens {
			topicCounts[topics[pos]]--

			phi := inf.phi.Row(typ)
			total := 0.0
			for topic := range cumulative {
				total += (alpha[topic] + float64(topicCounts[topic])) * phi[topic]
				cumulative[topic] = total
			}

			sample := rng.Float64() * total
			newTopic := numTopics - 1
			for topic, c := range cumulative {
				if sample < c {
					newTopic = topic
					break
				}
			}

			topics[pos] = newTopic
			topicCounts[newTopic]++
		}

		if iteration > opts.BurninPeriod {
			for topic, n := range topicCounts {
				row[topic] += float64(n)
			}
			samples++
		}
	}

	denom := float64(len(tokens)) + alphaSum
	for topic := range row {
		row[topic] = (row[topic]/float64(samples) + alpha[topic]) / denom
	}
	return doc.Len() - len(tokens)
}
