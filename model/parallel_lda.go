package model

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	log "github.com/golang/glog"
	"golang.org/x/sync/errgroup"

	"github.com/bobonovski/plda/corpus"
	"github.com/bobonovski/plda/sstable"
)

// ParallelLDA is a collapsed Gibbs sampler for LDA that splits the
// documents over a fixed pool of workers. Each iteration every worker
// sweeps its shard against a private copy of the counts; the copies are
// then summed into the authoritative table and broadcast back.
type ParallelLDA struct {
	opts Options
	data *corpus.Corpus
	docs []*TopicAssignment

	numTopics    int
	numTypes     int
	totalTokens  int
	maxDocLength int

	alpha    []float64
	alphaSum float64
	beta     float64
	betaSum  float64

	table          *sstable.TypeTopicTable
	tokensPerTopic []int

	// dirichlet sufficient statistics reduced from the workers
	docLengthCounts []int
	topicDocCounts  [][]int

	workers   []*Worker
	iteration int
	seed      int64
}

// NewParallelLDA assigns a random topic to every token and prepares the
// workers.
func NewParallelLDA(data *corpus.Corpus, opts Options) (*ParallelLDA, error) {
	m, err := newParallelLDA(data, opts)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewPCG(uint64(m.seed), 0))
	m.docs = make([]*TopicAssignment, len(data.Docs))
	for i, doc := range data.Docs {
		topics := make([]int, doc.Len())
		for pos := range topics {
			topics[pos] = rng.IntN(m.numTopics)
		}
		m.docs[i] = &TopicAssignment{Doc: doc, Topics: topics}
	}

	m.buildInitialTypeTopicCounts()
	m.initializeWorkers()
	return m, nil
}

func newParallelLDA(data *corpus.Corpus, opts Options) (*ParallelLDA, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	table, err := sstable.NewTypeTopicTable(opts.NumTopics, data.TypeTotals())
	if err != nil {
		return nil, fmt.Errorf("model: %w", err)
	}
	totalTokens, maxDocLength := data.TotalTokens()

	m := &ParallelLDA{
		opts:            opts,
		data:            data,
		numTopics:       opts.NumTopics,
		numTypes:        data.VocabSize,
		totalTokens:     totalTokens,
		maxDocLength:    maxDocLength,
		alpha:           make([]float64, opts.NumTopics),
		alphaSum:        opts.AlphaSum,
		beta:            opts.Beta,
		betaSum:         opts.Beta * float64(data.VocabSize),
		table:           table,
		tokensPerTopic:  make([]int, opts.NumTopics),
		docLengthCounts: make([]int, maxDocLength+1),
		topicDocCounts:  make([][]int, opts.NumTopics),
		seed:            opts.Seed,
	}
	for topic := range m.alpha {
		m.alpha[topic] = opts.AlphaSum / float64(opts.NumTopics)
		m.topicDocCounts[topic] = make([]int, maxDocLength+1)
	}
	if m.seed < 0 {
		m.seed = time.Now().UnixNano()
	}

	log.Infof("%d documents, %d types, %d tokens, longest document %d",
		len(data.Docs), m.numTypes, totalTokens, maxDocLength)
	log.Infof("type-topic table: %s, max type count %d", table.Summary(), table.MaxTypeCount())
	return m, nil
}

func (m *ParallelLDA) buildInitialTypeTopicCounts() {
	clear(m.tokensPerTopic)
	m.table.ClearCounts()
	for _, doc := range m.docs {
		for pos, topic := range doc.Topics {
			m.tokensPerTopic[topic]++
			m.table.Increment(doc.Doc.Tokens[pos], topic)
		}
	}
}

func (m *ParallelLDA) initializeWorkers() {
	numThreads := m.opts.NumThreads
	docsPerThread := len(m.docs) / numThreads
	m.workers = make([]*Worker, numThreads)

	offset := 0
	for thread := range m.workers {
		count := docsPerThread
		if thread == numThreads-1 {
			count = len(m.docs) - offset
		}

		table, totals := m.table, m.tokensPerTopic
		if numThreads > 1 {
			table = m.table.Clone()
			totals = append([]int(nil), m.tokensPerTopic...)
		}
		alpha := m.alpha
		if m.opts.Prior != nil {
			alpha = append([]float64(nil), m.alpha...)
		}

		w := newWorker(thread, m.docs, offset, count, alpha, m.beta, m.betaSum,
			table, totals, m.maxDocLength, uint64(m.seed))
		w.prior = m.opts.Prior
		if numThreads == 1 {
			w.makeOnlyThread()
		}
		m.workers[thread] = w
		offset += count
	}
}

// Estimate runs numIterations more sweeps. ctx is only checked between
// iterations.
func (m *ParallelLDA) Estimate(ctx context.Context, numIterations int) error {
	start := time.Now()

	for i := 0; i < numIterations; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.iteration++
		iteration := m.iteration
		iterationStart := time.Now()

		if m.collectsStatistics(iteration) {
			for _, w := range m.workers {
				w.collectAlphaStatistics()
			}
		}

		if len(m.workers) > 1 {
			if err := m.runWorkers(); err != nil {
				return err
			}
			if err := m.syncTypeTopicCounts(); err != nil {
				return err
			}
		} else if err := m.workers[0].Run(); err != nil {
			return err
		}
		log.V(1).Infof("<%d> sampled in %v", iteration, time.Since(iterationStart))

		afterBurnin := iteration > m.opts.BurninPeriod
		tempering := afterBurnin && due(iteration, m.opts.TemperingInterval)
		if tempering {
			// the alpha statistics are dropped, only beta is refit
			m.temperAlpha()
		}
		if afterBurnin && due(iteration, m.opts.OptimizeInterval) {
			if !tempering {
				m.updateAlphaStatistics()
				m.optimizeAlpha()
			}
			m.optimizeBeta()
		}

		if due(iteration, m.opts.LikelihoodInterval) && m.totalTokens > 0 {
			log.Infof("<%d> LL/token: %.5f", iteration, m.LogLikelihood()/float64(m.totalTokens))
		}
		if due(iteration, m.opts.ShowTopicsInterval) {
			for topic, words := range m.TopWords(m.opts.WordsPerTopic) {
				log.Infof("<%d> topic %d: %s", iteration, topic, FormatTopWords(words))
			}
		}
		if due(iteration, m.opts.SaveStateInterval) {
			if err := m.saveState(fmt.Sprintf("%s.%d", m.opts.StatePath, iteration)); err != nil {
				return err
			}
		}
	}

	log.Infof("total time: %v", time.Since(start).Round(time.Millisecond))
	return nil
}

func due(iteration, interval int) bool {
	return interval > 0 && iteration%interval == 0
}

func (m *ParallelLDA) collectsStatistics(iteration int) bool {
	return iteration > m.opts.BurninPeriod && m.opts.OptimizeInterval != 0 &&
		iteration%m.opts.SaveSampleInterval == 0
}

// runWorkers submits every worker and waits for all of them.
func (m *ParallelLDA) runWorkers() error {
	var g errgroup.Group
	g.SetLimit(len(m.workers))
	for thread, w := range m.workers {
		log.V(2).Infof("submitting thread %d", thread)
		g.Go(w.Run)
	}
	return g.Wait()
}

// syncTypeTopicCounts sums the worker counts into the model and hands
// the result back to every worker.
func (m *ParallelLDA) syncTypeTopicCounts() error {
	clear(m.tokensPerTopic)
	m.table.ClearCounts()
	for _, w := range m.workers {
		if err := w.aggregateTo(m.tokensPerTopic, m.table); err != nil {
			return err
		}
	}
	if log.V(2) {
		if err := m.table.Validate(); err != nil {
			log.Errorf("<%d> %v", m.iteration, err)
		}
	}
	for _, w := range m.workers {
		if err := w.resetTo(m.tokensPerTopic, m.table); err != nil {
			return err
		}
	}
	return nil
}

func (m *ParallelLDA) NumTopics() int { return m.numTopics }

func (m *ParallelLDA) NumTypes() int { return m.numTypes }

func (m *ParallelLDA) TotalTokens() int { return m.totalTokens }

// Iteration is the number of completed sweeps.
func (m *ParallelLDA) Iteration() int { return m.iteration }

func (m *ParallelLDA) Alpha() []float64 { return append([]float64(nil), m.alpha...) }

func (m *ParallelLDA) AlphaSum() float64 { return m.alphaSum }

func (m *ParallelLDA) Beta() float64 { return m.beta }

func (m *ParallelLDA) BetaSum() float64 { return m.betaSum }

// TopicTotals returns the number of tokens assigned to each topic.
func (m *ParallelLDA) TopicTotals() []int { return append([]int(nil), m.tokensPerTopic...) }

// TopicCount is one nonzero cell of a type-topic row.
type TopicCount struct {
	Topic int
	Count int
}

// TypeTopicCounts lists the nonzero topics of type typ, largest count first.
func (m *ParallelLDA) TypeTopicCounts(typ int) []TopicCount {
	var counts []TopicCount
	m.table.ForEach(typ, func(topic, count int) {
		counts = append(counts, TopicCount{Topic: topic, Count: count})
	})
	return counts
}

// Table is the authoritative type-topic table. It must not be modified.
func (m *ParallelLDA) Table() *sstable.TypeTopicTable { return m.table }

// Assignments are the current token topics, in corpus order. They must
// not be modified.
func (m *ParallelLDA) Assignments() []*TopicAssignment { return m.docs }

// Unresolved is the number of draws that had to fall back to the last
// topic.
func (m *ParallelLDA) Unresolved() int {
	n := 0
	for _, w := range m.workers {
		n += w.Unresolved()
	}
	return n
}
