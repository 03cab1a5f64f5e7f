package model

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"io"
	"math"
	"os"

	log "github.com/golang/glog"
	"github.com/klauspost/compress/zstd"

	"github.com/bobonovski/plda/corpus"
)

const stateVersion = 1

// State is everything needed to continue sampling exactly where a
// model stopped. It is only taken between iterations.
type State struct {
	Version   int
	NumTopics int
	NumTypes  int
	TopicBits uint
	TopicMask uint32
	Iteration int
	Seed      int64

	Alpha    []float64
	AlphaSum float64
	Beta     float64
	BetaSum  float64

	// per document token types and their topics
	Types  [][]int
	Topics [][]int

	TypeTopic      [][]uint32
	TokensPerTopic []int

	Workers []WorkerState
}

type WorkerState struct {
	RNG             []byte
	DocLengthCounts []int
	TopicDocCounts  [][]int
	Unresolved      int
}

func copyInts(src []int) []int { return append([]int(nil), src...) }

// Snapshot copies the model state.
func (m *ParallelLDA) Snapshot() (*State, error) {
	st := &State{
		Version:        stateVersion,
		NumTopics:      m.numTopics,
		NumTypes:       m.numTypes,
		TopicBits:      m.table.TopicBits(),
		TopicMask:      m.table.TopicMask(),
		Iteration:      m.iteration,
		Seed:           m.seed,
		Alpha:          append([]float64(nil), m.alpha...),
		AlphaSum:       m.alphaSum,
		Beta:           m.beta,
		BetaSum:        m.betaSum,
		Types:          make([][]int, len(m.docs)),
		Topics:         make([][]int, len(m.docs)),
		TypeTopic:      make([][]uint32, m.numTypes),
		TokensPerTopic: copyInts(m.tokensPerTopic),
		Workers:        make([]WorkerState, len(m.workers)),
	}
	for d, doc := range m.docs {
		st.Types[d] = copyInts(doc.Doc.Tokens)
		st.Topics[d] = copyInts(doc.Topics)
	}
	for typ, row := range m.table.Rows() {
		st.TypeTopic[typ] = append([]uint32(nil), row...)
	}
	for thread, w := range m.workers {
		rng, err := w.src.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("model: thread %d: %w", thread, err)
		}
		ws := WorkerState{
			RNG:             rng,
			DocLengthCounts: copyInts(w.docLengthCounts),
			TopicDocCounts:  make([][]int, len(w.topicDocCounts)),
			Unresolved:      w.unresolved,
		}
		for topic, hist := range w.topicDocCounts {
			ws.TopicDocCounts[topic] = copyInts(hist)
		}
		st.Workers[thread] = ws
	}
	return st, nil
}

// WriteState writes a zstd compressed gob encoding of the model state.
func (m *ParallelLDA) WriteState(w io.Writer) error {
	st, err := m.Snapshot()
	if err != nil {
		return err
	}
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(zw).Encode(st); err != nil {
		zw.Close()
		return fmt.Errorf("model: encode state: %w", err)
	}
	return zw.Close()
}

func (m *ParallelLDA) saveState(fn string) error {
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	out := bufio.NewWriter(f)
	if err := m.WriteState(out); err != nil {
		f.Close()
		return fmt.Errorf("model: save state %s: %w", fn, err)
	}
	if err := out.Flush(); err != nil {
		f.Close()
		return err
	}
	log.Infof("<%d> saved state to %s", m.iteration, fn)
	return f.Close()
}

// ReadState reads a state written by WriteState.
func ReadState(r io.Reader) (*State, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	st := &State{}
	if err := gob.NewDecoder(zr).Decode(st); err != nil {
		return nil, fmt.Errorf("model: decode state: %w", err)
	}
	if st.Version != stateVersion {
		return nil, fmt.Errorf("%w: state version %d", ErrStateMismatch, st.Version)
	}
	return st, nil
}

// Restore rebuilds a model from data and a captured state. The corpus,
// topic count and thread count must be the ones the state was taken
// with; hyperparameters and the seed come from the state.
func Restore(data *corpus.Corpus, opts Options, st *State) (*ParallelLDA, error) {
	if err := checkState(data, opts, st); err != nil {
		return nil, err
	}
	opts.Seed = st.Seed
	m, err := newParallelLDA(data, opts)
	if err != nil {
		return nil, err
	}

	copy(m.alpha, st.Alpha)
	m.alphaSum = st.AlphaSum
	m.beta = st.Beta
	m.betaSum = st.BetaSum
	m.iteration = st.Iteration

	m.docs = make([]*TopicAssignment, len(data.Docs))
	for d, doc := range data.Docs {
		m.docs[d] = &TopicAssignment{Doc: doc, Topics: copyInts(st.Topics[d])}
	}
	m.buildInitialTypeTopicCounts()

	if m.table.TopicBits() != st.TopicBits || m.table.TopicMask() != st.TopicMask {
		return nil, fmt.Errorf("%w: topic bits %d/%b, state has %d/%b", ErrStateMismatch,
			m.table.TopicBits(), m.table.TopicMask(), st.TopicBits, st.TopicMask)
	}
	for topic, n := range m.tokensPerTopic {
		if st.TokensPerTopic[topic] != n {
			return nil, fmt.Errorf("%w: topic %d holds %d tokens, state has %d",
				ErrStateMismatch, topic, n, st.TokensPerTopic[topic])
		}
	}
	for typ, row := range m.table.Rows() {
		if !sameCells(row, st.TypeTopic[typ]) {
			return nil, fmt.Errorf("%w: type %d counts differ from assignments", ErrStateMismatch, typ)
		}
	}

	m.initializeWorkers()
	for thread, w := range m.workers {
		ws := st.Workers[thread]
		if err := w.src.UnmarshalBinary(ws.RNG); err != nil {
			return nil, fmt.Errorf("%w: thread %d: %v", ErrStateMismatch, thread, err)
		}
		copy(w.docLengthCounts, ws.DocLengthCounts)
		for topic, hist := range ws.TopicDocCounts {
			copy(w.topicDocCounts[topic], hist)
		}
		w.unresolved = ws.Unresolved
	}
	return m, nil
}

func checkState(data *corpus.Corpus, opts Options, st *State) error {
	switch {
	case st.NumTopics != opts.NumTopics:
		return fmt.Errorf("%w: %d topics, state has %d", ErrStateMismatch, opts.NumTopics, st.NumTopics)
	case st.NumTypes != data.VocabSize:
		return fmt.Errorf("%w: %d types, state has %d", ErrStateMismatch, data.VocabSize, st.NumTypes)
	case len(st.Workers) != opts.NumThreads:
		return fmt.Errorf("%w: %d threads, state has %d", ErrStateMismatch, opts.NumThreads, len(st.Workers))
	case len(st.Topics) != len(data.Docs) || len(st.Types) != len(data.Docs):
		return fmt.Errorf("%w: %d documents, state has %d", ErrStateMismatch, len(data.Docs), len(st.Topics))
	case len(st.Alpha) != st.NumTopics || len(st.TokensPerTopic) != st.NumTopics:
		return fmt.Errorf("%w: hyperparameters do not cover %d topics", ErrStateMismatch, st.NumTopics)
	case len(st.TypeTopic) != st.NumTypes:
		return fmt.Errorf("%w: %d type rows for %d types", ErrStateMismatch, len(st.TypeTopic), st.NumTypes)
	case !positive(st.AlphaSum) || !positive(st.Beta) || !positive(st.BetaSum):
		return fmt.Errorf("%w: alpha sum %g, beta %g, beta sum %g",
			ErrStateMismatch, st.AlphaSum, st.Beta, st.BetaSum)
	}
	for topic, a := range st.Alpha {
		if !positive(a) {
			return fmt.Errorf("%w: alpha[%d] is %g", ErrStateMismatch, topic, a)
		}
	}

	_, maxDocLength := data.TotalTokens()
	for thread, ws := range st.Workers {
		if len(ws.DocLengthCounts) > maxDocLength+1 || len(ws.TopicDocCounts) != st.NumTopics {
			return fmt.Errorf("%w: thread %d statistics do not fit %d topics and length %d",
				ErrStateMismatch, thread, st.NumTopics, maxDocLength)
		}
		for topic, hist := range ws.TopicDocCounts {
			if len(hist) > maxDocLength+1 {
				return fmt.Errorf("%w: thread %d topic %d histogram has %d bins",
					ErrStateMismatch, thread, topic, len(hist))
			}
		}
	}

	for d, doc := range data.Docs {
		types, topics := st.Types[d], st.Topics[d]
		if len(types) != doc.Len() || len(topics) != doc.Len() {
			return fmt.Errorf("%w: document %d has %d tokens, state has %d",
				ErrStateMismatch, d, doc.Len(), len(topics))
		}
		for pos, typ := range doc.Tokens {
			if types[pos] != typ {
				return fmt.Errorf("%w: document %d token %d is type %d, state has %d",
					ErrStateMismatch, d, pos, typ, types[pos])
			}
			if topics[pos] < 0 || topics[pos] >= st.NumTopics {
				return fmt.Errorf("%w: document %d token %d has topic %d",
					ErrStateMismatch, d, pos, topics[pos])
			}
		}
	}
	return nil
}

func positive(x float64) bool { return x > 0 && !math.IsInf(x, 1) }

// sameCells compares the nonzero prefixes of two rows.
func sameCells(a, b []uint32) bool {
	for i := 0; i < max(len(a), len(b)); i++ {
		var x, y uint32
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		if x != y {
			return false
		}
		if x == 0 {
			return true
		}
	}
	return true
}
