package model

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobonovski/plda/matrix"
	"github.com/bobonovski/plda/sstable"
)

// blockPhi gives topic t almost all of its mass on types 2t and 2t+1.
func blockPhi(t *testing.T, numTopics int) *matrix.Float64Matrix {
	phi, err := matrix.NewFloat64Matrix(2*numTopics, numTopics)
	require.NoError(t, err)
	for typ := 0; typ < 2*numTopics; typ++ {
		for topic := 0; topic < numTopics; topic++ {
			p := 0.001
			if typ/2 == topic {
				p = 0.5 - 0.001*float64(numTopics-1)/2
			}
			phi.Set(typ, topic, p)
		}
	}
	return phi
}

func argmax(xs []float64) int {
	best := 0
	for i, x := range xs {
		if x > xs[best] {
			best = i
		}
	}
	return best
}

func TestInferSeparatedTopics(t *testing.T) {
	inf, err := NewInferencer(blockPhi(t, 3), []float64{0.1, 0.1, 0.1})
	require.NoError(t, err)

	data := newCorpus(t, [][]int{
		{0, 1, 0, 1, 0},
		{2, 3, 3, 2},
		{4, 5, 4, 4, 5, 5},
		{},
		{9, 12},
	}, 13)
	opts := DefaultInferOptions()
	opts.Seed = 3
	opts.NumThreads = 2
	theta, err := inf.Infer(context.Background(), data, opts)
	require.NoError(t, err)

	rows, cols := theta.Shape()
	assert.Equal(t, 5, rows)
	assert.Equal(t, 3, cols)
	for d := 0; d < rows; d++ {
		sum := 0.0
		for _, p := range theta.Row(d) {
			sum += p
		}
		assert.InDelta(t, 1.0, sum, 1e-9, "document %d", d)
	}
	for d := 0; d < 3; d++ {
		assert.Equal(t, d, argmax(theta.Row(d)))
		assert.Greater(t, theta.Get(d, d), 0.8)
	}
	// no known tokens leaves the prior
	for _, d := range []int{3, 4} {
		for topic := 0; topic < 3; topic++ {
			assert.InDelta(t, 1.0/3, theta.Get(d, topic), 1e-12)
		}
	}
}

func TestInferIsDeterministicAcrossThreads(t *testing.T) {
	inf, err := NewInferencer(blockPhi(t, 2), []float64{0.5, 0.5})
	require.NoError(t, err)
	data := newCorpus(t, [][]int{{0, 2, 1}, {3, 3, 0}, {1, 2}, {0}}, 4)

	opts := DefaultInferOptions()
	opts.Seed = 17
	opts.Iterations = 20
	opts.BurninPeriod = 5
	single, err := inf.Infer(context.Background(), data, opts)
	require.NoError(t, err)
	opts.NumThreads = 3
	parallel, err := inf.Infer(context.Background(), data, opts)
	require.NoError(t, err)
	assert.Equal(t, single, parallel)
}

func TestInferBadOptions(t *testing.T) {
	inf, err := NewInferencer(blockPhi(t, 2), []float64{0.5, 0.5})
	require.NoError(t, err)
	data := newCorpus(t, [][]int{{0}}, 4)

	for _, mutate := range []func(*InferOptions){
		func(o *InferOptions) { o.NumThreads = 0 },
		func(o *InferOptions) { o.BurninPeriod = -1 },
		func(o *InferOptions) { o.Iterations = o.BurninPeriod },
	} {
		opts := DefaultInferOptions()
		mutate(&opts)
		_, err := inf.Infer(context.Background(), data, opts)
		assert.ErrorIs(t, err, ErrBadOptions)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = inf.Infer(ctx, data, DefaultInferOptions())
	assert.ErrorIs(t, err, context.Canceled)

	_, err = NewInferencer(blockPhi(t, 2), []float64{0.5})
	assert.ErrorIs(t, err, ErrBadOptions)
	_, err = NewInferencer(blockPhi(t, 2), []float64{0.5, 0})
	assert.ErrorIs(t, err, ErrBadOptions)
}

func TestTableInferencerSkipsUnseenTypes(t *testing.T) {
	table, err := sstable.NewTypeTopicTable(2, []int{2, 0, 1})
	require.NoError(t, err)
	table.Increment(0, 0)
	table.Increment(0, 0)
	table.Increment(2, 1)

	inf, err := NewTableInferencer(table, []float64{1, 1}, 0.01)
	require.NoError(t, err)
	assert.True(t, inf.knows(0))
	assert.False(t, inf.knows(1))
	assert.False(t, inf.knows(3))

	data := newCorpus(t, [][]int{{1, 1}}, 3)
	theta, err := inf.Infer(context.Background(), data, DefaultInferOptions())
	require.NoError(t, err)
	assert.InDelta(t, 0.5, theta.Get(0, 0), 1e-12)

	_, err = NewTableInferencer(table, []float64{1, 1}, 0)
	assert.ErrorIs(t, err, ErrBadOptions)
}

func TestModelAndStateInferencersAgree(t *testing.T) {
	data := separableCorpus(t, 12)
	opts := testOptions(3, 2)
	opts.BurninPeriod = 2
	opts.OptimizeInterval = 2
	opts.SaveSampleInterval = 1
	m := newModel(t, data, opts)
	require.NoError(t, m.Estimate(context.Background(), 6))

	fromModel, err := m.Inferencer()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, m.WriteState(&buf))
	st, err := ReadState(&buf)
	require.NoError(t, err)
	fromState, err := StateInferencer(st)
	require.NoError(t, err)
	assert.Equal(t, fromModel.phi, fromState.phi)

	held := newCorpus(t, [][]int{{0, 1, 2, 3}, {10, 11, 14, 12}, {5, 6}}, 15)
	inferOpts := DefaultInferOptions()
	inferOpts.Seed = 5
	a, err := fromModel.Infer(context.Background(), held, inferOpts)
	require.NoError(t, err)
	b, err := fromState.Infer(context.Background(), held, inferOpts)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	st.TypeTopic[0] = nil
	_, err = StateInferencer(st)
	assert.ErrorIs(t, err, ErrStateMismatch)
}
