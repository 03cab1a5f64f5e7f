package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobonovski/plda/sstable"
)

func TestTopicIndex(t *testing.T) {
	index := make([]int, 5)
	n := 0
	for _, topic := range []int{3, 0, 4, 1} {
		n = insertTopic(index, n, topic)
	}
	assert.Equal(t, []int{0, 1, 3, 4}, index[:n])

	n = removeTopic(index, n, 1)
	assert.Equal(t, []int{0, 3, 4}, index[:n])
	n = removeTopic(index, n, 4)
	assert.Equal(t, []int{0, 3}, index[:n])
	n = insertTopic(index, n, 2)
	assert.Equal(t, []int{0, 2, 3}, index[:n])
}

func TestInitSmoothingOnlyMass(t *testing.T) {
	coefficients := make([]float64, 2)
	mass := initSmoothingOnlyMass(coefficients, []float64{0.5, 1.5}, 0.1, 1.0, []int{3, 1})
	assert.InDelta(t, 0.5*0.1/4+1.5*0.1/2, mass, 1e-15)
	assert.InDelta(t, 0.125, coefficients[0], 1e-15)
	assert.InDelta(t, 0.75, coefficients[1], 1e-15)
}

func TestWorkerRebuildsLocalCounts(t *testing.T) {
	data := newCorpus(t, [][]int{{0, 1, 1}, {2, 0}, {1, 2, 2}}, 3)
	docs := make([]*TopicAssignment, len(data.Docs))
	for d, doc := range data.Docs {
		docs[d] = &TopicAssignment{Doc: doc, Topics: make([]int, doc.Len())}
	}

	table, err := sstable.NewTypeTopicTable(2, data.TypeTotals())
	require.NoError(t, err)
	totals := make([]int, 2)
	for _, doc := range docs {
		for pos, topic := range doc.Topics {
			totals[topic]++
			table.Increment(doc.Doc.Tokens[pos], topic)
		}
	}

	// second shard only
	w := newWorker(1, docs, 1, 2, []float64{0.5, 0.5}, 0.1, 0.3,
		table.Clone(), append([]int(nil), totals...), 3, 7)
	w.collectAlphaStatistics()
	require.NoError(t, w.Run())

	assert.Equal(t, 5, w.tokensPerTopic[0]+w.tokensPerTopic[1])
	assert.Equal(t, 1, w.table.TypeCount(0))
	assert.Equal(t, 1, w.table.TypeCount(1))
	assert.Equal(t, 3, w.table.TypeCount(2))
	assert.False(t, w.collectStatistics)

	// one document of length 2 and one of length 3
	assert.Equal(t, []int{0, 0, 1, 1}, w.docLengthCounts)
	topicDocs := 0
	for _, hist := range w.topicDocCounts {
		for n, count := range hist {
			topicDocs += n * count
		}
	}
	assert.Equal(t, 5, topicDocs)

	// the first shard is untouched
	assert.Equal(t, []int{0, 0, 0}, docs[0].Topics)

	w.resetAlphaStatistics()
	assert.Equal(t, []int{0, 0, 0, 0}, w.docLengthCounts)
}

func TestWorkerUnresolvedDrawFallsBackToLastTopic(t *testing.T) {
	data := newCorpus(t, [][]int{{0, 1, 1, 2}, {2, 0}, {1, 2, 2}}, 3)
	docs := make([]*TopicAssignment, len(data.Docs))
	for d, doc := range data.Docs {
		topics := make([]int, doc.Len())
		for pos := range topics {
			topics[pos] = (d + pos) % 2
		}
		docs[d] = &TopicAssignment{Doc: doc, Topics: topics}
	}

	table, err := sstable.NewTypeTopicTable(3, data.TypeTotals())
	require.NoError(t, err)
	totals := make([]int, 3)
	for _, doc := range docs {
		for pos, topic := range doc.Topics {
			totals[topic]++
			table.Increment(doc.Doc.Tokens[pos], topic)
		}
	}

	w := newWorker(0, docs, 0, len(docs), []float64{0.5, 0.5, 0.5}, 0.1, 0.3,
		table, totals, 4, 11)
	w.makeOnlyThread()
	// a point past the total mass is never resolved
	w.uniform = func() float64 { return 2 }
	require.NoError(t, w.Run())

	assert.Equal(t, 9, w.Unresolved())
	for _, doc := range docs {
		for _, topic := range doc.Topics {
			assert.Equal(t, 2, topic)
		}
	}
	assert.Equal(t, []int{0, 0, 9}, totals)
	require.NoError(t, table.Validate())
	for typ, n := range data.TypeTotals() {
		assert.Equal(t, n, table.Count(typ, 2))
		assert.Equal(t, 1, table.Len(typ))
	}
}
