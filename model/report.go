package model

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bobonovski/plda/matrix"
	"github.com/bobonovski/plda/sstable"
)

// compute the posterior point estimation of word-topic mixture
// beta (Dirichlet prior) + data -> phi, one row per type
func (m *ParallelLDA) Phi() *matrix.Float64Matrix {
	return tablePhi(m.table, m.tokensPerTopic, m.beta, m.betaSum)
}

func tablePhi(table *sstable.TypeTopicTable, tokensPerTopic []int, beta, betaSum float64) *matrix.Float64Matrix {
	phi, _ := matrix.NewFloat64Matrix(table.NumTypes(), len(tokensPerTopic))
	for typ := 0; typ < table.NumTypes(); typ++ {
		row := phi.Row(typ)
		for topic, n := range tokensPerTopic {
			row[topic] = beta / (float64(n) + betaSum)
		}
		table.ForEach(typ, func(topic, count int) {
			row[topic] = (float64(count) + beta) /
				(float64(tokensPerTopic[topic]) + betaSum)
		})
	}
	return phi
}

// compute the posterior point estimation of document-topic mixture
// alpha (Dirichlet prior) + data -> theta, one row per document
func (m *ParallelLDA) Theta() *matrix.Float64Matrix {
	theta, _ := matrix.NewFloat64Matrix(len(m.docs), m.numTopics)
	alpha := m.alpha
	if m.opts.Prior != nil {
		alpha = make([]float64, m.numTopics)
	}
	for d, doc := range m.docs {
		alphaSum := m.alphaSum
		if m.opts.Prior != nil {
			alphaSum = m.opts.Prior.DocumentAlpha(doc.Doc, alpha)
		}
		row := theta.Row(d)
		for _, topic := range doc.Topics {
			row[topic]++
		}
		denom := float64(len(doc.Topics)) + alphaSum
		for topic := range row {
			row[topic] = (row[topic] + alpha[topic]) / denom
		}
	}
	return theta
}

// TypeCount is the number of tokens of a type assigned to some topic.
type TypeCount struct {
	Type  int
	Count int
}

// TopWords returns, for every topic, up to n types ordered by their
// count in the topic.
func (m *ParallelLDA) TopWords(n int) [][]TypeCount {
	byTopic := make([][]TypeCount, m.numTopics)
	for typ := 0; typ < m.numTypes; typ++ {
		m.table.ForEach(typ, func(topic, count int) {
			byTopic[topic] = append(byTopic[topic], TypeCount{Type: typ, Count: count})
		})
	}
	for topic, words := range byTopic {
		sort.SliceStable(words, func(i, j int) bool { return words[i].Count > words[j].Count })
		if len(words) > n {
			byTopic[topic] = words[:n]
		}
	}
	return byTopic
}

// FormatTopWords renders the words of one topic as "type:count" pairs.
func FormatTopWords(words []TypeCount) string {
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = fmt.Sprintf("%d:%d", w.Type, w.Count)
	}
	return strings.Join(parts, " ")
}
