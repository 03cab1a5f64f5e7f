package model

import (
	"math"

	log "github.com/golang/glog"
)

func logGamma(x float64) float64 {
	v, _ := math.Lgamma(x)
	return v
}

// LogLikelihood is the joint log probability of the current topic
// assignments and the corpus under the current hyperparameters. With a
// PriorProvider every document is scored under its own alpha. A result
// that is not finite is reported and replaced by 0.
func (m *ParallelLDA) LogLikelihood() float64 {
	ll := 0.0

	topicCounts := make([]int, m.numTopics)
	alpha, alphaSum := m.alpha, m.alphaSum
	if m.opts.Prior != nil {
		alpha = make([]float64, m.numTopics)
	}
	topicLogGammas := make([]float64, m.numTopics)
	for topic, a := range alpha {
		topicLogGammas[topic] = logGamma(a)
	}

	for _, doc := range m.docs {
		if m.opts.Prior != nil {
			alphaSum = m.opts.Prior.DocumentAlpha(doc.Doc, alpha)
			for topic, a := range alpha {
				topicLogGammas[topic] = logGamma(a)
			}
		}
		for _, topic := range doc.Topics {
			topicCounts[topic]++
		}
		for topic, n := range topicCounts {
			if n > 0 {
				ll += logGamma(alpha[topic]+float64(n)) - topicLogGammas[topic]
				topicCounts[topic] = 0
			}
		}
		ll += logGamma(alphaSum) - logGamma(alphaSum+float64(len(doc.Topics)))
	}

	nonZeroTypeTopics := 0
	for typ := 0; typ < m.numTypes; typ++ {
		m.table.ForEach(typ, func(_, count int) {
			nonZeroTypeTopics++
			ll += logGamma(m.beta + float64(count))
		})
	}
	for _, n := range m.tokensPerTopic {
		ll -= logGamma(m.betaSum + float64(n))
	}
	ll += float64(m.numTopics)*logGamma(m.betaSum) -
		float64(nonZeroTypeTopics)*logGamma(m.beta)

	if math.IsNaN(ll) || math.IsInf(ll, 0) {
		log.Warningf("<%d> log likelihood is %g, reporting 0", m.iteration, ll)
		return 0
	}
	return ll
}
