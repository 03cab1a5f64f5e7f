package model

import (
	log "github.com/golang/glog"

	"github.com/bobonovski/plda/dirichlet"
)

const (
	alphaShape = 1.001
	alphaScale = 1.0
)

// updateAlphaStatistics moves the histograms gathered by the workers
// into the model. With a symmetric prior every topic is pooled into the
// first histogram.
func (m *ParallelLDA) updateAlphaStatistics() {
	clear(m.docLengthCounts)
	for _, hist := range m.topicDocCounts {
		clear(hist)
	}

	for _, w := range m.workers {
		for n, count := range w.docLengthCounts {
			m.docLengthCounts[n] += count
		}
		for topic, hist := range w.topicDocCounts {
			dst := m.topicDocCounts[topic]
			if m.opts.SymmetricAlpha {
				dst = m.topicDocCounts[0]
			}
			for n, count := range hist {
				dst[n] += count
			}
		}
		w.resetAlphaStatistics()
	}
}

func (m *ParallelLDA) optimizeAlpha() {
	// document priors come from the provider
	if m.opts.Prior != nil {
		return
	}
	if m.opts.SymmetricAlpha {
		alphaSum, err := dirichlet.LearnSymmetricConcentration(m.topicDocCounts[0],
			m.docLengthCounts, m.numTopics, m.alphaSum)
		if err != nil {
			log.Warningf("<%d> keeping alpha sum %g: %v", m.iteration, m.alphaSum, err)
			return
		}
		m.alphaSum = alphaSum
		for topic := range m.alpha {
			m.alpha[topic] = alphaSum / float64(m.numTopics)
		}
	} else {
		alphaSum, err := dirichlet.LearnParameters(m.alpha, m.topicDocCounts,
			m.docLengthCounts, alphaShape, alphaScale, 1)
		if err != nil {
			log.Warningf("<%d> keeping alpha: %v", m.iteration, err)
			return
		}
		m.alphaSum = alphaSum
	}
	log.V(1).Infof("<%d> alpha sum: %.5f", m.iteration, m.alphaSum)
}

func (m *ParallelLDA) optimizeBeta() {
	// the histogram of topic sizes plays the role of document lengths
	maxTopicSize := 0
	for _, n := range m.tokensPerTopic {
		maxTopicSize = max(maxTopicSize, n)
	}
	topicSizeHistogram := make([]int, maxTopicSize+1)
	for _, n := range m.tokensPerTopic {
		topicSizeHistogram[n]++
	}

	betaSum, err := dirichlet.LearnSymmetricConcentration(m.table.CountHistogram(),
		topicSizeHistogram, m.numTypes, m.betaSum)
	if err != nil {
		log.Warningf("<%d> keeping beta %g: %v", m.iteration, m.beta, err)
		return
	}
	m.betaSum = betaSum
	m.beta = betaSum / float64(m.numTypes)
	for _, w := range m.workers {
		w.resetBeta(m.beta, m.betaSum)
	}
	log.Infof("<%d> [beta: %.5f]", m.iteration, m.beta)
}

// temperAlpha resets alpha to 1 per topic and drops the statistics
// gathered so far.
func (m *ParallelLDA) temperAlpha() {
	clear(m.docLengthCounts)
	for _, hist := range m.topicDocCounts {
		clear(hist)
	}
	for _, w := range m.workers {
		w.resetAlphaStatistics()
	}
	for topic := range m.alpha {
		m.alpha[topic] = 1.0
	}
	m.alphaSum = float64(m.numTopics)
	log.V(1).Infof("<%d> alpha tempered", m.iteration)
}
