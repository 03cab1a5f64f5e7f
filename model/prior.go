package model

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/bobonovski/plda/corpus"
)

// PriorProvider computes a document specific Dirichlet prior. It
// overwrites alpha (one value per topic) and returns its sum. It is
// called once per document per sweep from worker goroutines and must
// not keep state between calls.
type PriorProvider interface {
	DocumentAlpha(doc *corpus.Document, alpha []float64) float64
}

// PriorFunc adapts a function to PriorProvider.
type PriorFunc func(doc *corpus.Document, alpha []float64) float64

func (f PriorFunc) DocumentAlpha(doc *corpus.Document, alpha []float64) float64 {
	return f(doc, alpha)
}

// LogLinearPrior sets alpha[t] = exp(Intercepts[t] + Weights[t]·x) for
// a document with features x. Documents without features only get the
// intercept.
type LogLinearPrior struct {
	Intercepts []float64
	Weights    [][]float64
}

func (p *LogLinearPrior) DocumentAlpha(doc *corpus.Document, alpha []float64) float64 {
	for t := range alpha {
		v := p.Intercepts[t]
		if t < len(p.Weights) && len(doc.Features) > 0 {
			n := min(len(doc.Features), len(p.Weights[t]))
			v += floats.Dot(p.Weights[t][:n], doc.Features[:n])
		}
		alpha[t] = math.Exp(v)
	}
	return floats.Sum(alpha)
}
