package dirichlet

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// histograms turns per-observation count vectors into the pooled
// count histogram, the per-dimension histograms and the lengths
// histogram.
func histograms(docs [][]int) (pooled []int, perDim [][]int, lengths []int) {
	maxLen := 0
	for _, d := range docs {
		n := 0
		for _, c := range d {
			n += c
		}
		maxLen = max(maxLen, n)
	}
	pooled = make([]int, maxLen+1)
	lengths = make([]int, maxLen+1)
	perDim = make([][]int, len(docs[0]))
	for k := range perDim {
		perDim[k] = make([]int, maxLen+1)
	}
	for _, d := range docs {
		n := 0
		for k, c := range d {
			pooled[c]++
			perDim[k][c]++
			n += c
		}
		lengths[n]++
	}
	return pooled, perDim, lengths
}

func logLikelihood(docs [][]int, alpha []float64) float64 {
	sum := 0.0
	for _, a := range alpha {
		sum += a
	}
	ll := 0.0
	for _, d := range docs {
		n := 0
		for k, c := range d {
			n += c
			lg1, _ := math.Lgamma(alpha[k] + float64(c))
			lg2, _ := math.Lgamma(alpha[k])
			ll += lg1 - lg2
		}
		lg1, _ := math.Lgamma(sum)
		lg2, _ := math.Lgamma(sum + float64(n))
		ll += lg1 - lg2
	}
	return ll
}

func symmetric(k int, concentration float64) []float64 {
	alpha := make([]float64, k)
	for i := range alpha {
		alpha[i] = concentration / float64(k)
	}
	return alpha
}

func TestLearnSymmetricConcentration(t *testing.T) {
	cases := [][][]int{
		{{5, 0, 1}, {2, 2, 2}, {0, 6, 0}, {3, 1, 2}},
		// the gap between lengths 3 and 30 uses the digamma function
		{{1, 0, 0, 0}, {0, 1, 0, 0}, {10, 8, 7, 5}, {20, 2, 3, 5}, {2, 0, 1, 0}},
	}
	for _, docs := range cases {
		pooled, _, lengths := histograms(docs)
		k := len(docs[0])

		s, err := LearnSymmetricConcentration(pooled, lengths, k, 1.0)
		require.NoError(t, err)
		assert.Greater(t, s, 0.0)

		best := logLikelihood(docs, symmetric(k, s))
		assert.GreaterOrEqual(t, best, logLikelihood(docs, symmetric(k, s*1.05)))
		assert.GreaterOrEqual(t, best, logLikelihood(docs, symmetric(k, s*0.95)))
	}
}

func TestLearnSymmetricConcentrationKnownValue(t *testing.T) {
	pooled, _, lengths := histograms([][]int{{5, 0, 1}, {2, 2, 2}, {0, 6, 0}, {3, 1, 2}})
	s, err := LearnSymmetricConcentration(pooled, lengths, 3, 1.0)
	require.NoError(t, err)
	assert.InDelta(t, 2.8990772828845266, s, 1e-6)
}

func TestLearnParametersMaximumLikelihood(t *testing.T) {
	docs := [][]int{{5, 0, 1}, {2, 2, 2}, {0, 6, 0}, {3, 1, 2}}
	_, perDim, lengths := histograms(docs)

	alpha := []float64{1, 1, 1}
	sum, err := LearnParameters(alpha, perDim, lengths, 0, math.Inf(1), 500)
	require.NoError(t, err)
	assert.InDelta(t, alpha[0]+alpha[1]+alpha[2], sum, 1e-9)
	assert.InDelta(t, 1.3482214578873968, alpha[0], 1e-6)
	assert.InDelta(t, 0.8701740007593362, alpha[2], 1e-6)

	best := logLikelihood(docs, alpha)
	for k := range alpha {
		for _, f := range []float64{0.95, 1.05} {
			moved := append([]float64(nil), alpha...)
			moved[k] *= f
			assert.GreaterOrEqual(t, best, logLikelihood(docs, moved))
		}
	}
}

func TestLearnParametersSingleStep(t *testing.T) {
	_, perDim, lengths := histograms([][]int{{5, 0, 1}, {2, 2, 2}, {0, 6, 0}, {3, 1, 2}})
	alpha := []float64{1, 1, 1}
	sum, err := LearnParameters(alpha, perDim, lengths, 1.001, 1.0, 1)
	require.NoError(t, err)
	assert.InDelta(t, 4.538290282902829, sum, 1e-9)
	assert.InDelta(t, 1.709360393603936, alpha[0], 1e-9)
}

func TestDegenerateHistograms(t *testing.T) {
	s, err := LearnSymmetricConcentration([]int{0, 0}, []int{0, 0}, 3, 2.5)
	assert.ErrorIs(t, err, ErrDegenerate)
	assert.Equal(t, 2.5, s)

	alpha := []float64{0.5, 0.25}
	sum, err := LearnParameters(alpha, [][]int{{0}, {0}}, []int{0}, 1.001, 1.0, 1)
	assert.ErrorIs(t, err, ErrDegenerate)
	assert.Equal(t, []float64{0.5, 0.25}, alpha)
	assert.Equal(t, 0.75, sum)
}
