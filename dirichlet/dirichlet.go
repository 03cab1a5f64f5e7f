// Package dirichlet fits Dirichlet-multinomial hyperparameters from
// count histograms with Minka's fixed-point iteration and the digamma
// recurrence relation, as described in
//
//	Hanna M. Wallach. Structured Topic Models for Language. Ph.D.
//	thesis, University of Cambridge, 2008.
//
// A histogram h of observations has h[n] = number of observations
// (documents, topics) in which a dimension received exactly n counts;
// a lengths histogram has l[n] = number of observations of total size n.
package dirichlet

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mathext"
)

var ErrDegenerate = errors.New("dirichlet: estimate is not a positive finite number")

// SymmetricIterations is the number of fixed-point updates performed by
// LearnSymmetricConcentration.
const SymmetricIterations = 200

// digammaJump is the gap between two observation lengths above which the
// digamma difference is recomputed instead of accumulated.
const digammaJump = 20

// LearnParameters updates the asymmetric parameters in place from
// observations[k] (the count histogram of dimension k) and the lengths
// histogram, using a Gamma(shape, scale) prior on every parameter, and
// returns the new parameter sum. On a degenerate update parameters are
// left unchanged and ErrDegenerate is returned.
func LearnParameters(parameters []float64, observations [][]int,
	observationLengths []int, shape, scale float64, iterations int) (float64, error) {
	current := append([]float64(nil), parameters...)
	parametersSum := floats.Sum(current)

	// histograms reach the longest document but the nonzero values
	// cluster at the low end
	nonZeroLimits := make([]int, len(observations))
	for k, histogram := range observations {
		nonZeroLimits[k] = -1
		for n, v := range histogram {
			if v > 0 {
				nonZeroLimits[k] = n
			}
		}
	}

	for it := 0; it < iterations; it++ {
		denominator, currentDigamma := 0.0, 0.0
		for n := 1; n < len(observationLengths); n++ {
			currentDigamma += 1 / (parametersSum + float64(n) - 1)
			denominator += float64(observationLengths[n]) * currentDigamma
		}
		denominator -= 1 / scale

		parametersSum = 0
		for k := range current {
			old := current[k]
			numerator := 0.0
			currentDigamma = 0
			histogram := observations[k]
			for n := 1; n <= nonZeroLimits[k]; n++ {
				currentDigamma += 1 / (old + float64(n) - 1)
				numerator += float64(histogram[n]) * currentDigamma
			}
			current[k] = (old*numerator + shape) / denominator
			parametersSum += current[k]
		}
	}

	for _, p := range current {
		if !positive(p) {
			return floats.Sum(parameters), ErrDegenerate
		}
	}
	copy(parameters, current)
	return parametersSum, nil
}

// LearnSymmetricConcentration fits the concentration (parameter sum) of
// a symmetric Dirichlet over numDimensions dimensions. countHistogram
// pools the per-dimension count histograms of all observations. On a
// degenerate update currentValue is returned with ErrDegenerate.
func LearnSymmetricConcentration(countHistogram, observationLengths []int,
	numDimensions int, currentValue float64) (float64, error) {
	largestNonZeroCount := 0
	for n, v := range countHistogram {
		if v > 0 {
			largestNonZeroCount = n
		}
	}

	nonZeroLengths := make([]int, 0, len(observationLengths))
	for n, v := range observationLengths {
		if v > 0 {
			nonZeroLengths = append(nonZeroLengths, n)
		}
	}

	value := currentValue
	for it := 0; it < SymmetricIterations; it++ {
		parameter := value / float64(numDimensions)

		// counts of 0 don't matter, so start with 1
		currentDigamma, numerator := 0.0, 0.0
		for n := 1; n <= largestNonZeroCount; n++ {
			currentDigamma += 1.0 / (parameter + float64(n) - 1)
			numerator += float64(countHistogram[n]) * currentDigamma
		}

		currentDigamma = 0
		denominator := 0.0
		previousLength := 0
		cachedDigamma := mathext.Digamma(value)
		for _, length := range nonZeroLengths {
			if length-previousLength > digammaJump {
				currentDigamma = mathext.Digamma(value+float64(length)) - cachedDigamma
			} else {
				for n := previousLength; n < length; n++ {
					currentDigamma += 1.0 / (value + float64(n))
				}
			}
			denominator += currentDigamma * float64(observationLengths[length])
			previousLength = length
		}

		value = parameter * numerator / denominator
		if !positive(value) {
			return currentValue, ErrDegenerate
		}
	}
	return value, nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
