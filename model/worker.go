package model

import (
	"math/rand/v2"

	log "github.com/golang/glog"

	"github.com/bobonovski/plda/sstable"
)

// Worker samples one contiguous shard of documents. Between iterations
// it owns a private copy of the type-topic table and topic totals,
// unless it is the only worker, in which case it samples the model's
// own table directly.
type Worker struct {
	thread int
	docs   []*TopicAssignment
	start  int
	count  int

	numTopics int
	alpha     []float64
	beta      float64
	betaSum   float64
	prior     PriorProvider

	table          *sstable.TypeTopicTable
	tokensPerTopic []int

	smoothingOnlyMass  float64
	cachedCoefficients []float64
	scores             []float64
	localTopicCounts   []int
	localTopicIndex    []int

	// dirichlet sufficient statistics
	collectStatistics bool
	docLengthCounts   []int
	topicDocCounts    [][]int

	// single worker mode: table and totals are the model's own
	shared bool

	src *rand.PCG
	rng *rand.Rand
	// uniform draws the sampling point as a fraction of the total mass
	uniform func() float64

	unresolved int

	// massHook observes the three sampling masses after every token.
	massHook func(smoothingOnly, topicBeta, topicTerm float64)
}

func newWorker(thread int, docs []*TopicAssignment, start, count int,
	alpha []float64, beta, betaSum float64, table *sstable.TypeTopicTable,
	tokensPerTopic []int, maxDocLength int, seed uint64) *Worker {
	numTopics := len(tokensPerTopic)
	w := &Worker{
		thread:             thread,
		docs:               docs,
		start:              start,
		count:              count,
		numTopics:          numTopics,
		alpha:              alpha,
		beta:               beta,
		betaSum:            betaSum,
		table:              table,
		tokensPerTopic:     tokensPerTopic,
		cachedCoefficients: make([]float64, numTopics),
		scores:             make([]float64, numTopics),
		localTopicCounts:   make([]int, numTopics),
		localTopicIndex:    make([]int, numTopics),
		docLengthCounts:    make([]int, maxDocLength+1),
		topicDocCounts:     make([][]int, numTopics),
		src:                rand.NewPCG(seed, uint64(thread)+1),
	}
	for t := range w.topicDocCounts {
		w.topicDocCounts[t] = make([]int, maxDocLength+1)
	}
	w.rng = rand.New(w.src)
	w.uniform = w.rng.Float64
	return w
}

// makeOnlyThread marks the worker as sampling the model's own table, so
// it does not rebuild local counts after its shard.
func (w *Worker) makeOnlyThread() { w.shared = true }

func (w *Worker) collectAlphaStatistics() { w.collectStatistics = true }

func (w *Worker) resetBeta(beta, betaSum float64) {
	w.beta = beta
	w.betaSum = betaSum
}

func (w *Worker) resetAlphaStatistics() {
	clear(w.docLengthCounts)
	for _, hist := range w.topicDocCounts {
		clear(hist)
	}
}

// Unresolved is the number of draws that fell outside every mass and
// were assigned the last topic.
func (w *Worker) Unresolved() int { return w.unresolved }

// Run samples every document of the shard once.
func (w *Worker) Run() error {
	if w.prior == nil {
		w.smoothingOnlyMass = initSmoothingOnlyMass(w.cachedCoefficients,
			w.alpha, w.beta, w.betaSum, w.tokensPerTopic)
	}

	end := min(w.start+w.count, len(w.docs))
	for doc := w.start; doc < end; doc++ {
		w.sampleDocument(w.docs[doc])
	}

	if !w.shared {
		w.buildLocalTypeTopicCounts()
	}
	w.collectStatistics = false
	return nil
}

// initSmoothingOnlyMass resets the per-topic coefficients to their
// empty-document values and returns the smoothing-only mass.
func initSmoothingOnlyMass(coefficients, alpha []float64, beta, betaSum float64,
	tokensPerTopic []int) float64 {
	mass := 0.0
	for topic, n := range tokensPerTopic {
		denom := float64(n) + betaSum
		mass += alpha[topic] * beta / denom
		coefficients[topic] = alpha[topic] / denom
	}
	return mass
}

// insertTopic adds topic to the first n entries of index, kept ascending.
func insertTopic(index []int, n, topic int) int {
	i := n
	for i > 0 && index[i-1] > topic {
		index[i] = index[i-1]
		i--
	}
	index[i] = topic
	return n + 1
}

func removeTopic(index []int, n, topic int) int {
	i := 0
	for index[i] != topic {
		i++
	}
	copy(index[i:n-1], index[i+1:n])
	return n - 1
}

func (w *Worker) sampleDocument(doc *TopicAssignment) {
	tokens := doc.Doc.Tokens
	topics := doc.Topics
	localTopicCounts := w.localTopicCounts
	localTopicIndex := w.localTopicIndex

	if w.prior != nil {
		w.prior.DocumentAlpha(doc.Doc, w.alpha)
		w.smoothingOnlyMass = initSmoothingOnlyMass(w.cachedCoefficients,
			w.alpha, w.beta, w.betaSum, w.tokensPerTopic)
	}

	nonZeroTopics := 0
	for _, topic := range topics {
		if localTopicCounts[topic] == 0 {
			nonZeroTopics = insertTopic(localTopicIndex, nonZeroTopics, topic)
		}
		localTopicCounts[topic]++
	}

	topicBetaMass := 0.0
	for _, topic := range localTopicIndex[:nonZeroTopics] {
		n := float64(localTopicCounts[topic])
		denom := float64(w.tokensPerTopic[topic]) + w.betaSum
		topicBetaMass += w.beta * n / denom
		w.cachedCoefficients[topic] = (w.alpha[topic] + n) / denom
	}

	for pos, typ := range tokens {
		oldTopic := topics[pos]

		// remove this token from all counts
		denom := float64(w.tokensPerTopic[oldTopic]) + w.betaSum
		w.smoothingOnlyMass -= w.alpha[oldTopic] * w.beta / denom
		topicBetaMass -= w.beta * float64(localTopicCounts[oldTopic]) / denom

		localTopicCounts[oldTopic]--
		if localTopicCounts[oldTopic] == 0 {
			nonZeroTopics = removeTopic(localTopicIndex, nonZeroTopics, oldTopic)
		}
		w.tokensPerTopic[oldTopic]--

		denom = float64(w.tokensPerTopic[oldTopic]) + w.betaSum
		w.smoothingOnlyMass += w.alpha[oldTopic] * w.beta / denom
		topicBetaMass += w.beta * float64(localTopicCounts[oldTopic]) / denom
		w.cachedCoefficients[oldTopic] = (w.alpha[oldTopic] + float64(localTopicCounts[oldTopic])) / denom

		topicTermMass := w.table.DecrementAndScore(typ, oldTopic, w.cachedCoefficients, w.scores)

		sample := w.uniform() * (w.smoothingOnlyMass + topicBetaMass + topicTermMass)
		drawn := sample
		newTopic := -1

		if sample < topicTermMass {
			newTopic = w.table.ResolveSample(typ, sample, w.scores)
		} else {
			sample -= topicTermMass
			if sample < topicBetaMass {
				sample /= w.beta
				for _, topic := range localTopicIndex[:nonZeroTopics] {
					sample -= float64(localTopicCounts[topic]) /
						(float64(w.tokensPerTopic[topic]) + w.betaSum)
					if sample <= 0 {
						newTopic = topic
						break
					}
				}
			} else {
				sample -= topicBetaMass
				sample /= w.beta
				for topic := 0; topic < w.numTopics; topic++ {
					sample -= w.alpha[topic] / (float64(w.tokensPerTopic[topic]) + w.betaSum)
					if sample <= 0 {
						newTopic = topic
						break
					}
				}
			}
			if newTopic >= 0 {
				w.table.InsertOrIncrement(typ, newTopic)
			}
		}

		if newTopic < 0 {
			w.unresolved++
			log.Warningf("thread %d: unresolved sample %g (smoothing %g, beta %g, term %g) on type %d, using topic %d",
				w.thread, drawn, w.smoothingOnlyMass, topicBetaMass, topicTermMass, typ, w.numTopics-1)
			newTopic = w.numTopics - 1
			w.table.InsertOrIncrement(typ, newTopic)
		}

		topics[pos] = newTopic

		// put the token back into the counts
		denom = float64(w.tokensPerTopic[newTopic]) + w.betaSum
		w.smoothingOnlyMass -= w.alpha[newTopic] * w.beta / denom
		topicBetaMass -= w.beta * float64(localTopicCounts[newTopic]) / denom

		localTopicCounts[newTopic]++
		if localTopicCounts[newTopic] == 1 {
			nonZeroTopics = insertTopic(localTopicIndex, nonZeroTopics, newTopic)
		}
		w.tokensPerTopic[newTopic]++

		denom = float64(w.tokensPerTopic[newTopic]) + w.betaSum
		w.cachedCoefficients[newTopic] = (w.alpha[newTopic] + float64(localTopicCounts[newTopic])) / denom
		w.smoothingOnlyMass += w.alpha[newTopic] * w.beta / denom
		topicBetaMass += w.beta * float64(localTopicCounts[newTopic]) / denom

		// rounding may leave a vanishing negative remainder
		if w.smoothingOnlyMass < 0 {
			w.smoothingOnlyMass = 0
		}
		if topicBetaMass < 0 {
			topicBetaMass = 0
		}
		if w.massHook != nil {
			w.massHook(w.smoothingOnlyMass, topicBetaMass, topicTermMass)
		}
	}

	if w.collectStatistics {
		w.docLengthCounts[len(tokens)]++
		for _, topic := range localTopicIndex[:nonZeroTopics] {
			w.topicDocCounts[topic][localTopicCounts[topic]]++
		}
	}

	for _, topic := range localTopicIndex[:nonZeroTopics] {
		w.cachedCoefficients[topic] = w.alpha[topic] / (float64(w.tokensPerTopic[topic]) + w.betaSum)
		localTopicCounts[topic] = 0
	}
}

// buildLocalTypeTopicCounts recounts the private table and totals from
// the assignments of the shard, so the coordinator sees exactly this
// worker's contribution.
func (w *Worker) buildLocalTypeTopicCounts() {
	clear(w.tokensPerTopic)
	w.table.ClearCounts()

	end := min(w.start+w.count, len(w.docs))
	for _, doc := range w.docs[w.start:end] {
		for pos, topic := range doc.Topics {
			w.tokensPerTopic[topic]++
			w.table.Increment(doc.Doc.Tokens[pos], topic)
		}
	}
}

func (w *Worker) aggregateTo(tokensPerTopic []int, table *sstable.TypeTopicTable) error {
	for topic, n := range w.tokensPerTopic {
		tokensPerTopic[topic] += n
	}
	return table.AddCounts(w.table)
}

func (w *Worker) resetTo(tokensPerTopic []int, table *sstable.TypeTopicTable) error {
	copy(w.tokensPerTopic, tokensPerTopic)
	return w.table.SetCounts(table)
}
