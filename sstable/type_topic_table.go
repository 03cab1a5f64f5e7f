package sstable

import (
	"errors"
	"fmt"
	"math/bits"

	log "github.com/golang/glog"
)

var (
	ErrCountOverflow  = errors.New("sstable: type count does not fit in packed cell")
	ErrShapeMismatch  = errors.New("sstable: table shapes differ")
	ErrBadTopicNumber = errors.New("sstable: number of topics must be positive")
)

// TypeTopicTable caches the nonzero topic counts of every word type.
// Each cell is a uint32 where the lower topicBits bits hold the topic
// and the upper bits hold the count, so the numeric order of cells is
// the order by count with the topic as tie-break. Rows are kept in
// strictly descending cell order and the unused slots at the end of a
// row are zero.
type TypeTopicTable struct {
	numTopics int
	topicBits uint
	topicMask uint32

	rows         [][]uint32
	typeTotals   []int
	maxTypeCount int

	overflows int
}

// NewTypeTopicTable allocates a table for len(typeTotals) types where
// typeTotals[w] is the number of occurrences of type w in the corpus.
// Row w gets min(numTopics, typeTotals[w]) slots.
func NewTypeTopicTable(numTopics int, typeTotals []int) (*TypeTopicTable, error) {
	if numTopics <= 0 {
		return nil, ErrBadTopicNumber
	}
	topicBits := uint(bits.Len(uint(numTopics - 1)))
	tab := &TypeTopicTable{
		numTopics:  numTopics,
		topicBits:  topicBits,
		topicMask:  uint32(1)<<topicBits - 1,
		rows:       make([][]uint32, len(typeTotals)),
		typeTotals: append([]int(nil), typeTotals...),
	}

	for w, total := range typeTotals {
		if total > tab.maxTypeCount {
			tab.maxTypeCount = total
		}
		tab.rows[w] = make([]uint32, min(numTopics, total))
	}
	if uint64(tab.maxTypeCount) > uint64(^uint32(0)>>topicBits) {
		return nil, fmt.Errorf("%w: max type count %d with %d topic bits",
			ErrCountOverflow, tab.maxTypeCount, topicBits)
	}
	return tab, nil
}

// Clone returns a deep copy of the table.
func (tab *TypeTopicTable) Clone() *TypeTopicTable {
	c := &TypeTopicTable{
		numTopics:    tab.numTopics,
		topicBits:    tab.topicBits,
		topicMask:    tab.topicMask,
		rows:         make([][]uint32, len(tab.rows)),
		typeTotals:   append([]int(nil), tab.typeTotals...),
		maxTypeCount: tab.maxTypeCount,
	}
	for w, row := range tab.rows {
		c.rows[w] = append([]uint32(nil), row...)
	}
	return c
}

func (tab *TypeTopicTable) NumTypes() int     { return len(tab.rows) }
func (tab *TypeTopicTable) NumTopics() int    { return tab.numTopics }
func (tab *TypeTopicTable) TopicBits() uint   { return tab.topicBits }
func (tab *TypeTopicTable) TopicMask() uint32 { return tab.topicMask }
func (tab *TypeTopicTable) MaxTypeCount() int { return tab.maxTypeCount }

// Overflows reports how many times a row had to grow past its capacity.
func (tab *TypeTopicTable) Overflows() int { return tab.overflows }

// Pack encodes a (topic, count) pair into a cell.
func (tab *TypeTopicTable) Pack(topic, count int) uint32 {
	return uint32(count)<<tab.topicBits | uint32(topic)
}

// Unpack decodes a cell into its topic and count.
func (tab *TypeTopicTable) Unpack(cell uint32) (int, int) {
	return int(cell & tab.topicMask), int(cell >> tab.topicBits)
}

// Len returns the number of nonzero topics of type w.
func (tab *TypeTopicTable) Len(w int) int {
	row := tab.rows[w]
	n := 0
	for n < len(row) && row[n] > 0 {
		n++
	}
	return n
}

// Get returns the topic and count stored at position idx of type w.
func (tab *TypeTopicTable) Get(w, idx int) (int, int) {
	return tab.Unpack(tab.rows[w][idx])
}

// Count returns the count of topic for type w.
func (tab *TypeTopicTable) Count(w, topic int) int {
	for _, cell := range tab.rows[w] {
		if cell == 0 {
			break
		}
		if int(cell&tab.topicMask) == topic {
			return int(cell >> tab.topicBits)
		}
	}
	return 0
}

// ForEach calls fn for every nonzero topic of type w in descending
// count order.
func (tab *TypeTopicTable) ForEach(w int, fn func(topic, count int)) {
	for _, cell := range tab.rows[w] {
		if cell == 0 {
			return
		}
		fn(tab.Unpack(cell))
	}
}

// TypeCount sums the counts of type w.
func (tab *TypeTopicTable) TypeCount(w int) int {
	sum := 0
	for _, cell := range tab.rows[w] {
		if cell == 0 {
			break
		}
		sum += int(cell >> tab.topicBits)
	}
	return sum
}

// TypeTotal is the corpus occurrence count of type w the table was
// sized with.
func (tab *TypeTopicTable) TypeTotal(w int) int { return tab.typeTotals[w] }

// bubbleUp moves the cell at idx towards the front until the row is
// sorted again.
func bubbleUp(row []uint32, idx int) {
	for idx > 0 && row[idx] > row[idx-1] {
		row[idx], row[idx-1] = row[idx-1], row[idx]
		idx--
	}
}

// bubbleDown moves the cell at idx towards the back until the row is
// sorted again.
func bubbleDown(row []uint32, idx int) {
	for idx < len(row)-1 && row[idx] < row[idx+1] {
		row[idx], row[idx+1] = row[idx+1], row[idx]
		idx++
	}
}

// locate returns the slot of topic in row w, or the first empty slot.
// The row grows by one slot when it is full.
func (tab *TypeTopicTable) locate(w, topic int) int {
	row := tab.rows[w]
	idx := 0
	for idx < len(row) && row[idx] > 0 && int(row[idx]&tab.topicMask) != topic {
		idx++
	}
	if idx == len(row) {
		tab.overflows++
		log.Errorf("type-topic overflow on type %d topic %d (capacity %d, total %d)",
			w, topic, len(row), tab.typeTotals[w])
		tab.rows[w] = append(row, 0)
	}
	return idx
}

// Increment adds one to the count of topic for type w.
func (tab *TypeTopicTable) Increment(w, topic int) {
	tab.add(w, topic, 1)
}

// InsertOrIncrement is used when a sample is resolved outside of the
// type-topic mass and the topic may not yet have an entry for type w.
func (tab *TypeTopicTable) InsertOrIncrement(w, topic int) {
	tab.add(w, topic, 1)
}

func (tab *TypeTopicTable) add(w, topic, count int) {
	idx := tab.locate(w, topic)
	row := tab.rows[w]
	current := int(row[idx] >> tab.topicBits)
	row[idx] = tab.Pack(topic, current+count)
	bubbleUp(row, idx)
}

// DecrementAndScore removes one occurrence of oldTopic from type w and,
// in the same pass, writes coefficients[topic]*count into scores for
// every remaining nonzero entry of the row. It returns the sum of the
// scores. scores must have room for NumTopics values.
func (tab *TypeTopicTable) DecrementAndScore(w, oldTopic int,
	coefficients, scores []float64) float64 {
	row := tab.rows[w]
	mass := 0.0
	decremented := false

	idx := 0
	for idx < len(row) && row[idx] > 0 {
		topic, count := tab.Unpack(row[idx])
		if !decremented && topic == oldTopic {
			// the decremented cell may move, so look at idx again
			count--
			if count == 0 {
				row[idx] = 0
			} else {
				row[idx] = tab.Pack(topic, count)
			}
			bubbleDown(row, idx)
			decremented = true
			continue
		}
		score := coefficients[topic] * float64(count)
		mass += score
		scores[idx] = score
		idx++
	}

	if !decremented {
		log.Errorf("decrement of missing topic %d on type %d", oldTopic, w)
	}
	return mass
}

// ResolveSample walks the scores computed by the last DecrementAndScore
// on type w until residual is used up, increments the topic found there
// and returns it. It returns -1 and leaves the row untouched when the
// residual outlasts the scores.
func (tab *TypeTopicTable) ResolveSample(w int, residual float64, scores []float64) int {
	row := tab.rows[w]
	for idx := 0; idx < len(row) && row[idx] > 0; idx++ {
		residual -= scores[idx]
		if residual <= 0 {
			topic, count := tab.Unpack(row[idx])
			row[idx] = tab.Pack(topic, count+1)
			bubbleUp(row, idx)
			return topic
		}
	}
	return -1
}

// ClearCounts zeroes every cell but keeps the allocated rows.
func (tab *TypeTopicTable) ClearCounts() {
	for _, row := range tab.rows {
		for idx := 0; idx < len(row) && row[idx] > 0; idx++ {
			row[idx] = 0
		}
	}
}

// AddCounts accumulates the counts of other into the table.
func (tab *TypeTopicTable) AddCounts(other *TypeTopicTable) error {
	if err := tab.checkShape(other); err != nil {
		return err
	}
	for w, src := range other.rows {
		for _, cell := range src {
			if cell == 0 {
				break
			}
			topic, count := other.Unpack(cell)
			tab.add(w, topic, count)
		}
	}
	return nil
}

// SetCounts overwrites the table with the counts of other.
func (tab *TypeTopicTable) SetCounts(other *TypeTopicTable) error {
	if err := tab.checkShape(other); err != nil {
		return err
	}
	for w, src := range other.rows {
		dst := tab.rows[w]
		if len(dst) < len(src) {
			dst = make([]uint32, len(src))
			tab.rows[w] = dst
		}
		n := copy(dst, src)
		for idx := n; idx < len(dst) && dst[idx] > 0; idx++ {
			dst[idx] = 0
		}
	}
	return nil
}

func (tab *TypeTopicTable) checkShape(other *TypeTopicTable) error {
	if len(tab.rows) != len(other.rows) || tab.topicBits != other.topicBits {
		return fmt.Errorf("%w: %d types/%d bits vs %d types/%d bits", ErrShapeMismatch,
			len(tab.rows), tab.topicBits, len(other.rows), other.topicBits)
	}
	return nil
}

// CountHistogram returns h where h[c] is the number of (type, topic)
// pairs holding exactly c tokens.
func (tab *TypeTopicTable) CountHistogram() []int {
	hist := make([]int, tab.maxTypeCount+1)
	for _, row := range tab.rows {
		for _, cell := range row {
			if cell == 0 {
				break
			}
			hist[cell>>tab.topicBits]++
		}
	}
	return hist
}

// Validate checks that every row sums to its corpus occurrence count
// and is sorted.
func (tab *TypeTopicTable) Validate() error {
	for w, row := range tab.rows {
		if got := tab.TypeCount(w); got != tab.typeTotals[w] {
			return fmt.Errorf("sstable: type %d holds %d tokens, expected %d",
				w, got, tab.typeTotals[w])
		}
		for idx := 1; idx < len(row) && row[idx] > 0; idx++ {
			if row[idx] >= row[idx-1] {
				return fmt.Errorf("sstable: type %d is not sorted at %d", w, idx)
			}
		}
	}
	return nil
}

// Rows exposes the packed rows for state capture. The caller must not
// modify them.
func (tab *TypeTopicTable) Rows() [][]uint32 { return tab.rows }

// SetRows replaces the packed rows, as read back from a captured state.
// The rows must use the same topic bits, sum to the type totals and be
// sorted.
func (tab *TypeTopicTable) SetRows(rows [][]uint32) error {
	if len(rows) != len(tab.rows) {
		return fmt.Errorf("%w: %d rows, expected %d", ErrShapeMismatch, len(rows), len(tab.rows))
	}
	for w, row := range rows {
		for _, cell := range row {
			if cell == 0 {
				break
			}
			if topic := int(cell & tab.topicMask); topic >= tab.numTopics {
				return fmt.Errorf("%w: type %d has topic %d of %d", ErrShapeMismatch, w, topic, tab.numTopics)
			}
		}
	}
	for w, row := range rows {
		tab.rows[w] = append(tab.rows[w][:0], row...)
	}
	return tab.Validate()
}

// Summary describes the packed layout.
func (tab *TypeTopicTable) Summary() string {
	return fmt.Sprintf("%d topics, %d topic bits, %b topic mask",
		tab.numTopics, tab.topicBits, tab.topicMask)
}
