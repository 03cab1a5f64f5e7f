package corpus

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	log "github.com/golang/glog"
)

var ErrBadDocument = errors.New("corpus: malformed document")

// Document is an ordered sequence of word type ids. Features holds
// optional side information consumed by per-document priors.
type Document struct {
	ID       uint32
	Tokens   []int
	Features []float64
}

func (d *Document) Len() int { return len(d.Tokens) }

// Corpus is a read-only, randomly accessible document collection.
type Corpus struct {
	VocabSize int
	Docs      []*Document
}

type WordCount struct {
	WordId uint32
	Count  uint32
}

func ExpandWords(wcs []*WordCount) []int {
	var words []int
	for _, wc := range wcs {
		for i := uint32(0); i < wc.Count; i += 1 {
			words = append(words, int(wc.WordId))
		}
	}
	return words
}

// FromTokens builds a corpus from token id sequences. vocabSize must
// exceed every id.
func FromTokens(docs [][]int, vocabSize int) (*Corpus, error) {
	c := &Corpus{VocabSize: vocabSize, Docs: make([]*Document, len(docs))}
	for i, tokens := range docs {
		for _, w := range tokens {
			if w < 0 || w >= vocabSize {
				return nil, fmt.Errorf("%w: doc %d has type %d outside vocabulary of %d",
					ErrBadDocument, i, w, vocabSize)
			}
		}
		c.Docs[i] = &Document{ID: uint32(i), Tokens: tokens}
	}
	return c, nil
}

// Load reads training data from file, the file format should be like:
// [docId wordId:wordCount wordId:wordCount ... wordId:wordCount]
func Load(fn string) (*Corpus, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Read parses the Load format from r. Documents are ordered by docId.
func Read(r io.Reader) (*Corpus, error) {
	docs := make(map[uint32][]*WordCount)
	vocabMaxId := -1

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for lineIdx := 1; scanner.Scan(); lineIdx++ {
		doc := strings.TrimSpace(scanner.Text())
		if doc == "" {
			continue
		}
		vals := strings.Fields(doc)

		docId, err := strconv.ParseUint(vals[0], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrBadDocument, lineIdx, err)
		}
		if _, ok := docs[uint32(docId)]; ok {
			return nil, fmt.Errorf("%w: line %d: duplicate doc %d", ErrBadDocument, lineIdx, docId)
		}
		docs[uint32(docId)] = []*WordCount{}

		for _, kv := range vals[1:] {
			wc := strings.Split(kv, ":")
			if len(wc) != 2 {
				log.Warningf("bad word count: %s", kv)
				continue
			}

			wordId, err := strconv.ParseUint(wc[0], 10, 32)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrBadDocument, lineIdx, err)
			}

			count, err := strconv.ParseUint(wc[1], 10, 32)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrBadDocument, lineIdx, err)
			}

			docs[uint32(docId)] = append(docs[uint32(docId)], &WordCount{
				WordId: uint32(wordId),
				Count:  uint32(count),
			})
			if int(wordId) > vocabMaxId {
				vocabMaxId = int(wordId)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	ids := make([]uint32, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	c := &Corpus{VocabSize: vocabMaxId + 1, Docs: make([]*Document, len(ids))}
	for i, id := range ids {
		c.Docs[i] = &Document{ID: id, Tokens: ExpandWords(docs[id])}
	}

	log.Infof("number of documents %d", len(c.Docs))
	log.Infof("vocabulary size %d", c.VocabSize)
	return c, nil
}

// TypeTotals counts the occurrences of every type.
func (c *Corpus) TypeTotals() []int {
	totals := make([]int, c.VocabSize)
	for _, d := range c.Docs {
		for _, w := range d.Tokens {
			totals[w]++
		}
	}
	return totals
}

// TotalTokens returns the number of tokens and the longest document length.
func (c *Corpus) TotalTokens() (total, maxLen int) {
	for _, d := range c.Docs {
		total += d.Len()
		if d.Len() > maxLen {
			maxLen = d.Len()
		}
	}
	return total, maxLen
}
