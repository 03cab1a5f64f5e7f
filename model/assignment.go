package model

import "github.com/bobonovski/plda/corpus"

// TopicAssignment pairs a document with the topic of each of its
// tokens. len(Topics) == Doc.Len().
type TopicAssignment struct {
	Doc    *corpus.Document
	Topics []int
}
