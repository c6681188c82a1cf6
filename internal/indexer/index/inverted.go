// Package index is the in-memory inverted index behind keyword retrieval.
// Documents are identified by their position in the corpus file.
package index

import (
	"sort"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/indexer/tokenizer"
)

// Posting records how often a term occurs in one document.
type Posting struct {
	Doc       int
	Frequency int
	Positions []int
}

// PostingList is sorted by Doc.
type PostingList []Posting

type Inverted struct {
	mu          sync.RWMutex
	terms       map[string]map[int]*Posting
	docLengths  map[int]int
	totalTokens int64
}

func NewInverted() *Inverted {
	return &Inverted{
		terms:      make(map[string]map[int]*Posting),
		docLengths: make(map[int]int),
	}
}

// Add indexes text under doc. Re-adding a doc is ignored.
func (ix *Inverted) Add(doc int, text string) {
	tokens := tokenizer.Tokenize(text)
	local := make(map[string]*Posting)
	for _, tok := range tokens {
		p, ok := local[tok.Term]
		if !ok {
			p = &Posting{Doc: doc, Positions: make([]int, 0, 2)}
			local[tok.Term] = p
		}
		p.Frequency++
		p.Positions = append(p.Positions, tok.Position)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, seen := ix.docLengths[doc]; seen {
		return
	}
	for term, p := range local {
		docs, ok := ix.terms[term]
		if !ok {
			docs = make(map[int]*Posting)
			ix.terms[term] = docs
		}
		docs[doc] = p
	}
	ix.docLengths[doc] = len(tokens)
	ix.totalTokens += int64(len(tokens))
}

// Postings returns a copy of the postings for an already normalised term.
func (ix *Inverted) Postings(term string) PostingList {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	docs, ok := ix.terms[term]
	if !ok {
		return nil
	}
	list := make(PostingList, 0, len(docs))
	for _, p := range docs {
		list = append(list, *p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Doc < list[j].Doc })
	return list
}

func (ix *Inverted) DocLength(doc int) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.docLengths[doc]
}

func (ix *Inverted) DocCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docLengths)
}

// AvgDocLength is the mean token count per indexed document.
func (ix *Inverted) AvgDocLength() float64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if len(ix.docLengths) == 0 {
		return 0
	}
	return float64(ix.totalTokens) / float64(len(ix.docLengths))
}

func (ix *Inverted) TermCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.terms)
}
