// Package ranker turns raw nearest-neighbour results into scored context
// passages and the citation links shown with an answer.
package ranker

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/corpus"
	apperrors "github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/errors"
)

// SnippetLimit bounds the link text derived from a passage.
const SnippetLimit = 100

// Searcher is the nearest-neighbour oracle. Smaller distances are closer and
// returned ids are corpus positions.
type Searcher interface {
	Search(query []float32, k int) (distances []float32, ids []int, err error)
}

// Hit is one retrieved passage. Score is the negated distance, so higher is
// more relevant.
type Hit struct {
	CorpusIndex int     `json:"corpus_index"`
	Distance    float32 `json:"distance"`
	Score       float32 `json:"score"`
	Text        string  `json:"text"`
	URL         string  `json:"url,omitempty"`
}

// Link is a citation returned alongside an answer.
type Link struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

// Ranker maps oracle ids onto the corpus the index was built from.
type Ranker struct {
	index   Searcher
	records []corpus.Record
}

func New(index Searcher, records []corpus.Record) *Ranker {
	return &Ranker{index: index, records: records}
}

// Rank returns up to k hits, best first. Ids outside the corpus are dropped;
// equal scores keep the oracle's order.
func (r *Ranker) Rank(ctx context.Context, query []float32, k int) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	distances, ids, err := r.index.Search(query, k)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrRetrieval, err)
	}
	if len(distances) != len(ids) {
		return nil, fmt.Errorf("%w: oracle returned %d distances for %d ids", apperrors.ErrRetrieval, len(distances), len(ids))
	}

	hits := make([]Hit, 0, len(ids))
	for i, id := range ids {
		if id < 0 || id >= len(r.records) {
			continue
		}
		rec := r.records[id]
		hits = append(hits, Hit{
			CorpusIndex: id,
			Distance:    distances[i],
			Score:       -distances[i],
			Text:        rec.Text,
			URL:         rec.URL,
		})
	}
	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].Score > hits[b].Score
	})
	return hits, nil
}

// Links builds one citation per distinct URL in hit order. Hits without a
// URL contribute nothing.
func Links(hits []Hit) []Link {
	links := make([]Link, 0, len(hits))
	seen := make(map[string]struct{}, len(hits))
	for _, h := range hits {
		if h.URL == "" {
			continue
		}
		if _, dup := seen[h.URL]; dup {
			continue
		}
		seen[h.URL] = struct{}{}
		links = append(links, Link{URL: h.URL, Text: Snippet(h.Text, SnippetLimit)})
	}
	return links
}

// Snippet returns the text before the first ". ", cut to at most limit
// characters.
func Snippet(text string, limit int) string {
	if i := strings.Index(text, ". "); i >= 0 {
		text = text[:i]
	}
	runes := []rune(text)
	if len(runes) > limit {
		runes = runes[:limit]
	}
	return string(runes)
}

// Context joins passage texts with the separator the prompt expects.
func Context(hits []Hit) string {
	texts := make([]string, len(hits))
	for i, h := range hits {
		texts[i] = h.Text
	}
	return strings.Join(texts, "\n---\n")
}
