// Package keyword answers questions without any hosted model: it ranks the
// corpus with BM25 and returns the best passages as links.
package keyword

import (
	"context"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/assistant/composer"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/assistant/ranker"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/logger"
)

const (
	DefaultTopK  = 2
	SnippetLimit = 200

	FoundAnswer    = "Based on the discussion, see the following links for details."
	NotFoundAnswer = "No relevant information found in the dataset."
)

type Answerer struct {
	records []corpus.Record
	index   *index.Inverted
	topK    int
}

// New indexes every record that has text and a URL.
func New(records []corpus.Record, topK int) *Answerer {
	if topK <= 0 {
		topK = DefaultTopK
	}
	ix := index.NewInverted()
	for i, r := range records {
		if r.HasText() && r.URL != "" {
			ix.Add(i, r.Text)
		}
	}
	return &Answerer{records: records, index: ix, topK: topK}
}

// Answer ignores the image; keyword retrieval has no use for it.
func (a *Answerer) Answer(ctx context.Context, question, _ string) composer.Result {
	log := logger.FromContext(ctx).With("component", "keyword")

	terms := make([]string, 0, 8)
	for term := range tokenizer.Terms(question) {
		terms = append(terms, term)
	}
	docs := rank(a.index, terms, a.topK)

	links := make([]ranker.Link, 0, len(docs))
	for _, d := range docs {
		rec := a.records[d.doc]
		links = append(links, ranker.Link{URL: rec.URL, Text: Snippet(rec.Text)})
	}
	log.Info("keyword answer", "terms", len(terms), "links", len(links))

	answer := NotFoundAnswer
	if len(links) > 0 {
		answer = FoundAnswer
	}
	return composer.Result{
		Payload: composer.Payload{Answer: answer, Links: links},
		Outcome: composer.OutcomeOK,
		Hits:    len(docs),
	}
}

// Snippet is the first SnippetLimit characters with newlines flattened.
func Snippet(text string) string {
	runes := []rune(text)
	if len(runes) > SnippetLimit {
		runes = runes[:SnippetLimit]
	}
	return strings.ReplaceAll(string(runes), "\n", " ")
}
