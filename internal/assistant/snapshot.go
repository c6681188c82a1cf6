// Package assistant holds the read-only state the answer service is built
// on: the corpus and, in vector mode, the embedding index built from it.
package assistant

import (
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/indexer/vector"
	apperrors "github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/errors"
)

// Snapshot is loaded once at startup and never mutated.
type Snapshot struct {
	Records []corpus.Record
	Index   *vector.Index
	Meta    vector.Meta
}

// LoadCorpus loads only the corpus, for keyword retrieval.
func LoadCorpus(corpusPath string) (*Snapshot, error) {
	records, err := corpus.ReadAll(corpusPath)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s has no records", apperrors.ErrCorpusUnavailable, corpusPath)
	}
	return &Snapshot{Records: records}, nil
}

// LoadSnapshot loads the corpus and the index file and checks that the
// index was built from a prefix of this corpus. Records appended after the
// build are kept but are not searchable until the index is rebuilt.
func LoadSnapshot(corpusPath, indexPath string) (*Snapshot, error) {
	snap, err := LoadCorpus(corpusPath)
	if err != nil {
		return nil, err
	}
	idx, meta, err := vector.ReadFile(indexPath)
	if err != nil {
		return nil, fmt.Errorf("%w: loading index %s: %v", apperrors.ErrRetrieval, indexPath, err)
	}
	if meta.CorpusSize > len(snap.Records) {
		return nil, fmt.Errorf("%w: index covers %d records but corpus has %d",
			apperrors.ErrCorpusUnavailable, meta.CorpusSize, len(snap.Records))
	}
	if got := vector.Fingerprint(URLs(snap.Records[:meta.CorpusSize])); got != meta.Fingerprint {
		return nil, fmt.Errorf("%w: index fingerprint %08x does not match corpus %08x; rebuild the index",
			apperrors.ErrCorpusUnavailable, meta.Fingerprint, got)
	}

	logger := slog.Default().With("component", "snapshot")
	if pending := len(snap.Records) - meta.CorpusSize; pending > 0 {
		logger.Warn("corpus has records newer than the index", "unindexed", pending)
	}
	logger.Info("snapshot loaded",
		"records", len(snap.Records),
		"vectors", idx.Len(),
		"dims", idx.Dims(),
		"index_created_at", meta.CreatedAt,
	)
	snap.Index = idx
	snap.Meta = meta
	return snap, nil
}

// URLs lists record URLs in corpus order.
func URLs(records []corpus.Record) []string {
	urls := make([]string, len(records))
	for i, r := range records {
		urls[i] = r.URL
	}
	return urls
}
