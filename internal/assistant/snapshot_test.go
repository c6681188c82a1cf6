package assistant

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/indexer/vector"
	apperrors "github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/errors"
)

func writeFixture(t *testing.T, dir string, urls ...string) string {
	t.Helper()
	path := filepath.Join(dir, "corpus.jsonl")
	recs := make([]corpus.Record, len(urls))
	for i, u := range urls {
		recs[i] = corpus.Record{URL: u, Text: "text " + u}
	}
	_, err := corpus.AppendNew(path, recs, corpus.URLSet{})
	require.NoError(t, err)
	return path
}

func writeIndex(t *testing.T, dir string, urls ...string) string {
	t.Helper()
	idx := vector.New(2)
	for i := range urls {
		require.NoError(t, idx.Add(i, []float32{float32(i + 1), 1}))
	}
	path := filepath.Join(dir, "index.vec")
	require.NoError(t, vector.WriteFile(path, idx, vector.Meta{
		CorpusSize:  len(urls),
		Fingerprint: vector.Fingerprint(urls),
	}))
	return path
}

func TestLoadSnapshot(t *testing.T) {
	dir := t.TempDir()
	corpusPath := writeFixture(t, dir, "https://a.example/1", "https://a.example/2")
	indexPath := writeIndex(t, dir, "https://a.example/1", "https://a.example/2")

	snap, err := LoadSnapshot(corpusPath, indexPath)
	require.NoError(t, err)
	assert.Len(t, snap.Records, 2)
	assert.Equal(t, 2, snap.Index.Len())
	assert.Equal(t, 2, snap.Meta.CorpusSize)
}

func TestLoadSnapshotToleratesAppendedRecords(t *testing.T) {
	dir := t.TempDir()
	corpusPath := writeFixture(t, dir, "https://a.example/1", "https://a.example/2", "https://a.example/3")
	indexPath := writeIndex(t, dir, "https://a.example/1", "https://a.example/2")

	snap, err := LoadSnapshot(corpusPath, indexPath)
	require.NoError(t, err)
	assert.Len(t, snap.Records, 3)
}

func TestLoadSnapshotRejectsSkew(t *testing.T) {
	dir := t.TempDir()
	corpusPath := writeFixture(t, dir, "https://a.example/1", "https://a.example/2")
	indexPath := writeIndex(t, dir, "https://a.example/2", "https://a.example/1")

	_, err := LoadSnapshot(corpusPath, indexPath)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrCorpusUnavailable))

	small := writeFixture(t, t.TempDir(), "https://a.example/1")
	_, err = LoadSnapshot(small, indexPath)
	assert.Error(t, err)
}

func TestLoadCorpusEmpty(t *testing.T) {
	_, err := LoadCorpus(filepath.Join(t.TempDir(), "missing.jsonl"))
	assert.True(t, errors.Is(err, apperrors.ErrCorpusUnavailable))
}

func TestLoadSnapshotMissingIndex(t *testing.T) {
	dir := t.TempDir()
	corpusPath := writeFixture(t, dir, "https://a.example/1")
	_, err := LoadSnapshot(corpusPath, filepath.Join(dir, "nope.vec"))
	assert.True(t, errors.Is(err, apperrors.ErrRetrieval))
}
