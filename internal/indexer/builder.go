// Package indexer turns the corpus into a persisted vector index. Records
// with text are embedded in batches by a bounded pool of workers; the
// vector id of a record is its position in the corpus file.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/indexer/vector"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/metrics"
)

const (
	DefaultWorkers   = 4
	DefaultBatchSize = 32
	// MaxEmbedChars keeps long documentation pages under the embedding
	// model's input limit.
	MaxEmbedChars = 24000
)

type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type Options struct {
	Workers   int
	BatchSize int
	Metrics   *metrics.Metrics
}

// BuildStats summarises one build.
type BuildStats struct {
	Records  int
	Embedded int
	Skipped  int
	Batches  int
	Duration time.Duration
}

type Builder struct {
	embedder  BatchEmbedder
	workers   int
	batchSize int
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewBuilder(embedder BatchEmbedder, opts Options) *Builder {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	return &Builder{
		embedder:  embedder,
		workers:   opts.Workers,
		batchSize: opts.BatchSize,
		metrics:   opts.Metrics,
		logger:    slog.Default().With("component", "index-builder"),
	}
}

type batch struct {
	ids     []int
	texts   []string
	vectors [][]float32
}

// Build embeds every record with text. Any failed batch fails the build so
// a partial index is never written.
func (b *Builder) Build(ctx context.Context, records []corpus.Record) (*vector.Index, vector.Meta, BuildStats, error) {
	start := time.Now()
	stats := BuildStats{Records: len(records)}
	batches := b.plan(records, &stats)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i := range batches {
		bt := batches[i]
		g.Go(func() error {
			vectors, err := b.embedder.EmbedBatch(gctx, bt.texts)
			if err != nil {
				return fmt.Errorf("embedding batch starting at record %d: %w", bt.ids[0], err)
			}
			if len(vectors) != len(bt.texts) {
				return fmt.Errorf("embedding batch starting at record %d: got %d vectors for %d texts",
					bt.ids[0], len(vectors), len(bt.texts))
			}
			bt.vectors = vectors
			if b.metrics != nil {
				b.metrics.VectorsIndexedTotal.Add(float64(len(vectors)))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, vector.Meta{}, stats, err
	}

	var idx *vector.Index
	for _, bt := range batches {
		for j, id := range bt.ids {
			if idx == nil {
				idx = vector.New(len(bt.vectors[j]))
			}
			if err := idx.Add(id, bt.vectors[j]); err != nil {
				return nil, vector.Meta{}, stats, fmt.Errorf("adding record %d: %w", id, err)
			}
			stats.Embedded++
		}
	}
	if idx == nil {
		return nil, vector.Meta{}, stats, fmt.Errorf("no records with text among %d", len(records))
	}

	urls := make([]string, len(records))
	for i, r := range records {
		urls[i] = r.URL
	}
	meta := vector.Meta{
		CorpusSize:  len(records),
		Fingerprint: vector.Fingerprint(urls),
		CreatedAt:   time.Now().UTC(),
	}
	stats.Batches = len(batches)
	stats.Duration = time.Since(start)
	b.logger.Info("index built",
		"records", stats.Records,
		"embedded", stats.Embedded,
		"skipped", stats.Skipped,
		"batches", stats.Batches,
		"dims", idx.Dims(),
		"duration", stats.Duration,
	)
	return idx, meta, stats, nil
}

func (b *Builder) plan(records []corpus.Record, stats *BuildStats) []*batch {
	var batches []*batch
	cur := &batch{}
	for i, r := range records {
		if !r.HasText() {
			stats.Skipped++
			continue
		}
		cur.ids = append(cur.ids, i)
		cur.texts = append(cur.texts, truncate(r.Text, MaxEmbedChars))
		if len(cur.ids) == b.batchSize {
			batches = append(batches, cur)
			cur = &batch{}
		}
	}
	if len(cur.ids) > 0 {
		batches = append(batches, cur)
	}
	return batches
}

// Run rebuilds the index file at indexPath from the corpus at corpusPath.
func (b *Builder) Run(ctx context.Context, corpusPath, indexPath string) (BuildStats, error) {
	records, err := corpus.ReadAll(corpusPath)
	if err != nil {
		return BuildStats{}, err
	}
	idx, meta, stats, err := b.Build(ctx, records)
	if err != nil {
		return stats, err
	}
	if err := vector.WriteFile(indexPath, idx, meta); err != nil {
		return stats, err
	}
	b.logger.Info("index written", "path", indexPath, "vectors", idx.Len())
	return stats, nil
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
