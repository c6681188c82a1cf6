// Package consumer keeps the vector index fresh: it listens for corpus
// record events from the crawler and rebuilds the index once the stream has
// been quiet for a debounce period.
package consumer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/kafka"
)

// RebuildFunc rebuilds the index from the current corpus.
type RebuildFunc func(ctx context.Context) error

type RebuildConsumer struct {
	rebuild  RebuildFunc
	debounce time.Duration
	now      func() time.Time
	logger   *slog.Logger

	mu        sync.Mutex
	pending   int
	lastEvent time.Time
}

func New(rebuild RebuildFunc, debounce time.Duration) *RebuildConsumer {
	if debounce <= 0 {
		debounce = 30 * time.Second
	}
	return &RebuildConsumer{
		rebuild:  rebuild,
		debounce: debounce,
		now:      time.Now,
		logger:   slog.Default().With("component", "index-consumer"),
	}
}

// HandleMessage returns a Kafka MessageHandler that counts record events.
// Undecodable messages are logged and committed.
func (rc *RebuildConsumer) HandleMessage() kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[corpus.RecordEvent](value)
		if err != nil {
			rc.logger.Error("failed to decode record event", "error", err, "key", string(key))
			return nil
		}
		rc.mu.Lock()
		rc.pending++
		rc.lastEvent = rc.now()
		rc.mu.Unlock()
		rc.logger.Debug("record event", "url", event.URL, "text_length", event.TextLength)
		return nil
	}
}

// Pending reports events seen since the last successful rebuild.
func (rc *RebuildConsumer) Pending() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.pending
}

// Run checks every tick whether a rebuild is due. It blocks until ctx is
// cancelled.
func (rc *RebuildConsumer) Run(ctx context.Context, tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rc.MaybeRebuild(ctx)
		}
	}
}

// MaybeRebuild rebuilds when events are pending and none arrived within the
// debounce period. It reports whether a rebuild succeeded.
func (rc *RebuildConsumer) MaybeRebuild(ctx context.Context) bool {
	rc.mu.Lock()
	pending := rc.pending
	quiet := rc.now().Sub(rc.lastEvent) >= rc.debounce
	rc.mu.Unlock()
	if pending == 0 || !quiet {
		return false
	}

	rc.logger.Info("rebuilding index", "new_records", pending)
	if err := rc.rebuild(ctx); err != nil {
		rc.logger.Error("index rebuild failed", "error", err)
		return false
	}
	rc.mu.Lock()
	rc.pending -= pending
	rc.mu.Unlock()
	return true
}
