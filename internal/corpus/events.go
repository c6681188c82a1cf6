package corpus

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/kafka"
)

// RecordEvent announces a record newly appended to the corpus. Consumers
// (an incremental indexer, the analytics service) key on URL.
type RecordEvent struct {
	URL        string     `json:"url"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
	Exempt     bool       `json:"exempt,omitempty"`
	TextLength int        `json:"text_length"`
	AppendedAt time.Time  `json:"appended_at"`
}

// EventBatcher accumulates record events and flushes them to Kafka when the
// batch fills or the flush interval elapses.
type EventBatcher struct {
	publisher     kafka.Publisher
	mu            sync.Mutex
	flushMu       sync.Mutex
	buffer        []kafka.Event
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger
	done          chan struct{}
}

func NewEventBatcher(publisher kafka.Publisher, batchSize int, flushInterval time.Duration) *EventBatcher {
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &EventBatcher{
		publisher:     publisher,
		buffer:        make([]kafka.Event, 0, batchSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        slog.Default().With("component", "corpus-events"),
		done:          make(chan struct{}),
	}
}

// Start launches the flush loop. A final flush runs after ctx is cancelled.
func (b *EventBatcher) Start(ctx context.Context) {
	go func() {
		defer close(b.done)
		ticker := time.NewTicker(b.flushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				b.Flush(ctx)
			case <-ctx.Done():
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				b.Flush(flushCtx)
				cancel()
				return
			}
		}
	}()
}

// Track queues one event per record.
func (b *EventBatcher) Track(records []Record) {
	now := time.Now().UTC()
	b.mu.Lock()
	for _, r := range records {
		b.buffer = append(b.buffer, kafka.Event{
			Key: r.URL,
			Value: RecordEvent{
				URL:        r.URL,
				Timestamp:  r.Timestamp,
				Exempt:     r.Exempt,
				TextLength: len(r.Text),
				AppendedAt: now,
			},
		})
	}
	full := len(b.buffer) >= b.batchSize
	b.mu.Unlock()

	if full {
		go b.Flush(context.Background())
	}
}

// Close waits for the flush loop to exit.
func (b *EventBatcher) Close() {
	<-b.done
}

func (b *EventBatcher) BufferLen() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buffer)
}

// Flush publishes everything buffered. Failed batches are re-queued up to
// three batches' worth; anything beyond that is dropped.
func (b *EventBatcher) Flush(ctx context.Context) {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.mu.Lock()
	if len(b.buffer) == 0 {
		b.mu.Unlock()
		return
	}
	batch := b.buffer
	b.buffer = make([]kafka.Event, 0, b.batchSize)
	b.mu.Unlock()

	if err := b.publisher.PublishBatch(ctx, batch); err != nil {
		b.logger.Error("record event flush failed", "batch_size", len(batch), "error", err)
		b.mu.Lock()
		b.buffer = append(batch, b.buffer...)
		if limit := b.batchSize * 3; len(b.buffer) > limit {
			b.logger.Warn("event buffer overflow, events dropped", "dropped", len(b.buffer)-limit)
			b.buffer = b.buffer[:limit]
		}
		b.mu.Unlock()
		return
	}
	b.logger.Debug("record events flushed", "events", len(batch))
}
