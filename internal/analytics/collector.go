package analytics

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/kafka"
)

const (
	collectorBatchSize     = 50
	collectorFlushInterval = 2 * time.Second
)

// Collector queues question events in a bounded channel and publishes them
// to Kafka in batches, so answering a question never waits on the broker.
// Events arriving while the queue is full are dropped and counted.
type Collector struct {
	producer kafka.Publisher
	eventCh  chan QuestionEvent
	logger   *slog.Logger
	done     chan struct{}
	close    sync.Once

	published atomic.Int64
	dropped   atomic.Int64
}

func NewCollector(producer kafka.Publisher, bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &Collector{
		producer: producer,
		eventCh:  make(chan QuestionEvent, bufferSize),
		logger:   slog.Default().With("component", "analytics-collector"),
		done:     make(chan struct{}),
	}
}

// Start runs the publish loop until ctx is done or Close is called. Queued
// events are flushed either way.
func (c *Collector) Start(ctx context.Context) {
	go c.loop(ctx)
	c.logger.Info("analytics collector started", "buffer_size", cap(c.eventCh))
}

func (c *Collector) loop(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(collectorFlushInterval)
	defer ticker.Stop()

	batch := make([]kafka.Event, 0, collectorBatchSize)
	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		if err := c.producer.PublishBatch(ctx, batch); err != nil {
			c.logger.Error("failed to publish question events", "count", len(batch), "error", err)
		} else {
			c.published.Add(int64(len(batch)))
		}
		batch = batch[:0]
	}

	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				flush(context.Background())
				return
			}
			batch = append(batch, kafka.Event{Key: event.QuestionHash, Value: event})
			if len(batch) >= collectorBatchSize {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		case <-ctx.Done():
			for {
				select {
				case event, ok := <-c.eventCh:
					if !ok {
						flush(context.Background())
						return
					}
					batch = append(batch, kafka.Event{Key: event.QuestionHash, Value: event})
				default:
					flush(context.Background())
					return
				}
			}
		}
	}
}

// Track enqueues event without blocking.
func (c *Collector) Track(event QuestionEvent) {
	select {
	case c.eventCh <- event:
	default:
		if n := c.dropped.Add(1); n == 1 || n%1000 == 0 {
			c.logger.Warn("analytics events dropped, buffer full", "dropped_total", n)
		}
	}
}

// Close stops accepting events and waits for queued ones to be published.
// Track must not be called after Close.
func (c *Collector) Close() {
	c.close.Do(func() { close(c.eventCh) })
	<-c.done
}

// Counts reports published and dropped events.
func (c *Collector) Counts() (published, dropped int64) {
	return c.published.Load(), c.dropped.Load()
}
