package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/resilience"
)

// MessageHandler processes one message. Returning a Permanent error (see
// ErrSkip) skips the message without retrying it.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// ErrSkip tells the consumer a message can never be processed.
var ErrSkip = errors.New("skip message")

// reader is the subset of *kafka.Reader the consume loop uses.
type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer delivers messages to a handler and commits each offset once the
// handler has succeeded or the message has been given up on. A message that
// keeps failing is retried with backoff and then skipped so one bad record
// cannot stall the partition.
type Consumer struct {
	reader       reader
	handler      MessageHandler
	retry        resilience.RetryConfig
	fetchBackoff time.Duration
	logger       *slog.Logger

	processed atomic.Int64
	skipped   atomic.Int64
}

// NewConsumer joins cfg.ConsumerGroup on topic. A new group starts from the
// earliest retained offset so downstream state can be rebuilt from history.
func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	return newConsumer(r, topic, handler)
}

func newConsumer(r reader, topic string, handler MessageHandler) *Consumer {
	return &Consumer{
		reader:  r,
		handler: handler,
		retry: resilience.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 100 * time.Millisecond,
			MaxDelay:     2 * time.Second,
		},
		fetchBackoff: time.Second,
		logger:       slog.Default().With("component", "kafka-consumer", "topic", topic),
	}
}

// Start consumes until ctx is cancelled, then closes the reader.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping",
					"reason", ctx.Err(),
					"processed", c.processed.Load(),
					"skipped", c.skipped.Load(),
				)
				return nil
			}
			c.logger.Error("failed to fetch message", "error", err)
			select {
			case <-time.After(c.fetchBackoff):
			case <-ctx.Done():
			}
			continue
		}

		if !c.process(ctx, msg) && ctx.Err() != nil {
			// Leave the offset uncommitted; the group redelivers it.
			continue
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("failed to commit message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

// process runs the handler with retries and reports whether it succeeded.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) bool {
	err := resilience.Retry(ctx, "kafka-handler", c.retry, func() error {
		err := c.handler(ctx, msg.Key, msg.Value)
		if errors.Is(err, ErrSkip) {
			return resilience.Permanent(err)
		}
		return err
	})
	if err == nil {
		c.processed.Add(1)
		return true
	}
	c.skipped.Add(1)
	c.logger.Error("giving up on message",
		"partition", msg.Partition,
		"offset", msg.Offset,
		"key", string(msg.Key),
		"error", err,
	)
	return false
}

// Counts returns how many messages were handled and how many were skipped.
func (c *Consumer) Counts() (processed, skipped int64) {
	return c.processed.Load(), c.skipped.Load()
}

// DecodeJSON unmarshals a message value into T. Decode failures wrap ErrSkip
// since redelivering the same bytes cannot help.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("%w: decoding kafka message: %v", ErrSkip, err)
	}
	return result, nil
}
