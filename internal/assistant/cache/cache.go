// Package cache stores successful answers in Redis keyed by the normalised
// question and a digest of the attached image. Concurrent identical
// questions are collapsed into a single computation.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/assistant/composer"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/assistant/ranker"
	pkgredis "github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/redis"
)

const keyPrefix = "answer:"

// Store is the subset of the Redis client the cache needs.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type entry struct {
	Payload composer.Payload `json:"payload"`
	Hits    int              `json:"hits"`
}

type AnswerCache struct {
	store  Store
	ttl    time.Duration
	scope  string
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

// New returns a cache whose keys are namespaced by scope, normally the
// retrieval mode, so vector and keyword answers never mix.
func New(store Store, ttl time.Duration, scope string) *AnswerCache {
	return &AnswerCache{
		store:  store,
		ttl:    ttl,
		scope:  scope,
		logger: slog.Default().With("component", "answer-cache"),
	}
}

func (c *AnswerCache) Get(ctx context.Context, question, image string) (composer.Result, bool) {
	key := c.buildKey(question, image)
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return composer.Result{}, false
	}
	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return composer.Result{}, false
	}
	if e.Payload.Links == nil {
		e.Payload.Links = []ranker.Link{}
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "key", key)
	return composer.Result{Payload: e.Payload, Outcome: composer.OutcomeOK, Hits: e.Hits}, true
}

// Set stores res only when it is a successful answer.
func (c *AnswerCache) Set(ctx context.Context, question, image string, res composer.Result) {
	if res.Outcome != composer.OutcomeOK {
		return
	}
	key := c.buildKey(question, image)
	data, err := json.Marshal(entry{Payload: res.Payload, Hits: res.Hits})
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns a cached answer or computes, stores and returns a
// fresh one. The bool reports a cache hit.
func (c *AnswerCache) GetOrCompute(
	ctx context.Context,
	question, image string,
	computeFn func() composer.Result,
) (composer.Result, bool) {
	if res, ok := c.Get(ctx, question, image); ok {
		return res, true
	}
	key := c.buildKey(question, image)
	val, _, _ := c.group.Do(key, func() (interface{}, error) {
		if res, ok := c.Get(ctx, question, image); ok {
			return res, nil
		}
		res := computeFn()
		c.Set(ctx, question, image, res)
		return res, nil
	})
	return val.(composer.Result), false
}

func (c *AnswerCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating answer cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return deleted, nil
}

func (c *AnswerCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *AnswerCache) buildKey(question, image string) string {
	raw := c.scope + "|" + normalizeQuestion(question)
	if image != "" {
		img := sha256.Sum256([]byte(image))
		raw += fmt.Sprintf("|img=%x", img[:8])
	}
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

// normalizeQuestion folds case and whitespace. Punctuation is kept.
func normalizeQuestion(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}
