package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/assistant/composer"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/assistant/ranker"
)

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
	fail bool
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return nil, errors.New("connection refused")
	}
	v, ok := m.data[key]
	if !ok {
		return nil, goredis.Nil
	}
	return v, nil
}

func (m *memStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *memStore) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var n int64
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func okResult(answer string) composer.Result {
	return composer.Result{
		Payload: composer.Payload{Answer: answer, Links: []ranker.Link{{URL: "https://forum.example/t/1", Text: "x"}}},
		Outcome: composer.OutcomeOK,
		Hits:    1,
	}
}

func TestGetOrComputeCachesSuccess(t *testing.T) {
	store := newMemStore()
	c := New(store, time.Minute, "vector")
	ctx := context.Background()

	var calls atomic.Int32
	compute := func() composer.Result {
		calls.Add(1)
		return okResult("Feb 16")
	}

	res, hit := c.GetOrCompute(ctx, "When is the deadline?", "", compute)
	assert.False(t, hit)
	assert.Equal(t, "Feb 16", res.Answer)

	res, hit = c.GetOrCompute(ctx, "  when IS the   deadline? ", "", compute)
	assert.True(t, hit)
	assert.Equal(t, "Feb 16", res.Answer)
	require.Len(t, res.Links, 1)
	assert.Equal(t, int32(1), calls.Load())

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(2), misses)
	for _, ttl := range store.ttls {
		assert.Equal(t, time.Minute, ttl)
	}
}

func TestFailuresAreNotCached(t *testing.T) {
	c := New(newMemStore(), time.Minute, "vector")
	ctx := context.Background()
	calls := 0
	compute := func() composer.Result {
		calls++
		return composer.Result{
			Payload: composer.Payload{Answer: "Error: 500 boom", Links: []ranker.Link{}},
			Outcome: composer.OutcomeGenerationError,
		}
	}
	c.GetOrCompute(ctx, "q", "", compute)
	res, hit := c.GetOrCompute(ctx, "q", "", compute)
	assert.False(t, hit)
	assert.Equal(t, "Error: 500 boom", res.Answer)
	assert.Equal(t, 2, calls)
}

func TestImageAndScopeChangeKey(t *testing.T) {
	c := New(newMemStore(), time.Minute, "vector")
	assert.NotEqual(t, c.buildKey("q", ""), c.buildKey("q", "aW1n"))
	assert.NotEqual(t, c.buildKey("q", "aW1n"), c.buildKey("q", "b3RoZXI="))
	other := New(newMemStore(), time.Minute, "keyword")
	assert.NotEqual(t, c.buildKey("q", ""), other.buildKey("q", ""))
	assert.True(t, strings.HasPrefix(c.buildKey("q", ""), keyPrefix))
}

func TestStoreErrorIsMiss(t *testing.T) {
	store := newMemStore()
	store.fail = true
	c := New(store, time.Minute, "vector")
	res, hit := c.GetOrCompute(context.Background(), "q", "", func() composer.Result { return okResult("fresh") })
	assert.False(t, hit)
	assert.Equal(t, "fresh", res.Answer)
}

func TestInvalidate(t *testing.T) {
	store := newMemStore()
	c := New(store, time.Minute, "vector")
	ctx := context.Background()
	c.Set(ctx, "a", "", okResult("1"))
	c.Set(ctx, "b", "", okResult("2"))
	store.data["other:key"] = []byte("x")

	n, err := c.Invalidate(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	_, hit := c.Get(ctx, "a", "")
	assert.False(t, hit)
	assert.Contains(t, store.data, "other:key")
}
