package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/corpus"
)

func TestRebuildIsDebounced(t *testing.T) {
	clock := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rebuilds := 0
	rc := New(func(context.Context) error { rebuilds++; return nil }, time.Minute)
	rc.now = func() time.Time { return clock }

	ctx := context.Background()
	assert.False(t, rc.MaybeRebuild(ctx), "nothing pending")

	raw, err := json.Marshal(corpus.RecordEvent{URL: "https://forum.example/t/1", TextLength: 10})
	require.NoError(t, err)
	handle := rc.HandleMessage()
	require.NoError(t, handle(ctx, []byte("k"), raw))
	require.NoError(t, handle(ctx, []byte("k"), []byte("garbage")))
	assert.Equal(t, 1, rc.Pending())

	clock = clock.Add(30 * time.Second)
	assert.False(t, rc.MaybeRebuild(ctx), "still inside debounce window")

	clock = clock.Add(31 * time.Second)
	assert.True(t, rc.MaybeRebuild(ctx))
	assert.Equal(t, 1, rebuilds)
	assert.Equal(t, 0, rc.Pending())
}

func TestFailedRebuildKeepsPending(t *testing.T) {
	rc := New(func(context.Context) error { return errors.New("embedding failed") }, time.Nanosecond)
	raw, _ := json.Marshal(corpus.RecordEvent{URL: "https://forum.example/t/2"})
	require.NoError(t, rc.HandleMessage()(context.Background(), nil, raw))
	time.Sleep(time.Millisecond)

	assert.False(t, rc.MaybeRebuild(context.Background()))
	assert.Equal(t, 1, rc.Pending())
}
