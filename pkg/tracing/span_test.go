package tracing

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpanTree(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "answer", "req-1")
	_, embed := StartChildSpan(ctx, "embed")
	time.Sleep(2 * time.Millisecond)
	embed.End()
	_, gen := StartChildSpan(ctx, "generate")
	gen.RecordError(errors.New("upstream 500"))
	gen.End()

	assert.Same(t, root, SpanFromContext(ctx))
	assert.Equal(t, "req-1", embed.TraceID)

	timings := root.Timings()
	require.Contains(t, timings, "embed")
	require.Contains(t, timings, "generate")
	assert.GreaterOrEqual(t, timings["embed"], int64(2))
}

func TestStartSpanGeneratesTraceID(t *testing.T) {
	_, a := StartSpan(context.Background(), "answer", "")
	_, b := StartSpan(context.Background(), "answer", "")
	assert.NotEmpty(t, a.TraceID)
	assert.NotEqual(t, a.TraceID, b.TraceID)
}

func TestDetachedChild(t *testing.T) {
	_, child := StartChildSpan(context.Background(), "orphan")
	assert.Empty(t, child.TraceID)
}

func TestEndIsIdempotent(t *testing.T) {
	_, s := StartSpan(context.Background(), "x", "t")
	s.End()
	d := s.Duration()
	time.Sleep(2 * time.Millisecond)
	s.End()
	assert.Equal(t, d, s.Duration())
}

func TestFinishLogsSummaryAndTree(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx, root := StartSpan(context.Background(), "answer", "req-9")
	_, child := StartChildSpan(ctx, "search")
	child.SetAttr("hits", 3)
	child.End()
	root.RecordError(errors.New("boom"))
	root.Finish(logger)

	out := buf.String()
	assert.Contains(t, out, "msg=trace")
	assert.Contains(t, out, "trace_id=req-9")
	assert.Contains(t, out, "search_ms=")
	assert.Contains(t, out, "error=boom")
	assert.Contains(t, out, "hits=3")
}
