// Package tracing times the stages of a request as a tree of spans carried
// in the context. A finished root logs one summary line with per-stage
// timings, plus the full tree at debug level.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

type spanKey struct{}

type Span struct {
	Name      string
	TraceID   string
	StartTime time.Time

	mu       sync.Mutex
	duration time.Duration
	ended    bool
	err      error
	children []*Span
	attrs    map[string]any
}

// StartSpan starts a root span. An empty traceID gets a fresh one.
func StartSpan(ctx context.Context, name, traceID string) (context.Context, *Span) {
	if traceID == "" {
		traceID = uuid.NewString()
	}
	s := &Span{Name: name, TraceID: traceID, StartTime: time.Now(), attrs: map[string]any{}}
	return context.WithValue(ctx, spanKey{}, s), s
}

// StartChildSpan starts a span under the one in ctx. Without a parent the
// child is detached and never logged.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	child := &Span{Name: name, StartTime: time.Now(), attrs: map[string]any{}}
	if parent := SpanFromContext(ctx); parent != nil {
		child.TraceID = parent.TraceID
		parent.mu.Lock()
		parent.children = append(parent.children, child)
		parent.mu.Unlock()
	}
	return context.WithValue(ctx, spanKey{}, child), child
}

func SpanFromContext(ctx context.Context) *Span {
	s, _ := ctx.Value(spanKey{}).(*Span)
	return s
}

// End fixes the span's duration. Later calls are no-ops.
func (s *Span) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ended {
		s.duration = time.Since(s.StartTime)
		s.ended = true
	}
}

func (s *Span) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ended {
		return time.Since(s.StartTime)
	}
	return s.duration
}

func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.attrs[key] = value
	s.mu.Unlock()
}

// RecordError marks the span failed; nil is ignored.
func (s *Span) RecordError(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Timings maps each direct child's name to its duration in milliseconds.
func (s *Span) Timings() map[string]int64 {
	s.mu.Lock()
	children := append([]*Span(nil), s.children...)
	s.mu.Unlock()
	out := make(map[string]int64, len(children))
	for _, c := range children {
		out[c.Name] += c.Duration().Milliseconds()
	}
	return out
}

// Finish ends a root span and logs it.
func (s *Span) Finish(logger *slog.Logger) {
	s.End()
	attrs := []any{"trace_id", s.TraceID, "span", s.Name, "duration_ms", s.Duration().Milliseconds()}
	for name, ms := range s.Timings() {
		attrs = append(attrs, name+"_ms", ms)
	}
	if err := s.failure(); err != nil {
		attrs = append(attrs, "error", err)
	}
	logger.Info("trace", attrs...)
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		s.logTree(logger, 0)
	}
}

func (s *Span) failure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Span) logTree(logger *slog.Logger, depth int) {
	s.mu.Lock()
	attrs := []any{"trace_id", s.TraceID, "span", s.Name, "duration_ms", s.duration.Milliseconds(), "depth", depth}
	for k, v := range s.attrs {
		attrs = append(attrs, k, v)
	}
	if s.err != nil {
		attrs = append(attrs, "error", s.err)
	}
	children := append([]*Span(nil), s.children...)
	s.mu.Unlock()

	logger.Debug("span", attrs...)
	for _, c := range children {
		c.logTree(logger, depth+1)
	}
}
