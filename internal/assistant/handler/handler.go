// Package handler exposes the answer service over HTTP. Both the root path
// and /api/ accept a JSON body (POST) or query parameters (GET) and always
// reply 200 with an {answer, links} payload.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/assistant/composer"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/assistant/ranker"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/middleware"
)

// MaxBodyBytes bounds a request body; base64 screenshots are the large case.
const MaxBodyBytes = 16 << 20

// Answerer is satisfied by the vector composer and the keyword answerer.
type Answerer interface {
	Answer(ctx context.Context, question, image string) composer.Result
}

type AnswerCache interface {
	GetOrCompute(ctx context.Context, question, image string, computeFn func() composer.Result) (composer.Result, bool)
	Stats() (hits, misses int64)
	Invalidate(ctx context.Context) (int64, error)
}

type EventTracker interface {
	Track(event analytics.QuestionEvent)
}

// Request is the POST body. GET uses the same names as query parameters.
type Request struct {
	Question string `json:"question"`
	Image    string `json:"image,omitempty"`
}

type Handler struct {
	answerer Answerer
	cache    AnswerCache
	tracker  EventTracker
	metrics  *metrics.Metrics
	mode     string
	logger   *slog.Logger
}

// Options carries the optional collaborators; nil fields are disabled.
type Options struct {
	Cache   AnswerCache
	Tracker EventTracker
	Metrics *metrics.Metrics
	Mode    string
}

func New(answerer Answerer, opts Options) *Handler {
	return &Handler{
		answerer: answerer,
		cache:    opts.Cache,
		tracker:  opts.Tracker,
		metrics:  opts.Metrics,
		mode:     opts.Mode,
		logger:   slog.Default().With("component", "answer-handler"),
	}
}

// Register mounts the question endpoints and cache administration on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	for _, path := range []string{"/{$}", "/api/{$}"} {
		mux.HandleFunc("GET "+path, h.Answer)
		mux.HandleFunc("POST "+path, h.Answer)
	}
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("DELETE /api/v1/cache", h.CacheInvalidate)
}

func (h *Handler) Answer(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	req, err := parseRequest(r)
	if err != nil {
		log.Warn("unreadable request", "error", err)
	}
	if strings.TrimSpace(req.Question) == "" {
		h.writeJSON(w, http.StatusOK, composer.Payload{
			Answer: "Error: question is required",
			Links:  []ranker.Link{},
		})
		return
	}
	log.Info("received question", "has_image", req.Image != "", "method", r.Method)

	var res composer.Result
	cacheHit := false
	if h.cache != nil {
		res, cacheHit = h.cache.GetOrCompute(ctx, req.Question, req.Image, func() composer.Result {
			return h.answerer.Answer(ctx, req.Question, req.Image)
		})
	} else {
		res = h.answerer.Answer(ctx, req.Question, req.Image)
	}
	if res.Links == nil {
		res.Links = []ranker.Link{}
	}

	latency := time.Since(start)
	h.observe(cacheHit, latency)
	log.Info("question answered",
		"outcome", res.Outcome,
		"links", len(res.Links),
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)
	if h.tracker != nil {
		h.tracker.Track(analytics.QuestionEvent{
			Question:     req.Question,
			QuestionHash: analytics.HashQuestion(req.Question),
			HasImage:     req.Image != "",
			Mode:         h.mode,
			Outcome:      string(res.Outcome),
			Hits:         res.Hits,
			Links:        len(res.Links),
			CacheHit:     cacheHit,
			LatencyMs:    latency.Milliseconds(),
			Timestamp:    time.Now().UTC(),
			RequestID:    middleware.GetRequestID(ctx),
		})
	}

	h.writeJSON(w, http.StatusOK, res.Payload)
}

// parseRequest prefers a JSON body and falls back to query parameters when
// the body is absent or unreadable.
func parseRequest(r *http.Request) (Request, error) {
	query := Request{
		Question: r.URL.Query().Get("question"),
		Image:    r.URL.Query().Get("image"),
	}
	if r.Method != http.MethodPost || r.Body == nil {
		return query, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
	if err != nil {
		return query, fmt.Errorf("reading body: %w", err)
	}
	if len(body) > MaxBodyBytes {
		return query, fmt.Errorf("body exceeds %d bytes", MaxBodyBytes)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return query, nil
	}
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return query, fmt.Errorf("decoding body: %w", err)
	}
	if req.Question == "" {
		req.Question = query.Question
	}
	if req.Image == "" {
		req.Image = query.Image
	}
	return req, nil
}

func (h *Handler) observe(cacheHit bool, latency time.Duration) {
	if h.metrics == nil {
		return
	}
	status := "miss"
	if h.cache == nil {
		status = "disabled"
	}
	if cacheHit {
		status = "hit"
		h.metrics.CacheHitsTotal.Inc()
	} else if h.cache != nil {
		h.metrics.CacheMissesTotal.Inc()
	}
	h.metrics.AnswerLatency.WithLabelValues(status).Observe(latency.Seconds())
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
