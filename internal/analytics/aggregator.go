package analytics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/kafka"
)

const maxLatencySamples = 100000

type AggregatedStats struct {
	TotalQuestions     int64            `json:"total_questions"`
	ImageQuestions     int64            `json:"image_questions"`
	CacheHits          int64            `json:"cache_hits"`
	CacheMisses        int64            `json:"cache_misses"`
	Outcomes           map[string]int64 `json:"outcomes"`
	NoLinkCount        int64            `json:"no_link_count"`
	AvgLatencyMs       float64          `json:"avg_latency_ms"`
	P50LatencyMs       int64            `json:"p50_latency_ms"`
	P95LatencyMs       int64            `json:"p95_latency_ms"`
	P99LatencyMs       int64            `json:"p99_latency_ms"`
	TopQuestions       []QuestionCount  `json:"top_questions"`
	NoLinkQuestions    []QuestionCount  `json:"no_link_questions"`
	QuestionsPerMinute float64          `json:"questions_per_minute"`
}

type QuestionCount struct {
	Question string `json:"question"`
	Count    int64  `json:"count"`
}

type Aggregator struct {
	mu              sync.RWMutex
	totalQuestions  atomic.Int64
	imageQuestions  atomic.Int64
	cacheHits       atomic.Int64
	cacheMisses     atomic.Int64
	noLinks         atomic.Int64
	outcomes        map[string]int64
	latencies       []int64
	questionCounts  map[string]int64
	noLinkQuestions map[string]int64
	startTime       time.Time
	logger          *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		outcomes:        make(map[string]int64),
		latencies:       make([]int64, 0, 10000),
		questionCounts:  make(map[string]int64),
		noLinkQuestions: make(map[string]int64),
		startTime:       time.Now(),
		logger:          slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent adapts the aggregator to a Kafka consumer. Undecodable
// messages are logged and committed.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[QuestionEvent](value)
		if err != nil {
			agg.logger.Error("failed to decode question event", "error", err, "key", string(key))
			return nil
		}
		agg.Record(event)
		return nil
	}
}

func (a *Aggregator) Record(event QuestionEvent) {
	a.totalQuestions.Add(1)
	if event.HasImage {
		a.imageQuestions.Add(1)
	}
	if event.CacheHit {
		a.cacheHits.Add(1)
	} else {
		a.cacheMisses.Add(1)
	}
	if event.Links == 0 {
		a.noLinks.Add(1)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.outcomes[event.Outcome]++
	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, event.LatencyMs)
	}
	a.questionCounts[event.Question]++
	if event.Links == 0 {
		a.noLinkQuestions[event.Question]++
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalQuestions: a.totalQuestions.Load(),
		ImageQuestions: a.imageQuestions.Load(),
		CacheHits:      a.cacheHits.Load(),
		CacheMisses:    a.cacheMisses.Load(),
		NoLinkCount:    a.noLinks.Load(),
		Outcomes:       make(map[string]int64, len(a.outcomes)),
	}
	for k, v := range a.outcomes {
		stats.Outcomes[k] = v
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQuestions = topN(a.questionCounts, 10)
	stats.NoLinkQuestions = topN(a.noLinkQuestions, 10)
	if elapsed := time.Since(a.startTime).Minutes(); elapsed > 0 {
		stats.QuestionsPerMinute = float64(stats.TotalQuestions) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN orders by count, then question text so equal counts are stable.
func topN(counts map[string]int64, n int) []QuestionCount {
	result := make([]QuestionCount, 0, len(counts))
	for q, count := range counts {
		result = append(result, QuestionCount{Question: q, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Question < result[j].Question
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
