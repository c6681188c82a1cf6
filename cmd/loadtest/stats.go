package main

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Stats is shared by all workers.
type Stats struct {
	total         atomic.Int64
	transportErrs atomic.Int64
	upstreamErrs  atomic.Int64
	noLinkAnswers atomic.Int64
	latencies     []time.Duration
	latenciesMu   sync.Mutex
	statusCodes   map[int]int64
	statusCodesMu sync.Mutex
}

func NewStats() *Stats {
	return &Stats{
		latencies:   make([]time.Duration, 0, 10000),
		statusCodes: make(map[int]int64),
	}
}

// upstreamFailure reports answers the service produced from a failed
// embedding, index or generation call.
func upstreamFailure(answer string) bool {
	return strings.HasPrefix(answer, "Error:") ||
		strings.HasPrefix(answer, "Embedding error:") ||
		strings.HasPrefix(answer, "Index error:")
}

func (s *Stats) Record(d time.Duration, status int, p *payload, err error) {
	s.total.Add(1)
	if err != nil {
		s.transportErrs.Add(1)
		return
	}

	s.latenciesMu.Lock()
	s.latencies = append(s.latencies, d)
	s.latenciesMu.Unlock()

	s.statusCodesMu.Lock()
	s.statusCodes[status]++
	s.statusCodesMu.Unlock()

	if upstreamFailure(p.Answer) {
		s.upstreamErrs.Add(1)
	}
	if len(p.Links) == 0 {
		s.noLinkAnswers.Add(1)
	}
}

func (s *Stats) Report(w io.Writer, duration time.Duration) {
	total := s.total.Load()
	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Total Requests:   %d\n", total)
	fmt.Fprintf(w, "Transport Errors: %d\n", s.transportErrs.Load())
	fmt.Fprintf(w, "Upstream Errors:  %d\n", s.upstreamErrs.Load())
	fmt.Fprintf(w, "No-link Answers:  %d\n", s.noLinkAnswers.Load())
	if total > 0 {
		fmt.Fprintf(w, "Requests/sec:     %.2f\n", float64(total)/duration.Seconds())
	}

	s.latenciesMu.Lock()
	latencies := make([]time.Duration, len(s.latencies))
	copy(latencies, s.latencies)
	s.latenciesMu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		avg := sum / time.Duration(len(latencies))
		var sq float64
		for _, l := range latencies {
			diff := float64(l - avg)
			sq += diff * diff
		}

		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== Latency ===")
		fmt.Fprintf(w, "Min:    %s\n", latencies[0])
		fmt.Fprintf(w, "Avg:    %s\n", avg)
		fmt.Fprintf(w, "P50:    %s\n", percentile(latencies, 50))
		fmt.Fprintf(w, "P95:    %s\n", percentile(latencies, 95))
		fmt.Fprintf(w, "P99:    %s\n", percentile(latencies, 99))
		fmt.Fprintf(w, "Max:    %s\n", latencies[len(latencies)-1])
		fmt.Fprintf(w, "StdDev: %s\n", time.Duration(math.Sqrt(sq/float64(len(latencies)))))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Status Codes ===")
	s.statusCodesMu.Lock()
	codes := make([]int, 0, len(s.statusCodes))
	for code := range s.statusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "  %d: %d\n", code, s.statusCodes[code])
	}
	s.statusCodesMu.Unlock()

	if total == 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "WARNING: No requests completed. Is the service running?")
	}
}

func percentile(sorted []time.Duration, pct float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(pct/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
