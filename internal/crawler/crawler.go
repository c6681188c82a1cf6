// Package crawler drives corpus collection. Crawl walks a site breadth-first
// from a start URL; ScanListing and ExtractFiltered form the two-phase
// listing workflow, where the first phase decides what to visit and the
// second extracts it.
package crawler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/crawler/datefilter"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/crawler/extractor"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/crawler/fetcher"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/crawler/frontier"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/metrics"
)

// Record dispositions, also used as metric labels.
const (
	dispositionAccepted  = "accepted"
	dispositionDuplicate = "duplicate"
	dispositionEmpty     = "empty"
	dispositionFiltered  = "filtered"
)

// Options bounds a crawler.
type Options struct {
	// MaxVisitedPages caps pages dequeued per Crawl. Zero means no cap.
	MaxVisitedPages int
	Metrics         *metrics.Metrics
}

// Crawler is safe to reuse across sessions but not for concurrent sessions.
type Crawler struct {
	fetcher    fetcher.Fetcher
	filter     *datefilter.Filter
	maxVisited int
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

func New(f fetcher.Fetcher, filter *datefilter.Filter, opts Options) *Crawler {
	return &Crawler{
		fetcher:    f,
		filter:     filter,
		maxVisited: opts.MaxVisitedPages,
		metrics:    opts.Metrics,
		logger:     slog.Default().With("component", "crawler"),
	}
}

// Stats summarises one crawl session.
type Stats struct {
	Visited    int
	Failed     int
	Accepted   int
	Duplicates int
	Empty      int
	Filtered   int
	Enqueued   int
}

// Crawl visits pages breadth-first from startURL until the frontier is
// exhausted, maxNewRecords records have been accepted, or the visited-page
// cap is hit. existing is read, never modified, so the batch can be handed
// straight to corpus.AppendNew with the same set. A failing page yields no
// records and the crawl moves on; only cancellation ends it early, in which
// case the records gathered so far are returned with ctx.Err().
func (c *Crawler) Crawl(ctx context.Context, startURL string, maxNewRecords int, existing corpus.URLSet) ([]corpus.Record, Stats, error) {
	var (
		batch []corpus.Record
		stats Stats
	)
	taken := make(corpus.URLSet)
	fr := frontier.New(startURL)
	stats.Enqueued = 1

	for len(batch) < maxNewRecords {
		if c.maxVisited > 0 && fr.VisitedCount() >= c.maxVisited {
			c.logger.Info("visited page cap reached", "max_visited_pages", c.maxVisited)
			break
		}
		if err := ctx.Err(); err != nil {
			return batch, stats, err
		}
		pageURL, ok := fr.Next()
		if !ok {
			break
		}
		stats.Visited++
		c.setQueueLength(fr.Len())

		body, err := c.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			if ctx.Err() != nil {
				return batch, stats, ctx.Err()
			}
			stats.Failed++
			c.observePage(pageOutcome(err))
			c.logger.Warn("fetch failed, skipping page", "url", pageURL, "error", err)
			continue
		}
		c.observePage("ok")

		res, err := extractor.Extract(pageURL, body)
		if err != nil {
			stats.Failed++
			c.logger.Warn("extraction failed, skipping page", "url", pageURL, "error", err)
			continue
		}

		for _, rec := range res.Records {
			if len(batch) >= maxNewRecords {
				break
			}
			disposition := c.admit(&rec, res.Mode, existing, taken)
			c.observeRecord(disposition)
			switch disposition {
			case dispositionAccepted:
				taken.Add(rec.URL)
				batch = append(batch, rec)
				stats.Accepted++
			case dispositionDuplicate:
				stats.Duplicates++
			case dispositionEmpty:
				stats.Empty++
			case dispositionFiltered:
				stats.Filtered++
			}
		}

		links := res.Links
		if res.Mode == extractor.ModePosts {
			links, err = extractor.ScanLinks(pageURL, body)
			if err != nil {
				c.logger.Warn("link scan incomplete", "url", pageURL, "error", err)
			}
		}
		for _, link := range links {
			if fr.Push(link) {
				stats.Enqueued++
			}
		}
		c.setQueueLength(fr.Len())

		c.logger.Debug("page processed",
			"url", pageURL,
			"mode", res.Mode.String(),
			"records", len(res.Records),
			"links", len(links),
			"accepted_total", len(batch),
		)
	}

	c.logger.Info("crawl finished",
		"start_url", startURL,
		"visited", stats.Visited,
		"failed", stats.Failed,
		"accepted", stats.Accepted,
		"duplicates", stats.Duplicates,
		"filtered", stats.Filtered,
		"queue_remaining", fr.Len(),
	)
	return batch, stats, nil
}

// admit decides what happens to one extracted record. Dated posts must fall
// inside the window unless exempt; undated fallback pages are kept as is.
func (c *Crawler) admit(rec *corpus.Record, mode extractor.Mode, existing, taken corpus.URLSet) string {
	if existing.Has(rec.URL) || taken.Has(rec.URL) {
		return dispositionDuplicate
	}
	if !rec.HasText() {
		return dispositionEmpty
	}
	if c.filter == nil {
		return dispositionAccepted
	}
	rec.Exempt = c.filter.IsExempt(rec.URL)
	if mode == extractor.ModePosts && !c.filter.Accept(rec.URL, rec.Timestamp) {
		return dispositionFiltered
	}
	return dispositionAccepted
}

func pageOutcome(err error) string {
	if errors.Is(err, fetcher.ErrRobotsDisallowed) {
		return "robots_denied"
	}
	return "error"
}

func (c *Crawler) observePage(outcome string) {
	if c.metrics != nil {
		c.metrics.PagesFetchedTotal.WithLabelValues(outcome).Inc()
	}
}

func (c *Crawler) observeRecord(disposition string) {
	if c.metrics != nil {
		c.metrics.RecordsTotal.WithLabelValues(disposition).Inc()
	}
}

func (c *Crawler) setQueueLength(n int) {
	if c.metrics != nil {
		c.metrics.FrontierQueueLength.Set(float64(n))
	}
}
