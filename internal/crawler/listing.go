package crawler

import (
	"context"
	"time"

	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/crawler/extractor"
)

// ListingOptions controls ScanListing.
type ListingOptions struct {
	MaxScrolls int
	// AssumeSorted stops the scan at the first non-exempt row older than the
	// window start. Only safe when the listing is ordered newest first.
	AssumeSorted bool
}

// ScanListing walks up to MaxScrolls listing pages and returns the topic URLs
// worth extracting. URLs in collected are skipped; new ones are added to it.
// A failing page ends the scan with whatever was gathered before it.
func (c *Crawler) ScanListing(ctx context.Context, listingURL string, opts ListingOptions, collected corpus.URLSet) ([]corpus.FilteredURL, error) {
	maxScrolls := opts.MaxScrolls
	if maxScrolls <= 0 {
		maxScrolls = 8
	}

	var (
		out       []corpus.FilteredURL
		prev      time.Time
		unordered bool
	)
	logger := c.logger.With("listing_url", listingURL)

scan:
	for page := 0; page < maxScrolls; page++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		pageURL, err := extractor.ListingPageURL(listingURL, page)
		if err != nil {
			return out, err
		}
		body, err := c.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			c.observePage(pageOutcome(err))
			logger.Warn("listing page fetch failed, ending scan", "page", page, "error", err)
			break
		}
		c.observePage("ok")

		rows, seen, err := extractor.ParseListing(pageURL, body)
		if err != nil {
			logger.Warn("listing page unparseable, ending scan", "page", page, "error", err)
			break
		}
		if seen == 0 {
			logger.Info("listing exhausted", "page", page)
			break
		}
		logger.Debug("listing page scanned", "page", page, "rows", seen, "usable", len(rows))

		for _, row := range rows {
			if opts.AssumeSorted && !unordered && !prev.IsZero() && row.Activity.After(prev) {
				unordered = true
				logger.Warn("listing is not sorted newest first, early stop may skip topics",
					"page", page,
					"url", row.URL,
					"activity", row.Activity,
					"previous", prev,
				)
			}
			prev = row.Activity
			if collected.Has(row.URL) {
				continue
			}
			if c.filter == nil {
				collected.Add(row.URL)
				out = append(out, corpus.FilteredURL{URL: row.URL, Date: row.Activity})
				continue
			}
			if c.filter.IsExempt(row.Href) || c.filter.IsExempt(row.URL) {
				collected.Add(row.URL)
				out = append(out, corpus.FilteredURL{URL: row.URL, Date: row.Activity, Exempt: true})
				continue
			}
			if opts.AssumeSorted && c.filter.BeforeWindow(row.Activity) {
				logger.Info("reached activity before window start, ending scan",
					"activity", row.Activity,
					"page", page,
				)
				break scan
			}
			if c.filter.InWindow(row.Activity) {
				collected.Add(row.URL)
				out = append(out, corpus.FilteredURL{URL: row.URL, Date: row.Activity})
			}
		}
	}

	logger.Info("listing scan finished", "collected", len(out))
	return out, nil
}
