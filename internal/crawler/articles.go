package crawler

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/internal/crawler/extractor"
)

// ExtractFiltered fetches each filtered URL not already in existing and turns
// its <article> content into one record carrying the listing date. With
// refilter set the date window is applied again. At most maxNewRecords
// records are returned; zero means no limit. existing is not modified.
func (c *Crawler) ExtractFiltered(ctx context.Context, entries []corpus.FilteredURL, existing corpus.URLSet, refilter bool, maxNewRecords int) ([]corpus.Record, Stats, error) {
	var (
		batch []corpus.Record
		stats Stats
	)
	taken := make(corpus.URLSet)
	for _, entry := range entries {
		if maxNewRecords > 0 && len(batch) >= maxNewRecords {
			break
		}
		if existing.Has(entry.URL) || taken.Has(entry.URL) {
			stats.Duplicates++
			c.observeRecord(dispositionDuplicate)
			continue
		}
		date := entry.Date
		if refilter && c.filter != nil && !entry.Exempt && !c.filter.Accept(entry.URL, &date) {
			stats.Filtered++
			c.observeRecord(dispositionFiltered)
			continue
		}
		if err := ctx.Err(); err != nil {
			return batch, stats, err
		}

		stats.Visited++
		body, err := c.fetcher.Fetch(ctx, entry.URL)
		if err != nil {
			if ctx.Err() != nil {
				return batch, stats, ctx.Err()
			}
			stats.Failed++
			c.observePage(pageOutcome(err))
			c.logger.Warn("article fetch failed", "url", entry.URL, "error", err)
			continue
		}
		c.observePage("ok")

		text, err := extractor.Articles(entry.URL, body)
		if err != nil {
			stats.Failed++
			c.logger.Warn("article extraction failed", "url", entry.URL, "error", err)
			continue
		}
		rec := corpus.Record{
			URL:       entry.URL,
			Text:      text,
			Timestamp: &date,
			Exempt:    entry.Exempt,
		}
		if !rec.HasText() {
			stats.Empty++
			c.observeRecord(dispositionEmpty)
			continue
		}
		taken.Add(rec.URL)
		batch = append(batch, rec)
		stats.Accepted++
		c.observeRecord(dispositionAccepted)
		c.logger.Debug("article extracted", "url", entry.URL, "chars", len(text))
	}

	c.logger.Info("article extraction finished",
		"entries", len(entries),
		"accepted", stats.Accepted,
		"failed", stats.Failed,
		"duplicates", stats.Duplicates,
	)
	return batch, stats, nil
}
