package postgres

import (
	"context"
	"fmt"
)

// schema is idempotent; Migrate runs it on every start.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS corpus_records (
		url         TEXT PRIMARY KEY,
		text        TEXT NOT NULL,
		posted_at   TIMESTAMPTZ,
		links       JSONB,
		exempt      BOOLEAN NOT NULL DEFAULT FALSE,
		crawled_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS corpus_records_posted_at_idx ON corpus_records (posted_at)`,
	`CREATE TABLE IF NOT EXISTS analytics_snapshots (
		id          BIGSERIAL PRIMARY KEY,
		data        JSONB NOT NULL,
		captured_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// Migrate creates the tables used by the corpus mirror and the analytics
// snapshot store.
func (c *Client) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := c.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema statement %d: %w", i, err)
		}
	}
	return nil
}
