package corpus

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// TxRunner is satisfied by *postgres.Client.
type TxRunner interface {
	InTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// Mirror copies newly appended records into the corpus_records table so
// they can be queried alongside analytics. The JSONL file stays the source
// of truth; a mirror failure never fails the crawl.
type Mirror struct {
	db     TxRunner
	logger *slog.Logger
}

func NewMirror(db TxRunner) *Mirror {
	return &Mirror{
		db:     db,
		logger: slog.Default().With("component", "corpus-mirror"),
	}
}

// Save inserts records, ignoring URLs the table already holds. It returns
// the number of rows actually inserted.
func (m *Mirror) Save(ctx context.Context, records []Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	inserted := 0
	crawledAt := time.Now().UTC()
	err := m.db.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO corpus_records (url, text, posted_at, links, exempt, crawled_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (url) DO NOTHING`)
		if err != nil {
			return fmt.Errorf("preparing insert: %w", err)
		}
		defer stmt.Close()

		for _, r := range records {
			links, err := json.Marshal(r.Links)
			if err != nil {
				return fmt.Errorf("encoding links for %s: %w", r.URL, err)
			}
			res, err := stmt.ExecContext(ctx, r.URL, r.Text, nullableTime(r.Timestamp), links, r.Exempt, crawledAt)
			if err != nil {
				return fmt.Errorf("inserting %s: %w", r.URL, err)
			}
			if n, err := res.RowsAffected(); err == nil {
				inserted += int(n)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	m.logger.Info("corpus mirrored", "records", len(records), "inserted", inserted)
	return inserted, nil
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
