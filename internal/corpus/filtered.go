package corpus

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// FilteredURL is one line of the listing-scan output: a topic URL that
// passed the date window, with the activity date that admitted it.
type FilteredURL struct {
	URL    string    `json:"url"`
	Date   time.Time `json:"date"`
	Exempt bool      `json:"exempt,omitempty"`
}

type wireFiltered struct {
	URL    string `json:"url"`
	Date   string `json:"date"`
	Exempt bool   `json:"exempt,omitempty"`
}

func (f FilteredURL) MarshalJSON() ([]byte, error) {
	return marshalRaw(wireFiltered{
		URL:    f.URL,
		Date:   f.Date.UTC().Format(time.RFC3339),
		Exempt: f.Exempt,
	})
}

func (f *FilteredURL) UnmarshalJSON(data []byte) error {
	var w wireFiltered
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	date, err := ParseTimestamp(w.Date)
	if err != nil {
		return err
	}
	*f = FilteredURL{URL: w.URL, Date: date, Exempt: w.Exempt}
	return nil
}

// LoadFiltered reads the filtered-URL file, skipping malformed lines. A
// missing file yields no entries.
func LoadFiltered(path string) ([]FilteredURL, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var entries []FilteredURL
	err = scanLines(f, func(line []byte, lineNo int) {
		var entry FilteredURL
		if err := json.Unmarshal(line, &entry); err != nil || entry.URL == "" {
			slog.Debug("skipping malformed filtered line", "component", "corpus-store", "line", lineNo)
			return
		}
		entries = append(entries, entry)
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// AppendFiltered appends entries to the filtered-URL file.
func AppendFiltered(path string, entries []FilteredURL) error {
	if len(entries) == 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := terminateLastLine(f, w); err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, entry := range entries {
		if err := enc.Encode(entry); err != nil {
			return fmt.Errorf("encoding filtered url %s: %w", entry.URL, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
