// Package corpus owns the crawl record model and its append-only JSONL store.
// The store is the only persistent state shared by the crawler, the indexer
// and the assistant; everything else is derived from it.
package corpus

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Record is one extracted unit of content. Timestamp is nil for undated
// pages; Links is only populated by fallback extraction.
type Record struct {
	URL       string     `json:"url"`
	Text      string     `json:"text"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Links     []string   `json:"links,omitempty"`
	Exempt    bool       `json:"exempt,omitempty"`
}

// wireRecord is the on-disk shape. Timestamps are kept as strings so that
// files written by other tools (naive ISO dates, explicit nulls) still load.
type wireRecord struct {
	URL       string   `json:"url"`
	Text      string   `json:"text"`
	Timestamp *string  `json:"timestamp,omitempty"`
	Links     []string `json:"links,omitempty"`
	Exempt    bool     `json:"exempt,omitempty"`
}

func (r Record) MarshalJSON() ([]byte, error) {
	w := wireRecord{URL: r.URL, Text: r.Text, Links: r.Links, Exempt: r.Exempt}
	if r.Timestamp != nil {
		ts := r.Timestamp.UTC().Format(time.RFC3339Nano)
		w.Timestamp = &ts
	}
	return marshalRaw(w)
}

// marshalRaw encodes v without escaping <, > and &. json.Marshal would
// escape them, and an enclosing encoder cannot undo that.
func marshalRaw(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*r = Record{URL: w.URL, Text: w.Text, Links: w.Links, Exempt: w.Exempt}
	if w.Timestamp != nil && *w.Timestamp != "" {
		ts, err := ParseTimestamp(*w.Timestamp)
		if err != nil {
			return err
		}
		r.Timestamp = &ts
	}
	return nil
}

// Validate checks the invariants every stored record must hold.
func (r Record) Validate() error {
	if strings.TrimSpace(r.URL) == "" {
		return fmt.Errorf("record has empty url")
	}
	u, err := url.Parse(r.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("record url %q is not absolute", r.URL)
	}
	return nil
}

// HasText reports whether the record carries retainable text.
func (r Record) HasText() bool {
	return strings.TrimSpace(r.Text) != ""
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp accepts RFC 3339 and the zone-less ISO forms Python's
// isoformat produces. Zone-less values are taken as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}

// URLSet is the set of canonical URLs already present in the corpus.
type URLSet map[string]struct{}

func (s URLSet) Has(u string) bool {
	_, ok := s[u]
	return ok
}

func (s URLSet) Add(u string) {
	s[u] = struct{}{}
}
