package corpus

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	apperrors "github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/errors"
)

// Load returns the set of URLs already stored at path. A missing file is an
// empty corpus; malformed lines are skipped.
func Load(path string) (URLSet, error) {
	known := make(URLSet)
	err := scan(path, func(r Record) {
		known.Add(r.URL)
	})
	if err != nil {
		return nil, err
	}
	return known, nil
}

// ReadAll returns every well-formed record in file order. The position of a
// record in the returned slice is its corpus index.
func ReadAll(path string) ([]Record, error) {
	var records []Record
	err := scan(path, func(r Record) {
		records = append(records, r)
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// AppendNew appends the records whose URL is not yet known, in order, and
// adds them to known. Records repeated within the batch are written once.
// It returns the records actually written.
func AppendNew(path string, records []Record, known URLSet) ([]Record, error) {
	fresh := make([]Record, 0, len(records))
	for _, r := range records {
		if known.Has(r.URL) {
			continue
		}
		if err := r.Validate(); err != nil {
			slog.Warn("skipping invalid record", "component", "corpus-store", "error", err)
			continue
		}
		known.Add(r.URL)
		fresh = append(fresh, r)
	}
	if len(fresh) == 0 {
		return fresh, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating corpus directory: %v", apperrors.ErrCorpusUnavailable, err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", apperrors.ErrCorpusUnavailable, path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := terminateLastLine(f, w); err != nil {
		return nil, err
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, r := range fresh {
		if err := enc.Encode(r); err != nil {
			return nil, fmt.Errorf("encoding record %s: %w", r.URL, err)
		}
	}
	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		return nil, fmt.Errorf("syncing %s: %w", path, err)
	}
	return fresh, nil
}

// terminateLastLine writes a newline if a previous run died mid-line, so the
// torn line stays malformed on its own instead of corrupting the next record.
func terminateLastLine(f *os.File, w *bufio.Writer) error {
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat corpus file: %w", err)
	}
	if info.Size() == 0 {
		return nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return fmt.Errorf("reading corpus tail: %w", err)
	}
	if last[0] != '\n' {
		return w.WriteByte('\n')
	}
	return nil
}

func scan(path string, fn func(Record)) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: opening %s: %v", apperrors.ErrCorpusUnavailable, path, err)
	}
	defer f.Close()
	return scanLines(f, func(line []byte, lineNo int) {
		var r Record
		if err := json.Unmarshal(line, &r); err != nil {
			slog.Debug("skipping malformed corpus line", "component", "corpus-store", "line", lineNo, "error", err)
			return
		}
		if err := r.Validate(); err != nil {
			slog.Debug("skipping invalid corpus line", "component", "corpus-store", "line", lineNo, "error", err)
			return
		}
		fn(r)
	})
}

// scanLines feeds every non-blank line to fn. Lines may be arbitrarily long.
func scanLines(r io.Reader, fn func(line []byte, lineNo int)) error {
	br := bufio.NewReader(r)
	lineNo := 0
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			lineNo++
			if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
				fn(trimmed, lineNo)
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading line %d: %w", lineNo+1, err)
		}
	}
}
