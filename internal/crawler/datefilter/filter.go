// Package datefilter decides whether a dated item falls inside the
// collection window. Exempt URLs bypass the window entirely.
package datefilter

import (
	"strings"
	"time"
)

// Filter holds an inclusive [Start, End] window and the URL substrings that
// are always accepted.
type Filter struct {
	Start  time.Time
	End    time.Time
	Exempt []string
}

func New(start, end time.Time, exempt []string) *Filter {
	return &Filter{Start: start, End: end, Exempt: exempt}
}

// IsExempt reports whether rawURL contains any exempt substring.
func (f *Filter) IsExempt(rawURL string) bool {
	for _, e := range f.Exempt {
		if e != "" && strings.Contains(rawURL, e) {
			return true
		}
	}
	return false
}

// Accept applies the window to an optional timestamp. Exempt URLs pass even
// without a timestamp; everything else needs one within bounds.
func (f *Filter) Accept(rawURL string, ts *time.Time) bool {
	if f.IsExempt(rawURL) {
		return true
	}
	if ts == nil {
		return false
	}
	return f.InWindow(*ts)
}

// InWindow reports whether t lies within the inclusive window.
func (f *Filter) InWindow(t time.Time) bool {
	return !t.Before(f.Start) && !t.After(f.End)
}

// BeforeWindow reports whether t precedes the window start. Listing scans
// over activity-sorted pages stop at the first such row.
func (f *Filter) BeforeWindow(t time.Time) bool {
	return t.Before(f.Start)
}
