package datefilter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAccept(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 4, 14, 23, 59, 59, 0, time.UTC)
	f := New(start, end, []string{"/t/tds-references-guidelines/67216/5"})

	at := func(tm time.Time) *time.Time { return &tm }

	tests := []struct {
		name string
		url  string
		ts   *time.Time
		want bool
	}{
		{"inside", "https://d.example/t/x/1", at(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)), true},
		{"start bound inclusive", "https://d.example/t/x/1", at(start), true},
		{"end bound inclusive", "https://d.example/t/x/1", at(end), true},
		{"before", "https://d.example/t/x/1", at(start.Add(-time.Second)), false},
		{"after", "https://d.example/t/x/1", at(end.Add(time.Second)), false},
		{"missing timestamp", "https://d.example/t/x/1", nil, false},
		{"exempt without timestamp", "https://d.example/t/tds-references-guidelines/67216/5", nil, true},
		{"exempt outside window", "https://d.example/t/tds-references-guidelines/67216/5", at(start.AddDate(-1, 0, 0)), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.Accept(tt.url, tt.ts))
		})
	}
}

func TestBeforeWindow(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	f := New(start, start.AddDate(0, 3, 0), nil)
	assert.True(t, f.BeforeWindow(start.Add(-time.Nanosecond)))
	assert.False(t, f.BeforeWindow(start))
	assert.False(t, f.IsExempt("https://anything"))
}
