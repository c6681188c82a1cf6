package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsRecord(t *testing.T) {
	s := NewStats()
	ok := &payload{Answer: "Feb 16", Links: []struct {
		URL  string `json:"url"`
		Text string `json:"text"`
	}{{URL: "https://forum.example/t/1"}}}
	s.Record(10*time.Millisecond, http.StatusOK, ok, nil)
	s.Record(20*time.Millisecond, http.StatusOK, &payload{Answer: "Error: 500 boom"}, nil)
	s.Record(0, 0, nil, errors.New("dial tcp"))

	assert.Equal(t, int64(3), s.total.Load())
	assert.Equal(t, int64(1), s.transportErrs.Load())
	assert.Equal(t, int64(1), s.upstreamErrs.Load())
	assert.Equal(t, int64(1), s.noLinkAnswers.Load())

	var buf bytes.Buffer
	s.Report(&buf, time.Second)
	assert.Contains(t, buf.String(), "200: 2")
	assert.Contains(t, buf.String(), "Upstream Errors:  1")
}

func TestPercentile(t *testing.T) {
	lat := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, time.Duration(5), percentile(lat, 50))
	assert.Equal(t, time.Duration(10), percentile(lat, 99))
	assert.Zero(t, percentile(nil, 50))
}

func TestAskPostsJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"answer":"ok","links":[{"url":"https://forum.example/t/1","text":"x"}]}`))
	}))
	defer srv.Close()

	p, status, err := ask(context.Background(), srv.Client(), srv.URL, "q")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", p.Answer)
	assert.Len(t, p.Links, 1)
}
