package fetcher

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/errors"
)

func testConfig() config.CrawlerConfig {
	return config.CrawlerConfig{
		UserAgent:      "test-agent",
		RequestTimeout: 5 * time.Second,
	}
}

func TestFetchReturnsBodyAndSendsHeaders(t *testing.T) {
	var gotUA, gotCookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotCookie = r.Header.Get("Cookie")
		w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	f := New(testConfig(), WithSession(NewSession("_t=abc")))
	body, err := f.Fetch(context.Background(), srv.URL+"/page")
	require.NoError(t, err)
	assert.Equal(t, "<html>ok</html>", string(body))
	assert.Equal(t, "test-agent", gotUA)
	assert.Equal(t, "_t=abc", gotCookie)
}

func TestFetchNon2xxIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := New(testConfig()).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrFetch))
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.Status)
}

func TestFetchHonoursDelay(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("x"))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Delay = 50 * time.Millisecond
	f := New(cfg)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := f.Fetch(context.Background(), srv.URL)
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestFetchRespectsRobots(t *testing.T) {
	var pageHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.Write([]byte("User-agent: *\nDisallow: /private/\n"))
			return
		}
		pageHits.Add(1)
		w.Write([]byte("page"))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.RespectRobots = true
	f := New(cfg)

	_, err := f.Fetch(context.Background(), srv.URL+"/private/thing")
	require.ErrorIs(t, err, ErrRobotsDisallowed)

	_, err = f.Fetch(context.Background(), srv.URL+"/public")
	require.NoError(t, err)
	assert.Equal(t, int32(1), pageHits.Load())
}

func TestFetchAdoptsCrawlDelay(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.Write([]byte("User-agent: *\nCrawl-delay: 1\n"))
			return
		}
		w.Write([]byte("page"))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.RespectRobots = true
	f := New(cfg)

	_, err := f.Fetch(context.Background(), srv.URL+"/a")
	require.NoError(t, err)
	assert.Equal(t, rate.Every(time.Second), f.limiter.Limit())
}

func TestRobotsMissingAllowsAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	rc := NewRobotsChecker(srv.Client(), "test-agent", 0)
	ok, err := rc.IsAllowed(context.Background(), srv.URL+"/anything")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAwaitLoginReplacesCookie(t *testing.T) {
	s := NewSession("old=1")
	var out bytes.Buffer
	err := s.AwaitLogin(context.Background(), "https://forum.example/login", strings.NewReader("new=2\n"), &out)
	require.NoError(t, err)
	assert.Equal(t, "new=2", s.Cookie())
	assert.Contains(t, out.String(), "https://forum.example/login")
}

func TestAwaitLoginEmptyReplyKeepsCookie(t *testing.T) {
	s := NewSession("old=1")
	require.NoError(t, s.AwaitLogin(context.Background(), "https://forum.example/login", strings.NewReader("\n"), &bytes.Buffer{}))
	assert.Equal(t, "old=1", s.Cookie())

	require.NoError(t, s.AwaitLogin(context.Background(), "https://forum.example/login", strings.NewReader(""), &bytes.Buffer{}))
	assert.Equal(t, "old=1", s.Cookie())
}

type blockingReader struct{ ch chan struct{} }

func (b blockingReader) Read(p []byte) (int, error) {
	<-b.ch
	return 0, nil
}

func TestAwaitLoginCancelled(t *testing.T) {
	s := NewSession("")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	block := blockingReader{ch: make(chan struct{})}
	defer close(block.ch)
	err := s.AwaitLogin(ctx, "https://forum.example/login", block, &bytes.Buffer{})
	assert.ErrorIs(t, err, context.Canceled)
}
