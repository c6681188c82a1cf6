// Package fetcher retrieves page HTML for the crawler. Every request passes
// through one shared rate limiter, so the politeness delay is a global
// budget no matter how many goroutines fetch.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	neturl "net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/errors"
)

const maxBodyBytes = 10 << 20

// ErrRobotsDisallowed is returned when robots.txt forbids the URL.
var ErrRobotsDisallowed = errors.New("disallowed by robots.txt")

// Fetcher returns the HTML served at a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// StatusError is a non-2xx page response.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s returned %d", apperrors.ErrFetch, e.URL, e.Status)
}

func (e *StatusError) Unwrap() error { return apperrors.ErrFetch }

// HTTPFetcher fetches pages with plain HTTP GETs.
type HTTPFetcher struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
	robots    *RobotsChecker
	session   *Session
	logger    *slog.Logger
}

// Option customises an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithClient replaces the HTTP client.
func WithClient(c *http.Client) Option {
	return func(f *HTTPFetcher) { f.client = c }
}

// WithSession attaches an authenticated session. Its cookie is sent with
// every request.
func WithSession(s *Session) Option {
	return func(f *HTTPFetcher) { f.session = s }
}

// New builds a fetcher from crawler config. A zero delay disables rate
// limiting.
func New(cfg config.CrawlerConfig, opts ...Option) *HTTPFetcher {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	limit := rate.Inf
	if cfg.Delay > 0 {
		limit = rate.Every(cfg.Delay)
	}
	f := &HTTPFetcher{
		client:    &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(limit, 1),
		userAgent: cfg.UserAgent,
		logger:    slog.Default().With("component", "fetcher"),
	}
	for _, opt := range opts {
		opt(f)
	}
	if cfg.RespectRobots {
		f.robots = NewRobotsChecker(f.client, cfg.UserAgent, 0)
	}
	return f
}

// Fetch waits for the rate limiter, checks robots.txt when enabled, and
// returns the response body of a 2xx reply.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if f.robots != nil {
		allowed, err := f.robots.IsAllowed(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrFetch, err)
		}
		if !allowed {
			return nil, fmt.Errorf("%w: %s", ErrRobotsDisallowed, url)
		}
		f.honourCrawlDelay(url)
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: building request for %s: %v", apperrors.ErrFetch, url, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	if f.session != nil {
		f.session.Apply(req)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrFetch, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &StatusError{URL: url, Status: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", apperrors.ErrFetch, url, err)
	}
	f.logger.Debug("page fetched",
		"url", url,
		"status", resp.StatusCode,
		"bytes", len(body),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return body, nil
}

// honourCrawlDelay slows the shared limiter down to the host's Crawl-delay
// when that is stricter than the configured delay. It never speeds it up.
func (f *HTTPFetcher) honourCrawlDelay(rawURL string) {
	u, err := neturl.Parse(rawURL)
	if err != nil {
		return
	}
	delay := f.robots.CrawlDelay(u.Host)
	if delay <= 0 {
		return
	}
	if want := rate.Every(delay); want < f.limiter.Limit() {
		f.limiter.SetLimit(want)
		f.logger.Info("adopting robots.txt crawl delay", "host", u.Host, "delay", delay)
	}
}
