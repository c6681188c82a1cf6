package fetcher

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
)

// Session carries the credentials of an authenticated forum session. The
// cookie is either configured up front or pasted in by an operator during
// AwaitLogin.
type Session struct {
	mu     sync.Mutex
	cookie string
	logger *slog.Logger
}

func NewSession(cookie string) *Session {
	return &Session{
		cookie: strings.TrimSpace(cookie),
		logger: slog.Default().With("component", "fetcher-session"),
	}
}

// Cookie returns the current session cookie header value.
func (s *Session) Cookie() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cookie
}

// Apply attaches the session cookie to req, if one is set.
func (s *Session) Apply(req *http.Request) {
	if c := s.Cookie(); c != "" {
		req.Header.Set("Cookie", c)
	}
}

// AwaitLogin blocks until an operator confirms they have logged in at
// loginURL. The prompt is written to out; the reply is read as one line from
// in. A non-empty reply replaces the session cookie, an empty one keeps the
// configured cookie. Only one AwaitLogin runs at a time.
func (s *Session) AwaitLogin(ctx context.Context, loginURL string, in io.Reader, out io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info("awaiting manual authentication", "login_url", loginURL)
	fmt.Fprintf(out, "Log in at %s, then paste the Cookie header value (or press Enter to keep the configured one): ", loginURL)

	lines := make(chan string, 1)
	errs := make(chan error, 1)
	go func() {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			errs <- err
			return
		}
		lines <- line
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errs:
		if err == io.EOF {
			s.logger.Warn("no operator input, continuing with configured session")
			return nil
		}
		return fmt.Errorf("reading login confirmation: %w", err)
	case line := <-lines:
		if c := strings.TrimSpace(line); c != "" {
			s.cookie = c
		}
	}
	s.logger.Info("manual authentication confirmed", "has_cookie", s.cookie != "")
	return nil
}
