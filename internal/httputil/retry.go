// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared by the fetcher and the CLI.
package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// RetryBaseDelay controls the base duration for exponential backoff
// between attempts. Tests override this to avoid real sleeps.
var RetryBaseDelay = 1 * time.Second

const defaultAttempts = 3

// StatusError is returned for a non-200 HTTP response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// IsTransient reports whether err is worth another attempt. Connection
// and read failures, truncated bodies and every HTTP error status are;
// GitHub answers 403 and 404 while throttling raw downloads. Context
// cancellation is not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	var oe *net.OpError
	return errors.As(err, &oe)
}

// Retry calls op up to attempts times (the default, 3, when attempts is
// not positive) while it returns a transient error. The delay starts at
// RetryBaseDelay and doubles after each failure. If the context is
// cancelled during a backoff wait Retry returns ctx.Err(). After
// exhausting attempts the last error is returned.
func Retry(ctx context.Context, attempts int, log *zap.SugaredLogger, op func(attempt int) error) error {
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	var err error
	for attempt := 1; ; attempt++ {
		err = op(attempt)
		if err == nil || !IsTransient(err) || attempt >= attempts {
			return err
		}

		backoff := time.Duration(math.Pow(2, float64(attempt-1))) * RetryBaseDelay
		log.Debugw("transient failure, retrying", "error", err, "attempt", attempt, "of", attempts, "backoff", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}

// Request carries the per-request settings applied by Get.
type Request struct {
	UserAgent string

	// AuthToken is sent as a bearer token, only to GitHub hosts.
	AuthToken string
}

// Get issues a GET for url. Any status other than 200 is returned as a
// *StatusError after the body is drained and closed.
func Get(ctx context.Context, client *http.Client, url string, r Request) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if r.UserAgent != "" {
		req.Header.Set("User-Agent", r.UserAgent)
	}
	if r.AuthToken != "" && isGitHubHost(req.URL.Hostname()) {
		req.Header.Set("Authorization", "Bearer "+r.AuthToken)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	return resp, nil
}

func isGitHubHost(host string) bool {
	return host == "github.com" || strings.HasSuffix(host, ".github.com") ||
		strings.HasSuffix(host, ".githubusercontent.com")
}
