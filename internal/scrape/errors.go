package scrape

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// RobotsDisallowedError marks a URL whose path robots.txt forbids.
// It is fatal per URL; no network call is made.
type RobotsDisallowedError struct {
	URL string
}

func (e *RobotsDisallowedError) Error() string {
	return fmt.Sprintf("robots.txt disallows %s", e.URL)
}

// RateLimitedError reports an HTTP 429. The fetcher performs zero internal
// retries for it; the caller decides how to back off.
type RateLimitedError struct {
	URL        string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited on %s (retry after %s)", e.URL, e.RetryAfter)
}

// HTTPError reports a non-2xx response other than 429.
type HTTPError struct {
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d on %s", e.StatusCode, e.URL)
}

// MaxRetriesExceededError reports retry exhaustion, wrapping the last failure.
type MaxRetriesExceededError struct {
	URL      string
	Attempts int
	Last     error
}

func (e *MaxRetriesExceededError) Error() string {
	return fmt.Sprintf("max retries exceeded for %s after %d attempts: %v", e.URL, e.Attempts, e.Last)
}

func (e *MaxRetriesExceededError) Unwrap() error {
	return e.Last
}

// parseRetryAfter interprets a Retry-After header as delta seconds or an HTTP
// date. A missing or malformed header yields zero.
func parseRetryAfter(headers http.Header, now time.Time) time.Duration {
	raw := headers.Get("Retry-After")
	if raw == "" {
		return 0
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(raw); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
