package scrape

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/leggilab/normascout/internal/metrics"
)

// FetcherConfig controls fetch politeness and retry behavior.
type FetcherConfig struct {
	UserAgent  string
	Delay      time.Duration
	MaxRetries int
	Timeout    time.Duration
}

// Fetcher performs polite HTTP GETs through a Colly collector. One shared
// cadence guarantees at least Delay between any two requests issued by the
// same instance, regardless of host.
type Fetcher struct {
	cfg     FetcherConfig
	robots  Policy
	stats   *Statistics
	logger  *zap.Logger
	limiter *rate.Limiter
	base    *colly.Collector
}

// NewFetcher builds a Fetcher.
func NewFetcher(cfg FetcherConfig, robots Policy, stats *Statistics, logger *zap.Logger) *Fetcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.Delay > 0 {
		limit = rate.Every(cfg.Delay)
	}
	base := colly.NewCollector(colly.Async(false))
	base.AllowURLRevisit = true
	// Robots is enforced by the Policy before any network call so disallowed
	// URLs surface as typed errors instead of colly's generic one.
	base.IgnoreRobotsTxt = true
	return &Fetcher{
		cfg:     cfg,
		robots:  robots,
		stats:   stats,
		logger:  logger,
		limiter: rate.NewLimiter(limit, 1),
		base:    base,
	}
}

// Fetch retrieves url, retrying transient failures with exponential backoff.
// HTTP 429 returns a *RateLimitedError with zero internal retries; a
// robots-disallowed path returns *RobotsDisallowedError without touching the
// network. Retry exhaustion returns *MaxRetriesExceededError wrapping the
// last failure.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Response, error) {
	if f.robots != nil && !f.robots.Allowed(ctx, url) {
		return nil, &RobotsDisallowedError{URL: url}
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		waitStart := time.Now()
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
		if waited := time.Since(waitStart); waited > time.Millisecond {
			metrics.ObserveRateLimitDelay(url, waited)
		}

		// Timed after the limiter wait so page durations measure the fetch
		// itself on failures and successes alike.
		attemptStart := time.Now()
		resp, err := f.doFetch(ctx, url)
		if err == nil {
			f.stats.RecordPage(true, resp.Duration)
			metrics.ObservePage(url, resp.StatusCode, resp.Duration)
			return resp, nil
		}
		f.stats.RecordPage(false, time.Since(attemptStart))

		var rl *RateLimitedError
		if errors.As(err, &rl) {
			metrics.ObservePage(url, http.StatusTooManyRequests, time.Since(attemptStart))
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("fetch canceled: %w", ctx.Err())
		}
		lastErr = err
		if attempt >= f.cfg.MaxRetries {
			return nil, &MaxRetriesExceededError{URL: url, Attempts: attempt + 1, Last: lastErr}
		}
		backoff := time.Duration(float64(f.cfg.Delay) * math.Pow(2, float64(attempt)))
		f.logger.Warn("fetch failed; backing off",
			zap.String("url", url),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err))
		metrics.ObserveRetry()
		pause(ctx, backoff)
	}
}

func (f *Fetcher) doFetch(ctx context.Context, url string) (*Response, error) {
	collector := f.base.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.SetRequestTimeout(f.cfg.Timeout)

	var (
		result     *Response
		errStatus  int
		errHeaders http.Header
		fetchErr   error
	)
	start := time.Now()

	collector.OnResponse(func(r *colly.Response) {
		headers := http.Header{}
		if r.Headers != nil {
			headers = r.Headers.Clone()
		}
		result = &Response{
			URL:         r.Request.URL.String(),
			StatusCode:  r.StatusCode,
			Headers:     headers,
			Body:        string(r.Body),
			ContentType: headers.Get("Content-Type"),
			Duration:    time.Since(start),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		fetchErr = err
		if r != nil {
			errStatus = r.StatusCode
			if r.Headers != nil {
				errHeaders = r.Headers.Clone()
			}
		}
	})

	visitErr, err := f.runCollector(ctx, collector, url)
	if err != nil {
		return nil, err
	}
	if fetchErr == nil && visitErr != nil {
		return nil, fmt.Errorf("visit %s: %w", url, visitErr)
	}
	if fetchErr != nil {
		switch {
		case errStatus == http.StatusTooManyRequests:
			return nil, &RateLimitedError{
				URL:        url,
				RetryAfter: parseRetryAfter(valueOrEmptyHeader(errHeaders), time.Now()),
			}
		case errStatus > 0:
			return nil, &HTTPError{URL: url, StatusCode: errStatus}
		default:
			return nil, fmt.Errorf("fetch %s: %w", url, fetchErr)
		}
	}
	if result == nil {
		return nil, fmt.Errorf("fetch %s: empty response", url)
	}
	return result, nil
}

// runCollector drives one Visit, separating context cancellation (err) from
// the visit's own error (visitErr), which the OnError callback usually
// already classified.
func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string) (visitErr, err error) {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case verr := <-done:
		return verr, nil
	}
}

func valueOrEmptyHeader(h http.Header) http.Header {
	if h == nil {
		return http.Header{}
	}
	return h
}

// pause sleeps for delay unless the context finishes first.
func pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
