// Package scrape implements the polite acquisition layer: robots policy,
// rate-limited fetching, listing walks, detail extraction, and deduplication.
package scrape

import (
	"context"
	"net/http"
	"time"
)

// Target describes one scrape source. It is immutable configuration.
type Target struct {
	SourceID          string
	ListURL           string // contains a {page} placeholder
	DetailURLTemplate string // contains an {id} placeholder
	SectionFilter     string
}

// ListingItem is the lightweight metadata yielded by one index page entry.
type ListingItem struct {
	ExternalID   string
	DocumentType string
	Published    time.Time
	Title        string
	DetailURL    string
}

// RawDocument is the product of detail extraction. Identity is the content
// fingerprint, which is URL-independent so mirrored copies collapse.
type RawDocument struct {
	Source       string
	ExternalID   string
	Title        string
	Published    time.Time
	DocumentType string
	Content      string
	Fingerprint  string
	Section      string
}

// Response carries the body plus metadata for one successful fetch.
type Response struct {
	URL         string
	StatusCode  int
	Headers     http.Header
	Body        string
	ContentType string
	Duration    time.Duration
}

// Summary aggregates the outcome of one scrape run.
type Summary struct {
	DocumentsFound     int           `json:"documents_found"`
	DocumentsProcessed int           `json:"documents_processed"`
	DocumentsSaved     int           `json:"documents_saved"`
	Errors             int           `json:"errors"`
	Duration           time.Duration `json:"duration"`
}

// Options narrows one scrape run.
type Options struct {
	DaysBack int
	Section  string
	Limit    int
}

// Policy decides whether a URL may be fetched.
type Policy interface {
	Allowed(ctx context.Context, rawURL string) bool
}

// Archive persists raw fetched content and returns a URI. Optional.
type Archive interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
