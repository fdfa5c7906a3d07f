// Package extract turns fetched pages into plain text. The interface is the
// boundary consumed by the scraping pipeline; PDF and XML handling live
// behind it.
package extract

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// ErrUnsupportedContent marks a content type the extractor cannot handle.
// Callers treat it as a per-document failure: the document is skipped and the
// batch continues.
var ErrUnsupportedContent = errors.New("unsupported content type")

// Result is the extraction output.
type Result struct {
	Text        string
	ContentType string
}

// Extractor converts a URL into plain text plus the resolved content type.
type Extractor interface {
	Extract(ctx context.Context, rawURL string) (Result, error)
}

// FetchFunc supplies the page body and the Content-Type header value.
type FetchFunc func(ctx context.Context, rawURL string) (body string, contentType string, err error)

// Readability extracts the main text of HTML pages via go-readability.
type Readability struct {
	fetch FetchFunc
}

// NewReadability builds a Readability extractor over the given fetch func.
func NewReadability(fetch FetchFunc) *Readability {
	return &Readability{fetch: fetch}
}

// Extract implements Extractor. The content type comes from the HTTP header
// first, the URL suffix second.
func (r *Readability) Extract(ctx context.Context, rawURL string) (Result, error) {
	body, headerType, err := r.fetch(ctx, rawURL)
	if err != nil {
		return Result{}, fmt.Errorf("fetch for extraction: %w", err)
	}
	contentType := ResolveContentType(headerType, rawURL)
	if !strings.Contains(contentType, "html") {
		return Result{ContentType: contentType}, fmt.Errorf("%w: %s", ErrUnsupportedContent, contentType)
	}
	text, err := FromHTML(body, rawURL)
	if err != nil {
		return Result{ContentType: contentType}, err
	}
	return Result{Text: text, ContentType: contentType}, nil
}

// FromHTML runs readability over an HTML document and returns its main text.
func FromHTML(html, rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		parsed = &url.URL{}
	}
	article, err := readability.FromReader(strings.NewReader(html), parsed)
	if err != nil {
		return "", fmt.Errorf("readability: %w", err)
	}
	return article.TextContent, nil
}

// ResolveContentType prefers the HTTP header value; when absent it falls back
// to the URL suffix.
func ResolveContentType(headerType, rawURL string) string {
	if headerType != "" {
		if idx := strings.Index(headerType, ";"); idx >= 0 {
			headerType = headerType[:idx]
		}
		return strings.TrimSpace(strings.ToLower(headerType))
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "application/octet-stream"
	}
	switch strings.ToLower(path.Ext(parsed.Path)) {
	case ".html", ".htm":
		return "text/html"
	case ".pdf":
		return "application/pdf"
	case ".xml":
		return "application/xml"
	case ".txt":
		return "text/plain"
	default:
		return "text/html"
	}
}
