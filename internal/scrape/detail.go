package scrape

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/leggilab/normascout/internal/extract"
)

// bodySelectors is the ranked list of structural selectors for the document
// text. The readability pass and finally the whole body text act as
// fallbacks.
var bodySelectors = []string{
	"div.testo_atto",
	"div#testo",
	"div.articolato",
	"article",
	"main",
}

var titleSelectors = []string{
	"h1.titolo_atto",
	"h1",
	"title",
}

// DetailFetcherConfig bounds detail extraction.
type DetailFetcherConfig struct {
	MinBodyLength int
	MaxConcurrent int
}

// DetailFetcher fetches a detail page and extracts a RawDocument from it.
// Field extractors are independent and order-tolerant; a document missing any
// of id, date, or title is discarded rather than partially stored.
type DetailFetcher struct {
	fetcher *Fetcher
	cfg     DetailFetcherConfig
	logger  *zap.Logger
}

// NewDetailFetcher builds a DetailFetcher.
func NewDetailFetcher(fetcher *Fetcher, cfg DetailFetcherConfig, logger *zap.Logger) *DetailFetcher {
	if cfg.MinBodyLength <= 0 {
		cfg.MinBodyLength = 200
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 3
	}
	return &DetailFetcher{fetcher: fetcher, cfg: cfg, logger: logger}
}

// FetchDetail fetches the item's detail page and extracts a document.
// A nil document with nil error means the item was discarded (acceptance
// gate failure or unsupported content); fetch failures return an error.
func (d *DetailFetcher) FetchDetail(ctx context.Context, target Target, item ListingItem) (*RawDocument, error) {
	detailURL := item.DetailURL
	if detailURL == "" && target.DetailURLTemplate != "" && item.ExternalID != "" {
		detailURL = strings.ReplaceAll(target.DetailURLTemplate, "{id}", item.ExternalID)
	}
	if detailURL == "" {
		return nil, nil
	}

	resp, err := d.fetcher.Fetch(ctx, detailURL)
	if err != nil {
		return nil, fmt.Errorf("fetch detail: %w", err)
	}
	if ct := extract.ResolveContentType(resp.ContentType, detailURL); !strings.Contains(ct, "html") {
		d.logger.Debug("skipping non-HTML detail page",
			zap.String("url", detailURL), zap.String("content_type", ct))
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("parse detail page: %w", err)
	}

	raw := d.extractDocument(doc, resp.Body, detailURL, target, item)
	if raw == nil {
		d.logger.Debug("detail page failed acceptance gate", zap.String("url", detailURL))
	}
	return raw, nil
}

func (d *DetailFetcher) extractDocument(
	doc *goquery.Document,
	rawHTML string,
	detailURL string,
	target Target,
	item ListingItem,
) *RawDocument {
	title := firstText(doc, titleSelectors)
	if title == "" {
		title = item.Title
	}

	headings := collectText(doc, "h1, h2, h3")
	body := d.extractBody(doc, rawHTML, detailURL)

	externalID := ExtractDocumentNumber(title, headings, body)
	if externalID == "" {
		externalID = item.ExternalID
	}

	published, ok := ParseItalianDate(title)
	if !ok {
		published, ok = ParseItalianDate(headings)
	}
	if !ok {
		published, ok = ParseItalianDate(body)
	}
	if !ok {
		published = item.Published
	}

	// Acceptance gate: id, date, and subject must all be present.
	if externalID == "" || published.IsZero() || title == "" {
		return nil
	}

	section := DetectSection(title+" "+body, target.SectionFilter)
	return &RawDocument{
		Source:       target.SourceID,
		ExternalID:   externalID,
		Title:        title,
		Published:    published,
		DocumentType: DetectDocumentType(title),
		Content:      body,
		Fingerprint:  Fingerprint(title, body, published),
		Section:      section,
	}
}

func (d *DetailFetcher) extractBody(doc *goquery.Document, rawHTML, detailURL string) string {
	for _, selector := range bodySelectors {
		candidate := strings.TrimSpace(doc.Find(selector).First().Text())
		if len(candidate) >= d.cfg.MinBodyLength {
			return candidate
		}
	}
	if text, err := extract.FromHTML(rawHTML, detailURL); err == nil {
		trimmed := strings.TrimSpace(text)
		if len(trimmed) >= d.cfg.MinBodyLength {
			return trimmed
		}
	}
	return strings.TrimSpace(doc.Find("body").Text())
}

// FetchBatch fetches details for items under a fixed-size concurrency
// limiter, independent of the sequential listing walk. Results keep no
// particular order; callers must rely on the stored publication date.
func (d *DetailFetcher) FetchBatch(ctx context.Context, target Target, items []ListingItem) []*RawDocument {
	sem := make(chan struct{}, d.cfg.MaxConcurrent)
	results := make([]*RawDocument, len(items))
	var wg sync.WaitGroup

	for i, item := range items {
		wg.Add(1)
		go func(idx int, it ListingItem) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}
			doc, err := d.FetchDetail(ctx, target, it)
			if err != nil {
				d.logger.Warn("detail fetch failed",
					zap.String("title", it.Title), zap.Error(err))
				return
			}
			results[idx] = doc
		}(i, item)
	}
	wg.Wait()

	out := make([]*RawDocument, 0, len(items))
	for _, doc := range results {
		if doc != nil {
			out = append(out, doc)
		}
	}
	return out
}

func firstText(doc *goquery.Document, selectors []string) string {
	for _, selector := range selectors {
		if text := strings.TrimSpace(doc.Find(selector).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

func collectText(doc *goquery.Document, selector string) string {
	var parts []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, "\n")
}
