package scrape

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// listingSelectors is the ranked list of markup selectors for index page
// items. The first selector yielding a non-empty set wins; rank order follows
// the layouts observed across source mirrors.
var listingSelectors = []string{
	"div.risultato",
	"li.elenco_risultati",
	"article.atto",
	"div.result-item",
	"table.risultati tr",
}

// WalkerConfig bounds a listing walk.
type WalkerConfig struct {
	MaxPages int
}

// Walker paginates a source's index pages, yielding lightweight item
// metadata.
type Walker struct {
	fetcher *Fetcher
	cfg     WalkerConfig
	logger  *zap.Logger
}

// NewWalker builds a Walker.
func NewWalker(fetcher *Fetcher, cfg WalkerConfig, logger *zap.Logger) *Walker {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 20
	}
	return &Walker{fetcher: fetcher, cfg: cfg, logger: logger}
}

// ListPage fetches one index page and returns its items. A page with no
// recognizable items returns an empty slice, not an error.
func (w *Walker) ListPage(ctx context.Context, target Target, page int) ([]ListingItem, error) {
	pageURL := buildPageURL(target.ListURL, page)
	resp, err := w.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("fetch listing page %d: %w", page, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("parse listing page %d: %w", page, err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse listing url: %w", err)
	}

	for _, selector := range listingSelectors {
		selection := doc.Find(selector)
		if selection.Length() == 0 {
			continue
		}
		items := w.parseItems(selection, base)
		if len(items) > 0 {
			return items, nil
		}
	}
	return nil, nil
}

// WalkSince paginates until a page yields zero items, the page ceiling is
// hit, or every item on the page predates since. The last condition assumes
// newest-first ordering on the source index.
func (w *Walker) WalkSince(ctx context.Context, target Target, since time.Time) ([]ListingItem, error) {
	var collected []ListingItem
	for page := 1; page <= w.cfg.MaxPages; page++ {
		items, err := w.ListPage(ctx, target, page)
		if err != nil {
			return collected, err
		}
		if len(items) == 0 {
			break
		}

		allOlder := true
		for _, item := range items {
			// Items without a parsable date are kept; the detail pass decides.
			if item.Published.IsZero() || !item.Published.Before(since) {
				allOlder = false
				collected = append(collected, item)
			}
		}
		if allOlder {
			w.logger.Debug("stopping walk: page entirely predates window",
				zap.Int("page", page), zap.Time("since", since))
			break
		}
	}
	return collected, nil
}

func (w *Walker) parseItems(selection *goquery.Selection, base *url.URL) []ListingItem {
	var items []ListingItem
	selection.Each(func(_ int, s *goquery.Selection) {
		link := s.Find("a[href]").First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		title := strings.TrimSpace(link.Text())
		if title == "" {
			title = strings.TrimSpace(s.Find("h3, h2").First().Text())
		}
		if title == "" {
			return
		}

		detailURL := href
		if resolved, err := base.Parse(href); err == nil {
			detailURL = resolved.String()
		}

		published, _ := ParseItalianDate(s.Text())
		items = append(items, ListingItem{
			ExternalID:   ExtractDocumentNumber(title, s.Text()),
			DocumentType: DetectDocumentType(title),
			Published:    published,
			Title:        title,
			DetailURL:    detailURL,
		})
	})
	return items
}

func buildPageURL(listURL string, page int) string {
	if strings.Contains(listURL, "{page}") {
		return strings.ReplaceAll(listURL, "{page}", strconv.Itoa(page))
	}
	sep := "?"
	if strings.Contains(listURL, "?") {
		sep = "&"
	}
	return listURL + sep + "page=" + strconv.Itoa(page)
}
