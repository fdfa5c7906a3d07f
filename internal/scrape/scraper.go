package scrape

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/leggilab/normascout/internal/ingest"
	"github.com/leggilab/normascout/internal/metrics"
)

// Ingestor hands extracted documents to the tiered ingestion pipeline.
type Ingestor interface {
	Ingest(ctx context.Context, doc ingest.Input) (ingest.Result, error)
}

// DuplicateChecker answers fingerprint novelty from the persistent store.
type DuplicateChecker interface {
	IsDuplicate(ctx context.Context, fingerprint string) (bool, error)
}

// Scraper drives one source end to end: listing walk, detail extraction,
// dedupe gate, ingestion.
type Scraper struct {
	target   Target
	walker   *Walker
	details  *DetailFetcher
	ingestor Ingestor
	dupes    DuplicateChecker
	cache    *FingerprintCache
	stats    *Statistics
	archive  Archive // optional raw snapshot archiving
	clock    Clock
	logger   *zap.Logger
}

// NewScraper wires a Scraper for one target. archive may be nil.
func NewScraper(
	target Target,
	walker *Walker,
	details *DetailFetcher,
	ingestor Ingestor,
	dupes DuplicateChecker,
	stats *Statistics,
	archive Archive,
	clock Clock,
	logger *zap.Logger,
) *Scraper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scraper{
		target:   target,
		walker:   walker,
		details:  details,
		ingestor: ingestor,
		dupes:    dupes,
		cache:    NewFingerprintCache(),
		stats:    stats,
		archive:  archive,
		clock:    clock,
		logger:   logger,
	}
}

// ScrapeRecent walks the source index back opts.DaysBack days and ingests
// every new document found. Per-document failures are counted, never fatal;
// a listing walk failure returns the summary accumulated so far along with
// the error.
func (s *Scraper) ScrapeRecent(ctx context.Context, opts Options) (Summary, error) {
	start := s.clock.Now()
	daysBack := opts.DaysBack
	if daysBack <= 0 {
		daysBack = 7
	}
	since := start.AddDate(0, 0, -daysBack)

	summary := Summary{}
	items, walkErr := s.walker.WalkSince(ctx, s.target, since)
	if opts.Limit > 0 && len(items) > opts.Limit {
		items = items[:opts.Limit]
	}
	summary.DocumentsFound = len(items)
	s.stats.AddDocumentsFound(len(items))

	if walkErr != nil && len(items) == 0 {
		summary.Duration = s.clock.Now().Sub(start)
		return summary, fmt.Errorf("walk listing: %w", walkErr)
	}

	docs := s.details.FetchBatch(ctx, s.target, items)
	for _, doc := range docs {
		summary.DocumentsProcessed++
		if opts.Section != "" && doc.Section != opts.Section {
			metrics.ObserveDocument(doc.Source, "filtered")
			continue
		}
		switch s.processDocument(ctx, doc) {
		case outcomeSaved:
			summary.DocumentsSaved++
		case outcomeFailed:
			summary.Errors++
		case outcomeSkipped:
			// Duplicates are neither saved nor errors.
		}
	}

	summary.Duration = s.clock.Now().Sub(start)
	s.logger.Info("scrape run finished",
		zap.String("source", s.target.SourceID),
		zap.Int("found", summary.DocumentsFound),
		zap.Int("processed", summary.DocumentsProcessed),
		zap.Int("saved", summary.DocumentsSaved),
		zap.Int("errors", summary.Errors),
		zap.Duration("duration", summary.Duration),
	)
	if walkErr != nil {
		return summary, fmt.Errorf("walk listing after %d documents: %w",
			summary.DocumentsProcessed, walkErr)
	}
	return summary, nil
}

type outcome int

const (
	outcomeSaved outcome = iota
	outcomeSkipped
	outcomeFailed
)

// processDocument runs the dedupe gate, optional archiving, and ingestion
// for one document.
func (s *Scraper) processDocument(ctx context.Context, doc *RawDocument) outcome {
	if !s.cache.MarkIfNew(doc.Fingerprint) {
		s.logger.Debug("duplicate within run", zap.String("title", doc.Title))
		metrics.ObserveDocument(doc.Source, "skipped")
		return outcomeSkipped
	}
	dup, err := s.dupes.IsDuplicate(ctx, doc.Fingerprint)
	if err != nil {
		s.logger.Warn("duplicate check failed", zap.String("title", doc.Title), zap.Error(err))
		metrics.ObserveDocument(doc.Source, "failed")
		return outcomeFailed
	}
	if dup {
		s.logger.Debug("already stored", zap.String("title", doc.Title))
		metrics.ObserveDocument(doc.Source, "skipped")
		return outcomeSkipped
	}

	if s.archive != nil {
		path := fmt.Sprintf("%s/%s.txt", doc.Source, doc.Fingerprint)
		if uri, err := s.archive.PutObject(ctx, path, "text/plain; charset=utf-8", []byte(doc.Content)); err != nil {
			s.logger.Warn("snapshot archive failed", zap.String("title", doc.Title), zap.Error(err))
		} else {
			s.logger.Debug("snapshot archived", zap.String("uri", uri))
		}
	}

	_, err = s.ingestor.Ingest(ctx, ingest.Input{
		Source:      doc.Source,
		ExternalID:  doc.ExternalID,
		Title:       doc.Title,
		Content:     doc.Content,
		Section:     doc.Section,
		Published:   doc.Published,
		Fingerprint: doc.Fingerprint,
	})
	if err != nil {
		s.logger.Warn("ingestion failed", zap.String("title", doc.Title), zap.Error(err))
		metrics.ObserveDocument(doc.Source, "failed")
		return outcomeFailed
	}

	s.stats.AddDocumentsSaved(1)
	metrics.ObserveDocument(doc.Source, "saved")
	return outcomeSaved
}
