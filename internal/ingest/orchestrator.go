package ingest

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/leggilab/normascout/internal/chunk"
	"github.com/leggilab/normascout/internal/classify"
	"github.com/leggilab/normascout/internal/lawparse"
	"github.com/leggilab/normascout/internal/metrics"
)

// classifyPreviewChars bounds the content preview passed to the classifier.
const classifyPreviewChars = 500

// Config sizes the records the orchestrator produces.
type Config struct {
	ChunkSize          int
	ChunkOverlap       int
	ReferenceMaxChars  int
	ParentPreviewChars int
}

func (c *Config) applyDefaults() {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 1500
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		c.ChunkOverlap = 0
	}
	if c.ReferenceMaxChars <= 0 {
		c.ReferenceMaxChars = 4000
	}
	if c.ParentPreviewChars <= 0 {
		c.ParentPreviewChars = 1000
	}
}

// Orchestrator classifies a document and writes the records its tier
// strategy produces, in a single atomic batch.
type Orchestrator struct {
	cfg        Config
	classifier *classify.Classifier
	parser     *lawparse.Parser
	store      KnowledgeStore
	ids        IDGenerator
	logger     *zap.Logger
}

// NewOrchestrator wires the ingestion pipeline.
func NewOrchestrator(
	cfg Config,
	classifier *classify.Classifier,
	parser *lawparse.Parser,
	store KnowledgeStore,
	ids IDGenerator,
	logger *zap.Logger,
) *Orchestrator {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:        cfg,
		classifier: classifier,
		parser:     parser,
		store:      store,
		ids:        ids,
		logger:     logger,
	}
}

// Ingest classifies doc and persists the records its strategy produces. The
// whole call writes through one SaveBatch; a batch failure stores nothing.
func (o *Orchestrator) Ingest(ctx context.Context, doc Input) (Result, error) {
	preview := doc.Content
	if len(preview) > classifyPreviewChars {
		preview = preview[:classifyPreviewChars]
	}
	cls := o.classifier.Classify(doc.Title, doc.Source, preview)

	result := Result{Tier: cls.Tier, Strategy: cls.Strategy, Topics: cls.Topics}
	var records []Record
	switch cls.Strategy {
	case classify.StrategyArticleLevel:
		records = o.articleLevel(doc, cls, &result)
	case classify.StrategyStandardChunking:
		records = o.standardChunking(doc, cls, &result)
	default:
		records = o.lightIndexing(doc, cls)
	}

	saved, err := o.store.SaveBatch(ctx, records)
	if err != nil {
		return Result{}, fmt.Errorf("save batch: %w", err)
	}
	result.Records = len(records)
	result.SaveResults = saved
	if len(records) > 0 {
		result.DocumentID = records[0].ID
	}
	metrics.ObserveIngest(cls.Tier.String(), len(records))

	o.logger.Info("document ingested",
		zap.String("title", doc.Title),
		zap.String("tier", cls.Tier.String()),
		zap.String("strategy", string(cls.Strategy)),
		zap.Int("records", len(records)),
	)
	return result, nil
}

// Reingest deletes records whose title matches doc.Title, then ingests doc
// again. With replaceExisting false it behaves exactly like Ingest.
func (o *Orchestrator) Reingest(ctx context.Context, doc Input, replaceExisting bool) (Result, error) {
	if replaceExisting {
		deleted, err := o.store.DeleteByTitlePattern(ctx, doc.Title)
		if err != nil {
			return Result{}, fmt.Errorf("delete existing records: %w", err)
		}
		o.logger.Info("replaced existing records",
			zap.String("title", doc.Title), zap.Int64("deleted", deleted))
	}
	return o.Ingest(ctx, doc)
}

// articleLevel produces one parent record plus per-article children. An
// article longer than twice the chunk size is split and each segment becomes
// a sibling of the other children, keeping the record forest two levels deep.
func (o *Orchestrator) articleLevel(doc Input, cls classify.Result, result *Result) []Record {
	law := o.parser.Parse(doc.Content, doc.Title)
	published := doc.Published
	if published.IsZero() {
		published = law.Published
	}

	parent := o.newRecord(doc, cls, TypeFullDocument)
	parent.Content = truncate(doc.Content, o.cfg.ParentPreviewChars)
	parent.Published = published
	parent.Metadata = map[string]string{
		"original_length": strconv.Itoa(len(doc.Content)),
		"law_number":      law.LawNumber,
	}
	records := []Record{parent}

	for _, article := range law.Articles {
		result.Articles++
		if len(article.FullText) > 2*o.cfg.ChunkSize {
			segments := chunk.Split(article.FullText, o.cfg.ChunkSize, o.cfg.ChunkOverlap)
			for i, segment := range segments {
				rec := o.articleRecord(doc, cls, parent.ID, article, published)
				rec.Content = segment
				rec.ChunkIndex = i
				rec.ChunkTotal = len(segments)
				records = append(records, rec)
			}
			continue
		}
		rec := o.articleRecord(doc, cls, parent.ID, article, published)
		rec.Content = article.FullText
		rec.ChunkTotal = 1
		records = append(records, rec)
	}

	for _, attachment := range law.Attachments {
		result.Attachments++
		rec := o.newRecord(doc, cls, TypeAttachment)
		rec.ParentID = parent.ID
		rec.Title = doc.Title + " - " + attachment.Label
		rec.Content = attachment.Text
		rec.Published = published
		records = append(records, rec)
	}
	return records
}

func (o *Orchestrator) articleRecord(
	doc Input,
	cls classify.Result,
	parentID string,
	article lawparse.Article,
	published time.Time,
) Record {
	rec := o.newRecord(doc, cls, TypeArticle)
	rec.ParentID = parentID
	rec.Title = doc.Title + ", " + article.DisplayNumber
	rec.ArticleNumber = article.DisplayNumber
	rec.Section = article.ParentSection
	rec.Published = published
	rec.Topics = unionTopics(cls.Topics, article.Topics)
	if article.Title != "" {
		rec.Metadata = map[string]string{"rubric": article.Title}
	}
	return rec
}

// standardChunking produces sibling chunk records carrying index and total.
func (o *Orchestrator) standardChunking(doc Input, cls classify.Result, result *Result) []Record {
	chunks := chunk.Split(doc.Content, o.cfg.ChunkSize, o.cfg.ChunkOverlap)
	records := make([]Record, 0, len(chunks))
	for i, c := range chunks {
		result.Chunks++
		rec := o.newRecord(doc, cls, TypeChunk)
		rec.Content = c
		rec.ChunkIndex = i
		rec.ChunkTotal = len(chunks)
		records = append(records, rec)
	}
	return records
}

// lightIndexing produces a single truncated record with the original length
// preserved in metadata.
func (o *Orchestrator) lightIndexing(doc Input, cls classify.Result) []Record {
	rec := o.newRecord(doc, cls, TypeFullDocument)
	rec.Content = truncate(doc.Content, o.cfg.ReferenceMaxChars)
	rec.Metadata = map[string]string{
		"original_length": strconv.Itoa(len(doc.Content)),
	}
	return []Record{rec}
}

func (o *Orchestrator) newRecord(doc Input, cls classify.Result, kind DocumentType) Record {
	return Record{
		ID:           o.ids.NewID(),
		Source:       doc.Source,
		ExternalID:   doc.ExternalID,
		Title:        doc.Title,
		DocumentType: kind,
		Tier:         cls.Tier,
		Topics:       cls.Topics,
		Section:      doc.Section,
		Published:    doc.Published,
		Fingerprint:  doc.Fingerprint,
	}
}

// unionTopics merges document-level and article-level topics, document order
// first, deduplicated.
func unionTopics(docTopics, articleTopics []string) []string {
	if len(articleTopics) == 0 {
		return docTopics
	}
	out := make([]string, 0, len(docTopics)+len(articleTopics))
	seen := make(map[string]struct{}, len(docTopics)+len(articleTopics))
	for _, topics := range [][]string{docTopics, articleTopics} {
		for _, topic := range topics {
			if _, ok := seen[topic]; ok {
				continue
			}
			seen[topic] = struct{}{}
			out = append(out, topic)
		}
	}
	return out
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
