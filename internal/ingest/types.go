// Package ingest turns classified documents into knowledge records and
// persists them atomically, applying the parsing strategy fixed by the tier.
package ingest

import (
	"context"
	"time"

	"github.com/leggilab/normascout/internal/classify"
)

// DocumentType distinguishes the kinds of knowledge records.
type DocumentType string

// Record kinds produced by the tier strategies.
const (
	TypeFullDocument DocumentType = "full_document"
	TypeArticle      DocumentType = "article"
	TypeChunk        DocumentType = "chunk"
	TypeAttachment   DocumentType = "allegato"
)

// Record is one persisted knowledge unit. ParentID links article, segment,
// and attachment records to their document record; the forest is at most two
// levels deep.
type Record struct {
	ID            string
	ParentID      string
	Source        string
	ExternalID    string
	Title         string
	Content       string
	DocumentType  DocumentType
	Tier          classify.Tier
	Topics        []string
	Section       string
	ArticleNumber string
	ChunkIndex    int
	ChunkTotal    int
	Published     time.Time
	Fingerprint   string
	Metadata      map[string]string
}

// SaveResult reports the outcome for one record in a batch.
type SaveResult struct {
	ID     string
	Stored bool
}

// KnowledgeStore persists knowledge records. SaveBatch is atomic: either
// every record in the slice is stored or none are.
type KnowledgeStore interface {
	SaveBatch(ctx context.Context, records []Record) ([]SaveResult, error)
	IsDuplicate(ctx context.Context, fingerprint string) (bool, error)
	DeleteByTitlePattern(ctx context.Context, pattern string) (int64, error)
}

// IDGenerator supplies record identifiers.
type IDGenerator interface {
	NewID() string
}

// Input is one document handed to the orchestrator.
type Input struct {
	Source      string
	ExternalID  string
	Title       string
	Content     string
	Section     string
	Published   time.Time
	Fingerprint string
}

// Result summarizes one ingestion call.
type Result struct {
	DocumentID  string
	Tier        classify.Tier
	Strategy    classify.Strategy
	Topics      []string
	Records     int
	Articles    int
	Chunks      int
	Attachments int
	SaveResults []SaveResult
}
