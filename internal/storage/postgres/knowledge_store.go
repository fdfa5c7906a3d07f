// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/leggilab/normascout/internal/ingest"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// KnowledgeStoreConfig controls the Postgres connection pool used for
// knowledge records.
type KnowledgeStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type dbConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// KnowledgeStore writes knowledge records into Postgres.
type KnowledgeStore struct {
	pool  dbConn
	table string
}

// NewKnowledgeStore creates a Postgres-backed KnowledgeStore using the
// provided config.
func NewKnowledgeStore(ctx context.Context, cfg KnowledgeStoreConfig) (*KnowledgeStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "knowledge_records"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &KnowledgeStore{pool: pool, table: table}, nil
}

// NewKnowledgeStoreWithPool constructs a store from an existing pool
// (primarily for testing).
func NewKnowledgeStoreWithPool(pool dbConn, table string) (*KnowledgeStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "knowledge_records"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &KnowledgeStore{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *KnowledgeStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// SaveBatch inserts all records inside one transaction: a failed insert
// rolls back every record in the batch.
func (s *KnowledgeStore) SaveBatch(ctx context.Context, records []ingest.Record) ([]ingest.SaveResult, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("knowledge store is not configured")
	}
	if len(records) == 0 {
		return nil, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	parent_id,
	source,
	external_id,
	title,
	content,
	document_type,
	tier,
	topics,
	section,
	article_number,
	chunk_index,
	chunk_total,
	published,
	fingerprint,
	metadata
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16
)`, s.table)

	results := make([]ingest.SaveResult, 0, len(records))
	for _, r := range records {
		if r.ID == "" {
			return nil, fmt.Errorf("record %q has no id", r.Title)
		}
		topicsJSON, err := json.Marshal(normalizeStrings(r.Topics))
		if err != nil {
			return nil, fmt.Errorf("marshal topics: %w", err)
		}
		metadataJSON, err := json.Marshal(normalizeMap(r.Metadata))
		if err != nil {
			return nil, fmt.Errorf("marshal metadata: %w", err)
		}
		args := []any{
			r.ID,
			r.ParentID,
			r.Source,
			r.ExternalID,
			r.Title,
			r.Content,
			string(r.DocumentType),
			int(r.Tier),
			topicsJSON,
			r.Section,
			r.ArticleNumber,
			r.ChunkIndex,
			r.ChunkTotal,
			r.Published,
			r.Fingerprint,
			metadataJSON,
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return nil, fmt.Errorf("insert record %s: %w", r.ID, err)
		}
		results = append(results, ingest.SaveResult{ID: r.ID, Stored: true})
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return results, nil
}

// IsDuplicate reports whether a record with the fingerprint already exists.
func (s *KnowledgeStore) IsDuplicate(ctx context.Context, fingerprint string) (bool, error) {
	if s == nil || s.pool == nil {
		return false, fmt.Errorf("knowledge store is not configured")
	}
	if fingerprint == "" {
		return false, nil
	}
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE fingerprint = $1)`, s.table)
	var exists bool
	if err := s.pool.QueryRow(ctx, query, fingerprint).Scan(&exists); err != nil {
		return false, fmt.Errorf("query fingerprint: %w", err)
	}
	return exists, nil
}

// DeleteByTitlePattern removes records whose title matches the pattern,
// case-insensitively, and returns how many rows were removed.
func (s *KnowledgeStore) DeleteByTitlePattern(ctx context.Context, pattern string) (int64, error) {
	if s == nil || s.pool == nil {
		return 0, fmt.Errorf("knowledge store is not configured")
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE title ILIKE $1`, s.table)
	tag, err := s.pool.Exec(ctx, query, "%"+pattern+"%")
	if err != nil {
		return 0, fmt.Errorf("delete records: %w", err)
	}
	return tag.RowsAffected(), nil
}

func normalizeStrings(in []string) []string {
	if len(in) == 0 {
		return []string{}
	}
	return in
}

func normalizeMap(in map[string]string) map[string]string {
	if len(in) == 0 {
		return map[string]string{}
	}
	return in
}
