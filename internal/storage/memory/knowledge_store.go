// Package memory provides in-memory storage implementations for tests and
// local development.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/leggilab/normascout/internal/ingest"
)

// KnowledgeStore is a mutex-guarded in-memory ingest.KnowledgeStore.
type KnowledgeStore struct {
	mu      sync.Mutex
	records map[string]ingest.Record
}

// NewKnowledgeStore creates an empty store.
func NewKnowledgeStore() *KnowledgeStore {
	return &KnowledgeStore{records: make(map[string]ingest.Record)}
}

// SaveBatch stores every record or none: records are validated before any
// write happens.
func (s *KnowledgeStore) SaveBatch(_ context.Context, records []ingest.Record) ([]ingest.SaveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		if r.ID == "" {
			return nil, fmt.Errorf("record %q has no id", r.Title)
		}
	}

	results := make([]ingest.SaveResult, 0, len(records))
	for _, r := range records {
		s.records[r.ID] = r
		results = append(results, ingest.SaveResult{ID: r.ID, Stored: true})
	}
	return results, nil
}

// IsDuplicate reports whether any stored record carries the fingerprint.
func (s *KnowledgeStore) IsDuplicate(_ context.Context, fingerprint string) (bool, error) {
	if fingerprint == "" {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.Fingerprint == fingerprint {
			return true, nil
		}
	}
	return false, nil
}

// DeleteByTitlePattern removes records whose title contains pattern,
// case-insensitively, and returns how many were removed.
func (s *KnowledgeStore) DeleteByTitlePattern(_ context.Context, pattern string) (int64, error) {
	lowered := strings.ToLower(pattern)
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, r := range s.records {
		if strings.Contains(strings.ToLower(r.Title), lowered) {
			delete(s.records, id)
			deleted++
		}
	}
	return deleted, nil
}

// Records returns a copy of all stored records, in no particular order.
func (s *KnowledgeStore) Records() []ingest.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ingest.Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	return out
}

// Len reports the number of stored records.
func (s *KnowledgeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
