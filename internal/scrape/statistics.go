package scrape

import (
	"sync"
	"time"
)

// Statistics tracks process-wide scraping counters. All methods are safe for
// concurrent use; fetches from multiple goroutines share one instance.
type Statistics struct {
	mu              sync.Mutex
	pagesAttempted  int
	pagesSuccessful int
	documentsFound  int
	documentsSaved  int
	pageDurations   []time.Duration
}

// StatisticsSnapshot is a point-in-time copy of the counters.
type StatisticsSnapshot struct {
	PagesAttempted  int             `json:"pages_attempted"`
	PagesSuccessful int             `json:"pages_successful"`
	DocumentsFound  int             `json:"documents_found"`
	DocumentsSaved  int             `json:"documents_saved"`
	PageDurations   []time.Duration `json:"page_durations"`
}

// NewStatistics constructs an empty Statistics.
func NewStatistics() *Statistics {
	return &Statistics{}
}

// RecordPage counts one fetch attempt and its duration.
func (s *Statistics) RecordPage(success bool, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pagesAttempted++
	if success {
		s.pagesSuccessful++
	}
	s.pageDurations = append(s.pageDurations, duration)
}

// AddDocumentsFound counts discovered listing items.
func (s *Statistics) AddDocumentsFound(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documentsFound += n
}

// AddDocumentsSaved counts persisted documents.
func (s *Statistics) AddDocumentsSaved(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documentsSaved += n
}

// Snapshot returns a copy of the current counters.
func (s *Statistics) Snapshot() StatisticsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	durations := make([]time.Duration, len(s.pageDurations))
	copy(durations, s.pageDurations)
	return StatisticsSnapshot{
		PagesAttempted:  s.pagesAttempted,
		PagesSuccessful: s.pagesSuccessful,
		DocumentsFound:  s.documentsFound,
		DocumentsSaved:  s.documentsSaved,
		PageDurations:   durations,
	}
}

// Reset clears all counters.
func (s *Statistics) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pagesAttempted = 0
	s.pagesSuccessful = 0
	s.documentsFound = 0
	s.documentsSaved = 0
	s.pageDurations = nil
}
