package scrape

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatisticsCounts(t *testing.T) {
	t.Parallel()

	stats := NewStatistics()
	stats.RecordPage(true, 100*time.Millisecond)
	stats.RecordPage(false, 2*time.Second)
	stats.AddDocumentsFound(10)
	stats.AddDocumentsSaved(7)

	snap := stats.Snapshot()
	assert.Equal(t, 2, snap.PagesAttempted)
	assert.Equal(t, 1, snap.PagesSuccessful)
	assert.Equal(t, 10, snap.DocumentsFound)
	assert.Equal(t, 7, snap.DocumentsSaved)
	assert.Len(t, snap.PageDurations, 2)
}

func TestSnapshotIsACopy(t *testing.T) {
	t.Parallel()

	stats := NewStatistics()
	stats.RecordPage(true, time.Second)

	snap := stats.Snapshot()
	snap.PageDurations[0] = 0
	assert.Equal(t, time.Second, stats.Snapshot().PageDurations[0])
}

func TestResetClearsEverything(t *testing.T) {
	t.Parallel()

	stats := NewStatistics()
	stats.RecordPage(true, time.Second)
	stats.AddDocumentsFound(3)
	stats.Reset()

	snap := stats.Snapshot()
	assert.Zero(t, snap.PagesAttempted)
	assert.Zero(t, snap.DocumentsFound)
	assert.Empty(t, snap.PageDurations)
}

func TestStatisticsConcurrentWrites(t *testing.T) {
	t.Parallel()

	stats := NewStatistics()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stats.RecordPage(true, time.Millisecond)
			stats.AddDocumentsFound(1)
		}()
	}
	wg.Wait()

	snap := stats.Snapshot()
	assert.Equal(t, 20, snap.PagesAttempted)
	assert.Equal(t, 20, snap.DocumentsFound)
}
