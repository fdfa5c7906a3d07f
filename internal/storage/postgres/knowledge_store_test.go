package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leggilab/normascout/internal/classify"
	"github.com/leggilab/normascout/internal/ingest"
)

func newMockStore(t *testing.T) (*KnowledgeStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewKnowledgeStoreWithPool(mock, "knowledge_records")
	require.NoError(t, err)
	return store, mock
}

func sampleRecord(id string) ingest.Record {
	return ingest.Record{
		ID:           id,
		Source:       "gazzetta_ufficiale",
		ExternalID:   "199",
		Title:        "LEGGE 30 dicembre 2025, n. 199",
		Content:      "testo",
		DocumentType: ingest.TypeFullDocument,
		Tier:         classify.TierCritical,
		Published:    time.Date(2025, time.December, 30, 0, 0, 0, 0, time.UTC),
		Fingerprint:  "abc123",
	}
}

func TestSaveBatchCommitsAllRecords(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO knowledge_records").
		WithArgs(
			"id-1", "", "gazzetta_ufficiale", "199",
			"LEGGE 30 dicembre 2025, n. 199", "testo",
			"full_document", 1,
			[]byte(`[]`), "", "", 0, 0,
			time.Date(2025, time.December, 30, 0, 0, 0, 0, time.UTC),
			"abc123", []byte(`{}`),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO knowledge_records").
		WithArgs(
			"id-2", "", "gazzetta_ufficiale", "199",
			"LEGGE 30 dicembre 2025, n. 199", "testo",
			"full_document", 1,
			[]byte(`[]`), "", "", 0, 0,
			time.Date(2025, time.December, 30, 0, 0, 0, 0, time.UTC),
			"abc123", []byte(`{}`),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	results, err := store.SaveBatch(context.Background(),
		[]ingest.Record{sampleRecord("id-1"), sampleRecord("id-2")})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Stored)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveBatchRollsBackOnInsertFailure(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO knowledge_records").
		WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	_, err := store.SaveBatch(context.Background(), []ingest.Record{sampleRecord("id-1")})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveBatchRejectsMissingID(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	rec := sampleRecord("")
	_, err := store.SaveBatch(context.Background(), []ingest.Record{rec})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no id")
}

func TestSaveBatchEmptyIsNoop(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	results, err := store.SaveBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, results)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIsDuplicateQueriesFingerprint(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("abc123").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	dup, err := store.IsDuplicate(context.Background(), "abc123")
	require.NoError(t, err)
	assert.True(t, dup)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIsDuplicateEmptyFingerprintSkipsQuery(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	dup, err := store.IsDuplicate(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, dup)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteByTitlePattern(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM knowledge_records").
		WithArgs("%LEGGE 30 dicembre 2025%").
		WillReturnResult(pgxmock.NewResult("DELETE", 7))

	deleted, err := store.DeleteByTitlePattern(context.Background(), "LEGGE 30 dicembre 2025")
	require.NoError(t, err)
	assert.Equal(t, int64(7), deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewKnowledgeStoreWithPoolRejectsBadTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewKnowledgeStoreWithPool(mock, "records; DROP TABLE x")
	require.Error(t, err)
}
