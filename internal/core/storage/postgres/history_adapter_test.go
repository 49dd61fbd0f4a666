package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/swooby/alfredd/internal/core/ingest"
)

func TestHistoryAdapter_Load(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(queryLoadHistory)).
		WillReturnRows(sqlmock.NewRows([]string{"key", "fingerprint"}).
			AddRow("track:1", "fp-1").
			AddRow("notif:2", "fp-2"),
		).RowsWillBeClosed()

	entries, err := NewHistoryAdapter(db).Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, []ingest.HistoryEntry{
		{Key: "track:1", Fingerprint: "fp-1"},
		{Key: "notif:2", Fingerprint: "fp-2"},
	}, entries)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryAdapter_LoadEmpty(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(queryLoadHistory)).
		WillReturnRows(sqlmock.NewRows([]string{"key", "fingerprint"}))

	entries, err := NewHistoryAdapter(db).Load(context.Background())
	require.NoError(t, err)
	require.Empty(t, entries)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryAdapter_SaveReplacesSnapshot(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(queryClearHistory)).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta(queryInsertHistory)).
		WithArgs(0, "track:1", "fp-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(queryInsertHistory)).
		WithArgs(2, "notif:2", "fp-2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = NewHistoryAdapter(db).Save(context.Background(), []ingest.HistoryEntry{
		{Key: "track:1", Fingerprint: "fp-1"},
		{Key: "", Fingerprint: "skipped"},
		{Key: "notif:2", Fingerprint: "fp-2"},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryAdapter_SaveRollsBackOnInsertError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(queryClearHistory)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(queryInsertHistory)).
		WithArgs(0, "track:1", "fp-1").
		WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	err = NewHistoryAdapter(db).Save(context.Background(), []ingest.HistoryEntry{
		{Key: "track:1", Fingerprint: "fp-1"},
	})
	require.Error(t, err)
	require.ErrorContains(t, err, "failed to insert coalesce history row")
	require.NoError(t, mock.ExpectationsWereMet())
}
