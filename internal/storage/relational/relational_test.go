package relational

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doj-records/records/internal/storage/record"
)

func newMockAdapter(t *testing.T, monitorPings ...bool) (*Adapter, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New(
		sqlmock.MonitorPingsOption(len(monitorPings) > 0 && monitorPings[0]),
		sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return New(conn, nil), mock
}

func TestTableExists(t *testing.T) {
	adapter, mock := newMockAdapter(t)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT to_regclass($1)::text`).
		WithArgs("public.cases").
		WillReturnRows(sqlmock.NewRows([]string{"to_regclass"}).AddRow("cases"))
	mock.ExpectQuery(`SELECT to_regclass($1)::text`).
		WithArgs("public.fines").
		WillReturnRows(sqlmock.NewRows([]string{"to_regclass"}).AddRow(nil))

	ok, err := adapter.TableExists(ctx, "cases")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = adapter.TableExists(ctx, "fines")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByID(t *testing.T) {
	adapter, mock := newMockAdapter(t)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT * FROM "cases" WHERE "id" = $1`).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "tags"}).AddRow("c1", "State v. Doe", []byte(`["fraud"]`)))
	mock.ExpectQuery(`SELECT * FROM "cases" WHERE "id" = $1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "tags"}))

	rec, found, err := adapter.FindByID(ctx, "cases", "c1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "c1", rec.ID())
	assert.Equal(t, "State v. Doe", rec["title"])
	assert.Equal(t, []any{"fraud"}, rec["tags"])

	rec, found, err = adapter.FindByID(ctx, "cases", "missing")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, rec)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBindsSortedColumns(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectExec(`INSERT INTO "cases" ("date_created", "id", "meta", "title") VALUES ($1, $2, $3, $4)`).
		WithArgs("2024-01-02 03:04:05", "c1", `{"court":"district"}`, "State v. Doe").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := adapter.Insert(context.Background(), "cases", record.Record{
		"id":           "c1",
		"title":        "State v. Doe",
		"date_created": "2024-01-02 03:04:05",
		"meta":         map[string]any{"court": "district"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdatePreservesCreationTimeInTransaction(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT "date_created"::text FROM "cases" WHERE "id" = $1`).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"date_created"}).AddRow("2024-01-01 09:00:00"))
	mock.ExpectExec(`UPDATE "cases" SET "date_created" = $1, "date_updated" = $2, "id" = $3, "title" = $4 WHERE "id" = $5`).
		WithArgs("2024-01-01 09:00:00", "2024-02-01 09:00:00", "c1", "Renamed", "c1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := adapter.Update(context.Background(), "cases", "c1", record.Record{
		"title":        "Renamed",
		"date_created": "1999-12-31 00:00:00",
		"date_updated": "2024-02-01 09:00:00",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMissingRowRollsBack(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT "date_created"::text FROM "cases" WHERE "id" = $1`).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"date_created"}))
	mock.ExpectRollback()

	err := adapter.Update(context.Background(), "cases", "nope", record.Record{"title": "x"})
	require.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete(t *testing.T) {
	adapter, mock := newMockAdapter(t)
	ctx := context.Background()

	mock.ExpectExec(`DELETE FROM "cases" WHERE "id" = $1`).WithArgs("c1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM "cases" WHERE "id" = $1`).WithArgs("c1").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, adapter.Delete(ctx, "cases", "c1"))
	require.ErrorIs(t, adapter.Delete(ctx, "cases", "c1"), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryBuildsConjunctiveEquality(t *testing.T) {
	adapter, mock := newMockAdapter(t)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT * FROM "cases" WHERE "priority" = $1 AND "status" = $2`).
		WithArgs(2, "open").
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow("c1", "open").AddRow("c2", "open"))
	mock.ExpectQuery(`SELECT * FROM "cases"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	recs, err := adapter.Query(ctx, "cases", map[string]any{"status": "open", "priority": 2})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "c2", recs[1].ID())

	recs, err = adapter.Query(ctx, "cases", nil)
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailable(t *testing.T) {
	adapter, mock := newMockAdapter(t, true)
	ctx := context.Background()

	mock.ExpectPing()
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	assert.True(t, adapter.Available(ctx))
	assert.False(t, adapter.Available(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNilConnIsUnavailable(t *testing.T) {
	adapter := New(nil, nil)
	ctx := context.Background()

	assert.False(t, adapter.Available(ctx))
	_, err := adapter.TableExists(ctx, "cases")
	assert.ErrorIs(t, err, ErrUnavailable)
	_, _, err = adapter.FindByID(ctx, "cases", "c1")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, adapter.Insert(ctx, "cases", record.Record{"id": "c1"}), ErrUnavailable)
	assert.ErrorIs(t, adapter.Update(ctx, "cases", "c1", record.Record{}), ErrUnavailable)
	assert.ErrorIs(t, adapter.Delete(ctx, "cases", "c1"), ErrUnavailable)
	_, err = adapter.Query(ctx, "cases", nil)
	assert.ErrorIs(t, err, ErrUnavailable)

	var nilAdapter *Adapter
	assert.False(t, nilAdapter.Available(ctx))
}

func TestIdentifiersAreQuoted(t *testing.T) {
	assert.Equal(t, `"cases"`, ident("cases"))
	assert.Equal(t, `"we""ird"`, ident(`we"ird`))
}

func TestDecodeText(t *testing.T) {
	assert.Equal(t, map[string]any{"a": float64(1)}, decodeText(`{"a":1}`))
	assert.Equal(t, "[not json", decodeText("[not json"))
	assert.Equal(t, "plain", decodeText("plain"))
}
