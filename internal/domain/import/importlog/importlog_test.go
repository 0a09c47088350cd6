package importlog

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/bajio-reconciler/pkg/sheets"
)

func sampleEntry(name, hash string, at time.Time) Entry {
	return Entry{
		RunID:      uuid.MustParse("8a4b9b5e-2f7c-4c1e-9a55-0c8f3e2d1b7a"),
		FileName:   name,
		FileHash:   hash,
		RowsRead:   10,
		Inserted:   7,
		Duplicates: 2,
		Conflicts:  1,
		ImportedAt: at,
	}
}

func TestHash(t *testing.T) {
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", Hash(nil))
	assert.Equal(t, Hash([]byte("abc")), Hash([]byte("abc")))
	assert.NotEqual(t, Hash([]byte("abc")), Hash([]byte("abd")))
}

func TestWriteCSV(t *testing.T) {
	at := time.Date(2025, time.June, 12, 10, 15, 0, 0, time.UTC)
	var buf bytes.Buffer

	require.NoError(t, WriteCSV(&buf, []Entry{sampleEntry("junio.csv", "abc", at)}))
	assert.Equal(t,
		"Archivo,HashArchivo,FilasLeídas,NuevosInsertados,DuplicadosSaltados,Conflictivos,FechaHora\n"+
			"junio.csv,abc,10,7,2,1,2025-06-12 10:15:00\n",
		buf.String())
}

func TestNop(t *testing.T) {
	var s Store = Nop{}
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, Entry{}))
	ok, err := s.HasHash(ctx, "x")
	require.NoError(t, err)
	assert.False(t, ok)
}

// ============================================================================
// Sheets backend
// ============================================================================

func newSheetsLog() (*SheetsLog, *sheets.MemoryStore) {
	mem := sheets.NewMemoryStore(true)
	return NewSheetsLog(mem, "", slog.New(slog.NewTextHandler(io.Discard, nil))), mem
}

func TestSheetsLog_AppendAndList(t *testing.T) {
	log, mem := newSheetsLog()
	ctx := context.Background()
	base := time.Date(2025, time.June, 12, 10, 15, 0, 0, time.Local)

	for i, name := range []string{"a.csv", "b.csv", "c.csv"} {
		require.NoError(t, log.Append(ctx, sampleEntry(name, "hash-"+name, base.Add(time.Duration(i)*time.Hour))))
	}

	rows := mem.Rows(DefaultTab)
	require.Len(t, rows, 4)
	assert.Equal(t, Headers, rows[0])
	assert.Equal(t, []string{"a.csv", "hash-a.csv", "10", "7", "2", "1", "2025-06-12 10:15:00"}, rows[1])

	entries, err := log.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "b.csv", entries[0].FileName)
	assert.Equal(t, "c.csv", entries[1].FileName)
	assert.Equal(t, 7, entries[1].Inserted)
	assert.True(t, entries[1].ImportedAt.Equal(base.Add(2*time.Hour)))

	all, err := log.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSheetsLog_HasHash(t *testing.T) {
	log, _ := newSheetsLog()
	ctx := context.Background()

	ok, err := log.HasHash(ctx, "abc")
	require.NoError(t, err, "missing tab is not an error")
	assert.False(t, ok)

	require.NoError(t, log.Append(ctx, sampleEntry("a.csv", "abc", time.Now())))

	ok, err = log.HasHash(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = log.HasHash(ctx, "def")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSheetsLog_ListMissingTab(t *testing.T) {
	log, _ := newSheetsLog()
	entries, err := log.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// ============================================================================
// Postgres backend
// ============================================================================

func TestPostgresLog_Append(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	e := sampleEntry("junio.csv", "abc", time.Now())
	mock.ExpectExec(`INSERT INTO import_log`).
		WithArgs(e.RunID, "junio.csv", "abc", 10, 7, 2, 1, e.ImportedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, NewPostgresLog(mock).Append(context.Background(), e))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLog_AppendError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	e := sampleEntry("junio.csv", "abc", time.Now())
	mock.ExpectExec(`INSERT INTO import_log`).
		WithArgs(e.RunID, "junio.csv", "abc", 10, 7, 2, 1, e.ImportedAt).
		WillReturnError(errors.New("connection refused"))

	err = NewPostgresLog(mock).Append(context.Background(), e)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert import log entry")
}

func TestPostgresLog_HasHash(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("abc").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := NewPostgresLog(mock).HasHash(context.Background(), "abc")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLog_List(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	e := sampleEntry("junio.csv", "abc", time.Date(2025, time.June, 12, 10, 15, 0, 0, time.UTC))
	mock.ExpectQuery(`SELECT run_id, file_name`).
		WithArgs(10).
		WillReturnRows(pgxmock.NewRows([]string{
			"run_id", "file_name", "file_hash", "rows_read",
			"inserted", "duplicates", "conflicts", "imported_at",
		}).AddRow(e.RunID, e.FileName, e.FileHash, e.RowsRead, e.Inserted, e.Duplicates, e.Conflicts, e.ImportedAt))

	entries, err := NewPostgresLog(mock).List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, e, entries[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}
