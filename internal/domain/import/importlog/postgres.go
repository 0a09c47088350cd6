package importlog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of pgxpool.Pool used by PostgresLog.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresLog keeps the log in the import_log table.
type PostgresLog struct {
	db DBTX
}

// NewPostgresLog creates a log over db.
func NewPostgresLog(db DBTX) *PostgresLog {
	return &PostgresLog{db: db}
}

func (l *PostgresLog) Append(ctx context.Context, e Entry) error {
	query := `
		INSERT INTO import_log (
			run_id, file_name, file_hash, rows_read, inserted, duplicates, conflicts, imported_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := l.db.Exec(ctx, query,
		e.RunID,
		e.FileName,
		e.FileHash,
		e.RowsRead,
		e.Inserted,
		e.Duplicates,
		e.Conflicts,
		e.ImportedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert import log entry: %w", err)
	}
	return nil
}

func (l *PostgresLog) HasHash(ctx context.Context, hash string) (bool, error) {
	var exists bool
	err := l.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM import_log WHERE file_hash = $1)`, hash).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check file hash: %w", err)
	}
	return exists, nil
}

// List returns the newest limit entries, oldest first. A non-positive
// limit returns every entry.
func (l *PostgresLog) List(ctx context.Context, limit int) ([]Entry, error) {
	query := `
		SELECT run_id, file_name, file_hash, rows_read, inserted, duplicates, conflicts, imported_at
		FROM (
			SELECT * FROM import_log
			ORDER BY imported_at DESC, id DESC
			LIMIT $1
		) recent
		ORDER BY imported_at ASC, id ASC
	`
	var arg any
	if limit > 0 {
		arg = limit
	}

	rows, err := l.db.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list import log: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.RunID, &e.FileName, &e.FileHash, &e.RowsRead,
			&e.Inserted, &e.Duplicates, &e.Conflicts, &e.ImportedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan import log entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate import log: %w", err)
	}
	return entries, nil
}
