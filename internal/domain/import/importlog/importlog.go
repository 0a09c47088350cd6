// Package importlog keeps the append-only record of processed statement
// files. Entries are informational: the file hash is used to warn about
// re-imports, never to block them.
package importlog

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
)

// Entry is one processed file.
type Entry struct {
	RunID      uuid.UUID
	FileName   string
	FileHash   string
	RowsRead   int
	Inserted   int
	Duplicates int
	Conflicts  int
	ImportedAt time.Time
}

// Store appends and queries import log entries.
type Store interface {
	Append(ctx context.Context, e Entry) error
	HasHash(ctx context.Context, hash string) (bool, error)
	List(ctx context.Context, limit int) ([]Entry, error)
}

// Hash returns the hex MD5 of a file content.
func Hash(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

const timestampLayout = "2006-01-02 15:04:05"

// Headers is the header row of the log tab and of CSV exports.
var Headers = []string{"Archivo", "HashArchivo", "FilasLeídas", "NuevosInsertados", "DuplicadosSaltados", "Conflictivos", "FechaHora"}

type csvEntry struct {
	FileName   string `csv:"Archivo"`
	FileHash   string `csv:"HashArchivo"`
	RowsRead   int    `csv:"FilasLeídas"`
	Inserted   int    `csv:"NuevosInsertados"`
	Duplicates int    `csv:"DuplicadosSaltados"`
	Conflicts  int    `csv:"Conflictivos"`
	ImportedAt string `csv:"FechaHora"`
}

// WriteCSV exports entries with the log tab headers.
func WriteCSV(w io.Writer, entries []Entry) error {
	rows := make([]csvEntry, len(entries))
	for i, e := range entries {
		rows[i] = csvEntry{
			FileName:   e.FileName,
			FileHash:   e.FileHash,
			RowsRead:   e.RowsRead,
			Inserted:   e.Inserted,
			Duplicates: e.Duplicates,
			Conflicts:  e.Conflicts,
			ImportedAt: e.ImportedAt.Format(timestampLayout),
		}
	}
	return gocsv.Marshal(rows, w)
}

// Nop discards entries. It backs demo runs and IMPORT_LOG_BACKEND=none.
type Nop struct{}

func (Nop) Append(context.Context, Entry) error { return nil }

func (Nop) HasHash(context.Context, string) (bool, error) { return false, nil }

func (Nop) List(context.Context, int) ([]Entry, error) { return nil, nil }
