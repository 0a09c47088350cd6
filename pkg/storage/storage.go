// Package storage provides the statement inbox: a directory of pending
// files that are read by the import service and archived once processed.
package storage

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("file not found")

// FileInfo describes a pending statement file.
type FileInfo struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Inbox lists, reads and archives pending statement files.
type Inbox interface {
	// List returns pending files, oldest first.
	List(ctx context.Context) ([]FileInfo, error)

	// Read returns the content of a pending file.
	Read(ctx context.Context, name string) ([]byte, error)

	// Archive moves a processed file out of the inbox.
	Archive(ctx context.Context, name string) error
}

// Config holds inbox configuration.
type Config struct {
	Dir        string
	ArchiveDir string
	Extensions []string // accepted file extensions, lower case with dot
}

// DefaultExtensions are the statement formats the reader understands.
var DefaultExtensions = []string{".csv", ".txt", ".xlsx"}
