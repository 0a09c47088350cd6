// Package sheets provides the remote tabular store used to reconcile and
// insert bank movements. The core only sees the Store contract and the
// structured ErrorKind carried by *Error; adapters translate transport
// failures into kinds so nothing upstream inspects error text.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Store is the narrow contract the reconciler needs from a spreadsheet.
// Rows and columns are 1-based, matching A1 notation.
type Store interface {
	// EnsureTab creates the tab with the given header row when it does not exist.
	EnsureTab(ctx context.Context, tab string, headers []string) error

	// ReadAll returns every populated row of the tab, header included.
	ReadAll(ctx context.Context, tab string) ([][]string, error)

	// ReadRange returns the cell values inside rng.
	ReadRange(ctx context.Context, tab string, rng Range) ([][]string, error)

	// WriteRange overwrites the cells inside rng.
	WriteRange(ctx context.Context, tab string, rng Range, rows [][]any) error

	// AppendRows writes rows after the last populated row of the tab.
	AppendRows(ctx context.Context, tab string, rows [][]any) error

	// Grow adds extra empty rows to the tab grid.
	Grow(ctx context.Context, tab string, extra int) error

	// RowCount returns the number of rows allocated in the tab grid.
	RowCount(ctx context.Context, tab string) (int, error)

	// GetCell returns a single formatted cell value.
	GetCell(ctx context.Context, tab string, row, col int) (string, error)
}

// Range is an inclusive rectangular block of cells.
type Range struct {
	StartRow int
	EndRow   int
	StartCol int
	EndCol   int
}

// RowsRange spans full rows [startRow, startRow+rows) over cols columns.
func RowsRange(startRow, rows, cols int) Range {
	return Range{StartRow: startRow, EndRow: startRow + rows - 1, StartCol: 1, EndCol: cols}
}

// Rows returns the number of rows covered.
func (r Range) Rows() int { return r.EndRow - r.StartRow + 1 }

// Cols returns the number of columns covered.
func (r Range) Cols() int { return r.EndCol - r.StartCol + 1 }

// A1 renders the range in A1 notation qualified by tab.
func (r Range) A1(tab string) string {
	return fmt.Sprintf("%s!%s%d:%s%d",
		quoteTab(tab), ColumnLetter(r.StartCol), r.StartRow, ColumnLetter(r.EndCol), r.EndRow)
}

// ColumnLetter converts a 1-based column number to its letter (1 → A, 27 → AA).
func ColumnLetter(col int) string {
	if col < 1 {
		return ""
	}
	var b []byte
	for col > 0 {
		col--
		b = append([]byte{byte('A' + col%26)}, b...)
		col /= 26
	}
	return string(b)
}

func quoteTab(tab string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'"
}

// ErrorKind classifies remote failures for retry and fallback decisions.
type ErrorKind int

const (
	KindOther ErrorKind = iota
	KindQuota
	KindProtected
	KindNetwork
)

func (k ErrorKind) String() string {
	switch k {
	case KindQuota:
		return "quota"
	case KindProtected:
		return "protected"
	case KindNetwork:
		return "network"
	default:
		return "other"
	}
}

var (
	ErrTabNotFound   = errors.New("tab not found")
	ErrOutOfGrid     = errors.New("range exceeds grid limits")
	ErrInvalidRange  = errors.New("invalid range")
	ErrRowsMismatch  = errors.New("row count does not match range")
	ErrMissingConfig = errors.New("spreadsheet id is required")
)

// Error is returned by Store adapters.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("sheets %s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the ErrorKind carried by err, KindOther when absent.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindOther
}

func newError(kind ErrorKind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}
