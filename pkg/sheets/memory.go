package sheets

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

const defaultGridRows = 1000

// WriteHook lets callers rewrite or reject a write before it is applied.
// Returning an error aborts the write.
type WriteHook func(tab string, rng Range, rows [][]any) ([][]any, error)

// MemoryStore is an in-process Store used in demo mode and tests.
type MemoryStore struct {
	mu        sync.Mutex
	tabs      map[string]*memTab
	autoTabs  bool
	writeHook WriteHook
}

type memTab struct {
	cells       [][]string
	gridRows    int
	protectFrom int // first protected column, 0 when unprotected
}

// NewMemoryStore creates an empty store. Missing tabs are created by
// EnsureTab and on write only when autoCreate is true.
func NewMemoryStore(autoCreate bool) *MemoryStore {
	return &MemoryStore{
		tabs:     make(map[string]*memTab),
		autoTabs: autoCreate,
	}
}

// Seed replaces a tab content with rows.
func (s *MemoryStore) Seed(tab string, rows [][]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cells := make([][]string, len(rows))
	for i, r := range rows {
		cells[i] = append([]string(nil), r...)
	}
	grid := defaultGridRows
	if len(cells) > grid {
		grid = len(cells)
	}
	s.tabs[tab] = &memTab{cells: cells, gridRows: grid}
}

// SetGridRows overrides the allocated row count of a tab.
func (s *MemoryStore) SetGridRows(tab string, rows int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tabs[tab]; ok {
		t.gridRows = rows
	}
}

// ProtectColumnsFrom rejects writes touching column col or later.
func (s *MemoryStore) ProtectColumnsFrom(tab string, col int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tabs[tab]; ok {
		t.protectFrom = col
	}
}

// SetWriteHook installs a hook consulted before each WriteRange/AppendRows.
func (s *MemoryStore) SetWriteHook(h WriteHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeHook = h
}

// Rows returns a copy of the tab content.
func (s *MemoryStore) Rows(tab string) [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tabs[tab]
	if !ok {
		return nil
	}
	out := make([][]string, len(t.cells))
	for i, r := range t.cells {
		out[i] = append([]string(nil), r...)
	}
	return out
}

func (s *MemoryStore) EnsureTab(_ context.Context, tab string, headers []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tabs[tab]; ok {
		return nil
	}
	if !s.autoTabs {
		return newError(KindOther, "EnsureTab", fmt.Errorf("%w: %s", ErrTabNotFound, tab))
	}
	t := &memTab{gridRows: defaultGridRows}
	if len(headers) > 0 {
		t.cells = [][]string{append([]string(nil), headers...)}
	}
	s.tabs[tab] = t
	return nil
}

func (s *MemoryStore) ReadAll(_ context.Context, tab string) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.tab("ReadAll", tab)
	if err != nil {
		return nil, err
	}
	last := len(t.cells)
	for last > 0 && isBlankRow(t.cells[last-1]) {
		last--
	}
	out := make([][]string, last)
	for i := 0; i < last; i++ {
		out[i] = trimRow(t.cells[i])
	}
	return out, nil
}

func (s *MemoryStore) ReadRange(_ context.Context, tab string, rng Range) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.tab("ReadRange", tab)
	if err != nil {
		return nil, err
	}
	if rng.StartRow < 1 || rng.StartCol < 1 || rng.EndRow < rng.StartRow || rng.EndCol < rng.StartCol {
		return nil, newError(KindOther, "ReadRange", ErrInvalidRange)
	}
	out := make([][]string, 0, rng.Rows())
	for r := rng.StartRow; r <= rng.EndRow; r++ {
		row := make([]string, 0, rng.Cols())
		for c := rng.StartCol; c <= rng.EndCol; c++ {
			row = append(row, t.cell(r, c))
		}
		out = append(out, trimRow(row))
	}
	return out, nil
}

func (s *MemoryStore) WriteRange(_ context.Context, tab string, rng Range, rows [][]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.writableTab("WriteRange", tab)
	if err != nil {
		return err
	}
	return s.write(t, tab, rng, rows)
}

func (s *MemoryStore) AppendRows(_ context.Context, tab string, rows [][]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.writableTab("AppendRows", tab)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	last := len(t.cells)
	for last > 0 && isBlankRow(t.cells[last-1]) {
		last--
	}
	cols := 1
	for _, r := range rows {
		if len(r) > cols {
			cols = len(r)
		}
	}
	rng := RowsRange(last+1, len(rows), cols)
	if rng.EndRow > t.gridRows {
		t.gridRows = rng.EndRow
	}
	return s.write(t, tab, rng, rows)
}

func (s *MemoryStore) Grow(_ context.Context, tab string, extra int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.tab("Grow", tab)
	if err != nil {
		return err
	}
	if extra > 0 {
		t.gridRows += extra
	}
	return nil
}

func (s *MemoryStore) RowCount(_ context.Context, tab string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.tab("RowCount", tab)
	if err != nil {
		return 0, err
	}
	return t.gridRows, nil
}

func (s *MemoryStore) GetCell(_ context.Context, tab string, row, col int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.tab("GetCell", tab)
	if err != nil {
		return "", err
	}
	return t.cell(row, col), nil
}

func (s *MemoryStore) tab(op, name string) (*memTab, error) {
	t, ok := s.tabs[name]
	if !ok {
		return nil, newError(KindOther, op, fmt.Errorf("%w: %s", ErrTabNotFound, name))
	}
	return t, nil
}

func (s *MemoryStore) writableTab(op, name string) (*memTab, error) {
	if t, ok := s.tabs[name]; ok {
		return t, nil
	}
	if !s.autoTabs {
		return nil, newError(KindOther, op, fmt.Errorf("%w: %s", ErrTabNotFound, name))
	}
	t := &memTab{gridRows: defaultGridRows}
	s.tabs[name] = t
	return t, nil
}

func (s *MemoryStore) write(t *memTab, tab string, rng Range, rows [][]any) error {
	if rng.StartRow < 1 || rng.StartCol < 1 || rng.EndRow < rng.StartRow || rng.EndCol < rng.StartCol {
		return newError(KindOther, "WriteRange", ErrInvalidRange)
	}
	if len(rows) != rng.Rows() {
		return newError(KindOther, "WriteRange", ErrRowsMismatch)
	}
	if rng.EndRow > t.gridRows {
		return newError(KindOther, "WriteRange", fmt.Errorf("%w: row %d > %d", ErrOutOfGrid, rng.EndRow, t.gridRows))
	}
	if t.protectFrom > 0 && rng.EndCol >= t.protectFrom {
		return newError(KindProtected, "WriteRange",
			fmt.Errorf("protected cells from column %s", ColumnLetter(t.protectFrom)))
	}
	if s.writeHook != nil {
		var err error
		rows, err = s.writeHook(tab, rng, rows)
		if err != nil {
			return err
		}
	}
	for i, row := range rows {
		r := rng.StartRow + i
		for j := 0; j < rng.Cols(); j++ {
			var v string
			if j < len(row) && row[j] != nil {
				v = fmt.Sprint(row[j])
			}
			t.set(r, rng.StartCol+j, v)
		}
	}
	return nil
}

func (t *memTab) cell(row, col int) string {
	if row < 1 || row > len(t.cells) {
		return ""
	}
	r := t.cells[row-1]
	if col < 1 || col > len(r) {
		return ""
	}
	return r[col-1]
}

func (t *memTab) set(row, col int, v string) {
	for len(t.cells) < row {
		t.cells = append(t.cells, nil)
	}
	r := t.cells[row-1]
	for len(r) < col {
		r = append(r, "")
	}
	r[col-1] = v
	t.cells[row-1] = r
}

func isBlankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// trimRow drops trailing empty cells, as the Sheets API does.
func trimRow(row []string) []string {
	last := len(row)
	for last > 0 && row[last-1] == "" {
		last--
	}
	out := make([]string, last)
	copy(out, row[:last])
	return out
}
