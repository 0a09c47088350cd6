package reconcile

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/bajio-reconciler/internal/domain/import/model"
	"github.com/FACorreiaa/bajio-reconciler/pkg/money"
)

// ErrNoUIDColumn is returned when the remote header row has no UID column.
var ErrNoUIDColumn = errors.New("no UID column in remote data")

// Snapshot is a read-only view of the UIDs and amounts already recorded
// remotely. It may be stale; the insertion protocol re-checks UIDs before
// writing.
type Snapshot struct {
	amounts map[string]model.Amounts
}

// EmptySnapshot returns a snapshot with no known UIDs.
func EmptySnapshot() *Snapshot {
	return &Snapshot{amounts: map[string]model.Amounts{}}
}

// NewSnapshot builds a snapshot from a uid → amounts map. The map is copied.
func NewSnapshot(known map[string]model.Amounts) *Snapshot {
	s := &Snapshot{amounts: make(map[string]model.Amounts, len(known))}
	for uid, a := range known {
		s.amounts[uid] = a
	}
	return s
}

// SnapshotFromRows reads the remote table (header row first). The UID
// column is the header "UID"; debit is the first header containing
// "cargo" or "egreso", credit the first containing "abono" or "ingreso".
// Amount cells may carry currency formatting and fall back to zero.
func SnapshotFromRows(rows [][]string) (*Snapshot, error) {
	if len(rows) == 0 {
		return EmptySnapshot(), nil
	}

	uidCol, debitCol, creditCol := -1, -1, -1
	for i, h := range rows[0] {
		h = strings.ToLower(strings.TrimSpace(h))
		switch {
		case h == "uid":
			if uidCol < 0 {
				uidCol = i
			}
		case strings.Contains(h, "cargo") || strings.Contains(h, "egreso"):
			if debitCol < 0 {
				debitCol = i
			}
		case strings.Contains(h, "abono") || strings.Contains(h, "ingreso"):
			if creditCol < 0 {
				creditCol = i
			}
		}
	}
	if uidCol < 0 {
		return EmptySnapshot(), ErrNoUIDColumn
	}

	s := &Snapshot{amounts: make(map[string]model.Amounts, len(rows)-1)}
	for _, row := range rows[1:] {
		uid := cell(row, uidCol)
		if uid == "" {
			continue
		}
		if _, ok := s.amounts[uid]; ok {
			continue
		}
		debit := amountCell(row, debitCol)
		credit := amountCell(row, creditCol)
		s.amounts[uid] = model.Amounts{Debit: debit, Credit: credit, Net: credit.Sub(debit)}
	}
	return s, nil
}

// Has reports whether uid is known.
func (s *Snapshot) Has(uid string) bool {
	if s == nil {
		return false
	}
	_, ok := s.amounts[uid]
	return ok
}

// Amounts returns the recorded amounts of uid.
func (s *Snapshot) Amounts(uid string) (model.Amounts, bool) {
	if s == nil {
		return model.Amounts{}, false
	}
	a, ok := s.amounts[uid]
	return a, ok
}

// Len returns the number of known UIDs.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.amounts)
}

func cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

func amountCell(row []string, col int) decimal.Decimal {
	d, err := money.ParseDecimal(cell(row, col), false)
	if err != nil {
		return decimal.Zero
	}
	return d.Abs()
}

// WorkingSet holds the UIDs accepted for insertion during a run. It is
// carried across the files of one run so a movement repeated in a later
// file is not accepted twice.
type WorkingSet struct {
	uids map[string]struct{}
}

// NewWorkingSet returns an empty working set.
func NewWorkingSet() *WorkingSet {
	return &WorkingSet{uids: make(map[string]struct{})}
}

// Has reports whether uid was accepted earlier in the run.
func (w *WorkingSet) Has(uid string) bool {
	_, ok := w.uids[uid]
	return ok
}

// Add records uid as accepted.
func (w *WorkingSet) Add(uid string) {
	w.uids[uid] = struct{}{}
}

// Clone returns an independent copy of w.
func (w *WorkingSet) Clone() *WorkingSet {
	c := &WorkingSet{uids: make(map[string]struct{}, len(w.uids))}
	for uid := range w.uids {
		c.uids[uid] = struct{}{}
	}
	return c
}

// Merge adds every UID of other to w.
func (w *WorkingSet) Merge(other *WorkingSet) {
	for uid := range other.uids {
		w.uids[uid] = struct{}{}
	}
}

// Len returns the number of accepted UIDs.
func (w *WorkingSet) Len() int {
	return len(w.uids)
}
