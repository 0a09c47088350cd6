// Package reconcile partitions fingerprinted movements into new, duplicate
// and conflicting against a snapshot of the remote data, and validates the
// outcome before anything is written.
package reconcile

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/bajio-reconciler/internal/domain/import/model"
)

// Tolerance is the absolute difference allowed between amounts of the
// same UID. A difference of exactly one cent is not a conflict.
var Tolerance = decimal.New(1, -2)

const (
	ReasonExactDuplicate = "exact duplicate"
	ReasonRepeatedInRun  = "repeated in this import"
)

// Entry is one reconciled movement.
type Entry struct {
	RowIndex    int
	UID         string
	Transaction model.Transaction
}

// Duplicate is a movement already known remotely or earlier in the run.
type Duplicate struct {
	Entry
	Reason string
}

// Conflict is a movement whose UID is known with different amounts.
type Conflict struct {
	Entry
	New      model.Amounts
	Existing model.Amounts
	Reasons  []string
}

// Summary holds the partition counts.
type Summary struct {
	NewUnique   int
	Duplicates  int
	Conflicts   int
	InsertReady int
}

// Result is the outcome of a reconciliation pass.
type Result struct {
	SafeToInsert []Entry
	Duplicates   []Duplicate
	Conflicts    []Conflict
	Summary      Summary
	// Skipped counts movements without a UID.
	Skipped int
}

// Transactions returns the movements safe to insert, in input order.
func (r Result) Transactions() []model.Transaction {
	out := make([]model.Transaction, len(r.SafeToInsert))
	for i, e := range r.SafeToInsert {
		out[i] = e.Transaction
	}
	return out
}

// Reconcile classifies every movement of txs as exactly one of new,
// duplicate or conflict. The snapshot is not modified; accepted UIDs are
// added to ws so later repeats, in this batch or a later file of the same
// run, become duplicates. A nil ws uses a fresh working set.
func Reconcile(txs []model.Transaction, snapshot *Snapshot, ws *WorkingSet) Result {
	if ws == nil {
		ws = NewWorkingSet()
	}

	var r Result
	for _, tx := range txs {
		uid := strings.TrimSpace(tx.UID)
		if uid == "" {
			r.Skipped++
			continue
		}
		entry := Entry{RowIndex: tx.RowIndex, UID: uid, Transaction: tx}

		if existing, ok := snapshot.Amounts(uid); ok {
			current := model.AmountsOf(tx)
			if reasons := compareAmounts(existing, current); len(reasons) > 0 {
				r.Conflicts = append(r.Conflicts, Conflict{
					Entry:    entry,
					New:      current,
					Existing: existing,
					Reasons:  reasons,
				})
			} else {
				r.Duplicates = append(r.Duplicates, Duplicate{Entry: entry, Reason: ReasonExactDuplicate})
			}
			continue
		}

		if ws.Has(uid) {
			r.Duplicates = append(r.Duplicates, Duplicate{Entry: entry, Reason: ReasonRepeatedInRun})
			continue
		}

		ws.Add(uid)
		r.SafeToInsert = append(r.SafeToInsert, entry)
	}

	r.Summary = Summary{
		NewUnique:   len(r.SafeToInsert),
		Duplicates:  len(r.Duplicates),
		Conflicts:   len(r.Conflicts),
		InsertReady: len(r.SafeToInsert),
	}
	return r
}

func compareAmounts(existing, current model.Amounts) []string {
	var reasons []string
	if differs(existing.Debit, current.Debit) {
		reasons = append(reasons, fmt.Sprintf("Cargo: %s vs %s", existing.Debit.StringFixed(2), current.Debit.StringFixed(2)))
	}
	if differs(existing.Credit, current.Credit) {
		reasons = append(reasons, fmt.Sprintf("Abono: %s vs %s", existing.Credit.StringFixed(2), current.Credit.StringFixed(2)))
	}
	return reasons
}

func differs(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().GreaterThan(Tolerance)
}

// ============================================================================
// Validation
// ============================================================================

// MsgNothingToInsert is the validation error when no movement is new.
const MsgNothingToInsert = "no new records to insert"

// Validation is the human-facing verdict on a reconciliation result.
type Validation struct {
	SafeToProceed   bool
	Warnings        []string
	Errors          []string
	Recommendations []string
}

// ValidateInsertionSafety decides whether insertion may proceed. Conflicts
// do not block it; conflicting rows are excluded from insertion and flagged
// for manual review.
func ValidateInsertionSafety(r Result) Validation {
	v := Validation{SafeToProceed: true}

	if r.Summary.Conflicts > 0 {
		v.Warnings = append(v.Warnings, fmt.Sprintf("found %d amount conflicts", r.Summary.Conflicts))
		v.Recommendations = append(v.Recommendations, "review conflicts manually before proceeding")
	}
	if r.Summary.Duplicates > 0 {
		v.Warnings = append(v.Warnings, fmt.Sprintf("found %d exact duplicates", r.Summary.Duplicates))
	}
	if r.Summary.InsertReady == 0 {
		v.Errors = append(v.Errors, MsgNothingToInsert)
		v.SafeToProceed = false
	}
	if r.Summary.NewUnique > 0 {
		v.Recommendations = append(v.Recommendations, fmt.Sprintf("%d new records ready for insertion", r.Summary.NewUnique))
	}
	return v
}
