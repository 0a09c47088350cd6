package reconcile

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/bajio-reconciler/pkg/money"
)

const reportConflictLimit = 5

// Report renders the reconciliation result and its validation as plain
// text for the operator.
func Report(r Result, v Validation) string {
	var b strings.Builder

	b.WriteString("INSERTION ANALYSIS REPORT\n")
	b.WriteString(strings.Repeat("=", 50) + "\n")
	b.WriteString("Summary:\n")
	fmt.Fprintf(&b, "  - new records: %d\n", r.Summary.NewUnique)
	fmt.Fprintf(&b, "  - duplicates: %d\n", r.Summary.Duplicates)
	fmt.Fprintf(&b, "  - conflicts: %d\n", r.Summary.Conflicts)
	fmt.Fprintf(&b, "  - ready to insert: %d\n", r.Summary.InsertReady)
	b.WriteString("\n")

	if v.SafeToProceed {
		b.WriteString("Status: SAFE TO PROCEED\n")
	} else {
		b.WriteString("Status: NOT SAFE TO PROCEED\n")
	}

	writeList(&b, "Warnings", v.Warnings)
	writeList(&b, "Errors", v.Errors)
	writeList(&b, "Recommendations", v.Recommendations)

	if len(r.Conflicts) > 0 {
		b.WriteString("\nConflicts:\n")
		for i, c := range r.Conflicts {
			if i == reportConflictLimit {
				fmt.Fprintf(&b, "  ... and %d more\n", len(r.Conflicts)-reportConflictLimit)
				break
			}
			fmt.Fprintf(&b, "  %d. UID: %s (row %d)\n", i+1, c.UID, c.RowIndex)
			fmt.Fprintf(&b, "     new: Cargo=%s, Abono=%s\n", display(c.New.Debit), display(c.New.Credit))
			fmt.Fprintf(&b, "     existing: Cargo=%s, Abono=%s\n", display(c.Existing.Debit), display(c.Existing.Credit))
			fmt.Fprintf(&b, "     reason: %s\n", strings.Join(c.Reasons, "; "))
		}
	}

	return b.String()
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "  - %s\n", item)
	}
}

func display(d decimal.Decimal) string {
	return money.NewFromDecimal(d, money.MXN).Display()
}
