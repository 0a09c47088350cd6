package insertion

import (
	"strconv"
	"strings"

	"github.com/FACorreiaa/bajio-reconciler/internal/domain/import/model"
	"github.com/FACorreiaa/bajio-reconciler/internal/domain/import/parser"
	"github.com/FACorreiaa/bajio-reconciler/pkg/money"
)

// Report schema columns (1-based).
const (
	ColNumber = iota + 1
	ColBlank
	ColMonth
	ColDate
	ColTime
	ColTrackingKey
	ColDescription
	ColOutflow
	ColInflow
	ColAuthorized
	ColCaptured
	ColNotes
	ColUID

	NumColumns = ColUID
	// SafeColumns is the leading block written when the rest of the row is
	// protected.
	SafeColumns = ColMonth
)

// DefaultMonthFormula derives the month from the date cell of the same row.
const DefaultMonthFormula = "=SI(ISDATE(D{row}),MES(D{row}),0)"

// Headers is the header row of the report tab.
var Headers = []string{
	"#", "", "Mes", "Fecha", "Hora", "ClaveRastreo", "Descripción",
	"Egreso", "Ingreso", "Autorizado", "Capturado", "Notas", "UID",
}

const (
	capturedYes = "Capturado"
	capturedNo  = "Pendiente"
)

// FormatRow renders tx as a report row written at sheet row `row` with
// consecutive number `number`.
func FormatRow(tx model.Transaction, number, row int, monthFormula string) []any {
	if monthFormula == "" {
		monthFormula = DefaultMonthFormula
	}
	authorized, captured := "FALSE", capturedNo
	if tx.Type.AutoAuthorized() {
		authorized, captured = "TRUE", capturedYes
	}

	return []any{
		number,
		"",
		strings.ReplaceAll(monthFormula, "{row}", strconv.Itoa(row)),
		parser.FormatSpanish(tx.Date),
		tx.Time,
		tx.TrackingKey,
		tx.Description,
		money.NewFromDecimal(tx.Debit, money.MXN).DisplayNonZero(),
		money.NewFromDecimal(tx.Credit, money.MXN).DisplayNonZero(),
		authorized,
		captured,
		"",
		tx.UID,
	}
}

// LastConsecutive returns the last digit-only value of column A below the
// header, scanning from the bottom. Zero when there is none.
func LastConsecutive(rows [][]string) int {
	for i := len(rows) - 1; i >= 1; i-- {
		v := columnA(rows[i])
		if v == "" || !isDigits(v) {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			continue
		}
		return n
	}
	return 0
}

// FindInsertionRow returns the first sheet row after the header whose
// column A is empty, or the row after the last one read.
func FindInsertionRow(rows [][]string) int {
	for i := 1; i < len(rows); i++ {
		if columnA(rows[i]) == "" {
			return i + 1
		}
	}
	return max(len(rows)+1, 2)
}

func columnA(row []string) string {
	if len(row) == 0 {
		return ""
	}
	return strings.TrimSpace(row[0])
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
