// Package parser maps statement headers onto canonical columns and parses
// the dates and amounts found in them.
package parser

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/bajio-reconciler/pkg/money"
)

// Column is a canonical statement column.
type Column int

const (
	ColDate Column = iota
	ColTime
	ColReceipt
	ColDescription
	ColDebit
	ColCredit
	ColBalance
	ColTrackingKey
	ColIndex
	numColumns
)

var columnNames = [...]string{
	ColDate:        "Fecha",
	ColTime:        "Hora",
	ColReceipt:     "Recibo",
	ColDescription: "Descripción",
	ColDebit:       "Cargo",
	ColCredit:      "Abono",
	ColBalance:     "Saldo",
	ColTrackingKey: "ClaveRastreo",
	ColIndex:       "#",
}

func (c Column) String() string {
	if c < 0 || c >= numColumns {
		return "unknown"
	}
	return columnNames[c]
}

// ColumnMap holds the source index of every canonical column, -1 when the
// file lacks it.
type ColumnMap [numColumns]int

// MapColumns assigns each header to at most one canonical column using
// case-insensitive substring rules. The first header matching a column wins.
func MapColumns(headers []string) ColumnMap {
	var m ColumnMap
	for i := range m {
		m[i] = -1
	}

	for i, header := range headers {
		col, ok := classifyHeader(header)
		if !ok || m[col] != -1 {
			continue
		}
		m[col] = i
	}
	return m
}

func classifyHeader(header string) (Column, bool) {
	h := strings.ToLower(strings.TrimSpace(header))
	switch {
	case strings.Contains(h, "fecha"):
		return ColDate, true
	case strings.Contains(h, "hora"):
		return ColTime, true
	case containsAny(h, "recibo", "referencia", "folio"):
		return ColReceipt, true
	case containsAny(h, "descrip", "concepto", "detalle"):
		return ColDescription, true
	case strings.Contains(h, "cargo"):
		return ColDebit, true
	case containsAny(h, "abono", "deposito", "depósito"):
		return ColCredit, true
	case strings.Contains(h, "saldo"):
		return ColBalance, true
	case strings.Contains(h, "rastre"):
		return ColTrackingKey, true
	case strings.HasPrefix(h, "#"):
		return ColIndex, true
	}
	return 0, false
}

// Has reports whether the column was found.
func (m ColumnMap) Has(c Column) bool {
	return m[c] >= 0
}

// Value returns the trimmed cell of column c in row, "" when the column is
// missing or the row is short.
func (m ColumnMap) Value(row []string, c Column) string {
	idx := m[c]
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// ColumnValidation reports whether a header set looks like a bank export.
type ColumnValidation struct {
	Valid    bool
	Missing  []string
	Warnings []string
	Columns  ColumnMap
}

// ValidateColumns requires date, debit and credit columns. A missing
// description or balance only adds a warning.
func ValidateColumns(headers []string) ColumnValidation {
	m := MapColumns(headers)
	v := ColumnValidation{Valid: true, Columns: m}

	for _, c := range []Column{ColDate, ColDebit, ColCredit} {
		if !m.Has(c) {
			v.Valid = false
			v.Missing = append(v.Missing, c.String())
		}
	}
	for _, c := range []Column{ColDescription, ColBalance} {
		if !m.Has(c) {
			v.Warnings = append(v.Warnings, "missing optional column "+c.String())
		}
	}
	return v
}

// ParseAmount cleans currency symbols and thousands separators and returns
// the absolute value. Malformed or empty input is zero.
func ParseAmount(s string) decimal.Decimal {
	d, err := money.ParseDecimal(s, false)
	if err != nil {
		return decimal.Zero
	}
	return d.Abs()
}

func containsAny(s string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
