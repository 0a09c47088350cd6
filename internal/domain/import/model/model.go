// Package model holds the canonical statement types shared by the import
// pipeline: the raw table read from a file and the normalized transaction.
package model

import (
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// RawTable is a statement as read from disk. Every row is positionally
// aligned with Headers.
type RawTable struct {
	Headers []string
	Rows    [][]string
}

// Empty reports whether the table carries no data rows.
func (t *RawTable) Empty() bool {
	return t == nil || len(t.Rows) == 0
}

// Type is the movement class derived from the description.
type Type string

const (
	TypeNone              Type = ""
	TypeSPEIReceived      Type = "SPEI Recibido"
	TypeSPEISent          Type = "SPEI Enviado"
	TypeSPEI              Type = "SPEI"
	TypeFee               Type = "Comisión"
	TypeVAT               Type = "IVA"
	TypePOS               Type = "POS"
	TypeDirectDebit       Type = "Domiciliación"
	TypeDeposit           Type = "Depósito"
	TypeWithdrawal        Type = "Retiro"
	TypeFundsDelivery     Type = "Entrega de Recursos"
	TypePayrollWithdrawal Type = "Retiro de Nómina"
)

// IsSPEI reports whether the type belongs to the SPEI family.
func (t Type) IsSPEI() bool {
	return strings.HasPrefix(string(t), string(TypeSPEI))
}

// AutoAuthorized reports whether incoming movements of this type are marked
// authorized and captured on insertion.
func (t Type) AutoAuthorized() bool {
	switch t {
	case TypeDeposit, TypeFundsDelivery, TypeSPEIReceived:
		return true
	}
	return false
}

// Transaction is one normalized statement movement.
type Transaction struct {
	RowIndex    int
	SourceFile  string
	Date        civil.Date
	Time        string
	ReceiptRef  string
	Description string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Balance     decimal.Decimal
	TrackingKey string
	Type        Type
	UID         string
}

// Net is credit minus debit.
func (t Transaction) Net() decimal.Decimal {
	return t.Credit.Sub(t.Debit)
}

// Amounts is the (debit, credit, net) triple kept for known UIDs.
type Amounts struct {
	Debit  decimal.Decimal
	Credit decimal.Decimal
	Net    decimal.Decimal
}

// AmountsOf returns the amount triple of a transaction.
func AmountsOf(t Transaction) Amounts {
	return Amounts{Debit: t.Debit, Credit: t.Credit, Net: t.Net()}
}
