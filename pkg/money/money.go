// Package money provides currency-safe amounts for statement movements.
// Amounts are kept as integer minor units through go-money and converted
// to shopspring/decimal for comparisons with tolerance.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Currency codes (ISO-4217) used by the reconciler.
const (
	MXN = "MXN" // Mexican Peso
	USD = "USD" // US Dollar
)

// ErrEmptyAmount is returned when an amount string holds no digits.
var ErrEmptyAmount = errors.New("empty amount")

// Money represents a monetary value with currency.
type Money struct {
	m *money.Money
}

// New creates a Money value from minor units (centavos).
func New(amountCents int64, currencyCode string) *Money {
	return &Money{
		m: money.New(amountCents, currencyCode),
	}
}

// NewFromDecimal creates Money from a decimal value, rounding to the
// currency's minor unit.
func NewFromDecimal(amount decimal.Decimal, currencyCode string) *Money {
	currency := money.GetCurrency(currencyCode)
	if currency == nil {
		currency = money.GetCurrency(MXN)
	}

	multiplier := decimal.New(1, int32(currency.Fraction))
	cents := amount.Mul(multiplier).Round(0).IntPart()

	return New(cents, currency.Code)
}

// NewFromString parses amounts such as "1,234.56", "$99.99" or the
// European "1.234,56" when europeanFormat is set.
func NewFromString(amount string, currencyCode string, europeanFormat bool) (*Money, error) {
	d, err := ParseDecimal(amount, europeanFormat)
	if err != nil {
		return nil, err
	}
	return NewFromDecimal(d, currencyCode), nil
}

// ParseDecimal cleans currency symbols, spaces and thousands separators
// from amount and parses the rest.
func ParseDecimal(amount string, europeanFormat bool) (decimal.Decimal, error) {
	amount = strings.TrimSpace(amount)
	amount = strings.ReplaceAll(amount, " ", "")
	amount = strings.ReplaceAll(amount, " ", "")

	for _, sym := range []string{"MXN", "$"} {
		amount = strings.ReplaceAll(amount, sym, "")
	}

	if europeanFormat {
		amount = strings.ReplaceAll(amount, ".", "")
		amount = strings.ReplaceAll(amount, ",", ".")
	} else {
		amount = strings.ReplaceAll(amount, ",", "")
	}

	// accounting negatives: (1,234.56)
	if strings.HasPrefix(amount, "(") && strings.HasSuffix(amount, ")") {
		amount = "-" + strings.Trim(amount, "()")
	}

	if amount == "" || amount == "-" {
		return decimal.Zero, ErrEmptyAmount
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount: %w", err)
	}
	return d, nil
}

// Zero returns a zero Money value for the given currency.
func Zero(currencyCode string) *Money {
	return New(0, currencyCode)
}

// Amount returns the amount in minor units.
func (m *Money) Amount() int64 {
	if m == nil || m.m == nil {
		return 0
	}
	return m.m.Amount()
}

// Currency returns the ISO-4217 currency code.
func (m *Money) Currency() string {
	if m == nil || m.m == nil {
		return ""
	}
	return m.m.Currency().Code
}

// IsZero returns true if the amount is zero.
func (m *Money) IsZero() bool {
	return m == nil || m.m == nil || m.m.IsZero()
}

// IsPositive returns true if the amount is greater than zero.
func (m *Money) IsPositive() bool {
	return m != nil && m.m != nil && m.m.IsPositive()
}

// Equals returns true if both values are equal.
func (m *Money) Equals(other *Money) bool {
	if m == nil || m.m == nil {
		return other == nil || other.m == nil || other.IsZero()
	}
	if other == nil || other.m == nil {
		return m.IsZero()
	}
	eq, _ := m.m.Equals(other.m)
	return eq
}

// Display returns a formatted string for display (e.g., "$1,234.56").
func (m *Money) Display() string {
	if m == nil || m.m == nil {
		return "$0.00"
	}
	return m.m.Display()
}

// DisplayNonZero returns Display for positive amounts and "" otherwise.
// Report columns leave the unused leg blank.
func (m *Money) DisplayNonZero() string {
	if !m.IsPositive() {
		return ""
	}
	return m.Display()
}

// String returns the amount as a fixed-point decimal string (e.g., "1234.56").
func (m *Money) String() string {
	if m == nil || m.m == nil {
		return "0.00"
	}
	return m.ToDecimal().StringFixed(int32(m.m.Currency().Fraction))
}

// ToDecimal converts to decimal.Decimal for precise calculations.
func (m *Money) ToDecimal() decimal.Decimal {
	if m == nil || m.m == nil {
		return decimal.Zero
	}
	currency := m.m.Currency()
	d := decimal.NewFromInt(m.m.Amount())
	divisor := decimal.New(1, int32(currency.Fraction))
	return d.Div(divisor)
}
