package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestType_IsSPEI(t *testing.T) {
	assert.True(t, TypeSPEI.IsSPEI())
	assert.True(t, TypeSPEIReceived.IsSPEI())
	assert.True(t, TypeSPEISent.IsSPEI())
	assert.False(t, TypeDeposit.IsSPEI())
	assert.False(t, TypeNone.IsSPEI())
}

func TestType_AutoAuthorized(t *testing.T) {
	tests := []struct {
		typ  Type
		want bool
	}{
		{TypeDeposit, true},
		{TypeFundsDelivery, true},
		{TypeSPEIReceived, true},
		{TypeSPEISent, false},
		{TypeFee, false},
		{TypeNone, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.typ.AutoAuthorized())
		})
	}
}

func TestTransaction_Net(t *testing.T) {
	tx := Transaction{Debit: decimal.RequireFromString("100.50"), Credit: decimal.RequireFromString("20")}
	assert.True(t, tx.Net().Equal(decimal.RequireFromString("-80.50")))

	a := AmountsOf(tx)
	assert.True(t, a.Net.Equal(tx.Net()))
}

func TestRawTable_Empty(t *testing.T) {
	var nilTable *RawTable
	assert.True(t, nilTable.Empty())
	assert.True(t, (&RawTable{Headers: []string{"a"}}).Empty())
	assert.False(t, (&RawTable{Headers: []string{"a"}, Rows: [][]string{{"1"}}}).Empty())
}
