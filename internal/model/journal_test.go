package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestLegEntryGroup(t *testing.T) {
	tests := []struct {
		entryID string
		want    string
	}{
		{"2025-01-001a", "2025-01-001"},
		{"2025-01-001b", "2025-01-001"},
		{"2025-01-001", "2025-01-001"},
		{"2025-12-099abc", "2025-12-099"},
		{"", ""},
	}
	for _, tt := range tests {
		leg := Leg{EntryID: tt.entryID}
		assert.Equal(t, tt.want, leg.EntryGroup(), "EntryGroup(%q)", tt.entryID)
	}
}

func TestLegAmount(t *testing.T) {
	assert.Equal(t, "12.5", Leg{Debit: decimal.RequireFromString("12.50")}.Amount().String())
	assert.Equal(t, "7", Leg{Credit: decimal.NewFromInt(7)}.Amount().String())
}

func TestDebitNormal(t *testing.T) {
	assert.True(t, AccountTypeAsset.DebitNormal())
	assert.True(t, AccountTypeExpense.DebitNormal())
	assert.False(t, AccountTypeLiability.DebitNormal())
	assert.False(t, AccountTypeEquity.DebitNormal())
	assert.False(t, AccountTypeRevenue.DebitNormal())
}

func TestProductLowStock(t *testing.T) {
	p := Product{Quantity: decimal.NewFromInt(3), ReorderLevel: decimal.NewFromInt(5)}
	assert.True(t, p.LowStock())

	p.Quantity = decimal.NewFromInt(6)
	assert.False(t, p.LowStock())

	svc := Product{Service: true}
	assert.False(t, svc.LowStock(), "services carry no stock")
}

func TestDocumentStatusOpen(t *testing.T) {
	assert.True(t, DocIssued.Open())
	assert.True(t, DocPartiallyPaid.Open())
	assert.True(t, DocOverdue.Open())
	assert.False(t, DocDraft.Open())
	assert.False(t, DocPaid.Open())
	assert.False(t, DocCancelled.Open())
}
