package journal

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daftar-erp/daftar/internal/model"
)

type mockAccounts struct {
	ids map[int]bool
}

func (m *mockAccounts) Exists(id int) bool {
	return m.ids[id]
}

func newMockAccounts(ids ...int) *mockAccounts {
	m := &mockAccounts{ids: make(map[int]bool)}
	for _, id := range ids {
		m.ids[id] = true
	}
	return m
}

type mockCenters map[string]bool

func (m mockCenters) CostCenterExists(code string) bool {
	return m[code]
}

func balancedEntry(seq int, debitAcct, creditAcct int, amount string) []model.Leg {
	entryID := fmt.Sprintf("2025-01-%03d", seq)
	return []model.Leg{
		{
			EntryID:   entryID + "a",
			Date:      date(2025, 1, 15),
			AccountID: debitAcct,
			Debit:     dec(amount),
			Status:    model.StatusPosted,
		},
		{
			EntryID:   entryID + "b",
			Date:      date(2025, 1, 15),
			AccountID: creditAcct,
			Credit:    dec(amount),
			Status:    model.StatusPosted,
		},
	}
}

func hasInvariant(errs []ValidationError, n int) bool {
	for _, e := range errs {
		if e.Invariant == n {
			return true
		}
	}
	return false
}

var (
	defaultAccounts = newMockAccounts(1010, 1020, 1100, 2200, 3010, 4010, 5030)
	defaultCenters  = mockCenters{"ADMIN": true, "SALES": true}
)

func TestValidate_Balanced(t *testing.T) {
	legs := balancedEntry(1, 5030, 1010, "100.00")
	errs := ValidateLegs(legs, defaultAccounts, defaultCenters, 2025, 1)
	assert.Empty(t, errs)
}

func TestValidate_CompoundEntry(t *testing.T) {
	legs := []model.Leg{
		{EntryID: "2025-01-001a", Date: date(2025, 1, 9), AccountID: 1100, Debit: dec("230.00"), Status: model.StatusPosted},
		{EntryID: "2025-01-001b", Date: date(2025, 1, 9), AccountID: 4010, Credit: dec("200.00"), Status: model.StatusPosted},
		{EntryID: "2025-01-001c", Date: date(2025, 1, 9), AccountID: 2200, Credit: dec("30.00"), Status: model.StatusPosted},
	}
	assert.Empty(t, ValidateLegs(legs, defaultAccounts, defaultCenters, 2025, 1))
}

func TestValidate_Invariants(t *testing.T) {
	tests := []struct {
		name      string
		legs      []model.Leg
		invariant int
	}{
		{
			name: "unbalanced",
			legs: []model.Leg{
				{EntryID: "2025-01-001a", Date: date(2025, 1, 15), AccountID: 5030, Debit: dec("100.00")},
				{EntryID: "2025-01-001b", Date: date(2025, 1, 15), AccountID: 1010, Credit: dec("99.00")},
			},
			invariant: 1,
		},
		{
			name: "both debit and credit",
			legs: []model.Leg{
				{EntryID: "2025-01-001a", Date: date(2025, 1, 15), AccountID: 5030, Debit: dec("100.00"), Credit: dec("100.00")},
			},
			invariant: 2,
		},
		{
			name: "neither debit nor credit",
			legs: []model.Leg{
				{EntryID: "2025-01-001a", Date: date(2025, 1, 15), AccountID: 5030},
			},
			invariant: 2,
		},
		{
			name: "negative amount",
			legs: []model.Leg{
				{EntryID: "2025-01-001a", Date: date(2025, 1, 15), AccountID: 5030, Debit: dec("-5.00")},
				{EntryID: "2025-01-001b", Date: date(2025, 1, 15), AccountID: 1010, Debit: dec("5.00")},
			},
			invariant: 2,
		},
		{
			name:      "unknown account",
			legs:      balancedEntry(1, 9999, 1010, "50.00"),
			invariant: 3,
		},
		{
			name: "wrong month",
			legs: []model.Leg{
				{EntryID: "2025-01-001a", Date: date(2025, 2, 15), AccountID: 5030, Debit: dec("50.00")},
				{EntryID: "2025-01-001b", Date: date(2025, 2, 15), AccountID: 1010, Credit: dec("50.00")},
			},
			invariant: 4,
		},
		{
			name:      "missing sequence",
			legs:      append(balancedEntry(1, 5030, 1010, "50.00"), balancedEntry(3, 5030, 1010, "75.00")...),
			invariant: 5,
		},
		{
			name: "too many decimals",
			legs: []model.Leg{
				{EntryID: "2025-01-001a", Date: date(2025, 1, 15), AccountID: 5030, Debit: dec("10.123")},
				{EntryID: "2025-01-001b", Date: date(2025, 1, 15), AccountID: 1010, Credit: dec("10.123")},
			},
			invariant: 6,
		},
		{
			name: "unknown cost center",
			legs: []model.Leg{
				{EntryID: "2025-01-001a", Date: date(2025, 1, 15), AccountID: 5030, Debit: dec("10.00"), CostCenter: "HQ"},
				{EntryID: "2025-01-001b", Date: date(2025, 1, 15), AccountID: 1010, Credit: dec("10.00")},
			},
			invariant: 7,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateLegs(tt.legs, defaultAccounts, defaultCenters, 2025, 1)
			assert.True(t, hasInvariant(errs, tt.invariant), "expected invariant %d, got %v", tt.invariant, errs)
		})
	}
}

func TestValidate_CostCenterKnown(t *testing.T) {
	legs := balancedEntry(1, 5030, 1010, "10.00")
	legs[0].CostCenter = "ADMIN"
	assert.Empty(t, ValidateLegs(legs, defaultAccounts, defaultCenters, 2025, 1))
}

func TestValidate_NilCentersSkipsCostCenterCheck(t *testing.T) {
	legs := balancedEntry(1, 5030, 1010, "10.00")
	legs[0].CostCenter = "ANY"
	assert.Empty(t, ValidateLegs(legs, defaultAccounts, nil, 2025, 1))
}

func TestValidate_InvalidEntryID(t *testing.T) {
	legs := []model.Leg{
		{EntryID: "garbage", Date: date(2025, 1, 15), AccountID: 5030, Debit: dec("1.00")},
		{EntryID: "garbage", Date: date(2025, 1, 15), AccountID: 1010, Credit: dec("1.00")},
	}
	errs := ValidateLegs(legs, defaultAccounts, nil, 2025, 1)
	assert.True(t, hasInvariant(errs, 5))
}

func TestValidate_MultiError(t *testing.T) {
	legs := []model.Leg{
		{EntryID: "2025-01-001a", Date: date(2025, 3, 1), AccountID: 9999, Debit: dec("100.00")},
		{EntryID: "2025-01-001b", Date: date(2025, 1, 1), AccountID: 1010, Credit: dec("50.00")},
	}
	errs := ValidateLegs(legs, defaultAccounts, defaultCenters, 2025, 1)
	assert.True(t, hasInvariant(errs, 1))
	assert.True(t, hasInvariant(errs, 3))
	assert.True(t, hasInvariant(errs, 4))
}

func TestValidationErrorsMessage(t *testing.T) {
	errs := ValidationErrors{
		{Invariant: 1, EntryID: "2025-01-001", Description: "debits (1.00) != credits (2.00)"},
		{Invariant: 3, EntryID: "2025-01-001a", Description: "unknown account 9"},
	}
	msg := errs.Error()
	require.Contains(t, msg, "validation failed")
	assert.Contains(t, msg, "invariant 1 [2025-01-001]")
	assert.Contains(t, msg, "invariant 3 [2025-01-001a]")
}
