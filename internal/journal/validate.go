package journal

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/daftar-erp/daftar/internal/id"
	"github.com/daftar-erp/daftar/internal/model"
)

// ValidationError describes a single invariant violation.
type ValidationError struct {
	Invariant   int
	EntryID     string
	Description string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invariant %d [%s]: %s", e.Invariant, e.EntryID, e.Description)
}

// ValidationErrors is returned by the service when a write would break the ledger.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, ve := range errs {
		msgs[i] = ve.Error()
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// AccountChecker tests whether an account ID exists in the chart of accounts.
type AccountChecker interface {
	Exists(id int) bool
}

// CostCenterChecker tests whether a cost center code accepts postings.
type CostCenterChecker interface {
	CostCenterExists(code string) bool
}

var hundred = decimal.NewFromInt(100)

func moreThanTwoPlaces(d decimal.Decimal) bool {
	scaled := d.Mul(hundred)
	return !scaled.Equal(scaled.Floor())
}

// ValidateLegs enforces the ledger invariants on a month of legs:
//
//  1. every entry balances
//  2. each leg has exactly one of debit or credit
//  3. accounts exist
//  4. dates fall inside the month
//  5. entry sequences are contiguous from 1
//  6. amounts carry at most two decimals
//  7. cost centers, when set, exist
//
// centers may be nil, in which case invariant 7 is not checked.
func ValidateLegs(legs []model.Leg, accounts AccountChecker, centers CostCenterChecker, year, month int) []ValidationError {
	var errs []ValidationError

	groups := make(map[string][]model.Leg)
	var groupOrder []string
	for _, leg := range legs {
		g := leg.EntryGroup()
		if _, seen := groups[g]; !seen {
			groupOrder = append(groupOrder, g)
		}
		groups[g] = append(groups[g], leg)
	}

	for _, g := range groupOrder {
		totalDebit := decimal.Zero
		totalCredit := decimal.Zero
		for _, leg := range groups[g] {
			totalDebit = totalDebit.Add(leg.Debit)
			totalCredit = totalCredit.Add(leg.Credit)
		}
		if !totalDebit.Equal(totalCredit) {
			errs = append(errs, ValidationError{
				Invariant:   1,
				EntryID:     g,
				Description: fmt.Sprintf("debits (%s) != credits (%s)", totalDebit.StringFixed(2), totalCredit.StringFixed(2)),
			})
		}
	}

	for _, leg := range legs {
		hasDebit := !leg.Debit.IsZero()
		hasCredit := !leg.Credit.IsZero()
		if hasDebit == hasCredit || leg.Debit.IsNegative() || leg.Credit.IsNegative() {
			errs = append(errs, ValidationError{
				Invariant:   2,
				EntryID:     leg.EntryID,
				Description: "leg must have exactly one positive debit or credit",
			})
		}

		if !accounts.Exists(leg.AccountID) {
			errs = append(errs, ValidationError{
				Invariant:   3,
				EntryID:     leg.EntryID,
				Description: fmt.Sprintf("unknown account %d", leg.AccountID),
			})
		}

		if leg.Date.Year() != year || int(leg.Date.Month()) != month {
			errs = append(errs, ValidationError{
				Invariant:   4,
				EntryID:     leg.EntryID,
				Description: fmt.Sprintf("date %s not in %04d-%02d", leg.Date.Format(dateFormat), year, month),
			})
		}

		if moreThanTwoPlaces(leg.Debit) {
			errs = append(errs, ValidationError{
				Invariant:   6,
				EntryID:     leg.EntryID,
				Description: fmt.Sprintf("debit %s has more than 2 decimal places", leg.Debit),
			})
		}
		if moreThanTwoPlaces(leg.Credit) {
			errs = append(errs, ValidationError{
				Invariant:   6,
				EntryID:     leg.EntryID,
				Description: fmt.Sprintf("credit %s has more than 2 decimal places", leg.Credit),
			})
		}

		if leg.CostCenter != "" && centers != nil && !centers.CostCenterExists(leg.CostCenter) {
			errs = append(errs, ValidationError{
				Invariant:   7,
				EntryID:     leg.EntryID,
				Description: fmt.Sprintf("unknown cost center %q", leg.CostCenter),
			})
		}
	}

	// Legs of one entry share a sequence, so contiguity is checked on distinct values.
	seqSeen := make(map[int]bool)
	for _, leg := range legs {
		_, _, seq, err := id.ParseEntryID(leg.EntryID)
		if err != nil {
			errs = append(errs, ValidationError{
				Invariant:   5,
				EntryID:     leg.EntryID,
				Description: fmt.Sprintf("invalid entry ID: %v", err),
			})
			continue
		}
		seqSeen[seq] = true
	}
	if len(seqSeen) > 0 {
		seqs := make([]int, 0, len(seqSeen))
		for s := range seqSeen {
			seqs = append(seqs, s)
		}
		sort.Ints(seqs)
		for i := 1; i <= len(seqs); i++ {
			if !seqSeen[i] {
				errs = append(errs, ValidationError{
					Invariant:   5,
					EntryID:     fmt.Sprintf("seq %d", i),
					Description: fmt.Sprintf("missing sequence %d in 1..%d", i, seqs[len(seqs)-1]),
				})
			}
		}
	}

	return errs
}
