package importer

import (
	"fmt"
	"io"
	"strings"

	"github.com/daftar-erp/daftar/internal/model"
)

// GenericParser reads any CSV whose header names a date, a description and
// either an amount or a debit/credit pair. English and Arabic headers are
// recognized.
type GenericParser struct{}

func (p *GenericParser) Format() string { return "generic" }

var headerNames = map[string][]string{
	"date":        {"date", "posting date", "transaction date", "التاريخ", "تاريخ العملية"},
	"description": {"description", "details", "narrative", "الوصف", "البيان", "التفاصيل"},
	"amount":      {"amount", "المبلغ"},
	"debit":       {"debit", "withdrawal", "مدين", "سحب"},
	"credit":      {"credit", "deposit", "دائن", "إيداع"},
	"reference":   {"reference", "ref", "المرجع", "رقم المرجع"},
}

type columns map[string]int

func findColumns(header []string) (columns, error) {
	cols := make(columns)
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		for field, names := range headerNames {
			for _, n := range names {
				if h == n {
					if _, seen := cols[field]; !seen {
						cols[field] = i
					}
				}
			}
		}
	}
	if _, ok := cols["date"]; !ok {
		return nil, fmt.Errorf("header has no date column")
	}
	if _, ok := cols["description"]; !ok {
		return nil, fmt.Errorf("header has no description column")
	}
	_, hasAmount := cols["amount"]
	_, hasDebit := cols["debit"]
	_, hasCredit := cols["credit"]
	if !hasAmount && !(hasDebit && hasCredit) {
		return nil, fmt.Errorf("header needs an amount column or debit and credit columns")
	}
	return cols, nil
}

func (c columns) get(rec []string, field string) string {
	i, ok := c[field]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func (p *GenericParser) Parse(r io.Reader) ([]model.BankTransaction, error) {
	records, err := readRecords(r)
	if err != nil {
		return nil, fmt.Errorf("reading generic CSV: %w", err)
	}
	if len(records) <= 1 {
		return nil, nil
	}
	cols, err := findColumns(records[0])
	if err != nil {
		return nil, err
	}

	var txns []model.BankTransaction
	for i, rec := range records[1:] {
		if blank(rec) {
			continue
		}
		date, err := parseDate(cols.get(rec, "date"))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		var txn model.BankTransaction
		if _, ok := cols["amount"]; ok {
			txn.Amount, err = parseAmount(cols.get(rec, "amount"))
		} else {
			txn.Amount, err = debitCredit(cols.get(rec, "debit"), cols.get(rec, "credit"))
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		txn.Date = date
		txn.Description = cols.get(rec, "description")
		txn.Reference = cols.get(rec, "reference")
		if txn.Reference == "" {
			txn.Reference = makeRef(p.Format(), date, txn.Description, txn.Amount)
		}
		txn.Type = "DEBIT"
		if txn.Amount.IsPositive() {
			txn.Type = "CREDIT"
		}
		txns = append(txns, txn)
	}
	return txns, nil
}
