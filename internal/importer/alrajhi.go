package importer

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/daftar-erp/daftar/internal/model"
)

// AlRajhiParser parses Al Rajhi Bank account statement exports. Columns are
// date, description, debit, credit, balance; dates are DD/MM/YYYY and the
// export may open with account summary lines before the header.
type AlRajhiParser struct{}

const (
	alrajhiColDate    = 0
	alrajhiColDesc    = 1
	alrajhiColDebit   = 2
	alrajhiColCredit  = 3
	alrajhiMinColumns = 4
)

func (p *AlRajhiParser) Format() string { return "alrajhi" }

func (p *AlRajhiParser) Parse(r io.Reader) ([]model.BankTransaction, error) {
	records, err := readRecords(r)
	if err != nil {
		return nil, fmt.Errorf("reading alrajhi CSV: %w", err)
	}

	header := -1
	for i, rec := range records {
		if len(rec) >= alrajhiMinColumns && isAlRajhiHeader(rec[alrajhiColDate]) {
			header = i
			break
		}
	}
	if header < 0 {
		if len(records) == 0 {
			return nil, nil
		}
		return nil, fmt.Errorf("alrajhi CSV has no header row")
	}

	var txns []model.BankTransaction
	for i, rec := range records[header+1:] {
		row := header + i + 2
		if blank(rec) {
			continue
		}
		if len(rec) < alrajhiMinColumns {
			return nil, fmt.Errorf("row %d: expected at least %d columns, got %d", row, alrajhiMinColumns, len(rec))
		}
		date, err := parseDate(rec[alrajhiColDate])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		amount, err := debitCredit(rec[alrajhiColDebit], rec[alrajhiColCredit])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		desc := strings.Join(strings.Fields(rec[alrajhiColDesc]), " ")
		typ := "DEBIT"
		if amount.IsPositive() {
			typ = "CREDIT"
		}
		txns = append(txns, model.BankTransaction{
			Date:        date,
			Description: desc,
			Amount:      amount,
			Reference:   makeRef(p.Format(), date, desc, amount),
			Type:        typ,
		})
	}
	return txns, nil
}

func isAlRajhiHeader(first string) bool {
	first = strings.ToLower(strings.TrimSpace(first))
	return first == "date" || first == "التاريخ"
}

// debitCredit folds a debit/credit pair into a signed amount. Debits leave
// the account.
func debitCredit(debit, credit string) (decimal.Decimal, error) {
	d, err := parseAmount(debit)
	if err != nil {
		return decimal.Zero, err
	}
	c, err := parseAmount(credit)
	if err != nil {
		return decimal.Zero, err
	}
	return c.Abs().Sub(d.Abs()), nil
}
