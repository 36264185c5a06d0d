package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BankTransaction is one line of an imported bank statement. Amount is
// positive for money in and negative for money out.
type BankTransaction struct {
	Date        time.Time
	Description string
	Amount      decimal.Decimal
	Reference   string
	Type        string
}
