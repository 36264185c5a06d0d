package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var dateLayouts = []string{"2006-01-02", "02/01/2006", "2/1/2006", "02-01-2006", "2006/01/02"}

// arabicDigits folds Arabic-Indic and Eastern Arabic-Indic digits to ASCII
// and drops thousands separators.
func arabicDigits(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '٠' && r <= '٩':
			return '0' + (r - '٠')
		case r >= '۰' && r <= '۹':
			return '0' + (r - '۰')
		case r == '٫':
			return '.'
		case r == ',' || r == '٬' || r == '\u00a0' || r == ' ':
			return -1
		}
		return r
	}, s)
}

func parseDate(s string) (time.Time, error) {
	s = arabicDigits(strings.TrimSpace(s))
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parsing date %q", s)
}

// parseAmount reads an amount that may carry a currency label or be empty.
// Empty reads as zero.
func parseAmount(s string) (decimal.Decimal, error) {
	s = arabicDigits(strings.TrimSpace(s))
	for _, label := range []string{"SAR", "ر.س", "﷼"} {
		s = strings.TrimSpace(strings.ReplaceAll(s, label, ""))
	}
	if s == "" || s == "-" {
		return decimal.Zero, nil
	}
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	if neg {
		d = d.Neg()
	}
	return d, nil
}

// makeRef derives a stable reference such as alrajhi_20250103_5f1c0a9e from
// the line's content so the same statement line maps to the same reference.
func makeRef(format string, date time.Time, desc string, amount decimal.Decimal) string {
	key := fmt.Sprintf("%s|%s|%s|%s", format, date.Format("2006-01-02"), desc, amount.StringFixed(2))
	sum := uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
	return fmt.Sprintf("%s_%s_%s", format, date.Format("20060102"), sum[:8])
}

func readRecords(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) > 0 && len(records[0]) > 0 {
		records[0][0] = strings.TrimPrefix(records[0][0], "\ufeff")
	}
	return records, nil
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
