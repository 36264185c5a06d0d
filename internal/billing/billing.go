// Package billing computes line and document totals for invoices and purchases.
package billing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/daftar-erp/daftar/internal/model"
)

// ErrInvalidLine is returned for a line item that cannot be priced.
var ErrInvalidLine = errors.New("invalid line item")

// Places is the number of decimal places amounts are rounded to.
const Places = 2

var hundred = decimal.NewFromInt(100)

// LineAmounts are the computed amounts of a single line.
type LineAmounts struct {
	Gross    decimal.Decimal
	Discount decimal.Decimal
	Net      decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// CalcLine prices one line: total = qty × price × (1 − discount%) × (1 + tax%).
// Each component is rounded to two places.
func CalcLine(qty, price, discountPct, taxPct decimal.Decimal) (LineAmounts, error) {
	if !qty.IsPositive() {
		return LineAmounts{}, fmt.Errorf("%w: quantity %s must be positive", ErrInvalidLine, qty)
	}
	if price.IsNegative() {
		return LineAmounts{}, fmt.Errorf("%w: price %s is negative", ErrInvalidLine, price)
	}
	if err := checkPercent("discount", discountPct); err != nil {
		return LineAmounts{}, err
	}
	if err := checkPercent("tax", taxPct); err != nil {
		return LineAmounts{}, err
	}

	gross := qty.Mul(price).Round(Places)
	discount := gross.Mul(discountPct).Div(hundred).Round(Places)
	net := gross.Sub(discount)
	tax := net.Mul(taxPct).Div(hundred).Round(Places)

	return LineAmounts{
		Gross:    gross,
		Discount: discount,
		Net:      net,
		Tax:      tax,
		Total:    net.Add(tax),
	}, nil
}

func checkPercent(name string, pct decimal.Decimal) error {
	if pct.IsNegative() || pct.GreaterThan(hundred) {
		return fmt.Errorf("%w: %s %s%% outside 0..100", ErrInvalidLine, name, pct)
	}
	return nil
}

// Price fills the computed fields of each item and returns the document totals.
// extraDiscount is a document-level amount taken off the net before tax is summed;
// it is spread over lines proportionally so the tax follows it.
func Price(items []model.LineItem, extraDiscount, shipping decimal.Decimal) ([]model.LineItem, model.Totals, error) {
	if len(items) == 0 {
		return nil, model.Totals{}, fmt.Errorf("%w: document has no lines", ErrInvalidLine)
	}
	if extraDiscount.IsNegative() {
		return nil, model.Totals{}, fmt.Errorf("%w: discount %s is negative", ErrInvalidLine, extraDiscount)
	}
	if shipping.IsNegative() {
		return nil, model.Totals{}, fmt.Errorf("%w: shipping %s is negative", ErrInvalidLine, shipping)
	}

	priced := make([]model.LineItem, len(items))
	amounts := make([]LineAmounts, len(items))
	netSum := decimal.Zero
	for i, it := range items {
		la, err := CalcLine(it.Quantity, it.UnitPrice, it.DiscountPercent, it.TaxPercent)
		if err != nil {
			return nil, model.Totals{}, fmt.Errorf("line %d: %w", i+1, err)
		}
		amounts[i] = la
		netSum = netSum.Add(la.Net)
	}
	extra := extraDiscount.Round(Places)
	if extra.GreaterThan(netSum) {
		return nil, model.Totals{}, fmt.Errorf("%w: discount %s exceeds net %s", ErrInvalidLine, extraDiscount, netSum)
	}

	shares := spread(extra, amounts, netSum)
	totals := model.Totals{Shipping: shipping.Round(Places)}
	for i, it := range items {
		la := amounts[i]
		if shares[i].IsPositive() {
			la.Discount = la.Discount.Add(shares[i])
			la.Net = la.Net.Sub(shares[i])
			la.Tax = la.Net.Mul(it.TaxPercent).Div(hundred).Round(Places)
			la.Total = la.Net.Add(la.Tax)
		}

		it.Net = la.Net
		it.Tax = la.Tax
		it.Total = la.Total
		priced[i] = it

		totals.Subtotal = totals.Subtotal.Add(la.Gross)
		totals.DiscountTotal = totals.DiscountTotal.Add(la.Discount)
		totals.NetTotal = totals.NetTotal.Add(la.Net)
		totals.TaxTotal = totals.TaxTotal.Add(la.Tax)
	}
	totals.Total = totals.NetTotal.Add(totals.TaxTotal).Add(totals.Shipping)

	return priced, totals, nil
}

// TaxByRate groups the tax of priced items by tax percent, keyed by its string form.
func TaxByRate(items []model.LineItem) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, it := range items {
		key := it.TaxPercent.String()
		out[key] = out[key].Add(it.Tax)
	}
	return out
}

// CalcTotals returns only the document totals of items.
func CalcTotals(items []model.LineItem, extraDiscount, shipping decimal.Decimal) (model.Totals, error) {
	_, totals, err := Price(items, extraDiscount, shipping)
	return totals, err
}

// spread splits extra over the lines in proportion to their net. Each share is
// capped at its line's net and the rounding difference is settled from the last
// line backwards, so shares sum to extra and no line goes negative.
func spread(extra decimal.Decimal, amounts []LineAmounts, netSum decimal.Decimal) []decimal.Decimal {
	shares := make([]decimal.Decimal, len(amounts))
	if !extra.IsPositive() || netSum.IsZero() {
		return shares
	}
	sum := decimal.Zero
	for i, la := range amounts {
		share := extra.Mul(la.Net).Div(netSum).Round(Places)
		if share.GreaterThan(la.Net) {
			share = la.Net
		}
		shares[i] = share
		sum = sum.Add(share)
	}
	diff := extra.Sub(sum)
	for i := len(amounts) - 1; i >= 0 && !diff.IsZero(); i-- {
		var step decimal.Decimal
		if diff.IsPositive() {
			step = decimal.Min(diff, amounts[i].Net.Sub(shares[i]))
		} else {
			step = decimal.Min(diff.Neg(), shares[i]).Neg()
		}
		shares[i] = shares[i].Add(step)
		diff = diff.Sub(step)
	}
	return shares
}
