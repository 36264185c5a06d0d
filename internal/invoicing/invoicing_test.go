package invoicing

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daftar-erp/daftar/internal/accounts"
	"github.com/daftar-erp/daftar/internal/config"
	"github.com/daftar-erp/daftar/internal/inventory"
	"github.com/daftar-erp/daftar/internal/journal"
	"github.com/daftar-erp/daftar/internal/model"
	"github.com/daftar-erp/daftar/internal/parties"
	"github.com/daftar-erp/daftar/internal/query"
	"github.com/daftar-erp/daftar/internal/store"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	svc      *Service
	journal  *journal.Service
	stock    *inventory.Service
	parties  *parties.Service
	customer model.Customer
	goods    model.Product
	service  model.Product
}

func setup(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	chart := accounts.NewService(accounts.DefaultChart("trading"), accounts.DefaultCostCenters())
	j := journal.NewService(t.TempDir(), chart, chart)
	st := store.New(store.NewMemory())
	ledger := config.DefaultLedger()
	stock := inventory.NewService(st, j, ledger)
	p := parties.NewService(st)

	cust, err := p.CreateCustomer(ctx, model.Customer{Name: "مؤسسة الأفق"})
	require.NoError(t, err)
	goods, err := stock.Create(ctx, model.Product{SKU: "COF-1", Name: "قهوة عربية", Price: dec("100"), Cost: dec("60"), Quantity: dec("10")})
	require.NoError(t, err)
	srv, err := stock.Create(ctx, model.Product{SKU: "SRV-1", Name: "تركيب", Price: dec("200"), Service: true})
	require.NoError(t, err)

	svc := NewService(st, j, stock, p, ledger, "SAR")
	svc.now = func() time.Time { return date(2025, 3, 1) }
	return fixture{svc: svc, journal: j, stock: stock, parties: p, customer: cust, goods: goods, service: srv}
}

func (f fixture) draft(t *testing.T) model.Invoice {
	t.Helper()
	inv, err := f.svc.Create(context.Background(), model.Invoice{
		CustomerID: f.customer.ID,
		IssueDate:  date(2025, 3, 1),
		Items: []model.LineItem{
			{ProductID: f.goods.ID, Quantity: dec("2"), TaxPercent: dec("15")},
			{ProductID: f.service.ID, Quantity: dec("1"), TaxPercent: dec("15")},
		},
	})
	require.NoError(t, err)
	return inv
}

func sumAccount(legs []model.Leg, acct int) (debit, credit decimal.Decimal) {
	for _, l := range legs {
		if l.AccountID == acct {
			debit = debit.Add(l.Debit)
			credit = credit.Add(l.Credit)
		}
	}
	return debit, credit
}

func TestCreate(t *testing.T) {
	f := setup(t)
	inv := f.draft(t)

	assert.Equal(t, "INV-2025-0001", inv.Number)
	assert.Equal(t, model.DocDraft, inv.Status)
	assert.Equal(t, "SAR", inv.Currency)
	assert.Equal(t, date(2025, 3, 31), inv.DueDate)
	assert.Equal(t, "قهوة عربية", inv.Items[0].Description)
	assert.True(t, inv.Items[0].UnitPrice.Equal(dec("100")))
	assert.True(t, inv.NetTotal.Equal(dec("400")))
	assert.True(t, inv.TaxTotal.Equal(dec("60")))
	assert.True(t, inv.Total.Equal(dec("460")))

	second := f.draft(t)
	assert.Equal(t, "INV-2025-0002", second.Number)
}

func TestCreate_Invalid(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, model.Invoice{CustomerID: "missing", Items: []model.LineItem{{Description: "x", Quantity: dec("1"), UnitPrice: dec("1")}}})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = f.svc.Create(ctx, model.Invoice{CustomerID: f.customer.ID})
	assert.ErrorIs(t, err, ErrInvalid, "no lines")

	_, err = f.svc.Create(ctx, model.Invoice{CustomerID: f.customer.ID, Items: []model.LineItem{{Quantity: dec("1"), UnitPrice: dec("1")}}})
	assert.ErrorIs(t, err, ErrInvalid, "line without product or description")

	_, err = f.svc.Create(ctx, model.Invoice{
		CustomerID: f.customer.ID,
		IssueDate:  date(2025, 3, 10),
		DueDate:    date(2025, 3, 1),
		Items:      []model.LineItem{{Description: "x", Quantity: dec("1"), UnitPrice: dec("1")}},
	})
	assert.ErrorIs(t, err, ErrInvalid, "due before issue")
}

func TestIssue_PostsBalancedEntry(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	inv := f.draft(t)

	inv, err := f.svc.Issue(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DocIssued, inv.Status)
	require.NotEmpty(t, inv.EntryID)

	legs, err := f.journal.Entry(inv.EntryID)
	require.NoError(t, err)
	ledger := config.DefaultLedger()

	dr, _ := sumAccount(legs, ledger.Receivable)
	assert.True(t, dr.Equal(dec("460")))
	_, cr := sumAccount(legs, ledger.Sales)
	assert.True(t, cr.Equal(dec("200")))
	_, cr = sumAccount(legs, ledger.ServiceRevenue)
	assert.True(t, cr.Equal(dec("200")))
	_, cr = sumAccount(legs, ledger.VATOutput)
	assert.True(t, cr.Equal(dec("60")))
	dr, _ = sumAccount(legs, ledger.COGS)
	assert.True(t, dr.Equal(dec("120")))
	_, cr = sumAccount(legs, ledger.Inventory)
	assert.True(t, cr.Equal(dec("120")))
	for _, l := range legs {
		assert.Equal(t, model.SourceInvoice, l.Source)
		assert.Equal(t, "INV-2025-0001", l.Reference)
	}

	p, err := f.stock.Get(ctx, f.goods.ID)
	require.NoError(t, err)
	assert.True(t, p.Quantity.Equal(dec("8")))

	c, err := f.parties.GetCustomer(ctx, f.customer.ID)
	require.NoError(t, err)
	assert.True(t, c.Balance.Equal(dec("460")))

	_, err = f.svc.Issue(ctx, inv.ID)
	assert.ErrorIs(t, err, ErrNotDraft)
}

func TestIssue_DocumentDiscount(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	inv, err := f.svc.Create(ctx, model.Invoice{
		CustomerID: f.customer.ID,
		IssueDate:  date(2025, 3, 1),
		Items: []model.LineItem{
			{Description: "a", Quantity: dec("1"), UnitPrice: dec("1.00")},
			{Description: "b", Quantity: dec("1"), UnitPrice: dec("1.00")},
			{Description: "c", Quantity: dec("1"), UnitPrice: dec("1.00")},
			{Description: "d", Quantity: dec("1"), UnitPrice: dec("0.01")},
		},
		Discount: dec("2.00"),
	})
	require.NoError(t, err)
	assert.True(t, inv.Total.Equal(dec("1.01")), "got %s", inv.Total)

	inv, err = f.svc.Issue(ctx, inv.ID)
	require.NoError(t, err)

	legs, err := f.journal.Entry(inv.EntryID)
	require.NoError(t, err)
	ledger := config.DefaultLedger()
	dr, _ := sumAccount(legs, ledger.Receivable)
	assert.True(t, dr.Equal(dec("1.01")))
	_, cr := sumAccount(legs, ledger.Sales)
	assert.True(t, cr.Equal(dec("1.01")))
}

func TestIssue_InsufficientStock(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	inv, err := f.svc.Create(ctx, model.Invoice{
		CustomerID: f.customer.ID,
		Items:      []model.LineItem{{ProductID: f.goods.ID, Quantity: dec("11")}},
	})
	require.NoError(t, err)

	_, err = f.svc.Issue(ctx, inv.ID)
	assert.ErrorIs(t, err, inventory.ErrInsufficientStock)

	legs, err := f.journal.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, legs, "nothing posted")
	got, err := f.svc.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DocDraft, got.Status)
}

func TestUpdateAndDelete_DraftOnly(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	inv := f.draft(t)

	inv.Items = inv.Items[:1]
	inv.Notes = "تم التعديل"
	updated, err := f.svc.Update(ctx, inv)
	require.NoError(t, err)
	assert.True(t, updated.Total.Equal(dec("230")))
	assert.Equal(t, "INV-2025-0001", updated.Number)

	_, err = f.svc.Issue(ctx, inv.ID)
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, updated)
	assert.ErrorIs(t, err, ErrNotDraft)
	assert.ErrorIs(t, f.svc.Delete(ctx, inv.ID), ErrNotDraft)

	other := f.draft(t)
	require.NoError(t, f.svc.Delete(ctx, other.ID))
	_, err = f.svc.Get(ctx, other.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRecordPayment(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	inv := f.draft(t)
	_, err := f.svc.Issue(ctx, inv.ID)
	require.NoError(t, err)

	inv, pay, err := f.svc.RecordPayment(ctx, inv.ID, PaymentInput{Amount: dec("160"), Date: date(2025, 3, 5)})
	require.NoError(t, err)
	assert.Equal(t, model.DocPartiallyPaid, inv.Status)
	assert.True(t, inv.Outstanding().Equal(dec("300")))
	assert.Equal(t, config.DefaultLedger().Bank, pay.AccountID)
	assert.Equal(t, model.PaymentReceipt, pay.Kind)

	legs, err := f.journal.Entry(pay.EntryID)
	require.NoError(t, err)
	require.Len(t, legs, 2)
	assert.True(t, legs[0].Debit.Equal(dec("160")))
	assert.Equal(t, model.SourcePayment, legs[0].Source)

	_, _, err = f.svc.RecordPayment(ctx, inv.ID, PaymentInput{Amount: dec("300.01")})
	assert.ErrorIs(t, err, ErrOverpayment)
	_, _, err = f.svc.RecordPayment(ctx, inv.ID, PaymentInput{Amount: dec("0")})
	assert.ErrorIs(t, err, ErrInvalid)
	_, _, err = f.svc.RecordPayment(ctx, inv.ID, PaymentInput{Amount: dec("1.005")})
	assert.ErrorIs(t, err, ErrInvalid)

	inv, _, err = f.svc.RecordPayment(ctx, inv.ID, PaymentInput{Amount: dec("300"), AccountID: config.DefaultLedger().Cash, Method: "cash"})
	require.NoError(t, err)
	assert.Equal(t, model.DocPaid, inv.Status)

	c, err := f.parties.GetCustomer(ctx, f.customer.ID)
	require.NoError(t, err)
	assert.True(t, c.Balance.IsZero())

	_, _, err = f.svc.RecordPayment(ctx, inv.ID, PaymentInput{Amount: dec("1")})
	assert.ErrorIs(t, err, ErrNotOpen)

	payments, err := f.svc.Payments(ctx, inv.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 2)
}

func TestRecordPayment_Draft(t *testing.T) {
	f := setup(t)
	inv := f.draft(t)
	_, _, err := f.svc.RecordPayment(context.Background(), inv.ID, PaymentInput{Amount: dec("10")})
	assert.ErrorIs(t, err, ErrNotOpen)
}

func TestCancel(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	draft := f.draft(t)
	cancelled, err := f.svc.Cancel(ctx, draft.ID, time.Time{}, "")
	require.NoError(t, err)
	assert.Equal(t, model.DocCancelled, cancelled.Status)

	inv := f.draft(t)
	inv, err = f.svc.Issue(ctx, inv.ID)
	require.NoError(t, err)
	inv, err = f.svc.Cancel(ctx, inv.ID, date(2025, 3, 2), "طلب العميل")
	require.NoError(t, err)
	assert.Equal(t, model.DocCancelled, inv.Status)
	assert.Contains(t, inv.Notes, "طلب العميل")

	p, err := f.stock.Get(ctx, f.goods.ID)
	require.NoError(t, err)
	assert.True(t, p.Quantity.Equal(dec("10")), "stock returned")
	c, err := f.parties.GetCustomer(ctx, f.customer.ID)
	require.NoError(t, err)
	assert.True(t, c.Balance.IsZero())

	legs, err := f.journal.Entry(inv.EntryID)
	require.NoError(t, err)
	for _, l := range legs {
		assert.Equal(t, model.StatusReversed, l.Status)
	}

	_, err = f.svc.Cancel(ctx, inv.ID, time.Time{}, "")
	assert.ErrorIs(t, err, ErrNotOpen)
}

func TestCancel_WithPayments(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	inv := f.draft(t)
	_, err := f.svc.Issue(ctx, inv.ID)
	require.NoError(t, err)
	_, _, err = f.svc.RecordPayment(ctx, inv.ID, PaymentInput{Amount: dec("10")})
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, inv.ID, time.Time{}, "")
	assert.ErrorIs(t, err, ErrHasPayments)
}

func TestMarkOverdueAndDueWithin(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	inv := f.draft(t) // due 2025-03-31
	_, err := f.svc.Issue(ctx, inv.ID)
	require.NoError(t, err)
	f.draft(t)

	due, err := f.svc.DueWithin(ctx, date(2025, 3, 25), 7)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, inv.ID, due[0].ID)

	changed, err := f.svc.MarkOverdue(ctx, date(2025, 3, 31))
	require.NoError(t, err)
	assert.Empty(t, changed, "due today is not overdue")

	changed, err = f.svc.MarkOverdue(ctx, date(2025, 4, 1))
	require.NoError(t, err)
	require.Len(t, changed, 1)
	assert.Equal(t, model.DocOverdue, changed[0].Status)

	changed, err = f.svc.MarkOverdue(ctx, date(2025, 4, 2))
	require.NoError(t, err)
	assert.Empty(t, changed)

	got, _, err := f.svc.RecordPayment(ctx, inv.ID, PaymentInput{Amount: dec("460")})
	require.NoError(t, err)
	assert.Equal(t, model.DocPaid, got.Status)
}

func TestListAndBulkDelete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.draft(t)
	b := f.draft(t)
	c := f.draft(t)
	_, err := f.svc.Issue(ctx, c.ID)
	require.NoError(t, err)

	drafts, err := f.svc.List(ctx, query.InvoiceFilter{Status: model.DocDraft})
	require.NoError(t, err)
	assert.Len(t, drafts, 2)

	all, err := f.svc.List(ctx, query.InvoiceFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "INV-2025-0003", all[0].Number)

	sel := query.NewSelection(a.ID, b.ID, c.ID)
	deleted, skipped, err := f.svc.BulkDelete(ctx, sel)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, deleted)
	assert.Equal(t, []string{c.ID}, skipped)
	assert.Equal(t, 1, sel.Len())
	assert.True(t, sel.Has(c.ID))
}

func TestRenderPDF(t *testing.T) {
	f := setup(t)
	inv := f.draft(t)
	inv.Notes = "Thank you"

	var buf bytes.Buffer
	biz := config.BusinessConfig{Name: "Daftar Trading", TaxNumber: "300000000000003", Currency: "SAR"}
	require.NoError(t, RenderPDF(&buf, inv, f.customer, biz))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}
