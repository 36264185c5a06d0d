package parties

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daftar-erp/daftar/internal/model"
	"github.com/daftar-erp/daftar/internal/query"
	"github.com/daftar-erp/daftar/internal/store"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newService() *Service {
	return NewService(store.New(store.NewMemory()))
}

func TestCustomerLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	c, err := svc.CreateCustomer(ctx, model.Customer{Name: "  مؤسسة النور ", Phone: "0501234567", Balance: dec("999")})
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "مؤسسة النور", c.Name)
	assert.True(t, c.Balance.IsZero(), "new customers start at zero")
	assert.Equal(t, model.PartyActive, c.Status)

	c.Email = "info@alnoor.sa"
	c.Balance = dec("5")
	updated, err := svc.UpdateCustomer(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, "info@alnoor.sa", updated.Email)
	assert.True(t, updated.Balance.IsZero(), "update must not touch the balance")
	assert.Equal(t, c.CreatedAt, updated.CreatedAt)

	_, err = svc.AdjustCustomerBalance(ctx, c.ID, dec("230.00"))
	require.NoError(t, err)
	err = svc.DeleteCustomer(ctx, c.ID)
	assert.ErrorIs(t, err, ErrHasBalance)

	got, err := svc.AdjustCustomerBalance(ctx, c.ID, dec("-230.00"))
	require.NoError(t, err)
	assert.True(t, got.Balance.IsZero())
	require.NoError(t, svc.DeleteCustomer(ctx, c.ID))

	_, err = svc.GetCustomer(ctx, c.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateCustomer_Invalid(t *testing.T) {
	svc := newService()
	_, err := svc.CreateCustomer(context.Background(), model.Customer{Name: "   "})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = svc.CreateCustomer(context.Background(), model.Customer{Name: "x", CreditLimit: dec("-1")})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestUpdateCustomer_NotFound(t *testing.T) {
	svc := newService()
	_, err := svc.UpdateCustomer(context.Background(), model.Customer{ID: "nope", Name: "x"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListCustomers_ActiveWithBalance(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	seed := []struct {
		name    string
		status  model.PartyStatus
		balance string
	}{
		{"شركة الأفق", model.PartyActive, "1200.00"},
		{"مؤسسة النور", model.PartyActive, "0"},
		{"متجر البركة", model.PartyInactive, "300.00"},
		{"أسواق الخير", model.PartyActive, "45.50"},
	}
	for _, s := range seed {
		c, err := svc.CreateCustomer(ctx, model.Customer{Name: s.name, Status: s.status})
		require.NoError(t, err)
		_, err = svc.AdjustCustomerBalance(ctx, c.ID, dec(s.balance))
		require.NoError(t, err)
	}

	got, err := svc.ListCustomers(ctx, query.CustomerFilter{Status: model.PartyActive, WithBalance: true})
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, c := range got {
		assert.True(t, c.Balance.IsPositive())
		assert.Equal(t, model.PartyActive, c.Status)
	}

	got, err = svc.ListCustomers(ctx, query.CustomerFilter{Search: "الافق"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "شركة الأفق", got[0].Name)

	total, err := svc.TotalReceivables(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1545.50", total.StringFixed(2))
}

func TestVendorLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	v, err := svc.CreateVendor(ctx, model.Vendor{Name: "شركة التوريدات", PaymentTerms: 30})
	require.NoError(t, err)

	_, err = svc.CreateVendor(ctx, model.Vendor{Name: "x", PaymentTerms: -1})
	assert.ErrorIs(t, err, ErrInvalid)

	v.Phone = "0112223333"
	v, err = svc.UpdateVendor(ctx, v)
	require.NoError(t, err)
	assert.Equal(t, "0112223333", v.Phone)

	_, err = svc.AdjustVendorBalance(ctx, v.ID, dec("575.00"))
	require.NoError(t, err)
	assert.ErrorIs(t, svc.DeleteVendor(ctx, v.ID), ErrHasBalance)

	list, err := svc.ListVendors(ctx, query.VendorFilter{WithBalance: true})
	require.NoError(t, err)
	require.Len(t, list, 1)

	total, err := svc.TotalPayables(ctx)
	require.NoError(t, err)
	assert.Equal(t, "575.00", total.StringFixed(2))

	_, err = svc.AdjustVendorBalance(ctx, v.ID, dec("-575.00"))
	require.NoError(t, err)
	require.NoError(t, svc.DeleteVendor(ctx, v.ID))
}
