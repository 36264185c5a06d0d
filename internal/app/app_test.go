package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daftar-erp/daftar/internal/accounts"
	"github.com/daftar-erp/daftar/internal/config"
	"github.com/daftar-erp/daftar/internal/model"
)

func writeProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default("مؤسسة الأفق", "trading")
	cfg.Store.Driver = "memory"
	require.NoError(t, config.Save(filepath.Join(root, config.FileName), cfg))
	require.NoError(t, accounts.NewService(accounts.DefaultChart("trading"), accounts.DefaultCostCenters()).Save(root))
	return root
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	root := writeProject(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, ".env"), []byte("DAFTAR_TEST_UNUSED=1\n"), 0o600))
	logger, _ := test.NewNullLogger()

	a, err := Open(ctx, root, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.Equal(t, "مؤسسة الأفق", a.Config.Business.Name)
	assert.Equal(t, "1", os.Getenv("DAFTAR_TEST_UNUSED"))
	assert.True(t, a.Chart.Exists(accounts.Bank))

	c, err := a.Parties.CreateCustomer(ctx, model.Customer{Name: "شركة النور"})
	require.NoError(t, err)

	_, entryID, err := a.Inventory.Adjust(ctx, mustProduct(t, a).ID, decimal.NewFromInt(-1), "تالف", time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	legs, err := a.Journal.Entry(entryID)
	require.NoError(t, err)
	assert.Len(t, legs, 2)

	got, err := a.Parties.GetCustomer(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.Name, got.Name)
	assert.NotNil(t, a.Scheduler())
}

func mustProduct(t *testing.T, a *App) model.Product {
	t.Helper()
	p, err := a.Inventory.Create(context.Background(), model.Product{
		SKU:      "PAPER-A4",
		Name:     "ورق A4",
		Price:    decimal.NewFromInt(25),
		Cost:     decimal.NewFromInt(15),
		Quantity: decimal.NewFromInt(10),
		Active:   true,
	})
	require.NoError(t, err)
	return p
}

func TestOpen_MissingConfig(t *testing.T) {
	logger, _ := test.NewNullLogger()
	_, err := Open(context.Background(), t.TempDir(), logger)
	assert.ErrorContains(t, err, "reading config")
}
