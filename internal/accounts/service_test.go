package accounts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daftar-erp/daftar/internal/model"
)

func newDefaultService() *Service {
	return NewService(DefaultChart("trading"), DefaultCostCenters())
}

func TestNewService(t *testing.T) {
	chart := DefaultChart("trading")
	svc := NewService(chart, nil)
	assert.Len(t, svc.All(), len(chart))
}

func TestGetExists(t *testing.T) {
	svc := newDefaultService()

	acct, ok := svc.Get(Cash)
	assert.True(t, ok)
	assert.Equal(t, "الصندوق", acct.Name)

	_, ok = svc.Get(9999)
	assert.False(t, ok)

	assert.True(t, svc.Exists(Receivable))
	assert.False(t, svc.Exists(9999))
}

func TestByType(t *testing.T) {
	svc := newDefaultService()

	assets := svc.ByType(model.AccountTypeAsset)
	assert.Len(t, assets, 5)
	for _, a := range assets {
		assert.Equal(t, model.AccountTypeAsset, a.Type)
	}

	revenue := svc.ByType(model.AccountTypeRevenue)
	assert.Len(t, revenue, 2)
}

func TestAdd(t *testing.T) {
	svc := newDefaultService()

	err := svc.Add(model.Account{ID: 1021, Name: "بنك الراجحي", Type: model.AccountTypeAsset, ParentID: Bank})
	require.NoError(t, err)
	assert.True(t, svc.Exists(1021))

	err = svc.Add(model.Account{ID: 1021, Name: "مكرر", Type: model.AccountTypeAsset})
	assert.ErrorIs(t, err, ErrDuplicate)

	err = svc.Add(model.Account{ID: 1022, Name: "يتيم", Type: model.AccountTypeAsset, ParentID: 4444})
	assert.ErrorIs(t, err, ErrInvalid)

	err = svc.Add(model.Account{ID: 1023, Type: model.AccountTypeAsset})
	assert.ErrorIs(t, err, ErrInvalid)

	err = svc.Add(model.Account{ID: 1024, Name: "نوع مجهول", Type: "other"})
	assert.ErrorIs(t, err, ErrInvalid)
	assert.False(t, svc.Exists(1024))
}

func TestCostCenters(t *testing.T) {
	svc := newDefaultService()
	assert.True(t, svc.CostCenterExists("ADMIN"))
	assert.False(t, svc.CostCenterExists("NOPE"))

	require.NoError(t, svc.AddCostCenter(model.CostCenter{Code: " jed ", Name: "فرع جدة", Active: true}))
	assert.True(t, svc.CostCenterExists("JED"))

	err := svc.AddCostCenter(model.CostCenter{Code: "jed", Name: "x"})
	assert.ErrorIs(t, err, ErrDuplicate)

	require.NoError(t, svc.AddCostCenter(model.CostCenter{Code: "OLD", Name: "مغلق", Active: false}))
	assert.False(t, svc.CostCenterExists("OLD"), "inactive cost centers do not accept postings")
}

func TestLoad_WithoutCostCenters(t *testing.T) {
	dir := t.TempDir()
	acctDir := filepath.Join(dir, "accounts")
	require.NoError(t, os.MkdirAll(acctDir, 0o755))

	src, err := os.ReadFile("../../testdata/chart-of-accounts.csv")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(acctDir, "chart-of-accounts.csv"), src, 0o644))

	svc, err := Load(dir)
	require.NoError(t, err)
	assert.Len(t, svc.All(), 11)
	assert.True(t, svc.Exists(Cash))
	assert.Empty(t, svc.CostCenters())
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(t.TempDir())
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	svc := newDefaultService()

	dir := t.TempDir()
	require.NoError(t, svc.Save(dir))

	_, err := os.Stat(filepath.Join(dir, "accounts", "chart-of-accounts.csv"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "accounts", "cost-centers.csv"))
	require.NoError(t, err)

	svc2, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, svc.All(), svc2.All())
	assert.Equal(t, svc.CostCenters(), svc2.CostCenters())
}
