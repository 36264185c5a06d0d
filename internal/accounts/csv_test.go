package accounts

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daftar-erp/daftar/internal/model"
)

func TestRoundTrip(t *testing.T) {
	accounts := []model.Account{
		{ID: 1010, Name: "الصندوق", NameEN: "Cash", Type: model.AccountTypeAsset, Description: "النقدية"},
		{ID: 5030, Name: "الإيجار", NameEN: "Rent", Type: model.AccountTypeExpense, TaxLine: "opex"},
	}

	var buf bytes.Buffer
	err := WriteAccounts(&buf, accounts)
	require.NoError(t, err)

	got, err := ReadAccounts(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, accounts[0], got[0])
	assert.Equal(t, accounts[1], got[1])
}

func TestParentID(t *testing.T) {
	accounts := []model.Account{
		{ID: 1020, Name: "البنك", Type: model.AccountTypeAsset},
		{ID: 1021, Name: "بنك الراجحي", Type: model.AccountTypeAsset, ParentID: 1020},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteAccounts(&buf, accounts))

	got, err := ReadAccounts(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, 0, got[0].ParentID)
	assert.Equal(t, 1020, got[1].ParentID)
}

func TestUnmarshalAccount_UnknownType(t *testing.T) {
	_, err := UnmarshalAccount([]string{"1010", "x", "x", "cash", "", "", ""})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown account_type")
}

func TestUnmarshalAccount_BadFieldCount(t *testing.T) {
	_, err := UnmarshalAccount([]string{"1010"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 7 fields")
}

func TestDefaultChart(t *testing.T) {
	chart := DefaultChart("trading")
	require.NotEmpty(t, chart)

	ids := make(map[int]bool)
	for _, acct := range chart {
		assert.False(t, ids[acct.ID], "duplicate account %d", acct.ID)
		ids[acct.ID] = true
		assert.NotEmpty(t, acct.Name, "account %d missing name", acct.ID)
		assert.NotEmpty(t, acct.NameEN, "account %d missing English name", acct.ID)
		assert.NotEmpty(t, acct.Type, "account %d missing type", acct.ID)
	}
	for _, want := range []int{Cash, Bank, Receivable, Inventory, VATInput, Payable, VATOutput, Sales, COGS, Salaries, Suspense} {
		assert.True(t, ids[want], "expected account %d", want)
	}
}

func TestDefaultChart_Services(t *testing.T) {
	chart := DefaultChart("services")
	for _, acct := range chart {
		assert.NotEqual(t, Inventory, acct.ID)
		assert.NotEqual(t, COGS, acct.ID)
	}
	assert.Len(t, chart, len(DefaultChart("trading"))-3)
}

func TestDefaultChart_UnknownEntityType(t *testing.T) {
	assert.Equal(t, DefaultChart("trading"), DefaultChart("unknown_type"))
}

func TestReadTestdata(t *testing.T) {
	f, err := os.Open("../../testdata/chart-of-accounts.csv")
	require.NoError(t, err)
	defer f.Close()

	accounts, err := ReadAccounts(f)
	require.NoError(t, err)
	require.Len(t, accounts, 11)

	types := make(map[model.AccountType]bool)
	for _, acct := range accounts {
		types[acct.Type] = true
	}
	assert.True(t, types[model.AccountTypeAsset])
	assert.True(t, types[model.AccountTypeLiability])
	assert.True(t, types[model.AccountTypeEquity])
	assert.True(t, types[model.AccountTypeRevenue])
	assert.True(t, types[model.AccountTypeExpense])
}

func TestDefaultChartRoundTrip(t *testing.T) {
	chart := DefaultChart("trading")

	var buf bytes.Buffer
	require.NoError(t, WriteAccounts(&buf, chart))

	got, err := ReadAccounts(&buf)
	require.NoError(t, err)
	assert.Equal(t, chart, got)
}

func TestCostCentersRoundTrip(t *testing.T) {
	centers := []model.CostCenter{
		{Code: "ADMIN", Name: "الإدارة", Active: true},
		{Code: "OLD", Name: "فرع مغلق", Active: false},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCostCenters(&buf, centers))

	got, err := ReadCostCenters(&buf)
	require.NoError(t, err)
	assert.Equal(t, centers, got)
}

func TestReadCostCenters_BadActive(t *testing.T) {
	_, err := ReadCostCenters(bytes.NewBufferString("code,name,active\nX,x,maybe\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing active")
}
