package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cfg := Default("مؤسسة النور التجارية", "trading")
	cfg.Business.TaxNumber = "300000000000003"
	cfg.BankAccounts = []BankAccount{
		{Name: "الراجحي الجاري", Bank: "alrajhi", LastFour: "1234", AccountID: 1020},
	}

	path := filepath.Join(t.TempDir(), FileName)
	err := Save(path, cfg)
	require.NoError(t, err)

	got, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, cfg, got)
	require.Len(t, got.BankAccounts, 1)
	assert.Equal(t, "alrajhi", got.BankAccounts[0].Bank)
	assert.Equal(t, 1020, got.BankAccounts[0].AccountID)
}

func TestDefaults(t *testing.T) {
	cfg := Default("My Company", "services")

	assert.Equal(t, "My Company", cfg.Business.Name)
	assert.Equal(t, "services", cfg.Business.EntityType)
	assert.Equal(t, "SAR", cfg.Business.Currency)
	assert.Equal(t, "ar", cfg.Business.Locale)
	assert.Equal(t, "01-01", cfg.Fiscal.YearStart)
	assert.InDelta(t, 15, cfg.Tax.VATRate, 0.001)
	assert.InDelta(t, 9.75, cfg.HR.SocialInsuranceRate, 0.001)
	assert.Equal(t, "file", cfg.Store.Driver)
	assert.Equal(t, 1100, cfg.Ledger.Receivable)
	assert.Equal(t, 2200, cfg.Ledger.VATOutput)
	assert.True(t, cfg.Backup.Enabled)
	assert.Equal(t, 14, cfg.Backup.Retain)
	assert.True(t, cfg.Git.AutoCommit)
	assert.Empty(t, cfg.BankAccounts)
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestYAMLFormat(t *testing.T) {
	cfg := Default("Test Biz", "trading")
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, Save(path, cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	contents := string(data)

	assert.Contains(t, contents, "name: Test Biz")
	assert.Contains(t, contents, "entity_type: trading")
	assert.Contains(t, contents, "year_start: 01-01")
	assert.Contains(t, contents, "vat_rate: 15")
	assert.Contains(t, contents, "driver: file")
	assert.Contains(t, contents, "auto_commit: true")
	assert.NotContains(t, contents, "bank_accounts")
}

func TestLoadEnvAndSecret(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DAFTAR_TEST_SECRET=s3cret\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("DAFTAR_TEST_SECRET") })

	require.NoError(t, LoadEnv(dir))

	cfg := Default("x", "trading")
	assert.Equal(t, "s3cret", cfg.Secret("DAFTAR_TEST_SECRET"))
	assert.Empty(t, cfg.Secret(""))
}

func TestLoadEnv_ExistingWins(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DAFTAR_TEST_KEEP=file\n"), 0o600))
	t.Setenv("DAFTAR_TEST_KEEP", "process")

	require.NoError(t, LoadEnv(dir))
	assert.Equal(t, "process", os.Getenv("DAFTAR_TEST_KEEP"))
}

func TestLoadEnv_Missing(t *testing.T) {
	assert.NoError(t, LoadEnv(t.TempDir()))
}

func TestFiscalYearStart(t *testing.T) {
	tests := []struct {
		yearStart string
		asOf      time.Time
		want      time.Time
	}{
		{"01-01", time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"07-01", time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)},
		{"07-01", time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)},
		{"bogus", time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		cfg := &Config{Fiscal: FiscalConfig{YearStart: tt.yearStart}}
		assert.Equal(t, tt.want, cfg.FiscalYearStart(tt.asOf), "year_start %s", tt.yearStart)
	}
}
