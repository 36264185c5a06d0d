package commands_test

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	accountsCSV "github.com/daftar-erp/daftar/internal/accounts"
)

func TestInit_CreatesStructure(t *testing.T) {
	dir := initProject(t)

	expectedDirs := []string{
		"accounts",
		"logs",
		"data",
		"backups",
		"import",
		filepath.Join("import", "processed"),
	}
	for _, d := range expectedDirs {
		info, err := os.Stat(filepath.Join(dir, d))
		require.NoError(t, err, "directory %s should exist", d)
		assert.True(t, info.IsDir(), "%s should be a directory", d)
	}
}

func TestInit_Config(t *testing.T) {
	dir := t.TempDir()
	_, err := runDaftar(t, "init", dir, "--name", "My Company")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "daftar.yaml"))
	require.NoError(t, err)
	contents := string(data)

	assert.Contains(t, contents, "name: My Company")
	assert.Contains(t, contents, "entity_type: trading")
	assert.Contains(t, contents, "currency: SAR")
	// Only the names of the environment variables holding secrets are written.
	assert.Contains(t, contents, "jwt_secret_env: DAFTAR_JWT_SECRET")
	assert.Contains(t, contents, "api_key_env: DAFTAR_EMAIL_API_KEY")
	assert.NotRegexp(t, `(?m)^\s*(jwt_secret|api_key):`, contents)
}

func TestInit_Accounts(t *testing.T) {
	cases := []struct {
		entityType string
		want       int
	}{
		{"trading", 21},
		{"services", 18},
	}
	for _, tc := range cases {
		t.Run(tc.entityType, func(t *testing.T) {
			dir := initProject(t, "--entity-type", tc.entityType)

			f, err := os.Open(filepath.Join(dir, "accounts", "chart-of-accounts.csv"))
			require.NoError(t, err)
			defer f.Close()

			accts, err := accountsCSV.ReadAccounts(f)
			require.NoError(t, err)
			assert.Len(t, accts, tc.want)
		})
	}
}

func TestInit_UnknownEntityType(t *testing.T) {
	out, err := runDaftar(t, "init", t.TempDir(), "--name", "x", "--entity-type", "llc")
	require.Error(t, err)
	assert.Contains(t, out, "unknown entity type")
}

func TestInit_GitRepo(t *testing.T) {
	dir := initProject(t)

	_, err := os.Stat(filepath.Join(dir, ".git"))
	require.NoError(t, err, ".git should exist")

	log := exec.Command("git", "log", "--format=%s", "-1")
	log.Dir = dir
	out, err := log.Output()
	require.NoError(t, err)
	assert.Contains(t, string(out), "init:")

	authorLog := exec.Command("git", "log", "--format=%an <%ae>", "-1")
	authorLog.Dir = dir
	out, err = authorLog.Output()
	require.NoError(t, err)
	assert.Contains(t, string(out), "Daftar <daftar@localhost>")
}

func TestInit_SecretsStayOutOfGit(t *testing.T) {
	dir := initProject(t)

	data, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	require.NoError(t, err)
	for _, pattern := range []string{".env", "data/", "backups/"} {
		assert.Contains(t, string(data), pattern)
	}

	ls := exec.Command("git", "ls-files")
	ls.Dir = dir
	out, err := ls.Output()
	require.NoError(t, err)
	assert.NotContains(t, string(out), ".env")
	assert.Contains(t, string(out), "daftar.yaml")
}

func TestInit_RequiresName(t *testing.T) {
	_, err := runDaftar(t, "init", t.TempDir())
	require.Error(t, err, "init without --name should fail")
}

func TestInit_Demo(t *testing.T) {
	dir := initProject(t, "--demo")

	data, err := os.ReadFile(filepath.Join(dir, "data", "store.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "شركة النور للتجارة")
	assert.Contains(t, string(data), "COF-250")
}
