package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/daftar-erp/daftar/internal/accounts"
)

// FileName is the config file at the repo root.
const FileName = "daftar.yaml"

// Config represents the top-level daftar.yaml configuration.
type Config struct {
	Business     BusinessConfig `yaml:"business"`
	Fiscal       FiscalConfig   `yaml:"fiscal"`
	Tax          TaxConfig      `yaml:"tax"`
	Ledger       LedgerConfig   `yaml:"ledger"`
	BankAccounts []BankAccount  `yaml:"bank_accounts,omitempty"`
	Server       ServerConfig   `yaml:"server"`
	Store        StoreConfig    `yaml:"store"`
	Auth         AuthConfig     `yaml:"auth"`
	Email        EmailConfig    `yaml:"email"`
	Analysis     AnalysisConfig `yaml:"analysis"`
	Backup       BackupConfig   `yaml:"backup"`
	HR           HRConfig       `yaml:"hr"`
	Log          LogConfig      `yaml:"log"`
	Git          GitConfig      `yaml:"git"`
}

// BusinessConfig identifies the business entity.
type BusinessConfig struct {
	Name       string `yaml:"name"`
	EntityType string `yaml:"entity_type"` // trading or services
	TaxNumber  string `yaml:"tax_number,omitempty"`
	Address    string `yaml:"address,omitempty"`
	Currency   string `yaml:"currency"`
	Locale     string `yaml:"locale"`             // ar or en
	PDFFont    string `yaml:"pdf_font,omitempty"` // UTF-8 TTF used for Arabic invoice PDFs
}

// FiscalConfig defines the fiscal year boundaries.
type FiscalConfig struct {
	YearStart string `yaml:"year_start"` // "MM-DD" format, e.g. "01-01"
}

// TaxConfig holds the default sales tax.
type TaxConfig struct {
	VATRate float64 `yaml:"vat_rate"` // percent
}

// LedgerConfig maps business events to chart-of-accounts entries.
type LedgerConfig struct {
	Cash                   int `yaml:"cash"`
	Bank                   int `yaml:"bank"`
	Receivable             int `yaml:"receivable"`
	Payable                int `yaml:"payable"`
	Inventory              int `yaml:"inventory"`
	VATInput               int `yaml:"vat_input"`
	VATOutput              int `yaml:"vat_output"`
	Sales                  int `yaml:"sales"`
	ServiceRevenue         int `yaml:"service_revenue"`
	COGS                   int `yaml:"cogs"`
	Salaries               int `yaml:"salaries"`
	SalariesPayable        int `yaml:"salaries_payable"`
	SocialInsurancePayable int `yaml:"social_insurance_payable"`
	Suspense               int `yaml:"suspense"`
	InventoryAdjustment    int `yaml:"inventory_adjustment"`
	RetainedEarnings       int `yaml:"retained_earnings"`
}

// BankAccount maps a bank statement source to a chart-of-accounts entry.
type BankAccount struct {
	Name      string `yaml:"name"`
	Bank      string `yaml:"bank"` // importer format, e.g. alrajhi
	LastFour  string `yaml:"last_four"`
	AccountID int    `yaml:"account_id"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	RateLimit      float64  `yaml:"rate_limit"` // requests per second per client on /functions
	RateBurst      int      `yaml:"rate_burst"`
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
}

// StoreConfig selects the document store backend.
type StoreConfig struct {
	Driver string `yaml:"driver"` // file, memory or postgres
	DSNEnv string `yaml:"dsn_env,omitempty"`
}

// AuthConfig controls bearer-token verification.
type AuthConfig struct {
	JWTSecretEnv string `yaml:"jwt_secret_env"`
}

// EmailConfig configures the transactional email provider.
type EmailConfig struct {
	Endpoint          string  `yaml:"endpoint"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	From              string  `yaml:"from"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// AnalysisConfig configures the invoice analysis model endpoint.
type AnalysisConfig struct {
	Endpoint          string `yaml:"endpoint"`
	Model             string `yaml:"model"`
	APIKeyEnv         string `yaml:"api_key_env"`
	MaxChars          int    `yaml:"max_chars"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
}

// BackupConfig controls scheduled store snapshots.
type BackupConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"` // cron expression
	Dir      string `yaml:"dir"`
	Retain   int    `yaml:"retain"`
}

// HRConfig holds payroll parameters.
type HRConfig struct {
	SocialInsuranceRate float64 `yaml:"social_insurance_rate"` // percent of base salary
}

// LogConfig controls the server logger.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// GitConfig controls git integration.
type GitConfig struct {
	AutoCommit  bool   `yaml:"auto_commit"`
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// Load reads a daftar.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// LoadEnv reads <dir>/.env into the process environment. Variables already
// set win over the file. A missing file is not an error.
func LoadEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Secret returns the value of the environment variable named envName.
func (c *Config) Secret(envName string) string {
	if envName == "" {
		return ""
	}
	return os.Getenv(envName)
}

// FiscalYearStart returns the first day of the fiscal year containing t.
func (c *Config) FiscalYearStart(t time.Time) time.Time {
	start, err := time.Parse("01-02", c.Fiscal.YearStart)
	if err != nil {
		start = time.Date(0, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	fy := time.Date(t.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	if fy.After(t) {
		fy = fy.AddDate(-1, 0, 0)
	}
	return fy
}

// Default returns a Config with sensible defaults for a new project.
func Default(businessName, entityType string) *Config {
	return &Config{
		Business: BusinessConfig{
			Name:       businessName,
			EntityType: entityType,
			Currency:   "SAR",
			Locale:     "ar",
		},
		Fiscal: FiscalConfig{
			YearStart: "01-01",
		},
		Tax: TaxConfig{
			VATRate: 15,
		},
		Ledger: DefaultLedger(),
		Server: ServerConfig{
			Addr:      ":8080",
			RateLimit: 2,
			RateBurst: 5,
		},
		Store: StoreConfig{
			Driver: "file",
			DSNEnv: "DAFTAR_DATABASE_URL",
		},
		Auth: AuthConfig{
			JWTSecretEnv: "DAFTAR_JWT_SECRET",
		},
		Email: EmailConfig{
			Endpoint:          "https://api.resend.com/emails",
			APIKeyEnv:         "DAFTAR_EMAIL_API_KEY",
			From:              "noreply@example.com",
			RequestsPerSecond: 2,
		},
		Analysis: AnalysisConfig{
			Endpoint:          "https://api.openai.com/v1/chat/completions",
			Model:             "gpt-4o-mini",
			APIKeyEnv:         "DAFTAR_AI_API_KEY",
			MaxChars:          12000,
			RequestsPerMinute: 20,
		},
		Backup: BackupConfig{
			Enabled:  true,
			Schedule: "0 2 * * *",
			Dir:      "backups",
			Retain:   14,
		},
		HR: HRConfig{
			SocialInsuranceRate: 9.75,
		},
		Log: LogConfig{
			Level: "info",
		},
		Git: GitConfig{
			AutoCommit:  true,
			AuthorName:  "Daftar",
			AuthorEmail: "daftar@localhost",
		},
	}
}

// DefaultLedger maps events onto the default chart of accounts.
func DefaultLedger() LedgerConfig {
	return LedgerConfig{
		Cash:                   accounts.Cash,
		Bank:                   accounts.Bank,
		Receivable:             accounts.Receivable,
		Payable:                accounts.Payable,
		Inventory:              accounts.Inventory,
		VATInput:               accounts.VATInput,
		VATOutput:              accounts.VATOutput,
		Sales:                  accounts.Sales,
		ServiceRevenue:         accounts.ServiceRevenue,
		COGS:                   accounts.COGS,
		Salaries:               accounts.Salaries,
		SalariesPayable:        accounts.SalariesPayable,
		SocialInsurancePayable: accounts.SocialInsurancePayable,
		Suspense:               accounts.Suspense,
		InventoryAdjustment:    accounts.InventoryAdjustment,
		RetainedEarnings:       accounts.RetainedEarnings,
	}
}
