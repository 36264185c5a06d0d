package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/daftar-erp/daftar/internal/accounts"
	"github.com/daftar-erp/daftar/internal/app"
	"github.com/daftar-erp/daftar/internal/config"
	"github.com/daftar-erp/daftar/internal/gitops"
	"github.com/daftar-erp/daftar/internal/journal"
	"github.com/daftar-erp/daftar/internal/model"
)

func newInitCommand() *cobra.Command {
	var name string
	var entityType string
	var demo bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new Daftar project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			return runInit(cmd.Context(), absDir, name, entityType, demo)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "business name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().StringVar(&entityType, "entity-type", "trading", "entity type (trading or services)")
	cmd.Flags().BoolVar(&demo, "demo", false, "seed a sample customer, product, invoice and employee")

	return cmd
}

func runInit(ctx context.Context, dir, name, entityType string, demo bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if entityType != "trading" && entityType != "services" {
		return fmt.Errorf("unknown entity type %q (want trading or services)", entityType)
	}

	dirs := []string{
		"accounts",
		"logs",
		"data",
		"backups",
		"import",
		filepath.Join("import", "processed"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	cfg := config.Default(name, entityType)
	if err := config.Save(filepath.Join(dir, config.FileName), cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	chart := accounts.NewService(accounts.DefaultChart(entityType), accounts.DefaultCostCenters())
	if err := chart.Save(dir); err != nil {
		return fmt.Errorf("writing chart of accounts: %w", err)
	}

	env := "# Secrets for this project. Not committed.\n" +
		cfg.Auth.JWTSecretEnv + "=\n" +
		cfg.Email.APIKeyEnv + "=\n" +
		cfg.Analysis.APIKeyEnv + "=\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o600); err != nil {
		return fmt.Errorf("writing .env: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "import", ".gitkeep"), []byte{}, 0o644); err != nil {
		return fmt.Errorf("writing .gitkeep: %w", err)
	}

	if demo {
		log := logrus.New()
		log.SetOutput(os.Stderr)
		log.SetLevel(logrus.WarnLevel)
		a, err := app.New(ctx, dir, cfg, log)
		if err != nil {
			return err
		}
		err = seedDemo(ctx, a, entityType, time.Now().UTC())
		if cerr := a.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("seeding demo data: %w", err)
		}
	}

	if err := gitops.Init(ctx, dir); err != nil {
		return fmt.Errorf("git init: %w", err)
	}
	hash, err := gitops.Commit(ctx, dir, "init: Initialize "+name, gitops.Author{Name: cfg.Git.AuthorName, Email: cfg.Git.AuthorEmail})
	if err != nil {
		return fmt.Errorf("initial commit: %w", err)
	}

	fmt.Printf("Initialized Daftar project at %s (%s)\n", dir, hash)
	return nil
}

// seedDemo posts opening capital, stocks one product, and issues one invoice
// so reports have something to show.
func seedDemo(ctx context.Context, a *app.App, entityType string, now time.Time) error {
	day := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	capital := decimal.NewFromInt(50000)
	if _, err := a.Post(journal.EntryParams{
		Date:        day,
		Description: "إيداع رأس المال",
		Legs: []journal.LegParams{
			{AccountID: a.Config.Ledger.Bank, Debit: capital},
			{AccountID: accounts.Capital, Credit: capital},
		},
	}); err != nil {
		return err
	}

	cust, err := a.Parties.CreateCustomer(ctx, model.Customer{Name: "شركة النور للتجارة", Phone: "0501234567", CreditLimit: decimal.NewFromInt(20000)})
	if err != nil {
		return err
	}
	if _, err := a.Parties.CreateVendor(ctx, model.Vendor{Name: "مؤسسة التوريد الحديثة"}); err != nil {
		return err
	}

	item := model.LineItem{Description: "استشارة", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(1500), TaxPercent: decimal.NewFromInt(15)}
	if entityType == "trading" {
		p, err := a.Inventory.Create(ctx, model.Product{
			SKU:          "COF-250",
			Name:         "قهوة عربية 250 جم",
			Unit:         "كيس",
			Price:        decimal.NewFromInt(45),
			Cost:         decimal.NewFromInt(28),
			TaxRate:      decimal.NewFromInt(15),
			Quantity:     decimal.NewFromInt(100),
			ReorderLevel: decimal.NewFromInt(20),
		})
		if err != nil {
			return err
		}
		stock := p.Cost.Mul(p.Quantity)
		if _, err := a.Post(journal.EntryParams{
			Date:        day,
			Description: "مخزون افتتاحي " + p.Name,
			Legs: []journal.LegParams{
				{AccountID: a.Config.Ledger.Inventory, Debit: stock},
				{AccountID: accounts.Capital, Credit: stock},
			},
			Source: model.SourceInventory,
		}); err != nil {
			return err
		}
		item = model.LineItem{ProductID: p.ID, Quantity: decimal.NewFromInt(10), TaxPercent: decimal.NewFromInt(15)}
	}

	inv, err := a.Invoices.Create(ctx, model.Invoice{CustomerID: cust.ID, IssueDate: day, Items: []model.LineItem{item}})
	if err != nil {
		return err
	}
	if _, err := a.Invoices.Issue(ctx, inv.ID); err != nil {
		return err
	}

	_, err = a.HR.CreateEmployee(ctx, model.Employee{
		Name:       "سارة العتيبي",
		Position:   "محاسبة",
		Department: "المالية",
		CostCenter: "ADMIN",
		BaseSalary: decimal.NewFromInt(8000),
		Allowances: decimal.NewFromInt(2000),
		HireDate:   day.AddDate(-1, 0, 0),
	})
	return err
}
