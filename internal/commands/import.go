package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/daftar-erp/daftar/internal/app"
	"github.com/daftar-erp/daftar/internal/importer"
)

func newImportCommand() *cobra.Command {
	var repoDir, format string
	var accountID int

	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import a bank statement CSV as draft entries against suspense",
		Long: "Import a bank statement CSV. Each line becomes a draft entry between the bank\n" +
			"account and the suspense account. Without a file, every CSV in import/ is\n" +
			"imported and moved to import/processed/.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			a, err := openProject(ctx, repoDir)
			if err != nil {
				return err
			}
			defer a.Close()

			if len(args) == 1 {
				n, err := importFile(a, args[0], format, accountID)
				if err != nil {
					return err
				}
				commit(ctx, a, fmt.Sprintf("import: %d transactions from %s", n, filepath.Base(args[0])))
				return nil
			}

			files, err := importer.Scan(a.Root)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Println("No CSV files in import/")
				return nil
			}
			total := 0
			for _, f := range files {
				n, err := importFile(a, f.Path, format, accountID)
				if err != nil {
					return err
				}
				if err := importer.MarkProcessed(a.Root, f.Name); err != nil {
					return err
				}
				total += n
			}
			commit(ctx, a, fmt.Sprintf("import: %d transactions from %d files", total, len(files)))
			return nil
		},
	}

	repoFlag(cmd, &repoDir)
	cmd.Flags().StringVar(&format, "format", "", "statement format (generic or alrajhi); defaults to the bank of the chosen account, then generic")
	cmd.Flags().IntVar(&accountID, "account", 0, "bank account ID in the chart (defaults to ledger.bank)")

	return cmd
}

// resolveBank picks the format and bank account for an import from the
// flags and the bank_accounts section of daftar.yaml.
func resolveBank(a *app.App, format string, accountID int) (string, int) {
	for _, b := range a.Config.BankAccounts {
		if accountID != 0 && b.AccountID == accountID && format == "" {
			format = b.Bank
		}
		if accountID == 0 && format != "" && strings.EqualFold(b.Bank, format) {
			accountID = b.AccountID
		}
	}
	if format == "" {
		format = "generic"
	}
	if accountID == 0 {
		accountID = a.Config.Ledger.Bank
	}
	return format, accountID
}

func importFile(a *app.App, path, format string, accountID int) (int, error) {
	format, accountID = resolveBank(a, format, accountID)
	parser := importer.DefaultRegistry().Get(format)
	if parser == nil {
		return 0, fmt.Errorf("unknown format %q", format)
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	txns, err := parser.Parse(f)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	res, err := importer.Post(a.Ledger, txns, accountID, a.Config.Ledger.Suspense)
	if err != nil {
		return len(res.EntryIDs), err
	}
	fmt.Printf("Imported %d transactions from %s as drafts", len(res.EntryIDs), filepath.Base(path))
	if res.Skipped > 0 {
		fmt.Printf(" (%d zero-amount lines skipped)", res.Skipped)
	}
	fmt.Println()
	return len(res.EntryIDs), nil
}
