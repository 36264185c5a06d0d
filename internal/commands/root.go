package commands

import (
	"github.com/spf13/cobra"

	"github.com/daftar-erp/daftar/internal/buildinfo"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "daftar",
		Short:   "Accounting and ERP for small businesses",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newImportCommand())
	rootCmd.AddCommand(newReportCommand())
	rootCmd.AddCommand(newBackupCommand())
	rootCmd.AddCommand(newAnalyzeCommand())
	rootCmd.AddCommand(newPayrollCommand())

	return rootCmd
}
