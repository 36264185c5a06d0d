package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newPayrollCommand() *cobra.Command {
	payrollCmd := &cobra.Command{
		Use:   "payroll",
		Short: "Payroll operations",
	}
	payrollCmd.AddCommand(newPayrollRunCommand())
	return payrollCmd
}

func newPayrollRunCommand() *cobra.Command {
	var repoDir, payDateFlag string
	var year, month int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run payroll for a month and post the salary entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now().UTC()
			if year == 0 {
				year = now.Year()
			}
			if month == 0 {
				month = int(now.Month())
			}
			payDate, err := parseDateFlag("pay-date", payDateFlag)
			if err != nil {
				return err
			}

			ctx := commandContext(cmd)
			a, err := openProject(ctx, repoDir)
			if err != nil {
				return err
			}
			defer a.Close()

			run, err := a.HR.RunPayroll(ctx, year, month, payDate)
			if err != nil {
				return err
			}
			fmt.Printf("Payroll %s: %d employees\n", run.ID, len(run.Lines))
			for _, l := range run.Lines {
				fmt.Printf("  %-28s gross %12s  deductions %10s  net %12s\n", l.Name, l.Gross.StringFixed(2), l.Deduction.StringFixed(2), l.Net.StringFixed(2))
			}
			fmt.Printf("Total net %s posted as %s\n", run.NetTotal.StringFixed(2), run.EntryID)
			commit(ctx, a, fmt.Sprintf("payroll: %04d-%02d", year, month))
			return nil
		},
	}
	repoFlag(cmd, &repoDir)
	cmd.Flags().IntVar(&year, "year", 0, "payroll year (default this year)")
	cmd.Flags().IntVar(&month, "month", 0, "payroll month 1-12 (default this month)")
	cmd.Flags().StringVar(&payDateFlag, "pay-date", "", "pay date (YYYY-MM-DD, default end of the month)")
	return cmd
}
