package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/daftar-erp/daftar/internal/reports"
)

func newReportCommand() *cobra.Command {
	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Print financial reports",
	}
	reportCmd.AddCommand(
		newPeriodReportCommand("trial-balance", "Trial balance for a period", printTrialBalance),
		newPeriodReportCommand("income", "Income statement for a period", printIncomeStatement),
		newAsOfReportCommand("balance-sheet", "Balance sheet as of a date", printBalanceSheet),
		newAsOfReportCommand("aging", "Receivables aging as of a date", printAging),
	)
	return reportCmd
}

type reportContext struct {
	ctx     context.Context
	reports *reports.Service
}

func newPeriodReportCommand(use, short string, run func(rc reportContext, from, to time.Time) error) *cobra.Command {
	var repoDir, fromFlag, toFlag string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseDateFlag("from", fromFlag)
			if err != nil {
				return err
			}
			to, err := parseDateFlag("to", toFlag)
			if err != nil {
				return err
			}
			if to.IsZero() {
				to = time.Now().UTC()
			}
			if from.IsZero() {
				from = time.Date(to.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
			}
			ctx := commandContext(cmd)
			a, err := openProject(ctx, repoDir)
			if err != nil {
				return err
			}
			defer a.Close()
			return run(reportContext{ctx: ctx, reports: a.Reports}, from, to)
		},
	}
	repoFlag(cmd, &repoDir)
	cmd.Flags().StringVar(&fromFlag, "from", "", "first day (YYYY-MM-DD, default start of the year)")
	cmd.Flags().StringVar(&toFlag, "to", "", "last day (YYYY-MM-DD, default today)")
	return cmd
}

func newAsOfReportCommand(use, short string, run func(rc reportContext, asOf time.Time) error) *cobra.Command {
	var repoDir, asOfFlag string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			asOf, err := parseDateFlag("as-of", asOfFlag)
			if err != nil {
				return err
			}
			if asOf.IsZero() {
				asOf = time.Now().UTC()
			}
			ctx := commandContext(cmd)
			a, err := openProject(ctx, repoDir)
			if err != nil {
				return err
			}
			defer a.Close()
			return run(reportContext{ctx: ctx, reports: a.Reports}, asOf)
		},
	}
	repoFlag(cmd, &repoDir)
	cmd.Flags().StringVar(&asOfFlag, "as-of", "", "report date (YYYY-MM-DD, default today)")
	return cmd
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func money(d decimal.Decimal) string {
	if d.IsZero() {
		return ""
	}
	return d.StringFixed(2)
}

func printTrialBalance(rc reportContext, from, to time.Time) error {
	tb, err := rc.reports.TrialBalance(from, to)
	if err != nil {
		return err
	}
	fmt.Printf("Trial balance %s to %s\n\n", from.Format(dateFlagLayout), to.Format(dateFlagLayout))
	fmt.Printf("%-6s %-32s %14s %14s\n", "ID", "Account", "Debit", "Credit")
	for _, r := range tb.Rows {
		fmt.Printf("%-6d %-32s %14s %14s\n", r.AccountID, r.NameEN, money(r.Debit), money(r.Credit))
	}
	fmt.Printf("%-6s %-32s %14s %14s\n", "", "Total", tb.TotalDebit.StringFixed(2), tb.TotalCredit.StringFixed(2))
	if !tb.Balanced {
		return fmt.Errorf("trial balance does not balance")
	}
	return nil
}

func printLines(title string, lines []reports.Line, total decimal.Decimal) {
	fmt.Println(title)
	for _, l := range lines {
		fmt.Printf("  %-6d %-32s %14s\n", l.AccountID, l.NameEN, l.Amount.StringFixed(2))
	}
	fmt.Printf("  %-39s %14s\n\n", "Total "+title, total.StringFixed(2))
}

func printIncomeStatement(rc reportContext, from, to time.Time) error {
	is, err := rc.reports.IncomeStatement(from, to)
	if err != nil {
		return err
	}
	fmt.Printf("Income statement %s to %s\n\n", from.Format(dateFlagLayout), to.Format(dateFlagLayout))
	printLines("Revenue", is.Revenue, is.TotalRevenue)
	printLines("Expenses", is.Expenses, is.TotalExpenses)
	fmt.Printf("%-41s %14s\n", "Net income", is.NetIncome.StringFixed(2))
	return nil
}

func printBalanceSheet(rc reportContext, asOf time.Time) error {
	bs, err := rc.reports.BalanceSheet(asOf)
	if err != nil {
		return err
	}
	fmt.Printf("Balance sheet as of %s\n\n", asOf.Format(dateFlagLayout))
	printLines("Assets", bs.Assets, bs.TotalAssets)
	printLines("Liabilities", bs.Liabilities, bs.TotalLiabilities)
	fmt.Println("Equity")
	for _, l := range bs.Equity {
		fmt.Printf("  %-6d %-32s %14s\n", l.AccountID, l.NameEN, l.Amount.StringFixed(2))
	}
	fmt.Printf("  %-6s %-32s %14s\n", "", "Current earnings", bs.CurrentEarnings.StringFixed(2))
	fmt.Printf("  %-39s %14s\n", "Total Equity", bs.TotalEquity.StringFixed(2))
	if !bs.Balanced {
		return fmt.Errorf("balance sheet does not balance")
	}
	return nil
}

func printAging(rc reportContext, asOf time.Time) error {
	ag, err := rc.reports.ReceivablesAging(rc.ctx, asOf)
	if err != nil {
		return err
	}
	fmt.Printf("Receivables aging as of %s\n\n", asOf.Format(dateFlagLayout))
	fmt.Printf("%-28s %12s %12s %12s %12s %12s\n", "Customer", "0-30", "31-60", "61-90", "90+", "Total")
	for _, r := range ag.Rows {
		fmt.Printf("%-28s %12s %12s %12s %12s %12s\n", r.Name,
			money(r.Buckets[reports.Bucket0To30]), money(r.Buckets[reports.Bucket31To60]),
			money(r.Buckets[reports.Bucket61To90]), money(r.Buckets[reports.BucketOver90]), r.Total.StringFixed(2))
	}
	fmt.Printf("%-28s %12s %12s %12s %12s %12s\n", "Total",
		ag.Buckets[reports.Bucket0To30].StringFixed(2), ag.Buckets[reports.Bucket31To60].StringFixed(2),
		ag.Buckets[reports.Bucket61To90].StringFixed(2), ag.Buckets[reports.BucketOver90].StringFixed(2), ag.Total.StringFixed(2))
	return nil
}
