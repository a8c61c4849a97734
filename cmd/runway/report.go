package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/runwayfin/runway/internal/analytics"
	"github.com/runwayfin/runway/internal/config"
	"github.com/runwayfin/runway/internal/service"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var hundred = decimal.NewFromInt(100)

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Burn rate, runway, reserves and spending reports",
	}

	cmd.AddCommand(reportCashflowCmd())
	cmd.AddCommand(reportRunwayCmd())
	cmd.AddCommand(reportReservesCmd())
	cmd.AddCommand(reportBreakdownCmd())
	cmd.AddCommand(reportTreeCmd())

	return cmd
}

// buildAnalytics wires config, storage and the analytics engine for one
// report invocation. The caller owns closing the returned store.
func buildAnalytics(cmd *cobra.Command) (*analytics.Engine, *config.Config, service.Storage, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}

	store, err := initStorage(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	return analytics.NewEngine(store, cfg), cfg, store, nil
}

func asOfFlag(cmd *cobra.Command) (time.Time, error) {
	raw, _ := cmd.Flags().GetString("as-of")
	if raw == "" {
		return time.Now().UTC(), nil
	}
	asOf, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --as-of date %q: %w", raw, err)
	}
	return asOf, nil
}

func reportCashflowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cashflow",
		Short: "Monthly income, expenses and savings rate for a group",
		RunE:  runReportCashflow,
	}

	cmd.Flags().StringP("group", "g", "", "reporting group ID")
	cmd.Flags().Int("months", 0, "trailing months to report (default: configured window)")
	cmd.Flags().String("as-of", "", "report as of this date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("group")

	return cmd
}

func runReportCashflow(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	groupID, _ := cmd.Flags().GetString("group")
	months, _ := cmd.Flags().GetInt("months")

	engine, cfg, store, err := buildAnalytics(cmd)
	if err != nil {
		return err
	}
	defer closeStore(store)

	asOf, err := asOfFlag(cmd)
	if err != nil {
		return err
	}
	if months <= 0 {
		months = cfg.Financial.TrailingMonths
	}

	from := time.Date(asOf.Year(), asOf.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -months, 0)
	rows, err := engine.MonthlyCashflow(ctx, groupID, from, asOf)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MONTH\tINCOME\tEXPENSES\tNET\tSAVINGS RATE")
	for _, row := range rows {
		rate := "-"
		if row.SavingsRate != nil {
			rate = row.SavingsRate.Mul(hundred).StringFixed(1) + "%"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			row.Month,
			formatMinor(row.IncomeMinor),
			formatMinor(row.ExpenseMinor),
			formatMinor(row.NetMinor),
			rate)
	}
	return w.Flush()
}

func reportRunwayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runway",
		Short: "How long the money lasts at the current burn rate",
		Long: `Project months of runway from liquid balances and the median trailing
burn rate. With --groups, liquid balances and burn rates are pooled
across the named groups. Scenario flags model hypothetical recurring
flows on top of the observed burn.`,
		RunE: runReportRunway,
	}

	cmd.Flags().StringP("group", "g", "", "reporting group ID")
	cmd.Flags().StringSlice("groups", nil, "consolidate across these group IDs")
	cmd.Flags().String("as-of", "", "report as of this date (YYYY-MM-DD)")
	cmd.Flags().Int64("scenario-income", 0, "extra monthly income in minor units")
	cmd.Flags().Int64("scenario-expense", 0, "extra monthly expense in minor units")

	return cmd
}

func runReportRunway(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	groupID, _ := cmd.Flags().GetString("group")
	groupIDs, _ := cmd.Flags().GetStringSlice("groups")
	extraIncome, _ := cmd.Flags().GetInt64("scenario-income")
	extraExpense, _ := cmd.Flags().GetInt64("scenario-expense")

	engine, cfg, store, err := buildAnalytics(cmd)
	if err != nil {
		return err
	}
	defer closeStore(store)

	asOf, err := asOfFlag(cmd)
	if err != nil {
		return err
	}

	var scenario *analytics.Scenario
	if extraIncome != 0 || extraExpense != 0 {
		scenario = &analytics.Scenario{
			Label:                    "adjusted",
			ExtraMonthlyIncomeMinor:  extraIncome,
			ExtraMonthlyExpenseMinor: extraExpense,
		}
	}

	var result *analytics.RunwayResult
	switch {
	case len(groupIDs) > 0:
		result, err = engine.ConsolidatedRunway(ctx, groupIDs, asOf, scenario)
	case groupID != "":
		result, err = engine.Runway(ctx, groupID, asOf, scenario)
	default:
		ids := make([]string, len(cfg.Groups))
		for i, g := range cfg.Groups {
			ids[i] = g.ID
		}
		result, err = engine.ConsolidatedRunway(ctx, ids, asOf, scenario)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Groups:    %s\n", strings.Join(result.GroupIDs, ", "))
	fmt.Printf("Liquid:    %s\n", formatMinor(result.LiquidMinor))
	fmt.Printf("Burn rate: %s/month\n", formatMinor(result.BurnRateMinor))
	if result.Capped {
		fmt.Printf("Runway:    %s+ months (net positive)\n", result.Months.StringFixed(0))
	} else {
		fmt.Printf("Runway:    %s months\n", result.Months.StringFixed(1))
	}
	return nil
}

func reportReservesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reserves",
		Short: "Tax and expense reserves per group",
		RunE:  runReportReserves,
	}

	cmd.Flags().StringP("group", "g", "", "reporting group ID (default: all groups)")
	cmd.Flags().String("as-of", "", "report as of this date (YYYY-MM-DD)")

	return cmd
}

func runReportReserves(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	groupID, _ := cmd.Flags().GetString("group")

	engine, cfg, store, err := buildAnalytics(cmd)
	if err != nil {
		return err
	}
	defer closeStore(store)

	asOf, err := asOfFlag(cmd)
	if err != nil {
		return err
	}

	groupIDs := []string{groupID}
	if groupID == "" {
		groupIDs = groupIDs[:0]
		for _, g := range cfg.Groups {
			groupIDs = append(groupIDs, g.ID)
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "GROUP\tTAX YEAR START\tYTD NET\tTAX RESERVE\tEXPENSE RESERVE\tTOTAL")
	for _, id := range groupIDs {
		tax, err := engine.TaxReserve(ctx, id, asOf)
		if err != nil {
			return err
		}
		expense, err := engine.ExpenseReserve(ctx, id, asOf)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			id,
			tax.TaxYearStart.Format("2006-01-02"),
			formatMinor(tax.YTDNetMinor),
			formatMinor(tax.ReserveMinor),
			formatMinor(expense.ReserveMinor),
			formatMinor(tax.ReserveMinor+expense.ReserveMinor))
	}
	return w.Flush()
}

func reportBreakdownCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "breakdown",
		Short: "Top expense categories over the trailing window",
		RunE:  runReportBreakdown,
	}

	cmd.Flags().Int("months", 0, "trailing months (default: configured window)")
	cmd.Flags().IntP("top", "n", 10, "number of categories to show")
	cmd.Flags().String("as-of", "", "report as of this date (YYYY-MM-DD)")

	return cmd
}

func runReportBreakdown(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	months, _ := cmd.Flags().GetInt("months")
	topN, _ := cmd.Flags().GetInt("top")

	engine, _, store, err := buildAnalytics(cmd)
	if err != nil {
		return err
	}
	defer closeStore(store)

	asOf, err := asOfFlag(cmd)
	if err != nil {
		return err
	}

	totals, err := engine.CategoryBreakdown(ctx, asOf, months, topN)
	if err != nil {
		return err
	}

	if len(totals) == 0 {
		fmt.Println("No expenses in the window.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ACCOUNT\tTOTAL\tMONTHLY MEDIAN")
	for _, ct := range totals {
		fmt.Fprintf(w, "%s\t%s\t%s\n",
			ct.AccountID,
			formatMinor(ct.TotalMinor),
			formatMinor(ct.MonthlyMedianMinor))
	}
	return w.Flush()
}

func reportTreeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Hierarchical expense rollup",
		RunE:  runReportTree,
	}

	cmd.Flags().Int("months", 0, "trailing months (default: configured window)")
	cmd.Flags().String("statistic", "median", "monthly figure to show (median, mean)")
	cmd.Flags().String("as-of", "", "report as of this date (YYYY-MM-DD)")

	return cmd
}

func runReportTree(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	months, _ := cmd.Flags().GetInt("months")
	stat, _ := cmd.Flags().GetString("statistic")

	engine, _, store, err := buildAnalytics(cmd)
	if err != nil {
		return err
	}
	defer closeStore(store)

	asOf, err := asOfFlag(cmd)
	if err != nil {
		return err
	}

	root, err := engine.ExpenseTree(ctx, asOf, months, analytics.Statistic(stat))
	if err != nil {
		return err
	}

	printTree(root, 0)
	return nil
}

func printTree(node *analytics.TreeNode, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Printf("%s%-*s %12s/month\n", indent, 40-2*depth, node.Name, formatMinor(node.MonthlyMinor))
	for _, child := range node.Children {
		printTree(child, depth+1)
	}
}
