package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/runwayfin/runway/internal/model"

	"github.com/spf13/cobra"
)

func balanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance [account]",
		Short: "Account balances from the ledger",
		Long: `Show the ledger balance of every asset account, or of one account when
named. With --group and --series, a daily balance history for the group's
asset accounts is printed instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runBalance,
	}

	cmd.Flags().String("as-of", "", "balance as of this date (YYYY-MM-DD)")
	cmd.Flags().StringP("group", "g", "", "reporting group ID for --series")
	cmd.Flags().Bool("series", false, "print a daily balance series for --group")
	cmd.Flags().String("from", "", "series start date (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "series end date (YYYY-MM-DD)")

	return cmd
}

func runBalance(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	series, _ := cmd.Flags().GetBool("series")

	engine, cfg, store, err := buildAnalytics(cmd)
	if err != nil {
		return err
	}
	defer closeStore(store)

	if series {
		groupID, _ := cmd.Flags().GetString("group")
		if groupID == "" {
			return fmt.Errorf("--series requires --group")
		}

		from, to, err := seriesRange(cmd)
		if err != nil {
			return err
		}

		points, err := engine.GroupBalanceSeries(ctx, groupID, from, to)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "DATE\tBALANCE")
		for _, p := range points {
			fmt.Fprintf(w, "%s\t%s\n", p.Date.Format("2006-01-02"), formatMinor(p.BalanceMinor))
		}
		return w.Flush()
	}

	asOf, err := asOfFlag(cmd)
	if err != nil {
		return err
	}

	accounts := cfg.Chart.AccountsOfType(model.AccountTypeAsset)
	if len(args) == 1 {
		acct, ok := cfg.Chart.Lookup(args[0])
		if !ok {
			return fmt.Errorf("unknown account: %s", args[0])
		}
		accounts = []model.Account{acct}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ACCOUNT\tBALANCE")
	var total int64
	for _, acct := range accounts {
		balance, err := store.GetBalance(ctx, acct.ID, &asOf)
		if err != nil {
			return err
		}
		total += balance
		fmt.Fprintf(w, "%s\t%s\n", acct.ID, formatMinor(balance))
	}
	if len(accounts) > 1 {
		fmt.Fprintf(w, "TOTAL\t%s\n", formatMinor(total))
	}
	return w.Flush()
}

func seriesRange(cmd *cobra.Command) (time.Time, time.Time, error) {
	fromRaw, _ := cmd.Flags().GetString("from")
	toRaw, _ := cmd.Flags().GetString("to")

	to := time.Now().UTC()
	if toRaw != "" {
		parsed, err := time.Parse("2006-01-02", toRaw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --to date %q: %w", toRaw, err)
		}
		to = parsed
	}

	from := to.AddDate(0, -3, 0)
	if fromRaw != "" {
		parsed, err := time.Parse("2006-01-02", fromRaw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --from date %q: %w", fromRaw, err)
		}
		from = parsed
	}

	if from.After(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("--from must not be after --to")
	}
	return from, to, nil
}
