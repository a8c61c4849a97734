package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/runwayfin/runway/internal/common"
	"github.com/runwayfin/runway/internal/sanitize"
	"github.com/runwayfin/runway/internal/service"

	"github.com/spf13/cobra"
)

func sanitizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sanitize",
		Short: "Discover, clean up and recategorize transaction descriptions",
	}

	cmd.AddCommand(sanitizeDiscoverCmd())
	cmd.AddCommand(sanitizeMigrateCmd())
	cmd.AddCommand(sanitizeRecategorizeCmd())

	return cmd
}

func sanitizeDiscoverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "List raw descriptions grouped across the ledger",
		Long: `List raw transaction descriptions grouped by exact text, with how often
each occurs and how much money it moved. Use --unmapped to see only the
descriptions no sanitization rule matches yet.`,
		RunE: runSanitizeDiscover,
	}

	cmd.Flags().Bool("unmapped", false, "only show descriptions no rule matches")
	cmd.Flags().String("order-by", "occurrence", "sort key (occurrence, total)")
	cmd.Flags().IntP("limit", "n", 0, "maximum groups to show (0 = all)")

	return cmd
}

func runSanitizeDiscover(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	unmapped, _ := cmd.Flags().GetBool("unmapped")
	orderBy, _ := cmd.Flags().GetString("order-by")
	limit, _ := cmd.Flags().GetInt("limit")

	engine, store, err := buildSanitizeEngine(cmd)
	if err != nil {
		return err
	}
	defer closeStore(store)

	groups, err := engine.Discover(ctx, sanitize.DiscoverOptions{
		OrderBy:      sanitize.OrderBy(orderBy),
		Limit:        limit,
		UnmappedOnly: unmapped,
	})
	if err != nil {
		return err
	}

	if len(groups) == 0 {
		fmt.Println("No descriptions found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DESCRIPTION\tCOUNT\tTOTAL\tFIRST SEEN\tLAST SEEN")
	for _, g := range groups {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
			g.RawDescription,
			g.Occurrences,
			formatMinor(g.TotalMinor),
			g.FirstSeen.Format("2006-01-02"),
			g.LastSeen.Format("2006-01-02"))
	}
	return w.Flush()
}

func sanitizeMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply name-mapping rules to clean descriptions",
		Long: `Rewrite clean descriptions from the rules file. Descriptions you edited
by hand are never touched.`,
		RunE: runSanitizeMigrate,
	}

	cmd.Flags().BoolP("dry-run", "d", false, "preview changes without saving")

	return cmd
}

func runSanitizeMigrate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	engine, store, err := buildSanitizeEngine(cmd)
	if err != nil {
		return err
	}
	defer closeStore(store)

	plan, err := engine.PlanMigration(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Migration plan: %d to update, %d already clean, %d without a matching rule\n",
		len(plan.ToUpdate), plan.AlreadyClean, plan.NoMatch)

	if dryRun {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "RAW\tCURRENT\tPROPOSED")
		for _, a := range plan.ToUpdate {
			fmt.Fprintf(w, "%s\t%s\t%s\n", a.RawDescription, a.CurrentClean, a.ProposedClean)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	result, err := engine.ExecuteMigration(ctx, plan, dryRun)
	if err != nil {
		return err
	}

	reportSanitizeOutcome("migrate", result.Updated, result.Skipped, result.DryRun, result.Errors)
	return nil
}

func sanitizeRecategorizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recategorize",
		Short: "Move entries onto the accounts their rules name",
		Long: `Re-run categorization for entries whose matching rule carries a category,
moving the category leg to the mapped account. Merged transfers are never
touched.`,
		RunE: runSanitizeRecategorize,
	}

	cmd.Flags().BoolP("dry-run", "d", false, "preview changes without saving")

	return cmd
}

func runSanitizeRecategorize(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	engine, store, err := buildSanitizeEngine(cmd)
	if err != nil {
		return err
	}
	defer closeStore(store)

	plan, err := engine.PlanRecategorize(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Recategorize plan: %d to update, %d already categorized, %d without a matching rule\n",
		len(plan.ToUpdate), plan.AlreadyCategorized, plan.NoMatch)

	if dryRun {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "DESCRIPTION\tFROM\tTO")
		for _, a := range plan.ToUpdate {
			fmt.Fprintf(w, "%s\t%s\t%s\n", a.RawDescription, a.FromAccount, a.ToAccount)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	result, err := engine.ExecuteRecategorize(ctx, plan, dryRun)
	if err != nil {
		return err
	}

	reportSanitizeOutcome("recategorize", result.Updated, result.Skipped, result.DryRun, result.Errors)
	return nil
}

func buildSanitizeEngine(cmd *cobra.Command) (*sanitize.Engine, service.Storage, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	rules, err := loadRules()
	if err != nil {
		return nil, nil, err
	}

	store, err := initStorage(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, err
	}

	return sanitize.NewEngine(store, cfg.Chart, rules), store, nil
}

func closeStore(store service.Storage) {
	if err := store.Close(); err != nil {
		slog.Error("Failed to close storage", "error", err)
	}
}

func reportSanitizeOutcome(verb string, updated, skipped int, dryRun bool, errs []sanitize.ActionError) {
	for _, e := range errs {
		common.LogError(errors.New(e.Reason), "Sanitize action failed",
			common.Fields{"entry_id": e.EntryID})
	}

	if dryRun {
		fmt.Printf("Dry run: %s would update %d entries.\n", verb, updated)
		return
	}
	fmt.Printf("%s updated %d entries (%d skipped).\n", verb, updated, skipped)
}
