package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/runwayfin/runway/internal/bankfile"
	"github.com/runwayfin/runway/internal/common"
	"github.com/runwayfin/runway/internal/config"
	"github.com/runwayfin/runway/internal/importer"
	"github.com/runwayfin/runway/internal/model"
	"github.com/runwayfin/runway/internal/ofx"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [files...]",
		Short: "Import transactions from OFX/QFX or CSV bank exports",
		Long: `Import bank statements into the ledger.

OFX and QFX files carry their own account identifier; the matching asset
account is resolved through the provider field in your chart of accounts.
CSV files use the normalized export layout and require --account.

Examples:
  # Import OFX statements
  runway import ~/Downloads/monzo_*.ofx

  # Import a CSV export into a specific account
  runway import --account Assets:Monzo:Current ~/Downloads/current.csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImport,
	}

	cmd.Flags().StringP("account", "a", "", "chart account ID for CSV imports")

	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	accountFlag, _ := cmd.Flags().GetString("account")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	files, err := expandFileArgs(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return common.NewUserError("no files found to import", nil)
	}

	store, err := initStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			slog.Error("Failed to close storage", "error", closeErr)
		}
	}()

	pipeline := importer.NewPipeline(store, cfg)

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription("Importing statements"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionShowCount(),
	)

	var results []*importer.ImportResult
	for _, file := range files {
		statements, err := parseStatementFile(cfg, file, accountFlag)
		if err != nil {
			common.LogError(err, "Failed to parse statement file", common.Fields{"file": file})
			_ = bar.Add(1)
			continue
		}

		for _, stmt := range statements {
			if len(stmt.Transactions) == 0 {
				slog.Warn("No transactions in statement", "file", filepath.Base(file))
				continue
			}

			result, err := pipeline.ImportBatch(ctx, stmt.ChartAccountID, file, stmt.Transactions)
			if err != nil {
				return fmt.Errorf("importing %s: %w", file, err)
			}
			results = append(results, result)
		}

		_ = bar.Add(1)
	}
	_ = bar.Finish()

	printImportResults(results)
	return nil
}

// expandFileArgs resolves glob patterns and direct paths into a flat file
// list. Patterns matching nothing are warnings, not errors.
func expandFileArgs(args []string) ([]string, error) {
	var files []string
	for _, pattern := range args {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			if _, statErr := os.Stat(pattern); statErr == nil {
				files = append(files, pattern)
			} else {
				slog.Warn("No files found matching pattern", "pattern", pattern)
			}
			continue
		}
		files = append(files, matches...)
	}
	return files, nil
}

func parseStatementFile(cfg *config.Config, path, accountFlag string) ([]model.ParsedStatement, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".ofx", ".qfx":
		statements, err := ofx.NewParser().ParseFile(f)
		if err != nil {
			return nil, err
		}
		for i := range statements {
			accountID, err := resolveProviderAccount(cfg, statements[i].ChartAccountID, accountFlag)
			if err != nil {
				return nil, err
			}
			statements[i].ChartAccountID = accountID
		}
		return statements, nil
	case ".csv":
		if accountFlag == "" {
			return nil, common.NewUserError("CSV imports require --account", nil)
		}
		stmt, err := bankfile.ParseCSV(f, accountFlag)
		if err != nil {
			return nil, err
		}
		return []model.ParsedStatement{*stmt}, nil
	default:
		return nil, fmt.Errorf("unsupported file type: %s", path)
	}
}

// resolveProviderAccount maps the provider's own account identifier, as
// found in an OFX statement, onto a configured asset account. An explicit
// --account flag wins.
func resolveProviderAccount(cfg *config.Config, providerID, accountFlag string) (string, error) {
	if accountFlag != "" {
		return accountFlag, nil
	}
	for _, acct := range cfg.Chart.AccountsOfType(model.AccountTypeAsset) {
		if acct.Provider != "" && acct.Provider == providerID {
			return acct.ID, nil
		}
	}
	return "", common.NewUserError(
		fmt.Sprintf("no configured account matches provider account %q; set provider in the chart or pass --account", providerID), nil)
}

func printImportResults(results []*importer.ImportResult) {
	if len(results) == 0 {
		fmt.Println("Nothing imported.")
		return
	}

	var created, duplicates, transfers, errCount int
	unmapped := make(map[string]bool)
	for _, r := range results {
		created += r.Created
		duplicates += r.Duplicates
		transfers += r.TransfersMatched
		errCount += len(r.Errors)
		for _, d := range r.UnmappedDescriptions {
			unmapped[d] = true
		}
		for _, rowErr := range r.Errors {
			common.LogError(&common.ParseError{Row: rowErr.Row, Reason: rowErr.Reason},
				"Skipped row", common.Fields{
					"account":         r.AccountID,
					"provider_txn_id": rowErr.ProviderTxnID,
				})
		}
	}

	fmt.Printf("\nImport complete:\n")
	fmt.Printf("  Created:           %d\n", created)
	fmt.Printf("  Duplicates:        %d\n", duplicates)
	fmt.Printf("  Transfers matched: %d\n", transfers)
	if errCount > 0 {
		fmt.Printf("  Rows skipped:      %d\n", errCount)
	}
	if len(unmapped) > 0 {
		fmt.Printf("  Unmapped descriptions: %d (run 'runway sanitize discover --unmapped')\n", len(unmapped))
	}
}
