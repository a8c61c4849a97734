// Package bankfile parses normalized bank CSV exports into imported
// transactions. The layout is provider-agnostic: banks whose exports don't
// match it get their own converter upstream.
package bankfile

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/runwayfin/runway/internal/model"

	"github.com/shopspring/decimal"
)

// Column layout of the normalized CSV:
// id,date,amount,currency,description,counterparty,category,balance
const (
	colID = iota
	colDate
	colAmount
	colCurrency
	colDescription
	colCounterparty
	colCategory
	colBalance
	numFields
)

const dateFormat = "2006-01-02"

// ParseCSV reads a normalized CSV export for one configured account. The
// header row is required. Balance values are optional; HasBalances is set
// when every row carries one.
func ParseCSV(r io.Reader, chartAccountID string) (*model.ParsedStatement, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading bank CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("bank CSV is empty")
	}

	stmt := &model.ParsedStatement{
		ChartAccountID: chartAccountID,
		HasBalances:    len(records) > 1,
	}

	for i, rec := range records[1:] {
		txn, err := parseRow(rec, chartAccountID)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		if txn.BalanceMinor == nil {
			stmt.HasBalances = false
		}
		stmt.Transactions = append(stmt.Transactions, txn)
	}
	return stmt, nil
}

func parseRow(rec []string, chartAccountID string) (model.ImportedTransaction, error) {
	date, err := time.Parse(dateFormat, strings.TrimSpace(rec[colDate]))
	if err != nil {
		return model.ImportedTransaction{}, fmt.Errorf("parsing date %q: %w", rec[colDate], err)
	}

	amount, err := parseMinor(rec[colAmount])
	if err != nil {
		return model.ImportedTransaction{}, fmt.Errorf("parsing amount %q: %w", rec[colAmount], err)
	}

	txn := model.ImportedTransaction{
		ProviderTxnID:    strings.TrimSpace(rec[colID]),
		ChartAccountID:   chartAccountID,
		PostedAt:         date.UTC(),
		AmountMinor:      amount,
		Currency:         strings.TrimSpace(rec[colCurrency]),
		RawDescription:   strings.TrimSpace(rec[colDescription]),
		Counterparty:     strings.TrimSpace(rec[colCounterparty]),
		ProviderCategory: strings.TrimSpace(rec[colCategory]),
	}

	if balanceField := strings.TrimSpace(rec[colBalance]); balanceField != "" {
		balance, err := parseMinor(balanceField)
		if err != nil {
			return model.ImportedTransaction{}, fmt.Errorf("parsing balance %q: %w", balanceField, err)
		}
		txn.BalanceMinor = &balance
	}

	return txn, nil
}

// parseMinor converts a decimal currency string ("12.34", "-5") to integer
// minor units.
func parseMinor(s string) (int64, error) {
	trimmed := strings.TrimSpace(s)
	if !strings.Contains(trimmed, ".") {
		units, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return 0, err
		}
		return units * 100, nil
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0, err
	}
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart(), nil
}
