package bankfile

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const csvHeader = "id,date,amount,currency,description,counterparty,category,balance\n"

func TestParseCSV(t *testing.T) {
	input := csvHeader +
		"tx-1,2026-03-02,-12.50,GBP,TESCO STORES 3247,Tesco,groceries,987.65\n" +
		"tx-2,2026-03-03,3000.00,GBP,ACME PAYROLL,Acme Ltd,salary,3987.65\n"

	stmt, err := ParseCSV(strings.NewReader(input), "Assets:Monzo:Current")
	require.NoError(t, err)

	assert.Equal(t, "Assets:Monzo:Current", stmt.ChartAccountID)
	assert.True(t, stmt.HasBalances)
	require.Len(t, stmt.Transactions, 2)

	first := stmt.Transactions[0]
	assert.Equal(t, "tx-1", first.ProviderTxnID)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), first.PostedAt)
	assert.Equal(t, int64(-1250), first.AmountMinor)
	assert.Equal(t, "GBP", first.Currency)
	assert.Equal(t, "TESCO STORES 3247", first.RawDescription)
	assert.Equal(t, "Tesco", first.Counterparty)
	assert.Equal(t, "groceries", first.ProviderCategory)
	require.NotNil(t, first.BalanceMinor)
	assert.Equal(t, int64(98765), *first.BalanceMinor)

	assert.Equal(t, int64(300000), stmt.Transactions[1].AmountMinor)
}

func TestParseCSV_MissingBalances(t *testing.T) {
	input := csvHeader +
		"tx-1,2026-03-02,-12.50,GBP,TESCO,Tesco,groceries,\n"

	stmt, err := ParseCSV(strings.NewReader(input), "Assets:Monzo:Current")
	require.NoError(t, err)

	assert.False(t, stmt.HasBalances)
	assert.Nil(t, stmt.Transactions[0].BalanceMinor)
}

func TestParseCSV_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty file", ""},
		{"wrong column count", csvHeader + "tx-1,2026-03-02,-12.50\n"},
		{"bad date", csvHeader + "tx-1,02/03/2026,-12.50,GBP,TESCO,,groceries,\n"},
		{"bad amount", csvHeader + "tx-1,2026-03-02,twelve,GBP,TESCO,,groceries,\n"},
		{"bad balance", csvHeader + "tx-1,2026-03-02,-12.50,GBP,TESCO,,groceries,lots\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCSV(strings.NewReader(tt.input), "Assets:Monzo:Current")
			assert.Error(t, err)
		})
	}
}

func TestParseMinor(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{"12.34", 1234, false},
		{"-12.34", -1234, false},
		{"5", 500, false},
		{"-5", -500, false},
		{"0.01", 1, false},
		{" 7.50 ", 750, false},
		{"1.005", 101, false},
		{"", 0, true},
		{"abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseMinor(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
