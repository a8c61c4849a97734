// Package ofx parses OFX/QFX bank files into normalized imported
// transactions for the import pipeline.
package ofx

import (
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/runwayfin/runway/internal/model"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"
)

// Parser implements OFX/QFX file parsing.
type Parser struct{}

// NewParser creates a new OFX parser.
func NewParser() *Parser {
	return &Parser{}
}

// preprocess fixes common formatting issues in OFX files exported by real
// banks: stray leading whitespace, mixed-case SEVERITY values and SGML tags
// missing their closing bracket.
func (p *Parser) preprocess(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")

	severityRegex := regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)

	tagFixRegex := regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
	content = tagFixRegex.ReplaceAllString(content, "$1>")

	return content
}

// ParseFile parses an OFX/QFX file into one normalized statement per bank
// or credit-card account found in the file. The chart account ID is the
// provider account ID; the caller maps it to a configured account.
func (p *Parser) ParseFile(reader io.Reader) ([]model.ParsedStatement, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(p.preprocess(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	var statements []model.ParsedStatement

	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			statements = append(statements, p.convertBankStatement(stmt))
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			statements = append(statements, p.convertCCStatement(stmt))
		}
	}

	total := 0
	for _, s := range statements {
		total += len(s.Transactions)
	}
	slog.Info("Parsed OFX file",
		"statements", len(statements),
		"transactions", total)

	return statements, nil
}

func (p *Parser) convertBankStatement(stmt *ofxgo.StatementResponse) model.ParsedStatement {
	out := model.ParsedStatement{
		ChartAccountID: string(stmt.BankAcctFrom.AcctID),
	}
	if stmt.BankTranList == nil {
		return out
	}
	currency := stmt.CurDef.String()
	for _, ofxTx := range stmt.BankTranList.Transactions {
		out.Transactions = append(out.Transactions, p.convertTransaction(ofxTx, currency))
	}
	return out
}

func (p *Parser) convertCCStatement(stmt *ofxgo.CCStatementResponse) model.ParsedStatement {
	out := model.ParsedStatement{
		ChartAccountID: string(stmt.CCAcctFrom.AcctID),
	}
	if stmt.BankTranList == nil {
		return out
	}
	currency := stmt.CurDef.String()
	for _, ofxTx := range stmt.BankTranList.Transactions {
		out.Transactions = append(out.Transactions, p.convertTransaction(ofxTx, currency))
	}
	return out
}

// convertTransaction normalizes one OFX transaction. OFX amounts are signed
// decimals (negative for debits); they become integer minor units here and
// stay integers everywhere downstream.
func (p *Parser) convertTransaction(ofxTx ofxgo.Transaction, currency string) model.ImportedTransaction {
	amount := decimal.NewFromBigInt(ofxTx.TrnAmt.Num(), 0).
		Div(decimal.NewFromBigInt(ofxTx.TrnAmt.Denom(), 0)).
		Mul(decimal.NewFromInt(100)).
		Round(0).IntPart()

	txn := model.ImportedTransaction{
		ProviderTxnID:  string(ofxTx.FiTID),
		PostedAt:       ofxTx.DtPosted.Time,
		AmountMinor:    amount,
		Currency:       currency,
		RawDescription: strings.TrimSpace(string(ofxTx.Name)),
	}

	if ofxTx.Payee != nil && ofxTx.Payee.Name != "" {
		txn.Counterparty = string(ofxTx.Payee.Name)
	}
	if txn.RawDescription == "" && ofxTx.Memo != "" {
		txn.RawDescription = strings.TrimSpace(string(ofxTx.Memo))
	}

	// OFX has no category field; infer the broad ones from the type code.
	switch fmt.Sprintf("%v", ofxTx.TrnType) {
	case "INT":
		txn.ProviderCategory = "interest"
	case "FEE":
		txn.ProviderCategory = "fees"
	case "ATM":
		txn.ProviderCategory = "cash"
	}

	return txn
}
