package export

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/xuri/excelize/v2"
)

// Transaction rows are capped per sheet; the drill-down API serves the
// full listing.
const maxTransactionRows = 5000

// Sheet names of the generated report workbook.
const (
	summarySheet      = "Executive Summary"
	accountsSheet     = "COA Reconciliation"
	transactionsSheet = "Transaction Detail"
	auditSheet        = "Audit Trail"
)

// WriteExcel renders a reconciliation payload as a formatted workbook.
func WriteExcel(w io.Writer, payload *Payload) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := writeSummarySheet(f, payload); err != nil {
		return err
	}
	if err := writeAccountsSheet(f, payload); err != nil {
		return err
	}
	if err := writeTransactionsSheet(f, payload); err != nil {
		return err
	}
	if err := writeAuditSheet(f, payload); err != nil {
		return err
	}

	f.DeleteSheet("Sheet1")
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeSummarySheet(f *excelize.File, payload *Payload) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}

	s := payload.Summary
	largest := "-"
	if s.LargestVarianceAccount != nil {
		largest = fmt.Sprintf("%d", *s.LargestVarianceAccount)
	}

	rows := [][]any{
		{"RECONCILIATION REPORT"},
		{"Generated", time.Now().Format("2006-01-02 15:04:05")},
		{"Run ID", payload.RunID},
		{},
		{"Metric", "Value"},
		{"Total COA Accounts", s.TotalAccounts},
		{"Matched", s.MatchedCount},
		{"Within Tolerance", s.ToleranceCount},
		{"With Variance", s.VarianceCount},
		{"Only in Manual", s.UnmatchedManual},
		{"Only in ERP", s.UnmatchedERP},
		{"Match Rate (%)", s.MatchRate()},
		{},
		{"Total Manual Debit (SAR)", s.TotalManualDebit},
		{"Total Manual Credit (SAR)", s.TotalManualCredit},
		{"Total ERP Debit (SAR)", s.TotalERPDebit},
		{"Total ERP Credit (SAR)", s.TotalERPCredit},
		{},
		{"Total Debit Variance (SAR)", s.TotalDebitVariance},
		{"Total Credit Variance (SAR)", s.TotalCreditVariance},
		{"Total Net Variance (SAR)", s.TotalNetVariance},
		{"Largest Variance COA", largest},
		{"Largest Variance Amount (SAR)", s.LargestVarianceAmount},
	}

	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write summary row: %w", err)
		}
	}
	return nil
}

func writeAccountsSheet(f *excelize.File, payload *Payload) error {
	if _, err := f.NewSheet(accountsSheet); err != nil {
		return fmt.Errorf("failed to create accounts sheet: %w", err)
	}

	header := []any{
		"COA", "Account Name",
		"Manual Debit", "Manual Credit", "Manual Net", "Manual Txn Count",
		"ERP Debit", "ERP Credit", "ERP Net", "ERP Txn Count",
		"Debit Variance", "Credit Variance", "Net Variance", "Abs Variance",
		"Status",
	}
	if err := f.SetSheetRow(accountsSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write accounts header: %w", err)
	}

	for i, row := range payload.Accounts {
		cells := []any{
			row.AccountCode, row.AccountName,
			row.ManualDebit, row.ManualCredit, row.ManualNet, row.ManualTxnCount,
			row.ERPDebit, row.ERPCredit, row.ERPNet, row.ERPTxnCount,
			row.DebitVariance, row.CreditVariance, row.NetVariance, row.AbsVariance,
			string(row.Status),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(accountsSheet, cell, &cells); err != nil {
			return fmt.Errorf("failed to write account row: %w", err)
		}
	}
	return nil
}

func writeTransactionsSheet(f *excelize.File, payload *Payload) error {
	if _, err := f.NewSheet(transactionsSheet); err != nil {
		return fmt.Errorf("failed to create transactions sheet: %w", err)
	}

	header := []any{
		"Date", "COA", "Account Name", "Description",
		"Debit", "Credit", "Net", "Reference", "Source",
	}
	if err := f.SetSheetRow(transactionsSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write transactions header: %w", err)
	}

	txns := payload.Transactions
	if len(txns) > maxTransactionRows {
		txns = txns[:maxTransactionRows]
	}

	for i, txn := range txns {
		coa := any("")
		if !math.IsNaN(txn.AccountCode) {
			coa = int64(txn.AccountCode)
		}
		cells := []any{
			txn.Date.Format("2006-01-02"), coa, txn.AccountName, txn.Description,
			blankNaN(txn.Debit), blankNaN(txn.Credit), blankNaN(txn.Net),
			txn.Reference, txn.Source,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(transactionsSheet, cell, &cells); err != nil {
			return fmt.Errorf("failed to write transaction row: %w", err)
		}
	}
	return nil
}

func writeAuditSheet(f *excelize.File, payload *Payload) error {
	if _, err := f.NewSheet(auditSheet); err != nil {
		return fmt.Errorf("failed to create audit sheet: %w", err)
	}

	header := []any{"Timestamp", "Action", "Actor", "Checksum"}
	if err := f.SetSheetRow(auditSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write audit header: %w", err)
	}

	for i, e := range payload.AuditTrail {
		cells := []any{e.Timestamp, e.Action, e.Actor, e.Checksum}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(auditSheet, cell, &cells); err != nil {
			return fmt.Errorf("failed to write audit row: %w", err)
		}
	}
	return nil
}

func blankNaN(v float64) any {
	if math.IsNaN(v) {
		return ""
	}
	return v
}
