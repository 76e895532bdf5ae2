package recon

import (
	"encoding/json"
	"math"
	"time"
)

// Status classifies one account's reconciliation outcome.
//
// Naming note: UNMATCHED_ERP is assigned when the MANUAL side is absent
// and UNMATCHED_MANUAL when the ERP side is absent. The inversion is
// inherited from the upstream reporting convention ("only in Daftra" /
// "only in Manual") and is load-bearing for consumers; do not "fix" it
// without a product decision.
type Status string

const (
	StatusMatched         Status = "MATCHED"
	StatusWithinTolerance Status = "WITHIN_TOLERANCE"
	StatusVariance        Status = "VARIANCE"
	StatusUnmatchedManual Status = "UNMATCHED_MANUAL"
	StatusUnmatchedERP    Status = "UNMATCHED_ERP"
)

// Statuses lists every status in summary-reporting order.
var Statuses = []Status{
	StatusMatched,
	StatusWithinTolerance,
	StatusVariance,
	StatusUnmatchedManual,
	StatusUnmatchedERP,
}

// AccountReconciliation is one row of the account-level result: the
// aggregates of both sources for a single chart-of-accounts code, the
// variances between them, and the classification. Built fresh on every
// run and never mutated afterwards.
type AccountReconciliation struct {
	AccountCode int64  `json:"account_code"`
	AccountName string `json:"account_name"`

	ManualDebit    float64 `json:"manual_debit"`
	ManualCredit   float64 `json:"manual_credit"`
	ManualNet      float64 `json:"manual_net"`
	ManualTxnCount int     `json:"manual_txn_count"`

	ERPDebit    float64 `json:"erp_debit"`
	ERPCredit   float64 `json:"erp_credit"`
	ERPNet      float64 `json:"erp_net"`
	ERPTxnCount int     `json:"erp_txn_count"`

	DebitVariance  float64 `json:"debit_variance"`
	CreditVariance float64 `json:"credit_variance"`
	NetVariance    float64 `json:"net_variance"`
	AbsVariance    float64 `json:"abs_variance"`

	Status Status `json:"status"`
}

// TransactionDetail is one original journal line in the neutral
// drill-down schema, tagged with its source. No matching between
// individual manual and ERP lines is attempted.
type TransactionDetail struct {
	Date        time.Time `json:"date"`
	AccountCode float64   `json:"account_code"` // NaN when the line had no usable code
	AccountName string    `json:"account_name"`
	Description string    `json:"description"`
	Debit       float64   `json:"debit"`
	Credit      float64   `json:"credit"`
	Net         float64   `json:"net"`
	Reference   string    `json:"reference"`
	RowID       int       `json:"row_id"`
	Source      string    `json:"source"`
}

// MarshalJSON renders NaN cells as null. encoding/json rejects NaN
// outright, and a missing cell must not fail the whole response.
func (t TransactionDetail) MarshalJSON() ([]byte, error) {
	type wire struct {
		Date        time.Time `json:"date"`
		AccountCode *float64  `json:"account_code"`
		AccountName string    `json:"account_name"`
		Description string    `json:"description"`
		Debit       *float64  `json:"debit"`
		Credit      *float64  `json:"credit"`
		Net         *float64  `json:"net"`
		Reference   string    `json:"reference"`
		RowID       int       `json:"row_id"`
		Source      string    `json:"source"`
	}
	return json.Marshal(wire{
		Date:        t.Date,
		AccountCode: nanNull(t.AccountCode),
		AccountName: t.AccountName,
		Description: t.Description,
		Debit:       nanNull(t.Debit),
		Credit:      nanNull(t.Credit),
		Net:         nanNull(t.Net),
		Reference:   t.Reference,
		RowID:       t.RowID,
		Source:      t.Source,
	})
}

func nanNull(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

// VarianceSummary aggregates an account-level result table.
type VarianceSummary struct {
	TotalAccounts   int `json:"total_coa_accounts"`
	MatchedCount    int `json:"matched_count"`
	ToleranceCount  int `json:"tolerance_count"`
	VarianceCount   int `json:"variance_count"`
	UnmatchedManual int `json:"unmatched_manual"`
	UnmatchedERP    int `json:"unmatched_erp"`

	TotalManualDebit  float64 `json:"total_manual_debit"`
	TotalManualCredit float64 `json:"total_manual_credit"`
	TotalERPDebit     float64 `json:"total_erp_debit"`
	TotalERPCredit    float64 `json:"total_erp_credit"`

	TotalDebitVariance  float64 `json:"total_debit_variance"`
	TotalCreditVariance float64 `json:"total_credit_variance"`
	TotalNetVariance    float64 `json:"total_net_variance"`

	// Worst offender: account at index 0 of the sorted result table.
	LargestVarianceAccount *int64  `json:"largest_variance_coa"`
	LargestVarianceAmount  float64 `json:"largest_variance_amount"`
}

// MatchRate returns the percentage of accounts classified MATCHED or
// WITHIN_TOLERANCE out of all accounts.
func (s VarianceSummary) MatchRate() float64 {
	if s.TotalAccounts == 0 {
		return 0
	}
	return float64(s.MatchedCount+s.ToleranceCount) / float64(s.TotalAccounts) * 100
}
