package recon

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurix/reconciler/internal/audit"
	"github.com/aurix/reconciler/internal/ledger"
	"github.com/aurix/reconciler/pkg/logger"
)

func testEngine(tolerance float64) *Engine {
	log := logger.New(logger.Config{Level: "error"})
	return NewEngine(Config{ToleranceAmount: tolerance, TolerancePercentage: 0.001}, audit.NewLog(), log)
}

func rec(source ledger.Source, code float64, name string, debit, credit, net float64, day int) ledger.Record {
	return ledger.Record{
		Date:        time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC),
		AccountCode: code,
		AccountName: name,
		Debit:       debit,
		Credit:      credit,
		Net:         net,
		Source:      source,
	}
}

func TestReconcileAccountsEndToEnd(t *testing.T) {
	manual := []ledger.Record{
		rec(ledger.SourceManual, 1001, "Cash", 1000, 0, 1000, 1),
		rec(ledger.SourceManual, 1001, "Cash", 500, 0, 500, 2),
		rec(ledger.SourceManual, 1001, "Cash", 200, 0, 200, 3),
	}
	erp := []ledger.Record{
		rec(ledger.SourceERP, 1001, "Cash Account", 1000, 0, 1000, 1),
		rec(ledger.SourceERP, 1001, "Cash Account", 500, 0, 500, 2),
	}

	tests := []struct {
		name       string
		tolerance  float64
		wantStatus Status
	}{
		{name: "default tolerance flags variance", tolerance: 1.0, wantStatus: StatusVariance},
		{name: "wide tolerance absorbs variance", tolerance: 200.0, wantStatus: StatusWithinTolerance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accounts := testEngine(tt.tolerance).ReconcileAccounts(manual, erp)
			require.Len(t, accounts, 1)

			row := accounts[0]
			assert.Equal(t, int64(1001), row.AccountCode)
			assert.Equal(t, 1700.0, row.ManualNet)
			assert.Equal(t, 1500.0, row.ERPNet)
			assert.Equal(t, 200.0, row.NetVariance)
			assert.Equal(t, 200.0, row.AbsVariance)
			assert.Equal(t, 3, row.ManualTxnCount)
			assert.Equal(t, 2, row.ERPTxnCount)
			assert.Equal(t, tt.wantStatus, row.Status)
			assert.Equal(t, "Cash", row.AccountName, "manual-side name wins")
		})
	}
}

func TestReconcileAccountsOneSided(t *testing.T) {
	manualOnly := []ledger.Record{rec(ledger.SourceManual, 3001, "Prepaid", 250, 0, 250, 5)}
	erpOnly := []ledger.Record{rec(ledger.SourceERP, 4001, "Accruals", 0, 80, -80, 6)}

	accounts := testEngine(1.0).ReconcileAccounts(manualOnly, erpOnly)
	require.Len(t, accounts, 2)

	byCode := map[int64]AccountReconciliation{}
	for _, row := range accounts {
		byCode[row.AccountCode] = row
	}

	// Absent ERP side => UNMATCHED_MANUAL, zero-filled ERP aggregates.
	prepaid := byCode[3001]
	assert.Equal(t, StatusUnmatchedManual, prepaid.Status)
	assert.Equal(t, 0.0, prepaid.ERPDebit)
	assert.Equal(t, 0, prepaid.ERPTxnCount)
	assert.Equal(t, 250.0, prepaid.NetVariance)

	// Absent manual side => UNMATCHED_ERP regardless of variance math.
	accruals := byCode[4001]
	assert.Equal(t, StatusUnmatchedERP, accruals.Status)
	assert.Equal(t, 0, accruals.ManualTxnCount)
	assert.Equal(t, "Accruals", accruals.AccountName, "ERP name used when manual side is absent")
}

func TestReconcileAccountsExactMatch(t *testing.T) {
	manual := []ledger.Record{rec(ledger.SourceManual, 5001, "Zakat", 300, 0, 300, 1)}
	erp := []ledger.Record{rec(ledger.SourceERP, 5001, "Zakat", 300, 0, 300, 1)}

	accounts := testEngine(1.0).ReconcileAccounts(manual, erp)
	require.Len(t, accounts, 1)
	assert.Equal(t, StatusMatched, accounts[0].Status)
	assert.Equal(t, 0.0, accounts[0].NetVariance)
}

func TestReconcileAccountsVarianceDefinitions(t *testing.T) {
	manual := []ledger.Record{
		rec(ledger.SourceManual, 1001, "A", 700, 100, 600, 1),
		rec(ledger.SourceManual, 2001, "B", 50, 0, 50, 1),
	}
	erp := []ledger.Record{
		rec(ledger.SourceERP, 1001, "A", 500, 250, 250, 1),
		rec(ledger.SourceERP, 2001, "B", 40, 0, 40, 1),
	}

	accounts := testEngine(1.0).ReconcileAccounts(manual, erp)
	require.Len(t, accounts, 2)

	for _, row := range accounts {
		assert.Equal(t, row.ManualNet-row.ERPNet, row.NetVariance)
		assert.Equal(t, row.ManualDebit-row.ERPDebit, row.DebitVariance)
		assert.Equal(t, row.ManualCredit-row.ERPCredit, row.CreditVariance)
		assert.Equal(t, math.Abs(row.NetVariance), row.AbsVariance)
	}
}

func TestReconcileAccountsSortedByAbsVariance(t *testing.T) {
	manual := []ledger.Record{
		rec(ledger.SourceManual, 1001, "A", 100, 0, 100, 1),
		rec(ledger.SourceManual, 2001, "B", 900, 0, 900, 1),
		rec(ledger.SourceManual, 3001, "C", 10, 0, 10, 1),
	}
	erp := []ledger.Record{
		rec(ledger.SourceERP, 1001, "A", 95, 0, 95, 1),
		rec(ledger.SourceERP, 2001, "B", 400, 0, 400, 1),
		rec(ledger.SourceERP, 3001, "C", 10, 0, 10, 1),
	}

	engine := testEngine(1.0)
	accounts := engine.ReconcileAccounts(manual, erp)
	require.Len(t, accounts, 3)

	assert.Equal(t, int64(2001), accounts[0].AccountCode, "worst offender first")
	assert.Equal(t, int64(1001), accounts[1].AccountCode)
	assert.Equal(t, int64(3001), accounts[2].AccountCode)

	summary := engine.Summarize(accounts)
	require.NotNil(t, summary.LargestVarianceAccount)
	assert.Equal(t, accounts[0].AccountCode, *summary.LargestVarianceAccount)
	assert.Equal(t, accounts[0].AbsVariance, summary.LargestVarianceAmount)
}

func TestReconcileAccountsSkipsRowsWithoutCode(t *testing.T) {
	manual := []ledger.Record{
		rec(ledger.SourceManual, 1001, "A", 100, 0, 100, 1),
		rec(ledger.SourceManual, math.NaN(), "", 999, 0, 999, 1),
	}

	accounts := testEngine(1.0).ReconcileAccounts(manual, nil)
	require.Len(t, accounts, 1)
	assert.Equal(t, 100.0, accounts[0].ManualNet, "rows without a code stay out of account aggregation")
}

func TestSummarizeStatusCountInvariant(t *testing.T) {
	manual := []ledger.Record{
		rec(ledger.SourceManual, 1001, "A", 100, 0, 100, 1),
		rec(ledger.SourceManual, 2001, "B", 200, 0, 200, 1),
		rec(ledger.SourceManual, 3001, "C", 300, 0, 300, 1),
	}
	erp := []ledger.Record{
		rec(ledger.SourceERP, 1001, "A", 100, 0, 100, 1),
		rec(ledger.SourceERP, 2001, "B", 190, 0, 190, 1),
		rec(ledger.SourceERP, 4001, "D", 40, 0, 40, 1),
	}

	engine := testEngine(1.0)
	accounts := engine.ReconcileAccounts(manual, erp)
	summary := engine.Summarize(accounts)

	total := summary.MatchedCount + summary.ToleranceCount + summary.VarianceCount +
		summary.UnmatchedManual + summary.UnmatchedERP
	assert.Equal(t, summary.TotalAccounts, total)
	assert.Equal(t, 4, summary.TotalAccounts)
}

func TestSummarizeEmptyInput(t *testing.T) {
	engine := testEngine(1.0)
	summary := engine.Summarize(nil)

	assert.Equal(t, 0, summary.TotalAccounts)
	assert.Nil(t, summary.LargestVarianceAccount)
	assert.Equal(t, 0.0, summary.LargestVarianceAmount)
	assert.Equal(t, 0.0, summary.MatchRate())
}

func TestReconcileTransactionsOrderingAndFilter(t *testing.T) {
	manual := []ledger.Record{
		rec(ledger.SourceManual, 2001, "B", 10, 0, 10, 2),
		rec(ledger.SourceManual, 1001, "A", 20, 0, 20, 5),
	}
	erp := []ledger.Record{
		rec(ledger.SourceERP, 1001, "A", 5, 0, 5, 5),
		rec(ledger.SourceERP, 1001, "A", 7, 0, 7, 1),
	}

	engine := testEngine(1.0)
	all := engine.ReconcileTransactions(manual, erp, nil)
	require.Len(t, all, 4)

	var codes []float64
	for _, txn := range all {
		codes = append(codes, txn.AccountCode)
	}
	assert.Equal(t, []float64{1001, 1001, 1001, 2001}, codes)

	// Within account 1001: day 1 first, then the two day-5 rows by net.
	assert.Equal(t, 7.0, all[0].Net)
	assert.Equal(t, 5.0, all[1].Net)
	assert.Equal(t, 20.0, all[2].Net)

	filter := int64(2001)
	filtered := engine.ReconcileTransactions(manual, erp, &filter)
	require.Len(t, filtered, 1)
	assert.Equal(t, "MANUAL", filtered[0].Source)
}

func TestAuditTrailOrder(t *testing.T) {
	engine := testEngine(1.0)
	manual := []ledger.Record{rec(ledger.SourceManual, 1001, "A", 1, 0, 1, 1)}

	accounts := engine.ReconcileAccounts(manual, nil)
	engine.ReconcileTransactions(manual, nil, nil)
	engine.Summarize(accounts)

	var actions []string
	for _, e := range engine.AuditLog() {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []string{
		"ENGINE_INIT",
		"ACCOUNT_RECON_START", "ACCOUNT_RECON_END",
		"TXN_RECON_START", "TXN_RECON_END",
		"SUMMARY_GENERATED",
	}, actions)
}

func TestTransactionDetailMarshalsNaNAsNull(t *testing.T) {
	txn := TransactionDetail{
		Date:        time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC),
		AccountCode: math.NaN(),
		Debit:       500,
		Credit:      math.NaN(),
		Net:         math.NaN(),
		Source:      "MANUAL",
	}

	raw, err := json.Marshal(txn)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Nil(t, decoded["account_code"])
	assert.Nil(t, decoded["credit"])
	assert.Nil(t, decoded["net"])
	assert.Equal(t, 500.0, decoded["debit"])
}
