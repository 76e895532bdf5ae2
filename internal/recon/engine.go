package recon

import (
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/aurix/reconciler/internal/audit"
	"github.com/aurix/reconciler/internal/ledger"
)

// Config holds the engine's reconciliation parameters.
//
// Classification uses the absolute tolerance only. The percentage
// tolerance is accepted and recorded on the audit trail for parity
// with the configuration surface, but no computation reads it yet.
type Config struct {
	ToleranceAmount     float64 // currency units
	TolerancePercentage float64
}

// Engine performs account-level and transaction-level reconciliation
// between the cleaned manual journal and the cleaned ERP export.
//
// An Engine owns one audit log and is meant to live for one run; runs
// that must execute concurrently each need their own instance.
type Engine struct {
	cfg   Config
	audit *audit.Log
	log   zerolog.Logger
}

// NewEngine creates an engine recording onto the given audit log.
func NewEngine(cfg Config, auditLog *audit.Log, log zerolog.Logger) *Engine {
	e := &Engine{
		cfg:   cfg,
		audit: auditLog,
		log:   log.With().Str("component", "engine").Logger(),
	}
	e.audit.Record("ENGINE_INIT", map[string]any{
		"tolerance_amount":     cfg.ToleranceAmount,
		"tolerance_percentage": cfg.TolerancePercentage,
	})
	return e
}

// AuditLog exposes the engine's audit trail, read-only.
func (e *Engine) AuditLog() []audit.Entry {
	return e.audit.Entries()
}

// sideAggregate holds one source's aggregates for one account code.
type sideAggregate struct {
	debit    float64
	credit   float64
	net      float64
	name     string
	txnCount int
}

// ReconcileAccounts aggregates both sources by account code, merges the
// aggregates with a full outer join, computes variances and classifies
// each account. The result is sorted by absolute net variance
// descending; ties break on account code ascending so the ordering is
// deterministic. Index 0 is the worst offender, which downstream
// consumers rely on.
func (e *Engine) ReconcileAccounts(manual, erp []ledger.Record) []AccountReconciliation {
	e.audit.Record("ACCOUNT_RECON_START", map[string]any{
		"manual_rows": len(manual),
		"erp_rows":    len(erp),
	})

	manualAgg := aggregateByAccount(manual)
	erpAgg := aggregateByAccount(erp)

	results := make([]AccountReconciliation, 0, len(manualAgg)+len(erpAgg))
	for _, code := range unionCodes(manualAgg, erpAgg) {
		m, hasManual := manualAgg[code]
		d, hasERP := erpAgg[code]

		row := AccountReconciliation{
			AccountCode:    code,
			ManualDebit:    m.debit,
			ManualCredit:   m.credit,
			ManualNet:      m.net,
			ManualTxnCount: m.txnCount,
			ERPDebit:       d.debit,
			ERPCredit:      d.credit,
			ERPNet:         d.net,
			ERPTxnCount:    d.txnCount,
		}

		row.DebitVariance = row.ManualDebit - row.ERPDebit
		row.CreditVariance = row.ManualCredit - row.ERPCredit
		row.NetVariance = row.ManualNet - row.ERPNet
		row.AbsVariance = math.Abs(row.NetVariance)

		// Status must be derived while the presence signal is still
		// available; the zero-filled sums alone cannot distinguish an
		// absent side from a side that nets to zero.
		row.Status = e.classify(hasManual && m.txnCount > 0, hasERP && d.txnCount > 0, row.NetVariance)

		// Prefer the manual-side display name, fall back to the ERP side.
		row.AccountName = m.name
		if row.AccountName == "" {
			row.AccountName = d.name
		}

		results = append(results, row)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].AbsVariance != results[j].AbsVariance {
			return results[i].AbsVariance > results[j].AbsVariance
		}
		return results[i].AccountCode < results[j].AccountCode
	})

	e.audit.Record("ACCOUNT_RECON_END", map[string]any{
		"total_coa": len(results),
		"matched":   countStatus(results, StatusMatched),
		"variance":  countStatus(results, StatusVariance),
	})
	return results
}

// classify applies the status precedence rules. The order is strict:
// manual-side absence wins over ERP-side absence, and both win over the
// variance arithmetic.
func (e *Engine) classify(manualPresent, erpPresent bool, netVariance float64) Status {
	switch {
	case !manualPresent:
		return StatusUnmatchedERP
	case !erpPresent:
		return StatusUnmatchedManual
	case netVariance == 0:
		// Bit-exact ledger equality, deliberately not epsilon-based.
		return StatusMatched
	case math.Abs(netVariance) <= e.cfg.ToleranceAmount:
		return StatusWithinTolerance
	default:
		return StatusVariance
	}
}

// ReconcileTransactions projects both sources into the neutral
// drill-down schema, optionally restricted to one account code, and
// returns the combined listing sorted by (account code, date, net).
func (e *Engine) ReconcileTransactions(manual, erp []ledger.Record, accountFilter *int64) []TransactionDetail {
	details := map[string]any{}
	if accountFilter != nil {
		details["coa_filter"] = *accountFilter
	} else {
		details["coa_filter"] = nil
	}
	e.audit.Record("TXN_RECON_START", details)

	combined := make([]TransactionDetail, 0, len(manual)+len(erp))
	combined = appendDetails(combined, manual, accountFilter)
	combined = appendDetails(combined, erp, accountFilter)

	// Stable so the manual-then-ERP concatenation order survives full ties.
	sort.SliceStable(combined, func(i, j int) bool {
		a, b := combined[i], combined[j]
		if c := compareNaNLast(a.AccountCode, b.AccountCode); c != 0 {
			return c < 0
		}
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if c := compareNaNLast(a.Net, b.Net); c != 0 {
			return c < 0
		}
		return false
	})

	e.audit.Record("TXN_RECON_END", map[string]any{
		"total_transactions": len(combined),
	})
	return combined
}

// Summarize produces the single aggregate record over a sorted
// account-level result table.
func (e *Engine) Summarize(accounts []AccountReconciliation) VarianceSummary {
	summary := VarianceSummary{TotalAccounts: len(accounts)}

	for _, row := range accounts {
		summary.TotalManualDebit += row.ManualDebit
		summary.TotalManualCredit += row.ManualCredit
		summary.TotalERPDebit += row.ERPDebit
		summary.TotalERPCredit += row.ERPCredit
		summary.TotalNetVariance += row.NetVariance

		switch row.Status {
		case StatusMatched:
			summary.MatchedCount++
		case StatusWithinTolerance:
			summary.ToleranceCount++
		case StatusVariance:
			summary.VarianceCount++
		case StatusUnmatchedManual:
			summary.UnmatchedManual++
		case StatusUnmatchedERP:
			summary.UnmatchedERP++
		}
	}

	summary.TotalDebitVariance = summary.TotalManualDebit - summary.TotalERPDebit
	summary.TotalCreditVariance = summary.TotalManualCredit - summary.TotalERPCredit

	if len(accounts) > 0 {
		code := accounts[0].AccountCode
		summary.LargestVarianceAccount = &code
		summary.LargestVarianceAmount = accounts[0].AbsVariance
	}

	e.audit.Record("SUMMARY_GENERATED", map[string]any{
		"total_coa_accounts": summary.TotalAccounts,
		"matched_count":      summary.MatchedCount,
		"tolerance_count":    summary.ToleranceCount,
		"variance_count":     summary.VarianceCount,
		"unmatched_manual":   summary.UnmatchedManual,
		"unmatched_erp":      summary.UnmatchedERP,
		"total_net_variance": summary.TotalNetVariance,
	})
	return summary
}

// aggregateByAccount groups records by integer account code. Records
// without a usable code are excluded from account-level aggregation.
// NaN cells contribute nothing to the sums.
func aggregateByAccount(records []ledger.Record) map[int64]sideAggregate {
	aggs := make(map[int64]sideAggregate)
	for _, rec := range records {
		if !rec.HasAccountCode() {
			continue
		}
		agg := aggs[rec.Code()]
		agg.debit += nanToZero(rec.Debit)
		agg.credit += nanToZero(rec.Credit)
		agg.net += nanToZero(rec.Net)
		agg.txnCount++
		if agg.name == "" {
			agg.name = rec.AccountName
		}
		aggs[rec.Code()] = agg
	}
	return aggs
}

// unionCodes returns every account code present on either side, sorted.
func unionCodes(manual, erp map[int64]sideAggregate) []int64 {
	seen := make(map[int64]bool, len(manual)+len(erp))
	codes := make([]int64, 0, len(manual)+len(erp))
	for code := range manual {
		if !seen[code] {
			seen[code] = true
			codes = append(codes, code)
		}
	}
	for code := range erp {
		if !seen[code] {
			seen[code] = true
			codes = append(codes, code)
		}
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}

func appendDetails(out []TransactionDetail, records []ledger.Record, accountFilter *int64) []TransactionDetail {
	for _, rec := range records {
		if accountFilter != nil && (!rec.HasAccountCode() || rec.Code() != *accountFilter) {
			continue
		}
		out = append(out, TransactionDetail{
			Date:        rec.Date,
			AccountCode: rec.AccountCode,
			AccountName: rec.AccountName,
			Description: rec.Description,
			Debit:       rec.Debit,
			Credit:      rec.Credit,
			Net:         rec.Net,
			Reference:   rec.Reference,
			RowID:       rec.RowID,
			Source:      string(rec.Source),
		})
	}
	return out
}

func countStatus(accounts []AccountReconciliation, status Status) int {
	n := 0
	for _, row := range accounts {
		if row.Status == status {
			n++
		}
	}
	return n
}

func nanToZero(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}

// compareNaNLast orders two floats ascending with NaN sorted after any
// real value, matching how the drill-down listing treats blank cells.
func compareNaNLast(a, b float64) int {
	aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
	switch {
	case aNaN && bNaN:
		return 0
	case aNaN:
		return 1
	case bNaN:
		return -1
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
