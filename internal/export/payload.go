package export

import (
	"github.com/aurix/reconciler/internal/anomaly"
	"github.com/aurix/reconciler/internal/audit"
	"github.com/aurix/reconciler/internal/forecast"
	"github.com/aurix/reconciler/internal/recon"
)

// Payload is the full data product of one reconciliation run, as
// handed to the reporting layer. The core never reads it back.
type Payload struct {
	RunID        string                         `json:"run_id"`
	Summary      recon.VarianceSummary          `json:"summary"`
	Accounts     []recon.AccountReconciliation  `json:"accounts"`
	Transactions []recon.TransactionDetail      `json:"transactions"`
	Statistical  []anomaly.Finding              `json:"statistical_anomalies,omitempty"`
	RuleBased    []anomaly.Finding              `json:"rule_based_anomalies"`
	Monthly      []forecast.MonthlyVariance     `json:"monthly_variance,omitempty"`
	Forecasts    map[string]*forecast.Result    `json:"forecasts,omitempty"`
	AuditTrail   []audit.Entry                  `json:"audit_trail"`
}
