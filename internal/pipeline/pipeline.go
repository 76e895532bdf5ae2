package pipeline

import (
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aurix/reconciler/internal/anomaly"
	"github.com/aurix/reconciler/internal/audit"
	"github.com/aurix/reconciler/internal/config"
	"github.com/aurix/reconciler/internal/export"
	"github.com/aurix/reconciler/internal/forecast"
	"github.com/aurix/reconciler/internal/ledger"
	"github.com/aurix/reconciler/internal/recon"
)

// forecastPeriods is how many months ahead scheduled and API runs project.
const forecastPeriods = 3

// Runner executes the reconcile-and-summarize pipeline as one atomic
// unit of work. Every run gets its own audit log and engine instance,
// so concurrent runs never share mutable state.
type Runner struct {
	cfg *config.Config
	log zerolog.Logger
}

// NewRunner creates a pipeline runner.
func NewRunner(cfg *config.Config, log zerolog.Logger) *Runner {
	return &Runner{
		cfg: cfg,
		log: log.With().Str("component", "pipeline").Logger(),
	}
}

// Run cleans both raw tables, reconciles them at both levels, and
// attaches anomaly findings and forecasts according to the configured
// capabilities. A tolerance override replaces the configured tolerance
// amount for this run only.
func (r *Runner) Run(wb *ledger.Workbook, toleranceOverride *float64) *export.Payload {
	runID := uuid.NewString()
	auditLog := audit.NewLog()

	tolerance := r.cfg.ToleranceAmount
	if toleranceOverride != nil {
		tolerance = *toleranceOverride
	}

	cleaner := ledger.NewCleaner(auditLog, r.log)
	manual := cleaner.CleanManual(wb.Manual)
	erp := cleaner.CleanERP(wb.ERP)

	engine := recon.NewEngine(recon.Config{
		ToleranceAmount:     tolerance,
		TolerancePercentage: r.cfg.TolerancePercentage,
	}, auditLog, r.log)

	accounts := engine.ReconcileAccounts(manual, erp)
	transactions := engine.ReconcileTransactions(manual, erp, nil)
	summary := engine.Summarize(accounts)

	payload := &export.Payload{
		RunID:        runID,
		Summary:      summary,
		Accounts:     accounts,
		Transactions: transactions,
		RuleBased:    anomaly.DetectRuleBased(accounts, summary),
	}

	if r.cfg.StatisticalAnomalies {
		detector := anomaly.NewDetector(anomaly.Config{
			ZScoreThreshold: r.cfg.ZScoreThreshold,
			Contamination:   r.cfg.Contamination,
			Seed:            r.cfg.AnomalySeed,
		}, r.log)
		payload.Statistical = detector.DetectStatistical(accounts)
	}

	if r.cfg.Forecasting {
		forecaster := forecast.New(r.log)
		payload.Monthly = forecaster.AggregateMonthly(manual, erp)
		payload.Forecasts = map[string]*forecast.Result{}

		for _, column := range []string{forecast.ColumnTotalAbsVariance, forecast.ColumnMatchRate} {
			result, err := forecaster.ForecastLinear(payload.Monthly, column, forecastPeriods)
			if errors.Is(err, forecast.ErrInsufficientData) {
				r.log.Info().Str("column", column).Msg("Not enough monthly history to forecast")
				continue
			}
			if err != nil {
				r.log.Error().Err(err).Str("column", column).Msg("Forecast failed")
				continue
			}
			payload.Forecasts[column] = result
		}
	}

	payload.AuditTrail = auditLog.Entries()

	r.log.Info().
		Str("run_id", runID).
		Int("accounts", summary.TotalAccounts).
		Int("variance", summary.VarianceCount).
		Float64("match_rate", summary.MatchRate()).
		Msg("Reconciliation run complete")
	return payload
}
