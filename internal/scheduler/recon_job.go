package scheduler

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/aurix/reconciler/internal/audit"
	"github.com/aurix/reconciler/internal/ledger"
	"github.com/aurix/reconciler/internal/pipeline"
)

// ReconJob re-runs the reconciliation pipeline on a workbook that lives
// on disk and is refreshed out of band (shared folder, nightly export).
type ReconJob struct {
	log          zerolog.Logger
	runner       *pipeline.Runner
	auditRepo    *audit.Repository
	workbookPath string

	// Guards against overlapping runs when a run outlasts the schedule
	// interval.
	mu      sync.Mutex
	running bool
}

// ReconJobConfig holds configuration for the scheduled reconciliation job
type ReconJobConfig struct {
	Log          zerolog.Logger
	Runner       *pipeline.Runner
	AuditRepo    *audit.Repository
	WorkbookPath string
}

// NewReconJob creates a scheduled reconciliation job
func NewReconJob(cfg ReconJobConfig) *ReconJob {
	return &ReconJob{
		log:          cfg.Log.With().Str("job", "scheduled_recon").Logger(),
		runner:       cfg.Runner,
		auditRepo:    cfg.AuditRepo,
		workbookPath: cfg.WorkbookPath,
	}
}

// Name returns the job name
func (j *ReconJob) Name() string {
	return "scheduled_recon"
}

// Run executes one reconciliation of the watched workbook
func (j *ReconJob) Run() error {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		j.log.Warn().Msg("Previous run still in progress, skipping")
		return nil
	}
	j.running = true
	j.mu.Unlock()

	defer func() {
		j.mu.Lock()
		j.running = false
		j.mu.Unlock()
	}()

	wb, err := ledger.OpenWorkbook(j.workbookPath)
	if err != nil {
		return fmt.Errorf("failed to load watched workbook: %w", err)
	}

	payload := j.runner.Run(wb, nil)

	if err := j.auditRepo.SaveRun(payload.RunID, payload.AuditTrail); err != nil {
		return fmt.Errorf("failed to persist audit trail: %w", err)
	}

	j.log.Info().
		Str("run_id", payload.RunID).
		Int("accounts", payload.Summary.TotalAccounts).
		Int("variance", payload.Summary.VarianceCount).
		Int("anomalies", len(payload.Statistical)+len(payload.RuleBased)).
		Msg("Scheduled reconciliation finished")
	return nil
}
