package anomaly

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/aurix/reconciler/internal/recon"
	"github.com/aurix/reconciler/pkg/formulas"
)

// Result-size caps for the merged detector outputs.
const (
	maxStatisticalFindings = 15
	maxRuleBasedFindings   = 10
)

// Minimum data requirements of the multivariate detector.
const (
	minOutlierAccounts = 5
	minOutlierFeatures = 2
)

// Config holds detector parameters.
type Config struct {
	ZScoreThreshold float64 // default 2.5
	Contamination   float64 // expected outlier fraction, default 0.1
	Seed            int64   // fixed for reproducible scoring, default 42
}

// DefaultConfig returns the standard detector parameters.
func DefaultConfig() Config {
	return Config{
		ZScoreThreshold: 2.5,
		Contamination:   0.1,
		Seed:            42,
	}
}

// Detector runs statistical anomaly detection over an account-level
// reconciliation table. Stateless between calls; given identical input
// and the same seed the output is identical.
type Detector struct {
	cfg Config
	log zerolog.Logger
}

// NewDetector creates a detector.
func NewDetector(cfg Config, log zerolog.Logger) *Detector {
	return &Detector{
		cfg: cfg,
		log: log.With().Str("component", "anomaly_detector").Logger(),
	}
}

// DetectStatistical runs the z-score and isolation-forest detectors,
// deduplicates by (account, method) keeping the higher severity, sorts
// by severity and truncates to the top findings.
func (d *Detector) DetectStatistical(accounts []recon.AccountReconciliation) []Finding {
	findings := detectZScore(accounts, d.cfg.ZScoreThreshold)
	findings = append(findings, d.detectMultivariate(accounts)...)

	merged := dedupe(findings)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Severity.rank() < merged[j].Severity.rank()
	})

	if len(merged) > maxStatisticalFindings {
		merged = merged[:maxStatisticalFindings]
	}

	d.log.Debug().Int("findings", len(merged)).Msg("Statistical anomaly detection complete")
	return merged
}

// detectMultivariate builds a standardized feature matrix over the
// account rows and scores it with a seeded isolation forest. Fewer than
// 5 accounts or 2 usable features yields no findings.
func (d *Detector) detectMultivariate(accounts []recon.AccountReconciliation) []Finding {
	features := [][]float64{}
	for _, row := range accounts {
		features = append(features, []float64{
			row.NetVariance,
			row.DebitVariance,
			row.CreditVariance,
			float64(row.ManualTxnCount),
			float64(row.ERPTxnCount),
			row.AbsVariance,
		})
	}
	if len(features) < minOutlierAccounts || len(features) > 0 && len(features[0]) < minOutlierFeatures {
		return nil
	}

	// Standardize per column: zero mean, unit variance.
	for col := 0; col < len(features[0]); col++ {
		column := make([]float64, len(features))
		for i := range features {
			column[i] = features[i][col]
		}
		formulas.Standardize(column)
		for i := range features {
			features[i][col] = column[i]
		}
	}

	forest := newIsolationForest(features, d.cfg.Seed)
	scores := forest.ScoreSamples(features)

	// Rows scoring below the contamination quantile are outliers.
	offset := formulas.Percentile(scores, d.cfg.Contamination*100)

	var findings []Finding
	for i, row := range accounts {
		decision := scores[i] - offset
		if decision >= 0 {
			continue
		}

		severity := SeverityMedium
		if decision < -0.3 {
			severity = SeverityHigh
		}

		code := row.AccountCode
		findings = append(findings, Finding{
			Severity:    severity,
			Type:        "Isolation Forest Anomaly",
			AccountCode: &code,
			Description: fmt.Sprintf(
				"COA %d: Multi-dimensional outlier (score: %.3f). Net Var: SAR %.2f, Txn Manual/ERP: %d/%d",
				code, decision, row.NetVariance, row.ManualTxnCount, row.ERPTxnCount,
			),
			Amount: row.NetVariance,
			Score:  decision,
			Method: MethodIsolationForest,
		})
	}

	// Most anomalous first.
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Score < findings[j].Score
	})
	return findings
}

// dedupe keeps one finding per (account, method), preferring the higher
// severity and otherwise the earlier occurrence.
func dedupe(findings []Finding) []Finding {
	type key struct {
		account int64
		noCode  bool
		method  string
	}

	index := map[key]int{}
	var out []Finding
	for _, f := range findings {
		k := key{method: f.Method, noCode: f.AccountCode == nil}
		if f.AccountCode != nil {
			k.account = *f.AccountCode
		}

		if at, seen := index[k]; seen {
			if f.Severity.rank() < out[at].Severity.rank() {
				out[at] = f
			}
			continue
		}
		index[k] = len(out)
		out = append(out, f)
	}
	return out
}
