package anomaly

import (
	"fmt"
	"math"

	"github.com/aurix/reconciler/internal/recon"
	"github.com/aurix/reconciler/pkg/formulas"
)

// varianceColumn selects one variance figure off an account row.
type varianceColumn struct {
	name  string
	value func(recon.AccountReconciliation) float64
}

// varianceColumns are scanned independently by the z-score detector.
var varianceColumns = []varianceColumn{
	{"net_variance", func(a recon.AccountReconciliation) float64 { return a.NetVariance }},
	{"debit_variance", func(a recon.AccountReconciliation) float64 { return a.DebitVariance }},
	{"credit_variance", func(a recon.AccountReconciliation) float64 { return a.CreditVariance }},
}

// detectZScore flags accounts whose variance deviates from the
// column mean by more than threshold sample standard deviations.
// Columns with fewer than 3 values or zero standard deviation are
// degenerate and produce no findings.
func detectZScore(accounts []recon.AccountReconciliation, threshold float64) []Finding {
	var findings []Finding

	for _, col := range varianceColumns {
		if len(accounts) < 3 {
			continue
		}

		values := make([]float64, len(accounts))
		for i, row := range accounts {
			values[i] = col.value(row)
		}

		std := formulas.StdDev(values)
		if std == 0 {
			continue
		}
		mean := formulas.Mean(values)

		for i, row := range accounts {
			z := (values[i] - mean) / std
			if math.Abs(z) <= threshold {
				continue
			}

			severity := SeverityMedium
			if math.Abs(z) > 3.5 {
				severity = SeverityHigh
			}

			code := row.AccountCode
			findings = append(findings, Finding{
				Severity:    severity,
				Type:        fmt.Sprintf("Z-Score Outlier (%s)", col.name),
				AccountCode: &code,
				Description: fmt.Sprintf("COA %d: %s = SAR %.2f (z-score: %.2f)", code, col.name, values[i], z),
				Amount:      values[i],
				ZScore:      z,
				Method:      MethodZScore,
			})
		}
	}
	return findings
}
