package anomaly

import (
	"fmt"
	"math"
	"sort"

	"github.com/aurix/reconciler/internal/recon"
	"github.com/aurix/reconciler/pkg/formulas"
)

// Rule thresholds, in currency units resp. ratios.
const (
	largeUnmatchedThreshold = 10000.0
	ratioEpsilon            = 0.01
	extremeRatio            = 100.0
	nearZeroRatio           = 0.01
)

// DetectRuleBased runs the purely rule-based anomaly scan. It needs no
// statistics capability and is always available as a fallback.
func DetectRuleBased(accounts []recon.AccountReconciliation, summary recon.VarianceSummary) []Finding {
	var findings []Finding
	findings = append(findings, extremeVarianceRule(accounts)...)
	findings = append(findings, largeUnmatchedRule(accounts)...)
	findings = append(findings, patternMismatchRule(accounts)...)

	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Severity.rank() < findings[j].Severity.rank()
	})
	if len(findings) > maxRuleBasedFindings {
		findings = findings[:maxRuleBasedFindings]
	}
	return findings
}

// extremeVarianceRule flags accounts whose absolute net variance sits
// beyond mean + 3·stddev of all absolute net variances (3·mean when the
// spread is degenerate).
func extremeVarianceRule(accounts []recon.AccountReconciliation) []Finding {
	if len(accounts) == 0 {
		return nil
	}

	absValues := make([]float64, len(accounts))
	for i, row := range accounts {
		absValues[i] = row.AbsVariance
	}
	mean := formulas.Mean(absValues)
	std := formulas.StdDev(absValues)

	threshold := mean * 3
	if std > 0 {
		threshold = mean + 3*std
	}

	var findings []Finding
	for _, row := range accounts {
		if row.AbsVariance <= threshold {
			continue
		}
		code := row.AccountCode
		findings = append(findings, Finding{
			Severity:    SeverityHigh,
			Type:        "Extreme Variance",
			AccountCode: &code,
			Description: fmt.Sprintf("COA %d has an extreme variance: SAR %.2f", code, row.NetVariance),
			Amount:      row.NetVariance,
			Method:      MethodRuleBased,
		})
	}
	return findings
}

// largeUnmatchedRule flags one-sided accounts whose present-side net
// amount is large enough to matter on its own.
func largeUnmatchedRule(accounts []recon.AccountReconciliation) []Finding {
	var findings []Finding
	for _, row := range accounts {
		code := row.AccountCode
		switch row.Status {
		case recon.StatusUnmatchedManual:
			if math.Abs(row.ManualNet) > largeUnmatchedThreshold {
				findings = append(findings, Finding{
					Severity:    SeverityMedium,
					Type:        "Large Unmatched (Manual)",
					AccountCode: &code,
					Description: fmt.Sprintf("COA %d only exists in the manual journal with a large amount: SAR %.2f", code, row.ManualNet),
					Amount:      row.ManualNet,
					Method:      MethodRuleBased,
				})
			}
		case recon.StatusUnmatchedERP:
			if math.Abs(row.ERPNet) > largeUnmatchedThreshold {
				findings = append(findings, Finding{
					Severity:    SeverityMedium,
					Type:        "Large Unmatched (ERP)",
					AccountCode: &code,
					Description: fmt.Sprintf("COA %d only exists in the ERP export with a large amount: SAR %.2f", code, row.ERPNet),
					Amount:      row.ERPNet,
					Method:      MethodRuleBased,
				})
			}
		}
	}
	return findings
}

// patternMismatchRule flags accounts where one side books almost pure
// debits while the other books almost pure credits.
func patternMismatchRule(accounts []recon.AccountReconciliation) []Finding {
	var findings []Finding
	for _, row := range accounts {
		if row.Status == recon.StatusUnmatchedManual || row.Status == recon.StatusUnmatchedERP {
			continue
		}

		manualRatio := debitCreditRatio(row.ManualDebit, row.ManualCredit)
		erpRatio := debitCreditRatio(row.ERPDebit, row.ERPCredit)

		if (manualRatio > extremeRatio && erpRatio < nearZeroRatio) ||
			(manualRatio < nearZeroRatio && erpRatio > extremeRatio) {
			code := row.AccountCode
			findings = append(findings, Finding{
				Severity:    SeverityLow,
				Type:        "Debit/Credit Pattern Mismatch",
				AccountCode: &code,
				Description: fmt.Sprintf("COA %d books opposite debit/credit patterns in the manual journal and the ERP export", code),
				Amount:      row.NetVariance,
				Method:      MethodRuleBased,
			})
		}
	}
	return findings
}

// debitCreditRatio guards the division with a small epsilon; a side
// with zero credits is treated as infinitely debit-heavy.
func debitCreditRatio(debit, credit float64) float64 {
	if credit == 0 {
		return math.Inf(1)
	}
	return debit / (credit + ratioEpsilon)
}
