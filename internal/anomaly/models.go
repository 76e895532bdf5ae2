package anomaly

// Severity ranks how urgent a finding is.
type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
	SeverityLow    Severity = "LOW"
)

// rank orders severities for sorting and dedup, HIGH first.
func (s Severity) rank() int {
	switch s {
	case SeverityHigh:
		return 0
	case SeverityMedium:
		return 1
	case SeverityLow:
		return 2
	default:
		return 3
	}
}

// Detection method tags carried on findings.
const (
	MethodZScore          = "z_score"
	MethodIsolationForest = "isolation_forest"
	MethodRuleBased       = "rule_based"
)

// Finding is one detected anomaly. Findings are ephemeral: recomputed
// per request and never persisted.
type Finding struct {
	Severity    Severity `json:"severity"`
	Type        string   `json:"type"`
	AccountCode *int64   `json:"coa"` // nil when not tied to one account
	Description string   `json:"description"`
	Amount      float64  `json:"amount"`
	ZScore      float64  `json:"z_score,omitempty"`
	Score       float64  `json:"anomaly_score,omitempty"`
	Method      string   `json:"method"`
}
