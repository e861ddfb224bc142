package domain

// RiskLevel enumerates guardrail outcomes.
type RiskLevel string

const (
	RiskSafe     RiskLevel = "safe"
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// RiskAssessment is the advisory guardrail verdict attached to an executing event.
// It never blocks execution.
type RiskAssessment struct {
	Level        RiskLevel `json:"level"`
	Reasons      []string  `json:"reasons,omitempty"`
	MatchedRules []string  `json:"matchedRules,omitempty"`
}

// Elevated reports whether the assessment is worth surfacing.
func (r RiskAssessment) Elevated() bool {
	return r.Level != "" && r.Level != RiskSafe
}
