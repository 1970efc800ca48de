package ai

// Assessment captures the structured verdict expected from an AI assessor.
type Assessment struct {
	Narrative       string   `json:"narrative"`
	RiskScore       *float64 `json:"risk_score,omitempty"`
	RiskLevel       string   `json:"risk_level,omitempty"`
	Flags           []string `json:"flags,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
	Confidence      *float64 `json:"confidence,omitempty"`
	Blocked         bool     `json:"-"`
}

// Input carries the message text plus the rule-based signals handed to the
// assessor as context.
type Input struct {
	Text           string
	Features       map[string]bool
	SuspiciousURLs []string
	UrgentPhrases  []string
	HeuristicScore float64
	HeuristicLevel string
}
