package pipeline

import "fmt"

// FailureKind classifies a terminal pipeline failure.
type FailureKind string

const (
	FailureNoContent         FailureKind = "no_content"
	FailureNetwork           FailureKind = "network"
	FailureTimeout           FailureKind = "timeout"
	FailureServerError       FailureKind = "server_error"
	FailureMalformedResponse FailureKind = "malformed_response"
)

// Failure is the terminal error of an Analyze call. It records how many
// network attempts were made before giving up.
type Failure struct {
	Kind     FailureKind
	Message  string
	Attempts int
}

func (f *Failure) Error() string {
	if f.Message == "" {
		return fmt.Sprintf("analysis failed (%s) after %d attempt(s)", f.Kind, f.Attempts)
	}
	return fmt.Sprintf("analysis failed (%s) after %d attempt(s): %s", f.Kind, f.Attempts, f.Message)
}

// Report is the normalized, presentation-ready analysis result.
type Report struct {
	RiskLevel          string              `json:"risk_level"`
	RiskScore          float64             `json:"risk_score"`
	Summary            string              `json:"summary"`
	AIAnalysis         string              `json:"ai_analysis"`
	TechnicalAnalysis  string              `json:"technical_analysis"`
	DetectedFeatures   map[string]bool     `json:"detected_features"`
	SuspiciousElements map[string][]string `json:"suspicious_elements"`
	Recommendations    []string            `json:"recommendations"`
}

// response mirrors the analysis endpoint's JSON payload. Every field is
// optional; normalization substitutes defaults for anything absent.
type response struct {
	Result                  string              `json:"result"`
	RiskLevel               *string             `json:"risk_level"`
	RiskScore               *float64            `json:"risk_score"`
	Features                map[string]bool     `json:"features"`
	SuspiciousElements      map[string][]string `json:"suspicious_elements"`
	DetailedAnalysis        string              `json:"detailed_analysis"`
	TechnicalAnalysis       string              `json:"technical_analysis"`
	SecurityRecommendations []string            `json:"security_recommendations"`
}
