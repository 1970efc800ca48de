package api

import (
	"time"

	"phishing-detector/internal/store"
)

// AnalyzeRequest is the inbound payload shared by the analysis endpoints.
type AnalyzeRequest struct {
	Text string `json:"text"`
}

// SuspiciousElements groups the concrete artifacts backing the feature
// flags, keyed the way the browser extension expects them.
type SuspiciousElements struct {
	URLs              []string `json:"urls"`
	UrgentPhrases     []string `json:"urgent_phrases"`
	CredentialPhrases []string `json:"credential_phrases"`
	TechnicalIssues   []string `json:"technical_issues"`
	AIFlags           []string `json:"ai_flags"`
}

// AnalysisResponse is the full verdict returned by POST /analyze_text.
type AnalysisResponse struct {
	Result                  string             `json:"result"`
	RiskLevel               string             `json:"risk_level"`
	RiskScore               float64            `json:"risk_score"`
	Features                map[string]bool    `json:"features"`
	SuspiciousElements      SuspiciousElements `json:"suspicious_elements"`
	DetailedAnalysis        string             `json:"detailed_analysis,omitempty"`
	SecurityRecommendations []string           `json:"security_recommendations"`
	AnalysisID              string             `json:"analysis_id,omitempty"`
	ProcessingTimeMs        int64              `json:"processing_time_ms,omitempty"`
}

// QuickCheckResponse is the terse verdict of POST /quick_check.
type QuickCheckResponse struct {
	Result string `json:"result"`
}

// LinkAnalysisResponse reports per-link verdicts for POST /analyze_links.
type LinkReport struct {
	URL        string   `json:"url"`
	Suspicious bool     `json:"suspicious"`
	Reasons    []string `json:"reasons,omitempty"`
}

type LinkAnalysisResponse struct {
	Result string       `json:"result"`
	Links  []LinkReport `json:"links"`
}

// AnalysisDTO is the API representation for a persisted analysis.
type AnalysisDTO struct {
	ID               string              `json:"id"`
	Source           string              `json:"source"`
	RiskLevel        string              `json:"risk_level"`
	RiskScore        float64             `json:"risk_score"`
	Summary          string              `json:"summary"`
	Features         map[string]bool     `json:"features"`
	Suspicious       map[string][]string `json:"suspicious_elements"`
	Recommendations  []string            `json:"security_recommendations"`
	DetailedAnalysis string              `json:"detailed_analysis,omitempty"`
	ProcessingTimeMs int64               `json:"processing_time_ms"`
	CreatedAt        time.Time           `json:"created_at"`
}

// AnalysesResponse is the paginated history listing.
type AnalysesResponse struct {
	Items []AnalysisDTO    `json:"items"`
	Total int64            `json:"total"`
	Stats map[string]int64 `json:"stats,omitempty"`
}

// BatchItem is one message inside a batch analysis request.
type BatchItem struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// BatchRequest submits several messages for asynchronous analysis.
type BatchRequest struct {
	Items []BatchItem `json:"items"`
}

// BatchStartResponse describes the asynchronous batch kickoff payload.
type BatchStartResponse struct {
	JobID     string    `json:"job_id"`
	Total     int       `json:"total"`
	StartedAt time.Time `json:"started_at"`
}

// BatchStatusResponse describes the state of the active batch job.
type BatchStatusResponse struct {
	Running   bool   `json:"running"`
	JobID     string `json:"job_id,omitempty"`
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
}

// FromModel converts a store.Analysis into the DTO representation.
func FromModel(a store.Analysis) AnalysisDTO {
	return AnalysisDTO{
		ID:               a.UUID,
		Source:           a.Source,
		RiskLevel:        a.RiskLevel,
		RiskScore:        round2(a.RiskScore),
		Summary:          a.Summary,
		Features:         a.Features(),
		Suspicious:       a.SuspiciousElements(),
		Recommendations:  a.Recommendations(),
		DetailedAnalysis: a.DetailedAnalysis,
		ProcessingTimeMs: a.ProcessingTimeMs,
		CreatedAt:        a.CreatedAt,
	}
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
