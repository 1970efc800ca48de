package pipeline

import (
	"strings"
	"testing"
)

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func TestNormalizeScoreBounds(t *testing.T) {
	tests := []struct {
		name  string
		score *float64
		want  float64
	}{
		{"absent", nil, 0},
		{"in range", floatPtr(0.42), 0.42},
		{"above one", floatPtr(3.7), 1},
		{"negative", floatPtr(-0.5), 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := normalizeScore(tc.score); got != tc.want {
				t.Fatalf("normalizeScore = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestNormalizeLevel(t *testing.T) {
	tests := []struct {
		name  string
		level *string
		want  string
	}{
		{"absent", nil, "unknown"},
		{"plain", strPtr("high"), "high"},
		{"upper", strPtr("MEDIUM"), "medium"},
		{"legacy verbose", strPtr("HIGH RISK - strong indicators present"), "high"},
		{"garbage", strPtr("critical"), "unknown"},
		{"empty", strPtr(""), "unknown"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := normalizeLevel(tc.level); got != tc.want {
				t.Fatalf("normalizeLevel = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDeriveAIAnalysisPrefersDedicatedField(t *testing.T) {
	payload := response{
		Result:           "report with\n--- AI Analysis ---\nsection text",
		DetailedAnalysis: "Dedicated narrative.",
	}
	if got := deriveAIAnalysis(payload); got != "Dedicated narrative." {
		t.Fatalf("got %q", got)
	}
}

func TestDeriveAIAnalysisSectionExtraction(t *testing.T) {
	payload := response{
		Result: "Phishing Analysis Report\n\n--- Risk Level ---\nHIGH RISK\n\n--- AI Analysis ---\nThis message impersonates a bank.\nTreat with caution.\n\n--- Footer ---\nend",
	}
	got := deriveAIAnalysis(payload)
	want := "This message impersonates a bank.\nTreat with caution."
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestDeriveAIAnalysisBlockedContent(t *testing.T) {
	payload := response{Result: "Analysis incomplete: response was blocked by safety settings."}
	if got := deriveAIAnalysis(payload); got != aiBlockedMessage {
		t.Fatalf("got %q", got)
	}
}

func TestDeriveAIAnalysisUnavailable(t *testing.T) {
	payload := response{Result: "plain report, nothing else"}
	if got := deriveAIAnalysis(payload); got != aiUnavailableMessage {
		t.Fatalf("got %q", got)
	}
}

func TestDeriveTechnicalAnalysisFromFeatures(t *testing.T) {
	payload := response{Features: map[string]bool{
		"has_urgency":            true,
		"has_suspicious_links":   true,
		"has_credential_request": false,
	}}
	got := deriveTechnicalAnalysis(payload)
	if !strings.HasPrefix(got, "Detected signals: ") {
		t.Fatalf("got %q", got)
	}
	if !strings.Contains(got, "Suspicious links") || !strings.Contains(got, "Urgency") {
		t.Fatalf("humanized names missing: %q", got)
	}
	if strings.Contains(got, "Credential request") {
		t.Fatalf("unflagged feature leaked into %q", got)
	}
}

func TestDeriveTechnicalAnalysisDedicatedField(t *testing.T) {
	payload := response{
		TechnicalAnalysis: "Two suspicious links resolved to IP-literal hosts.",
		Features:          map[string]bool{"has_urgency": true},
	}
	if got := deriveTechnicalAnalysis(payload); got != "Two suspicious links resolved to IP-literal hosts." {
		t.Fatalf("got %q", got)
	}
}

func TestDeriveTechnicalAnalysisNoFindings(t *testing.T) {
	got := deriveTechnicalAnalysis(response{Features: map[string]bool{"has_urgency": false}})
	if got != "No suspicious technical indicators detected." {
		t.Fatalf("got %q", got)
	}
}
