package pipeline

import (
	"math"
	"sort"
	"strings"
)

const (
	aiSectionDelimiter = "--- AI Analysis ---"

	aiUnavailableMessage = "AI analysis not available."
	aiBlockedMessage     = "AI analysis was blocked by the provider's safety filters."
)

var blockedPhrases = []string{
	"blocked by safety",
	"safety filter",
	"content blocked",
	"response was blocked",
}

// normalize converts a decoded backend payload into the stable Report
// shape, substituting defaults for every absent field. It is a pure
// function of the payload.
func normalize(payload response) Report {
	rep := Report{
		RiskLevel:          normalizeLevel(payload.RiskLevel),
		RiskScore:          normalizeScore(payload.RiskScore),
		Summary:            payload.Result,
		DetectedFeatures:   map[string]bool{},
		SuspiciousElements: map[string][]string{},
		Recommendations:    []string{},
	}

	for name, present := range payload.Features {
		rep.DetectedFeatures[name] = present
	}
	for category, items := range payload.SuspiciousElements {
		if len(items) == 0 {
			continue
		}
		rep.SuspiciousElements[category] = append([]string(nil), items...)
	}
	if len(payload.SecurityRecommendations) > 0 {
		rep.Recommendations = append([]string(nil), payload.SecurityRecommendations...)
	}

	rep.AIAnalysis = deriveAIAnalysis(payload)
	rep.TechnicalAnalysis = deriveTechnicalAnalysis(payload)
	return rep
}

func normalizeScore(score *float64) float64 {
	if score == nil || math.IsNaN(*score) {
		return 0
	}
	if *score < 0 {
		return 0
	}
	if *score > 1 {
		return 1
	}
	return *score
}

// normalizeLevel reduces the wire risk level to low/medium/high, accepting
// both the plain token and the legacy verbose form ("HIGH RISK - ...").
// Anything unrecognized maps to "unknown".
func normalizeLevel(level *string) string {
	if level == nil {
		return "unknown"
	}
	token := strings.ToLower(strings.TrimSpace(*level))
	if idx := strings.IndexAny(token, " -:"); idx > 0 {
		token = token[:idx]
	}
	switch token {
	case "low", "medium", "high":
		return token
	default:
		return "unknown"
	}
}

// deriveAIAnalysis prefers the dedicated detailed-analysis field, then the
// delimited section of the freeform result, then a blocked-content notice,
// and finally the unavailable message.
func deriveAIAnalysis(payload response) string {
	if detailed := strings.TrimSpace(payload.DetailedAnalysis); detailed != "" {
		return detailed
	}
	if section := extractAISection(payload.Result); section != "" {
		return section
	}
	lower := strings.ToLower(payload.Result)
	for _, phrase := range blockedPhrases {
		if strings.Contains(lower, phrase) {
			return aiBlockedMessage
		}
	}
	return aiUnavailableMessage
}

// extractAISection pulls the text between the AI section delimiter and the
// next section header (or end of report).
func extractAISection(result string) string {
	idx := strings.Index(result, aiSectionDelimiter)
	if idx < 0 {
		return ""
	}
	section := result[idx+len(aiSectionDelimiter):]
	if next := strings.Index(section, "\n---"); next >= 0 {
		section = section[:next]
	}
	return strings.TrimSpace(section)
}

// deriveTechnicalAnalysis prefers a dedicated field and otherwise
// synthesizes a sentence from the flagged features.
func deriveTechnicalAnalysis(payload response) string {
	if dedicated := strings.TrimSpace(payload.TechnicalAnalysis); dedicated != "" {
		return dedicated
	}

	var flagged []string
	for name, present := range payload.Features {
		if present {
			flagged = append(flagged, humanizeFeature(name))
		}
	}
	if len(flagged) == 0 {
		return "No suspicious technical indicators detected."
	}
	sort.Strings(flagged)
	return "Detected signals: " + strings.Join(flagged, ", ") + "."
}

func humanizeFeature(name string) string {
	name = strings.TrimPrefix(name, "has_")
	name = strings.ReplaceAll(name, "_", " ")
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
