package report

import (
	"fmt"
	"strings"

	"phishing-detector/internal/features"
)

// AISectionDelimiter separates the AI narrative inside the plain-text
// report. Clients locate the section by this exact marker.
const AISectionDelimiter = "--- AI Analysis ---"

// Summary assembles the plain-text analysis report returned in the
// `result` field of the API response.
func Summary(flags map[string]bool, score float64, level, aiNarrative string) string {
	var b strings.Builder
	b.WriteString("Phishing Analysis Report\n\n")
	fmt.Fprintf(&b, "Overall Risk Score: %.2f/1.00\n", score)

	b.WriteString("\n--- Detected Features ---\n")
	for _, name := range features.Names {
		present := "No"
		if flags[name] {
			present = "Yes"
		}
		fmt.Fprintf(&b, "%s: %s\n", HumanizeFeature(name), present)
	}

	b.WriteString("\n--- Risk Level ---\n")
	b.WriteString(levelSentence(level))
	b.WriteString("\n")

	if trimmed := strings.TrimSpace(aiNarrative); trimmed != "" {
		b.WriteString("\n" + AISectionDelimiter + "\n")
		b.WriteString(trimmed)
		b.WriteString("\n")
	}

	return b.String()
}

func levelSentence(level string) string {
	switch level {
	case "high":
		return "HIGH RISK - This message shows strong indicators of being a phishing attempt."
	case "medium":
		return "MEDIUM RISK - This message shows some suspicious characteristics."
	default:
		return "LOW RISK - This message shows few or no suspicious characteristics."
	}
}

// QuickVerdict returns the short assessment used by the quick-check
// endpoint, keyed on how many features fired.
func QuickVerdict(flagged int) string {
	switch {
	case flagged >= 3:
		return "High likelihood of phishing! Exercise extreme caution and do not interact."
	case flagged >= 1:
		return "Some suspicious elements detected. Review carefully before proceeding."
	default:
		return "Low risk - few or no suspicious elements detected."
	}
}

// HumanizeFeature turns a wire feature name such as "has_suspicious_links"
// into a readable label ("Suspicious links").
func HumanizeFeature(name string) string {
	name = strings.TrimPrefix(name, "has_")
	name = strings.ReplaceAll(name, "_", " ")
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

// Recommendations derives actionable advice from the flagged features and
// the overall risk level. The ordering is stable.
func Recommendations(flags map[string]bool, level string) []string {
	var out []string
	if flags[features.SuspiciousLinks] {
		out = append(out, "Do not click any links in this message; navigate to the site manually instead.")
	}
	if flags[features.CredentialRequest] {
		out = append(out, "Never share passwords, banking details or verification codes over email.")
	}
	if flags[features.Urgency] {
		out = append(out, "Be wary of artificial time pressure; legitimate senders rarely demand immediate action.")
	}
	if flags[features.SuspiciousSender] {
		out = append(out, "Verify the sender address through a channel you already trust before replying.")
	}
	if level == "high" {
		out = append(out, "Report this message as phishing and delete it.")
	}
	if len(out) == 0 {
		out = append(out, "No specific action required, but stay alert for unusual requests.")
	}
	return out
}

// MergeRecommendations appends extra advice (for example from the AI
// assessor) while dropping duplicates and blanks.
func MergeRecommendations(base, extra []string) []string {
	seen := make(map[string]struct{}, len(base))
	out := make([]string, 0, len(base)+len(extra))
	for _, rec := range base {
		key := strings.ToLower(strings.TrimSpace(rec))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, strings.TrimSpace(rec))
	}
	for _, rec := range extra {
		key := strings.ToLower(strings.TrimSpace(rec))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, strings.TrimSpace(rec))
	}
	return out
}
