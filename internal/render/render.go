package render

import (
	"fmt"
	"sort"
	"strings"

	"phishing-detector/internal/pipeline"
)

// Text renders a normalized analysis report for terminal display.
func Text(rep pipeline.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Risk: %s (score %.2f)\n", strings.ToUpper(rep.RiskLevel), rep.RiskScore)

	if rep.TechnicalAnalysis != "" {
		b.WriteString("\nTechnical analysis:\n  " + rep.TechnicalAnalysis + "\n")
	}
	if rep.AIAnalysis != "" {
		b.WriteString("\nAI analysis:\n  " + indent(rep.AIAnalysis) + "\n")
	}

	if len(rep.SuspiciousElements) > 0 {
		b.WriteString("\nSuspicious elements:\n")
		categories := make([]string, 0, len(rep.SuspiciousElements))
		for category := range rep.SuspiciousElements {
			categories = append(categories, category)
		}
		sort.Strings(categories)
		for _, category := range categories {
			items := rep.SuspiciousElements[category]
			if len(items) == 0 {
				continue
			}
			fmt.Fprintf(&b, "  %s:\n", humanizeCategory(category))
			for _, item := range items {
				b.WriteString("    - " + item + "\n")
			}
		}
	}

	if len(rep.Recommendations) > 0 {
		b.WriteString("\nRecommendations:\n")
		for _, rec := range rep.Recommendations {
			b.WriteString("  - " + rec + "\n")
		}
	}

	return b.String()
}

// Failure renders a terminal pipeline failure with a user-facing hint.
func Failure(failure *pipeline.Failure) string {
	if failure == nil {
		return "analysis failed"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Analysis failed (%s)", failure.Kind)
	if failure.Attempts > 0 {
		fmt.Fprintf(&b, " after %d attempt(s)", failure.Attempts)
	}
	b.WriteString(".\n")
	if failure.Message != "" {
		b.WriteString("  " + failure.Message + "\n")
	}
	if hint := hintFor(failure.Kind); hint != "" {
		b.WriteString("Hint: " + hint + "\n")
	}
	return b.String()
}

func hintFor(kind pipeline.FailureKind) string {
	switch kind {
	case pipeline.FailureNoContent:
		return "open an email (or pass a file) so there is text to analyze."
	case pipeline.FailureNetwork:
		return "check that the analysis backend is running and reachable."
	case pipeline.FailureTimeout:
		return "the server may be slow or unavailable; try again shortly."
	case pipeline.FailureServerError:
		return "the backend reported an error; the raw status and body are shown above."
	case pipeline.FailureMalformedResponse:
		return "the backend returned something that is not JSON; a snippet is shown above."
	default:
		return ""
	}
}

func humanizeCategory(category string) string {
	category = strings.ReplaceAll(category, "_", " ")
	if category == "" {
		return category
	}
	return strings.ToUpper(category[:1]) + category[1:]
}

func indent(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "\n", "\n  ")
}
