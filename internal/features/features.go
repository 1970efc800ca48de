package features

import (
	"regexp"
	"strings"

	"phishing-detector/internal/links"
)

// Feature names as they appear on the wire.
const (
	Urgency           = "has_urgency"
	SuspiciousLinks   = "has_suspicious_links"
	CredentialRequest = "has_credential_request"
	SuspiciousSender  = "has_suspicious_sender"
	PoorFormatting    = "has_poor_formatting"
)

// Names lists every feature in canonical order.
var Names = []string{Urgency, SuspiciousLinks, CredentialRequest, SuspiciousSender, PoorFormatting}

var urgencyPhrases = []string{
	"urgent", "immediate", "action required", "account suspended",
	"security alert", "unauthorized", "verify your account",
	"expire", "limited time", "click now",
}

var credentialPhrases = []string{
	"password", "login", "credential", "verify", "bank account",
	"credit card", "social security", "ssn", "account details",
	"update payment", "confirm identity", "reset password", "security code",
}

var senderPatterns = []*regexp.Regexp{
	regexp.MustCompile(`@[^\s]*\.(tk|ml|ga|cf|gq|xyz|online|site|top|bid)\b`),
	regexp.MustCompile(`support[^\s]*@(?:[^\s]*\.)?(?:gmail|yahoo|hotmail|outlook)\.com`),
	regexp.MustCompile(`security[^\s]*@(?:[^\s]*\.)?(?:gmail|yahoo|hotmail|outlook)\.com`),
	regexp.MustCompile(`admin[^\s]*@(?:[^\s]*\.)?(?:gmail|yahoo|hotmail|outlook)\.com`),
	regexp.MustCompile(`noreply[^\s]*@(?:[^\s]*\.)?(?:gmail|yahoo|hotmail|outlook)\.com`),
}

var capsRun = regexp.MustCompile(`[A-Z]{4,}`)

// weights drives the overall risk score; the values sum to 1.0.
var weights = map[string]float64{
	Urgency:           0.20,
	SuspiciousLinks:   0.30,
	CredentialRequest: 0.25,
	SuspiciousSender:  0.15,
	PoorFormatting:    0.10,
}

// Risk level thresholds for the weighted score.
const (
	highThreshold   = 0.7
	mediumThreshold = 0.4
)

// Evidence holds the boolean feature flags together with the concrete
// phrases and link findings that triggered them.
type Evidence struct {
	Flags             map[string]bool
	UrgentPhrases     []string
	CredentialPhrases []string
	Links             []links.Finding
}

// Extract runs every rule-based detector against the message text.
func Extract(text string) Evidence {
	lower := strings.ToLower(text)

	ev := Evidence{Flags: make(map[string]bool, len(Names))}
	for _, name := range Names {
		ev.Flags[name] = false
	}

	for _, phrase := range urgencyPhrases {
		if strings.Contains(lower, phrase) {
			ev.UrgentPhrases = append(ev.UrgentPhrases, phrase)
		}
	}
	ev.Flags[Urgency] = len(ev.UrgentPhrases) > 0

	ev.Links = links.InspectAll(text)
	for _, finding := range ev.Links {
		if finding.Suspicious {
			ev.Flags[SuspiciousLinks] = true
			break
		}
	}

	for _, phrase := range credentialPhrases {
		if strings.Contains(lower, phrase) {
			ev.CredentialPhrases = append(ev.CredentialPhrases, phrase)
		}
	}
	ev.Flags[CredentialRequest] = len(ev.CredentialPhrases) > 0

	for _, pattern := range senderPatterns {
		if pattern.MatchString(lower) {
			ev.Flags[SuspiciousSender] = true
			break
		}
	}

	ev.Flags[PoorFormatting] = poorFormatting(text, lower, len(ev.Links) > 0)

	return ev
}

func poorFormatting(text, lower string, hasURLs bool) bool {
	if strings.Count(text, "!") > 3 {
		return true
	}
	if strings.Count(text, "$") > 2 {
		return true
	}
	if len(capsRun.FindAllString(text, -1)) > 2 {
		return true
	}
	if strings.Contains(lower, "click here") && !hasURLs {
		return true
	}
	if strings.Count(lower, "kindly") > 1 {
		return true
	}
	return false
}

// Score computes the weighted risk score in [0,1] for the flagged features.
func Score(flags map[string]bool) float64 {
	var score float64
	for name, present := range flags {
		if present {
			score += weights[name]
		}
	}
	if score > 1 {
		score = 1
	}
	return score
}

// Level maps a risk score onto the coarse low/medium/high classification.
func Level(score float64) string {
	switch {
	case score >= highThreshold:
		return "high"
	case score >= mediumThreshold:
		return "medium"
	default:
		return "low"
	}
}

// FlagCount returns how many features are set.
func FlagCount(flags map[string]bool) int {
	var n int
	for _, present := range flags {
		if present {
			n++
		}
	}
	return n
}
