package features

import (
	"math"
	"testing"
)

func TestExtractFlags(t *testing.T) {
	tests := []struct {
		name string
		text string
		flag string
		want bool
	}{
		{"urgency keyword", "URGENT: your account suspended", Urgency, true},
		{"no urgency", "Lunch on Friday?", Urgency, false},
		{"suspicious link", "Track here: http://fedex-redelivery.tk/track", SuspiciousLinks, true},
		{"clean link", "Docs at https://golang.org/doc", SuspiciousLinks, false},
		{"credential request", "Please confirm identity and reset password", CredentialRequest, true},
		{"suspicious sender", "From: security-team@gmail.com", SuspiciousSender, true},
		{"corporate sender", "From: security@example-corp.com", SuspiciousSender, false},
		{"exclamation storm", "Act now!!!! Don't wait!", PoorFormatting, true},
		{"click here without link", "Just click here to claim your prize", PoorFormatting, true},
		{"repeated kindly", "Kindly respond. Kindly do so today.", PoorFormatting, true},
		{"plain message", "Meeting notes attached, see section two.", PoorFormatting, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ev := Extract(tc.text)
			if got := ev.Flags[tc.flag]; got != tc.want {
				t.Fatalf("%s = %v, want %v", tc.flag, got, tc.want)
			}
		})
	}
}

func TestExtractEvidencePhrases(t *testing.T) {
	ev := Extract("URGENT: verify your account password before it expires")
	if len(ev.UrgentPhrases) == 0 {
		t.Fatal("expected captured urgent phrases")
	}
	if len(ev.CredentialPhrases) == 0 {
		t.Fatal("expected captured credential phrases")
	}
}

func TestScoreWeights(t *testing.T) {
	tests := []struct {
		name  string
		flags map[string]bool
		want  float64
	}{
		{"none", map[string]bool{}, 0},
		{"links only", map[string]bool{SuspiciousLinks: true}, 0.30},
		{"urgency and credentials", map[string]bool{Urgency: true, CredentialRequest: true}, 0.45},
		{"all", map[string]bool{
			Urgency: true, SuspiciousLinks: true, CredentialRequest: true,
			SuspiciousSender: true, PoorFormatting: true,
		}, 1.0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Score(tc.flags)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("score = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestLevelThresholds(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{0.0, "low"},
		{0.39, "low"},
		{0.4, "medium"},
		{0.69, "medium"},
		{0.7, "high"},
		{1.0, "high"},
	}
	for _, tc := range tests {
		if got := Level(tc.score); got != tc.want {
			t.Fatalf("Level(%v) = %q, want %q", tc.score, got, tc.want)
		}
	}
}
