package api

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"phishing-detector/internal/ai"
	"phishing-detector/internal/features"
	"phishing-detector/internal/links"
	"phishing-detector/internal/report"
	"phishing-detector/internal/store"
	"phishing-detector/internal/util"
)

const (
	aiMaxRetries     = 3
	aiInitialBackoff = 2 * time.Second
	aiMaxBackoff     = 10 * time.Second
)

// analyzeText runs the full rule-based and AI analysis for one message,
// persists the verdict and broadcasts it to stream subscribers.
func (s *Server) analyzeText(ctx context.Context, text, source string) (AnalysisResponse, error) {
	timer := util.StartTimer()

	ev := features.Extract(text)
	ruleScore := features.Score(ev.Flags)

	elements := SuspiciousElements{
		URLs:              links.SuspiciousURLs(ev.Links),
		UrgentPhrases:     ev.UrgentPhrases,
		CredentialPhrases: ev.CredentialPhrases,
		TechnicalIssues:   links.Issues(ev.Links),
	}

	assessment := s.assess(ctx, ai.Input{
		Text:           text,
		Features:       ev.Flags,
		SuspiciousURLs: elements.URLs,
		UrgentPhrases:  ev.UrgentPhrases,
		HeuristicScore: ruleScore,
		HeuristicLevel: features.Level(ruleScore),
	})

	score := ruleScore
	if assessment.RiskScore != nil && *assessment.RiskScore > score {
		score = *assessment.RiskScore
	}
	if score > 1 {
		score = 1
	}
	level := features.Level(score)

	elements.AIFlags = assessment.Flags

	recommendations := report.MergeRecommendations(
		report.Recommendations(ev.Flags, level),
		assessment.Recommendations,
	)

	narrative := assessment.Narrative
	if assessment.Blocked && narrative == "" && len(assessment.Flags) > 0 {
		narrative = assessment.Flags[0]
	}

	resp := AnalysisResponse{
		Result:                  report.Summary(ev.Flags, score, level, narrative),
		RiskLevel:               level,
		RiskScore:               score,
		Features:                ev.Flags,
		SuspiciousElements:      elements,
		DetailedAnalysis:        narrative,
		SecurityRecommendations: recommendations,
		AnalysisID:              uuid.NewString(),
		ProcessingTimeMs:        timer.ElapsedMs(),
	}

	if err := s.persist(resp, source); err != nil {
		logrus.WithError(err).Warn("persist analysis")
	}

	s.notifier.Broadcast(AnalysisEvent{
		Type:     "analysis",
		Analysis: &resp,
	})

	return resp, nil
}

// assess consults the AI assessor, retrying transient failures with a
// bounded doubling backoff. A disabled assessor yields a zero assessment.
func (s *Server) assess(ctx context.Context, input ai.Input) ai.Assessment {
	if s.assessor == nil || !s.assessor.Enabled() {
		return ai.Assessment{}
	}

	backoff := aiInitialBackoff
	for attempt := 1; attempt <= aiMaxRetries; attempt++ {
		assessment, err := s.assessor.Assess(ctx, input)
		if err == nil {
			return assessment
		}
		if errors.Is(err, ai.ErrDisabled) || errors.Is(err, context.Canceled) {
			return ai.Assessment{}
		}
		logrus.WithError(err).WithField("attempt", attempt).Warn("ai assessment failed")
		if attempt == aiMaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ai.Assessment{}
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > aiMaxBackoff {
			backoff = aiMaxBackoff
		}
	}
	return ai.Assessment{}
}

func (s *Server) persist(resp AnalysisResponse, source string) error {
	if s.db == nil {
		return nil
	}
	analysis := &store.Analysis{
		UUID:             resp.AnalysisID,
		Source:           source,
		RiskLevel:        resp.RiskLevel,
		RiskScore:        resp.RiskScore,
		Summary:          resp.Result,
		DetailedAnalysis: resp.DetailedAnalysis,
		ProcessingTimeMs: resp.ProcessingTimeMs,
	}
	analysis.SetFeatures(resp.Features)
	analysis.SetSuspiciousElements(map[string][]string{
		"urls":               resp.SuspiciousElements.URLs,
		"urgent_phrases":     resp.SuspiciousElements.UrgentPhrases,
		"credential_phrases": resp.SuspiciousElements.CredentialPhrases,
		"technical_issues":   resp.SuspiciousElements.TechnicalIssues,
		"ai_flags":           resp.SuspiciousElements.AIFlags,
	})
	analysis.SetRecommendations(resp.SecurityRecommendations)
	return s.db.SaveAnalysis(analysis)
}

// quickCheck produces the terse verdict without AI involvement.
func quickCheck(text string) QuickCheckResponse {
	ev := features.Extract(text)
	return QuickCheckResponse{Result: report.QuickVerdict(features.FlagCount(ev.Flags))}
}

// analyzeLinks inspects every URL in the text and renders a link report.
func analyzeLinks(text string) LinkAnalysisResponse {
	findings := links.InspectAll(text)
	if len(findings) == 0 {
		return LinkAnalysisResponse{Result: "No links found in the provided text."}
	}

	var b strings.Builder
	b.WriteString("Link Analysis Report\n\n")
	reports := make([]LinkReport, 0, len(findings))
	for _, f := range findings {
		if f.Suspicious {
			b.WriteString("Suspicious link: " + f.URL + "\n")
		} else {
			b.WriteString("Safe-looking link: " + f.URL + "\n")
		}
		reports = append(reports, LinkReport{URL: f.URL, Suspicious: f.Suspicious, Reasons: f.Reasons})
	}
	return LinkAnalysisResponse{Result: b.String(), Links: reports}
}
