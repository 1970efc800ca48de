package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Assessor exposes AI-backed phishing assessments for analyzed messages.
type Assessor interface {
	Enabled() bool
	Assess(ctx context.Context, input Input) (Assessment, error)
}

// Config holds Gemini configuration parameters.
type Config struct {
	APIKey            string
	Model             string
	BaseURL           string
	Temperature       float64
	MaxTokens         int
	RequestsPerMinute int
}

// Client implements the Assessor interface against the Gemini
// generateContent API.
type Client struct {
	httpClient  *http.Client
	limiter     *rate.Limiter
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
}

var ErrDisabled = errors.New("ai assessor disabled")

// NewClient constructs a Client if the supplied configuration is valid.
func NewClient(cfg Config) (*Client, error) {
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrDisabled
	}
	temp := cfg.Temperature
	if temp <= 0 {
		temp = 0.2
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 15
	}
	limit := rate.Limit(float64(rpm) / 60.0)
	return &Client{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		limiter:     rate.NewLimiter(limit, 1),
		apiKey:      strings.TrimSpace(cfg.APIKey),
		model:       cfg.Model,
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		temperature: temp,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Enabled reports whether the client can make outbound calls.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// Assess requests an AI phishing assessment for the supplied message. A
// safety-filtered response is not an error; it is returned as a blocked
// assessment carrying an explanatory flag.
func (c *Client) Assess(ctx context.Context, input Input) (Assessment, error) {
	if c == nil || !c.Enabled() {
		return Assessment{}, ErrDisabled
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return Assessment{}, fmt.Errorf("rate limit wait: %w", err)
	}

	body, err := json.Marshal(c.buildPayload(input))
	if err != nil {
		return Assessment{}, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Assessment{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Assessment{}, fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return Assessment{}, fmt.Errorf("gemini status %d: %v", resp.StatusCode, apiErr)
	}

	var decoded generateContentResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Assessment{}, fmt.Errorf("decode response: %w", err)
	}

	if reason := decoded.blockReason(); reason != "" {
		return Assessment{
			Blocked: true,
			Flags:   []string{fmt.Sprintf("Content blocked by safety filters (%s)", reason)},
		}, nil
	}

	content := normalizeJSONBlock(decoded.text())
	if content == "" {
		return Assessment{}, errors.New("gemini empty response")
	}

	var assessment Assessment
	if err := json.Unmarshal([]byte(content), &assessment); err != nil {
		return Assessment{}, fmt.Errorf("parse ai response: %w", err)
	}

	sanitizeAssessment(&assessment)
	if assessment.Narrative == "" {
		return Assessment{}, errors.New("ai narrative missing")
	}
	return assessment, nil
}

const systemInstruction = "You are an email phishing analyst. Reply with a strict JSON object containing " +
	"keys narrative, risk_score, risk_level, flags, recommendations, and confidence. risk_score and " +
	"confidence must be decimals between 0 and 1. risk_level must be one of low, medium, or high. " +
	"narrative is a short plain-language explanation of why the message is or is not a phishing attempt. " +
	"flags lists concrete suspicious artifacts you noticed. recommendations lists actions the reader " +
	"should take. Emit nothing outside the JSON object."

func (c *Client) buildPayload(input Input) map[string]any {
	return map[string]any{
		"systemInstruction": map[string]any{
			"parts": []map[string]string{{"text": systemInstruction}},
		},
		"contents": []map[string]any{
			{
				"role":  "user",
				"parts": []map[string]string{{"text": buildUserPrompt(input)}},
			},
		},
		"generationConfig": map[string]any{
			"temperature":     c.temperature,
			"maxOutputTokens": c.maxTokens,
		},
		"safetySettings": []map[string]string{
			{"category": "HARM_CATEGORY_DANGEROUS_CONTENT", "threshold": "BLOCK_NONE"},
			{"category": "HARM_CATEGORY_HARASSMENT", "threshold": "BLOCK_NONE"},
		},
	}
}

func buildUserPrompt(input Input) string {
	builder := &strings.Builder{}
	builder.WriteString("Analyze the following email body for phishing indicators.\n\n")
	fmt.Fprintf(builder, "Heuristic risk score: %.2f (%s)\n", input.HeuristicScore, input.HeuristicLevel)

	if len(input.Features) > 0 {
		names := make([]string, 0, len(input.Features))
		for name, present := range input.Features {
			if present {
				names = append(names, name)
			}
		}
		sort.Strings(names)
		if len(names) > 0 {
			fmt.Fprintf(builder, "Rule-based detectors fired: %s\n", strings.Join(names, ", "))
		}
	}
	if len(input.SuspiciousURLs) > 0 {
		fmt.Fprintf(builder, "Suspicious URLs: %s\n", strings.Join(input.SuspiciousURLs, "; "))
	}
	if len(input.UrgentPhrases) > 0 {
		fmt.Fprintf(builder, "Urgency phrases: %s\n", strings.Join(input.UrgentPhrases, ", "))
	}
	builder.WriteString("Use the heuristics as a starting point and adjust if the evidence supports a different outcome.\n")
	builder.WriteString("\nEmail body:\n")
	builder.WriteString(input.Text)
	return builder.String()
}

type generateContentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

func (r generateContentResponse) text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	parts := r.Candidates[0].Content.Parts
	var b strings.Builder
	for _, part := range parts {
		b.WriteString(part.Text)
	}
	return b.String()
}

func (r generateContentResponse) blockReason() string {
	if r.PromptFeedback.BlockReason != "" {
		return r.PromptFeedback.BlockReason
	}
	if len(r.Candidates) > 0 && strings.EqualFold(r.Candidates[0].FinishReason, "SAFETY") {
		return "SAFETY"
	}
	return ""
}

// normalizeJSONBlock strips markdown fences and surrounding prose from a
// model reply, keeping the outermost JSON object.
func normalizeJSONBlock(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.IndexRune(trimmed, '\n'); idx >= 0 {
			trimmed = trimmed[idx+1:]
		}
		if strings.HasSuffix(trimmed, "```") {
			trimmed = trimmed[:len(trimmed)-3]
		}
	}
	trimmed = strings.TrimSpace(trimmed)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end >= start {
		return strings.TrimSpace(trimmed[start : end+1])
	}
	return trimmed
}

func sanitizeAssessment(assessment *Assessment) {
	if assessment == nil {
		return
	}
	assessment.Narrative = strings.TrimSpace(assessment.Narrative)
	if assessment.RiskScore != nil {
		val := clampFloat(*assessment.RiskScore, 0, 1)
		assessment.RiskScore = &val
	}
	assessment.RiskLevel = strings.ToLower(strings.TrimSpace(assessment.RiskLevel))
	switch assessment.RiskLevel {
	case "low", "medium", "high":
	default:
		assessment.RiskLevel = ""
	}
	if assessment.Confidence != nil {
		val := clampFloat(*assessment.Confidence, 0, 1)
		assessment.Confidence = &val
	}
	assessment.Flags = trimAll(assessment.Flags)
	assessment.Recommendations = trimAll(assessment.Recommendations)
}

func trimAll(items []string) []string {
	var out []string
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func clampFloat(value, min, max float64) float64 {
	if math.IsNaN(value) {
		return min
	}
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
