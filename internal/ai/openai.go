package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig holds configuration for the OpenAI fallback assessor.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
}

// OpenAIClient is a fallback Assessor backed by the OpenAI chat
// completions API.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

// NewOpenAIClient constructs the fallback assessor if credentials are set.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrDisabled
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = openai.GPT4oMini
	}
	temp := float32(cfg.Temperature)
	if temp <= 0 {
		temp = 0.2
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	clientCfg := openai.DefaultConfig(strings.TrimSpace(cfg.APIKey))
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientCfg.BaseURL = base
	}
	return &OpenAIClient{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       model,
		temperature: temp,
		maxTokens:   maxTokens,
	}, nil
}

// Enabled reports whether the fallback can make outbound calls.
func (c *OpenAIClient) Enabled() bool {
	return c != nil && c.client != nil
}

// Assess requests an assessment through the chat completions API using the
// same JSON contract as the primary client.
func (c *OpenAIClient) Assess(ctx context.Context, input Input) (Assessment, error) {
	if c == nil || !c.Enabled() {
		return Assessment{}, ErrDisabled
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemInstruction},
			{Role: openai.ChatMessageRoleUser, Content: buildUserPrompt(input)},
		},
	})
	if err != nil {
		return Assessment{}, fmt.Errorf("openai request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Assessment{}, errors.New("openai empty response")
	}

	content := normalizeJSONBlock(resp.Choices[0].Message.Content)
	if content == "" {
		return Assessment{}, errors.New("openai empty narrative")
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
