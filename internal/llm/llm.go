// Package llm asks an OpenAI-compatible model for advisory feedback on
// essay answers. Its scores never change the recorded grading result.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pavelanni/statexam/internal/llm/prompts"
	"github.com/pavelanni/statexam/internal/model"
)

// EssayReview is the model's assessment of one essay answer.
type EssayReview struct {
	ProblemID string   `json:"problem_id"`
	Score     float64  `json:"score"`
	MaxScore  int      `json:"max_score"`
	Feedback  string   `json:"feedback"`
	Covered   []string `json:"covered"`
	Missing   []string `json:"missing"`
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api     *openai.Client
	model   string
	variant prompts.Variant
}

// New creates a new LLM client. An empty variant selects the standard one.
func New(baseURL, apiKey, modelName string, variant prompts.Variant) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if variant == "" {
		variant = prompts.Standard
	}
	return &Client{
		api:     openai.NewClientWithConfig(config),
		model:   modelName,
		variant: variant,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Ping checks that the endpoint is reachable and serves the configured model.
func (c *Client) Ping(ctx context.Context) error {
	list, err := c.api.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	for _, m := range list.Models {
		if m.ID == c.model {
			return nil
		}
	}
	return fmt.Errorf("model %q not served by endpoint", c.model)
}

// ReviewEssay sends one essay answer to the model and parses its review.
func (c *Client) ReviewEssay(ctx context.Context, p model.Problem, answer string) (*EssayReview, error) {
	if p.Type() != model.TypeEssay {
		return nil, fmt.Errorf("problem %s is %s, not an essay", p.ID, p.Type())
	}

	systemPrompt, err := prompts.BuildReviewPrompt(c.variant, p, answer)
	if err != nil {
		return nil, fmt.Errorf("build review prompt: %w", err)
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM review API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("LLM returned no choices for review")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "problem_id", p.ID, "raw", raw)

	var review EssayReview
	if err := json.Unmarshal([]byte(raw), &review); err != nil {
		return nil, fmt.Errorf("parse review response: %w (raw: %s)", err, raw)
	}
	review.ProblemID = p.ID
	review.MaxScore = prompts.MaxScore
	review.Score = clampScore(review.Score, prompts.MaxScore)
	return &review, nil
}

func clampScore(score float64, max int) float64 {
	switch {
	case score < 0:
		return 0
	case score > float64(max):
		return float64(max)
	}
	return score
}
