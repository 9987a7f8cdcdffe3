// Package llm scores readable answer fragments with an OpenAI-compatible model.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"

	openai "github.com/sashabaranov/go-openai"

	"github.com/rahibchy/exam-grading-system/internal/grader"
	"github.com/rahibchy/exam-grading-system/internal/llm/prompts"
	"github.com/rahibchy/exam-grading-system/internal/model"
)

// GradeResult is the JSON object the model is asked to return.
type GradeResult struct {
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// Client implements grader.Grader on top of an OpenAI-compatible API.
// Fragments that are not OK, and any call that fails, are scored by Fallback.
type Client struct {
	api      *openai.Client
	model    string
	variant  prompts.Variant
	Fallback grader.Grader
}

// New creates a new LLM grader.
func New(baseURL, apiKey, modelName string, variant prompts.Variant) (*Client, error) {
	if !prompts.IsValidVariant(string(variant)) {
		return nil, fmt.Errorf("invalid prompt variant %q", variant)
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:      openai.NewClientWithConfig(config),
		model:    modelName,
		variant:  variant,
		Fallback: grader.Heuristic{},
	}, nil
}

// Ping checks that the endpoint is reachable and lists at least one model.
func (c *Client) Ping(ctx context.Context) error {
	models, err := c.api.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	if len(models.Models) == 0 {
		return fmt.Errorf("endpoint reports no models")
	}
	return nil
}

// Grade implements grader.Grader.
func (c *Client) Grade(ctx context.Context, fragment *string, maxMarks int, verdict model.Verdict) (*float64, model.Provenance) {
	if fragment == nil || verdict != model.VerdictOK {
		return c.Fallback.Grade(ctx, fragment, maxMarks, verdict)
	}

	data := prompts.GradeData{MaxMarks: maxMarks, Answer: *fragment}
	if q, ok := grader.QuestionFromContext(ctx); ok {
		data.Question = q.Name
		data.Prompt = q.Marker
	}
	result, err := c.score(ctx, data)
	if err != nil {
		slog.Warn("model grading failed, using heuristic", "error", err)
		return c.Fallback.Grade(ctx, fragment, maxMarks, verdict)
	}

	score := math.Max(0, math.Min(result.Score, float64(maxMarks)))
	slog.Debug("model graded answer", "score", score, "max", maxMarks, "reason", result.Reason)
	return model.Ptr(model.Round1(score)), model.ProvenanceModel
}

func (c *Client) score(ctx context.Context, data prompts.GradeData) (*GradeResult, error) {
	prompt, err := prompts.BuildGradePrompt(c.variant, data)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM grading API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("LLM returned no choices for grading")
	}

	raw := resp.Choices[0].Message.Content
	var result GradeResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("parse grading response: %w (raw: %s)", err, raw)
	}
	return &result, nil
}
