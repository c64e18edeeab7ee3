package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ieltsprep/mockcenter/internal/llm/prompts"
	"github.com/ieltsprep/mockcenter/internal/scoring"
)

// ErrBadResponse is returned when the model endpoint fails or answers with
// something that is not a usable assessment.
var ErrBadResponse = errors.New("llm: bad response")

// WritingAssessment is the LLM's suggested writing band. It is advisory;
// an examiner assigns the band that counts.
type WritingAssessment struct {
	Band          scoring.Band `json:"band"`
	Task1Feedback string       `json:"task1_feedback"`
	Task2Feedback string       `json:"task2_feedback"`
	Feedback      string       `json:"feedback"`
	Model         string       `json:"model"`
}

type rawAssessment struct {
	Band          float64 `json:"band"`
	Task1Feedback string  `json:"task1_feedback"`
	Task2Feedback string  `json:"task2_feedback"`
	Feedback      string  `json:"feedback"`
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api     *openai.Client
	model   string
	variant prompts.PromptVariant
}

// New creates a new LLM client.
func New(baseURL, apiKey, modelName, variant string) (*Client, error) {
	if !prompts.IsValidVariant(variant) {
		return nil, fmt.Errorf("invalid prompt variant %q", variant)
	}
	if err := prompts.Load(); err != nil {
		return nil, err
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:     openai.NewClientWithConfig(config),
		model:   modelName,
		variant: prompts.PromptVariant(variant),
	}, nil
}

// Ping checks that the endpoint answers.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// AssessWriting asks the model for a band for the two writing tasks.
func (c *Client) AssessWriting(ctx context.Context, task1, task2 string) (*WritingAssessment, error) {
	prompt, err := prompts.BuildWritingPrompt(c.variant, task1, task2)
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
		return nil, fmt.Errorf("%w: LLM API call: %v", ErrBadResponse, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", ErrBadResponse)
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "raw", raw)

	a, err := parseAssessment(raw)
	if err != nil {
		return nil, err
	}
	a.Model = c.model
	return a, nil
}

// parseAssessment decodes the model's JSON and snaps the band to a half step.
// Bands the model puts outside 0..9 are rejected, not clamped.
func parseAssessment(raw string) (*WritingAssessment, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimSuffix(strings.TrimPrefix(raw, "```"), "```")

	var r rawAssessment
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, fmt.Errorf("%w: parse: %v (raw: %s)", ErrBadResponse, err, raw)
	}
	band, err := scoring.NumericBand(scoring.RoundToHalf(r.Band))
	if err != nil {
		return nil, fmt.Errorf("%w: band %v: %v", ErrBadResponse, r.Band, err)
	}
	return &WritingAssessment{
		Band:          band,
		Task1Feedback: r.Task1Feedback,
		Task2Feedback: r.Task2Feedback,
		Feedback:      r.Feedback,
	}, nil
}
