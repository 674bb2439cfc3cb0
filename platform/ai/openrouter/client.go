// Package openrouter provides a planning-oracle client for OpenAI-compatible
// chat-completion APIs (OpenRouter, OpenAI, or any proxy speaking the same
// protocol). This is part of the platform layer and contains no business logic.
package openrouter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

const (
	// DefaultBaseURL targets OpenRouter's OpenAI-compatible endpoint.
	DefaultBaseURL = "https://openrouter.ai/api/v1"

	// DefaultModel is the planning model used when none is configured.
	DefaultModel = "meta-llama/llama-3.3-70b-instruct"

	// DefaultTimeout bounds a single completion call.
	DefaultTimeout = 60 * time.Second
)

// ErrAPIKeyNotSet is returned when the client is constructed without a key.
var ErrAPIKeyNotSet = errors.New("openrouter: API key not set")

// Config for the OpenRouter oracle client.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client calls an OpenAI-compatible chat-completions API in JSON mode and
// returns the raw assistant content. Parsing and repair of that content is
// the caller's concern.
type Client struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

// NewClient creates a new OpenRouter oracle client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrAPIKeyNotSet
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
	)

	return &Client{
		client:  client,
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}, nil
}

// Complete submits the instruction and returns the raw completion text.
// The model is asked for a JSON object response, but callers must still treat
// the output as untrusted text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("You output ONLY valid JSON."),
			openai.UserMessage(prompt),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{
				Type: "json_object",
			},
		},
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openrouter completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("openrouter completion: empty choices")
	}

	return completion.Choices[0].Message.Content, nil
}
