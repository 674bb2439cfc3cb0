// Package gemini provides a planning-oracle client backed by the Gemini API.
// This is part of the platform layer and contains no business logic.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"
)

const (
	// DefaultModel is the planning model used when none is configured.
	DefaultModel = "gemini-2.0-flash"

	// DefaultTimeout bounds a single generation call.
	DefaultTimeout = 60 * time.Second
)

// ErrAPIKeyNotSet is returned when the client is constructed without a key.
var ErrAPIKeyNotSet = errors.New("gemini: API key not set")

// Config for the Gemini oracle client.
type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client generates JSON plan candidates via the Gemini API.
type Client struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewClient creates a new Gemini oracle client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrAPIKeyNotSet
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}

	return &Client{
		client:  client,
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}, nil
}

// Complete submits the instruction and returns the raw completion text.
// The response MIME type is pinned to JSON, but callers must still treat the
// output as untrusted text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("gemini completion: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini completion: empty response")
	}

	return text, nil
}
