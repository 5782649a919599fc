// Package gemini implements ports.Completer with the Google Gen AI SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/aretw0/director/pkg/domain"
	"github.com/aretw0/director/pkg/ports"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

// Config holds the connection settings.
type Config struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint, for tests and proxies.
	BaseURL    string
	HTTPClient *http.Client
}

// Completer is a single-shot Gemini completion client.
type Completer struct {
	client *genai.Client
	model  string
}

// New creates a Completer. An empty API key is an error so that a missing
// secret surfaces at startup instead of on the first turn.
func New(ctx context.Context, cfg Config) (*Completer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required: %w", domain.ErrCollaboratorUnavailable)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Completer{client: client, model: cfg.Model}, nil
}

// Model returns the configured model name.
func (c *Completer) Model() string {
	return c.model
}

// Complete sends one system and user prompt pair and returns the text answer.
func (c *Completer) Complete(ctx context.Context, systemPrompt, userPrompt string, opts ports.CompleteOptions) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(opts.Temperature)),
	}
	if systemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}
	if opts.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(opts.MaxTokens)
	}
	if opts.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model,
		[]*genai.Content{genai.NewContentFromText(userPrompt, genai.RoleUser)}, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate failed: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.Join(domain.ErrMalformedOutput, errors.New("gemini returned no text"))
	}
	return text, nil
}
