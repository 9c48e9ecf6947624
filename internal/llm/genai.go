package llm

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"
)

// DefaultGenAIModel is used when no model is configured.
const DefaultGenAIModel = "gemini-2.0-flash"

// GenAIAdapter completes prompts with the Google GenAI API.
type GenAIAdapter struct {
	client *genai.Client
	model  string
	tracer trace.Tracer
}

// GenAIOptions configures a GenAIAdapter.
type GenAIOptions struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string
}

// NewGenAIAdapter creates a GenAI-backed adapter.
func NewGenAIAdapter(ctx context.Context, opts GenAIOptions) (*GenAIAdapter, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	model := opts.Model
	if model == "" {
		model = DefaultGenAIModel
	}

	cfg := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAIAdapter{
		client: client,
		model:  model,
		tracer: otel.Tracer("llm-genai-adapter"),
	}, nil
}

// Model returns the configured model name.
func (g *GenAIAdapter) Model() string { return g.model }

// Complete sends prompt as a single user turn and returns the response text.
func (g *GenAIAdapter) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, span := g.tracer.Start(ctx, "llm.genai.complete")
	defer span.End()
	span.SetAttributes(attribute.String("model", g.model))

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}
