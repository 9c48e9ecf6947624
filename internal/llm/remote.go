package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RemoteAdapter calls an external completion endpoint
type RemoteAdapter struct {
	baseURL    string
	httpClient *http.Client
	tracer     trace.Tracer
	breaker    *gobreaker.CircuitBreaker
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// RemoteOptions tunes a RemoteAdapter
type RemoteOptions struct {
	// Timeout bounds a single HTTP exchange. Zero means 30s.
	Timeout time.Duration
	// RatePerSecond limits outbound calls. Zero or less disables the limit.
	RatePerSecond float64
	Logger        *zap.Logger
}

// CompletionRequest is the body posted to /v1/complete
type CompletionRequest struct {
	RequestID string `json:"request_id"`
	Prompt    string `json:"prompt"`
}

// CompletionResponse is the body returned by /v1/complete
type CompletionResponse struct {
	Completion string `json:"completion"`
}

// NewRemoteAdapter creates a new completion endpoint client
func NewRemoteAdapter(baseURL string, opts RemoteOptions) *RemoteAdapter {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}

	// Initialize circuit breaker
	settings := gobreaker.Settings{
		Name:        "llm-remote",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &RemoteAdapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		tracer:  otel.Tracer("llm-remote-adapter"),
		breaker: gobreaker.NewCircuitBreaker(settings),
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// Complete sends the prompt to the completion endpoint
func (c *RemoteAdapter) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, span := c.tracer.Start(ctx, "llm.remote.complete")
	defer span.End()

	req := CompletionRequest{
		RequestID: uuid.New().String(),
		Prompt:    prompt,
	}
	span.SetAttributes(
		attribute.String("request_id", req.RequestID),
		attribute.Int("prompt.length", len(prompt)),
	)

	if err := c.limiter.Wait(ctx); err != nil {
		span.RecordError(err)
		// Wait refuses up front when the next token lands after the deadline
		if _, ok := ctx.Deadline(); ok && ctx.Err() == nil {
			return "", fmt.Errorf("rate limiter: %w: %w", context.DeadlineExceeded, err)
		}
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	// Execute with circuit breaker
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.completeInternal(ctx, req)
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to complete prompt: %w", err)
	}

	completion := result.(string)
	span.SetAttributes(attribute.Int("completion.length", len(completion)))
	return completion, nil
}

// completeInternal performs the actual HTTP request
func (c *RemoteAdapter) completeInternal(ctx context.Context, req CompletionRequest) (string, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/complete", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	// Inject trace context
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", fmt.Errorf("completion endpoint returned status %d (failed to read body: %w)", resp.StatusCode, err)
		}
		return "", fmt.Errorf("completion endpoint returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var completionResp CompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completionResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if strings.TrimSpace(completionResp.Completion) == "" {
		return "", ErrEmptyCompletion
	}

	return completionResp.Completion, nil
}

// IsHealthy checks if the completion endpoint is reachable
func (c *RemoteAdapter) IsHealthy(ctx context.Context) bool {
	ctx, span := c.tracer.Start(ctx, "llm.remote.health_check")
	defer span.End()

	// Use circuit breaker state as a quick health indicator
	if c.breaker.State() == gobreaker.StateOpen {
		span.SetAttributes(attribute.Bool("healthy", false), attribute.String("reason", "circuit_breaker_open"))
		return false
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		span.RecordError(err)
		return false
	}

	// Short timeout for health checks
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		return false
	}
	defer resp.Body.Close()

	healthy := resp.StatusCode == http.StatusOK
	span.SetAttributes(attribute.Bool("healthy", healthy))
	return healthy
}
