package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Fallback causes reported to observers.
const (
	CauseTimeout     = "timeout"
	CauseCircuitOpen = "circuit_open"
	CauseEmpty       = "empty_completion"
	CauseError       = "error"
)

// DefaultAdapterTimeout bounds a primary completion when none is configured.
const DefaultAdapterTimeout = 10 * time.Second

// FallbackAdapter calls a primary adapter under a timeout and answers with
// the fallback adapter whenever the primary fails, so Complete only errors
// if the fallback does.
type FallbackAdapter struct {
	primary    Adapter
	fallback   Adapter
	timeout    time.Duration
	logger     *zap.Logger
	onFallback func(ctx context.Context, cause string)
}

// FallbackOption configures a FallbackAdapter.
type FallbackOption func(*FallbackAdapter)

// WithTimeout sets the primary call timeout.
func WithTimeout(d time.Duration) FallbackOption {
	return func(f *FallbackAdapter) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) FallbackOption {
	return func(f *FallbackAdapter) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithFallbackObserver is called with the cause each time the fallback answers.
func WithFallbackObserver(fn func(ctx context.Context, cause string)) FallbackOption {
	return func(f *FallbackAdapter) { f.onFallback = fn }
}

// NewFallbackAdapter wraps primary so that failures degrade to fallback.
func NewFallbackAdapter(primary, fallback Adapter, opts ...FallbackOption) *FallbackAdapter {
	f := &FallbackAdapter{
		primary:  primary,
		fallback: fallback,
		timeout:  DefaultAdapterTimeout,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *FallbackAdapter) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, span := otel.Tracer("llm-fallback-adapter").Start(ctx, "llm.fallback.complete")
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, f.timeout)
	out, err := f.primary.Complete(callCtx, prompt)
	cancel()
	if err == nil && strings.TrimSpace(out) == "" {
		err = ErrEmptyCompletion
	}
	if err == nil {
		span.SetAttributes(attribute.Bool("fallback", false))
		return out, nil
	}

	cause := classifyFailure(err)
	span.RecordError(err)
	span.SetAttributes(attribute.Bool("fallback", true), attribute.String("cause", cause))
	f.logger.Warn("completion failed, using fallback adapter",
		zap.String("cause", cause),
		zap.Error(err),
	)
	if f.onFallback != nil {
		f.onFallback(ctx, cause)
	}
	return f.fallback.Complete(ctx, prompt)
}

// IsHealthy reports the primary's health when it can be probed.
func (f *FallbackAdapter) IsHealthy(ctx context.Context) bool {
	if hc, ok := f.primary.(HealthChecker); ok {
		return hc.IsHealthy(ctx)
	}
	return true
}

func classifyFailure(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return CauseTimeout
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return CauseCircuitOpen
	case errors.Is(err, ErrEmptyCompletion):
		return CauseEmpty
	}
	return CauseError
}
