// Package llm turns a harmonization prompt into rewritten code.
package llm

import (
	"context"
	"errors"
)

// ErrEmptyCompletion is reported when a model answers with nothing usable.
var ErrEmptyCompletion = errors.New("llm: empty completion")

// Adapter completes a prompt.
type Adapter interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// HealthChecker is implemented by adapters that can probe their endpoint.
type HealthChecker interface {
	IsHealthy(ctx context.Context) bool
}
