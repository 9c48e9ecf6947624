package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type stubAdapter struct {
	out   string
	err   error
	block bool
	calls int
}

func (s *stubAdapter) Complete(ctx context.Context, _ string) (string, error) {
	s.calls++
	if s.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return s.out, s.err
}

func TestFallbackAdapter_PrimarySucceeds(t *testing.T) {
	primary := &stubAdapter{out: "from primary"}
	fallback := &stubAdapter{out: "from fallback"}

	out, err := NewFallbackAdapter(primary, fallback).Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "from primary", out)
	assert.Equal(t, 0, fallback.calls)
}

func TestFallbackAdapter_Causes(t *testing.T) {
	tests := []struct {
		name    string
		primary *stubAdapter
		cause   string
	}{
		{name: "error", primary: &stubAdapter{err: errors.New("connection refused")}, cause: CauseError},
		{name: "empty", primary: &stubAdapter{out: "  \n"}, cause: CauseEmpty},
		{name: "timeout", primary: &stubAdapter{block: true}, cause: CauseTimeout},
		{name: "circuit open", primary: &stubAdapter{err: gobreaker.ErrOpenState}, cause: CauseCircuitOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zap.WarnLevel)
			var causes []string
			fallback := &stubAdapter{out: "from fallback"}

			adapter := NewFallbackAdapter(tt.primary, fallback,
				WithTimeout(20*time.Millisecond),
				WithLogger(zap.New(core)),
				WithFallbackObserver(func(_ context.Context, cause string) {
					causes = append(causes, cause)
				}),
			)

			out, err := adapter.Complete(context.Background(), "p")
			require.NoError(t, err)
			assert.Equal(t, "from fallback", out)
			assert.Equal(t, []string{tt.cause}, causes)
			require.Equal(t, 1, logs.Len())
			assert.Equal(t, tt.cause, logs.All()[0].ContextMap()["cause"])
		})
	}
}

func TestFallbackAdapter_MockFallbackNeverFails(t *testing.T) {
	adapter := NewFallbackAdapter(&stubAdapter{err: errors.New("down")}, NewMockAdapter(nil))

	out, err := adapter.Complete(context.Background(), BuildPrompt("var x = 1;", []string{"optimize-performance"}, []string{"Optimize Performance"}))
	require.NoError(t, err)
	assert.Equal(t, "const x = 1;", out)
}

func TestFallbackAdapter_IsHealthy(t *testing.T) {
	assert.True(t, NewFallbackAdapter(&stubAdapter{}, NewMockAdapter(nil)).IsHealthy(context.Background()))

	remote := NewRemoteAdapter("http://127.0.0.1:1", RemoteOptions{})
	assert.False(t, NewFallbackAdapter(remote, NewMockAdapter(nil)).IsHealthy(context.Background()))
}
