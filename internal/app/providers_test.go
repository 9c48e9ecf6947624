package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bizmatters/code-harmonizer/internal/config"
	"github.com/bizmatters/code-harmonizer/internal/intentions"
	"github.com/bizmatters/code-harmonizer/internal/kvstore"
	"github.com/bizmatters/code-harmonizer/internal/llm"
)

func TestProvideLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Config
		wantErr bool
	}{
		{name: "development", cfg: config.Config{Environment: "development", LogLevel: "debug"}},
		{name: "production", cfg: config.Config{Environment: "production", LogLevel: "warn"}},
		{name: "default level", cfg: config.Config{Environment: "development"}},
		{name: "bad level", cfg: config.Config{LogLevel: "loud"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := ProvideLogger(&tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func TestProvideKVBackend(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		backend, cleanup, err := ProvideKVBackend(ctx, &config.Config{KVBackend: config.KVMemory}, zap.NewNop())
		require.NoError(t, err)
		defer cleanup()
		assert.IsType(t, &kvstore.MemoryBackend{}, backend)
	})

	t.Run("sqlite", func(t *testing.T) {
		cfg := &config.Config{KVBackend: config.KVSQLite, KVPath: filepath.Join(t.TempDir(), "kv.db")}
		backend, cleanup, err := ProvideKVBackend(ctx, cfg, zap.NewNop())
		require.NoError(t, err)
		defer cleanup()
		assert.NoError(t, backend.Ping(ctx))
	})

	t.Run("redis unreachable still provides a backend", func(t *testing.T) {
		cfg := &config.Config{KVBackend: config.KVRedis, RedisAddr: "127.0.0.1:1"}
		backend, cleanup, err := ProvideKVBackend(ctx, cfg, zap.NewNop())
		require.NoError(t, err)
		defer cleanup()
		assert.IsType(t, &kvstore.RedisBackend{}, backend)
	})

	t.Run("unknown", func(t *testing.T) {
		_, _, err := ProvideKVBackend(ctx, &config.Config{KVBackend: "etcd"}, zap.NewNop())
		assert.Error(t, err)
	})
}

func TestProvideAdapter(t *testing.T) {
	ctx := context.Background()
	catalog := intentions.Default()

	adapter, err := ProvideAdapter(ctx, &config.Config{LLMMode: config.LLMModeMock}, catalog, nil, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &llm.MockAdapter{}, adapter)

	adapter, err = ProvideAdapter(ctx, &config.Config{LLMMode: config.LLMModeRemote, LLMURL: "http://127.0.0.1:1", LLMTimeout: time.Second}, catalog, nil, zap.NewNop())
	require.NoError(t, err)
	require.IsType(t, &llm.FallbackAdapter{}, adapter)

	// the endpoint is closed, so the mock answers
	out, err := adapter.Complete(ctx, llm.BuildPrompt("var x = 1;", []string{"optimize-performance"}, []string{"Performance Optimization"}))
	require.NoError(t, err)
	assert.Equal(t, "const x = 1;", out)

	_, err = ProvideAdapter(ctx, &config.Config{LLMMode: config.LLMModeGenAI}, catalog, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestBuild(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{LLMMode: config.LLMModeMock, KVBackend: config.KVMemory, StepTicks: 5}

	components, err := Build(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer components.Close()

	components.Workspace.SetSource(ctx, "var x = 1;")
	require.NoError(t, components.Workspace.SetSelection(ctx, []string{"optimize-performance"}))
	result, err := components.Workspace.Harmonize(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "const x = 1;", result.HarmonizedCode)
}
