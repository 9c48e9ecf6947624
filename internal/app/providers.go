// Package app wires configuration into the harmonizer components.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bizmatters/code-harmonizer/internal/config"
	"github.com/bizmatters/code-harmonizer/internal/harmonization"
	"github.com/bizmatters/code-harmonizer/internal/intentions"
	"github.com/bizmatters/code-harmonizer/internal/kvstore"
	"github.com/bizmatters/code-harmonizer/internal/llm"
	"github.com/bizmatters/code-harmonizer/internal/metrics"
	"github.com/bizmatters/code-harmonizer/internal/session"
)

// ProvideLogger creates the application logger
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}

	if cfg.LogLevel != "" {
		level, err := zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
		}
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}

	return zcfg.Build()
}

// ProvideKVBackend opens the configured kv backend. The returned cleanup
// releases everything opened here.
func ProvideKVBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (kvstore.Backend, func(), error) {
	switch cfg.KVBackend {
	case config.KVMemory:
		return kvstore.NewMemoryBackend(0), func() {}, nil

	case config.KVSQLite:
		backend, err := kvstore.OpenSQLite(ctx, cfg.KVPath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using sqlite kv store", zap.String("path", cfg.KVPath))
		return backend, func() { _ = backend.Close() }, nil

	case config.KVPostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to ping database: %w", err)
		}
		backend, err := kvstore.NewPostgresBackend(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("using postgres kv store")
		return backend, pool.Close, nil

	case config.KVRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		backend := kvstore.NewRedisBackend(client, kvstore.DefaultRedisPrefix)
		if err := backend.Ping(ctx); err != nil {
			logger.Warn("redis not reachable, values will fall back to defaults",
				zap.String("addr", cfg.RedisAddr),
				zap.Error(err),
			)
		}
		return backend, func() { _ = backend.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown kv backend %q", cfg.KVBackend)
}

// ProvideAdapter builds the adapter selected by llm-mode. Real variants are
// wrapped so that every failure falls back to the mock.
func ProvideAdapter(ctx context.Context, cfg *config.Config, catalog *intentions.Catalog, runMetrics *metrics.RunMetrics, logger *zap.Logger) (llm.Adapter, error) {
	mock := llm.NewMockAdapter(catalog)

	var primary llm.Adapter
	switch cfg.LLMMode {
	case config.LLMModeMock:
		logger.Info("using mock language model adapter")
		return mock, nil
	case config.LLMModeRemote:
		primary = llm.NewRemoteAdapter(cfg.LLMURL, llm.RemoteOptions{
			Timeout:       cfg.LLMTimeout,
			RatePerSecond: cfg.LLMRateLimit,
			Logger:        logger,
		})
	case config.LLMModeGenAI:
		genai, err := llm.NewGenAIAdapter(ctx, llm.GenAIOptions{
			APIKey: cfg.GenAIAPIKey,
			Model:  cfg.GenAIModel,
		})
		if err != nil {
			return nil, err
		}
		primary = genai
	default:
		return nil, fmt.Errorf("unknown llm mode %q", cfg.LLMMode)
	}

	logger.Info("using language model adapter with mock fallback", zap.String("mode", cfg.LLMMode))
	opts := []llm.FallbackOption{
		llm.WithTimeout(cfg.LLMTimeout),
		llm.WithLogger(logger),
	}
	if runMetrics != nil {
		opts = append(opts, llm.WithFallbackObserver(runMetrics.RecordFallback))
	}
	return llm.NewFallbackAdapter(primary, mock, opts...), nil
}

// Components is the assembled application
type Components struct {
	Config    *config.Config
	Logger    *zap.Logger
	Catalog   *intentions.Catalog
	Backend   kvstore.Backend
	Adapter   llm.Adapter
	Pipeline  *harmonization.Pipeline
	Workspace *session.Workspace
	Metrics   *metrics.RunMetrics

	cleanup func()
}

// Close releases the backend
func (c *Components) Close() {
	if c.cleanup != nil {
		c.cleanup()
	}
}

// Build assembles every component from cfg using logger
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	runMetrics, err := metrics.NewRunMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to create run metrics: %w", err)
	}

	catalog := intentions.Default()

	backend, cleanup, err := ProvideKVBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	adapter, err := ProvideAdapter(ctx, cfg, catalog, runMetrics, logger)
	if err != nil {
		cleanup()
		return nil, err
	}

	pipeline := harmonization.NewPipeline(adapter,
		harmonization.WithCatalog(catalog),
		harmonization.WithStepTiming(cfg.StepDelay, cfg.StepTicks),
		harmonization.WithMetrics(runMetrics),
		harmonization.WithLogger(logger),
	)

	return &Components{
		Config:    cfg,
		Logger:    logger,
		Catalog:   catalog,
		Backend:   backend,
		Adapter:   adapter,
		Pipeline:  pipeline,
		Workspace: session.NewWorkspace(ctx, pipeline, backend, logger),
		Metrics:   runMetrics,
		cleanup:   cleanup,
	}, nil
}
