package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Adapter modes
const (
	LLMModeMock   = "mock"
	LLMModeRemote = "remote"
	LLMModeGenAI  = "genai"
)

// KV backends
const (
	KVMemory   = "memory"
	KVSQLite   = "sqlite"
	KVPostgres = "postgres"
	KVRedis    = "redis"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Port        string
	Environment string
	LogLevel    string

	// Language model adapter
	LLMMode      string
	LLMURL       string
	LLMTimeout   time.Duration
	LLMRateLimit float64
	GenAIAPIKey  string
	GenAIModel   string

	// Persistence
	KVBackend   string
	KVPath      string
	DatabaseURL string
	RedisAddr   string

	// Step simulation
	StepDelay time.Duration
	StepTicks int
}

// NewViper returns a viper instance with defaults, the optional config file
// named by HARMONIZER_CONFIG and HARMONIZER_* environment variables.
func NewViper() (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault("port", "8080")
	v.SetDefault("env", "development")
	v.SetDefault("log-level", "info")
	v.SetDefault("llm-mode", LLMModeMock)
	v.SetDefault("llm-url", "")
	v.SetDefault("llm-timeout", 10*time.Second)
	v.SetDefault("llm-rate-limit", 2.0)
	v.SetDefault("genai-api-key", "")
	v.SetDefault("genai-model", "gemini-2.0-flash")
	v.SetDefault("kv-backend", KVSQLite)
	v.SetDefault("kv-path", ".harmonizer/kv.db")
	v.SetDefault("database-url", "")
	v.SetDefault("redis-addr", "")
	v.SetDefault("step-delay", time.Duration(0))
	v.SetDefault("step-ticks", 5)

	v.SetEnvPrefix("HARMONIZER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path := os.Getenv("HARMONIZER_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}
	return v, nil
}

// Load builds a validated Config from v
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:         v.GetString("port"),
		Environment:  v.GetString("env"),
		LogLevel:     v.GetString("log-level"),
		LLMMode:      strings.ToLower(v.GetString("llm-mode")),
		LLMURL:       v.GetString("llm-url"),
		LLMTimeout:   v.GetDuration("llm-timeout"),
		LLMRateLimit: v.GetFloat64("llm-rate-limit"),
		GenAIAPIKey:  v.GetString("genai-api-key"),
		GenAIModel:   v.GetString("genai-model"),
		KVBackend:    strings.ToLower(v.GetString("kv-backend")),
		KVPath:       v.GetString("kv-path"),
		DatabaseURL:  v.GetString("database-url"),
		RedisAddr:    v.GetString("redis-addr"),
		StepDelay:    v.GetDuration("step-delay"),
		StepTicks:    v.GetInt("step-ticks"),
	}

	// Legacy names used by the container images
	if port := os.Getenv("PORT"); port != "" && os.Getenv("HARMONIZER_PORT") == "" {
		cfg.Port = port
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv is NewViper followed by Load
func LoadFromEnv() (*Config, error) {
	v, err := NewViper()
	if err != nil {
		return nil, err
	}
	return Load(v)
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	var errs []error

	switch c.LLMMode {
	case LLMModeMock:
	case LLMModeRemote:
		if c.LLMURL == "" {
			errs = append(errs, errors.New("llm-url is required when llm-mode is remote"))
		}
	case LLMModeGenAI:
		if c.GenAIAPIKey == "" {
			errs = append(errs, errors.New("genai-api-key is required when llm-mode is genai"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown llm-mode %q", c.LLMMode))
	}

	switch c.KVBackend {
	case KVMemory:
	case KVSQLite:
		if c.KVPath == "" {
			errs = append(errs, errors.New("kv-path is required when kv-backend is sqlite"))
		}
	case KVPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("database-url is required when kv-backend is postgres"))
		}
	case KVRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("redis-addr is required when kv-backend is redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown kv-backend %q", c.KVBackend))
	}

	if c.LLMTimeout < 0 {
		errs = append(errs, errors.New("llm-timeout must not be negative"))
	}
	if c.StepDelay < 0 {
		errs = append(errs, errors.New("step-delay must not be negative"))
	}
	if c.StepTicks <= 0 {
		errs = append(errs, errors.New("step-ticks must be positive"))
	}

	return errors.Join(errs...)
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Addr is the listen address for the HTTP server
func (c *Config) Addr() string {
	return ":" + strings.TrimPrefix(c.Port, ":")
}
