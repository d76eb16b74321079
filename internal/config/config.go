package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the alumnitrack server.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Jobs      JobsConfig
	Scraper   ScraperConfig
	Notify    NotifyConfig
	AI        AIConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// JobsConfig controls how the coordinator drains a job's queue.
type JobsConfig struct {
	ItemDelay     time.Duration
	ItemTimeout   time.Duration
	MaxAttempts   int
	AutoStart     bool
	LockTTL       time.Duration
	SnapshotTTL   time.Duration
	ResumeOnStart bool
}

type ScraperConfig struct {
	Mode              string
	UserAgent         string
	RequestTimeout    time.Duration
	RequestsPerSecond float64
	Burst             int
	MockLatency       time.Duration
}

type NotifyConfig struct {
	Backend string
}

type AIConfig struct {
	Provider         string
	InferenceTimeout time.Duration
	Gemini           GeminiConfig
	Ollama           OllamaConfig
	VLLM             VLLMConfig
	OpenAI           OpenAIConfig
	Anthropic        AnthropicConfig
}

type GeminiConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

type OllamaConfig struct {
	BaseURL string
	Model   string
}

type VLLMConfig struct {
	BaseURL string
	Model   string
}

type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

type AnthropicConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

type RateLimitConfig struct {
	RequestsPerMinute int
}

var validProviders = map[string]bool{
	"none":      true,
	"gemini":    true,
	"ollama":    true,
	"vllm":      true,
	"openai":    true,
	"anthropic": true,
}

var validScraperModes = map[string]bool{
	"mock": true,
	"http": true,
}

var validNotifyBackends = map[string]bool{
	"memory": true,
	"redis":  true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("ALUMNITRACK_PORT", 8080),
			Env:  envString("ALUMNITRACK_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Jobs: JobsConfig{
			ItemDelay:     envDuration("JOBS_ITEM_DELAY", 3*time.Second),
			ItemTimeout:   envDuration("JOBS_ITEM_TIMEOUT", 60*time.Second),
			MaxAttempts:   envInt("JOBS_MAX_ATTEMPTS", 3),
			AutoStart:     envBool("JOBS_AUTO_START", true),
			LockTTL:       envDuration("JOBS_LOCK_TTL", 6*time.Hour),
			SnapshotTTL:   envDuration("JOBS_SNAPSHOT_TTL", 30*time.Minute),
			ResumeOnStart: envBool("JOBS_RESUME_ON_START", true),
		},
		Scraper: ScraperConfig{
			Mode:              envString("SCRAPER_MODE", "mock"),
			UserAgent:         envString("SCRAPER_USER_AGENT", "Mozilla/5.0 (compatible; alumnitrack/1.0)"),
			RequestTimeout:    envDuration("SCRAPER_REQUEST_TIMEOUT", 20*time.Second),
			RequestsPerSecond: envFloat("SCRAPER_REQUESTS_PER_SECOND", 0.5),
			Burst:             envInt("SCRAPER_BURST", 1),
			MockLatency:       envDuration("SCRAPER_MOCK_LATENCY", 0),
		},
		Notify: NotifyConfig{
			Backend: envString("NOTIFY_BACKEND", "memory"),
		},
		AI: AIConfig{
			Provider:         envString("AI_PROVIDER", "none"),
			InferenceTimeout: envDurationSecs("AI_INFERENCE_TIMEOUT_SECS", 30*time.Second),
			Gemini: GeminiConfig{
				BaseURL: envString("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
				APIKey:  os.Getenv("GEMINI_API_KEY"),
				Model:   envString("GEMINI_MODEL", "gemini-1.5-flash-latest"),
			},
			Ollama: OllamaConfig{
				BaseURL: envString("OLLAMA_BASE_URL", "http://localhost:11434"),
				Model:   envString("OLLAMA_MODEL", "llama3"),
			},
			VLLM: VLLMConfig{
				BaseURL: envString("VLLM_BASE_URL", "http://localhost:8000"),
				Model:   envString("VLLM_MODEL", ""),
			},
			OpenAI: OpenAIConfig{
				BaseURL: envString("OPENAI_BASE_URL", "https://api.openai.com"),
				APIKey:  os.Getenv("OPENAI_API_KEY"),
				Model:   envString("OPENAI_MODEL", "gpt-4o-mini"),
			},
			Anthropic: AnthropicConfig{
				BaseURL: envString("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
				APIKey:  os.Getenv("ANTHROPIC_API_KEY"),
				Model:   envString("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
			},
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: envInt("RATE_LIMIT_PER_MINUTE", 60),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Jobs.ItemDelay < 0 {
		return fmt.Errorf("JOBS_ITEM_DELAY must not be negative, got %s", c.Jobs.ItemDelay)
	}
	if c.Jobs.ItemTimeout <= 0 {
		return fmt.Errorf("JOBS_ITEM_TIMEOUT must be positive, got %s", c.Jobs.ItemTimeout)
	}
	if c.Jobs.MaxAttempts < 1 {
		return fmt.Errorf("JOBS_MAX_ATTEMPTS must be at least 1, got %d", c.Jobs.MaxAttempts)
	}

	if !validScraperModes[c.Scraper.Mode] {
		return fmt.Errorf("SCRAPER_MODE must be one of mock, http; got %q", c.Scraper.Mode)
	}
	if c.Scraper.Mode == "http" && c.Scraper.RequestsPerSecond <= 0 {
		return fmt.Errorf("SCRAPER_REQUESTS_PER_SECOND must be positive in http mode")
	}

	if !validNotifyBackends[c.Notify.Backend] {
		return fmt.Errorf("NOTIFY_BACKEND must be one of memory, redis; got %q", c.Notify.Backend)
	}

	if !validProviders[c.AI.Provider] {
		return fmt.Errorf("AI_PROVIDER must be one of none, gemini, ollama, vllm, openai, anthropic; got %q", c.AI.Provider)
	}
	if c.AI.Provider == "gemini" && c.AI.Gemini.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required when AI_PROVIDER is gemini")
	}
	if c.AI.Provider == "openai" && c.AI.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when AI_PROVIDER is openai")
	}
	if c.AI.Provider == "anthropic" && c.AI.Anthropic.APIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required when AI_PROVIDER is anthropic")
	}
	if c.AI.Provider == "vllm" && !strings.HasPrefix(c.AI.VLLM.BaseURL, "http") {
		return fmt.Errorf("VLLM_BASE_URL must start with http:// or https://, got %q", c.AI.VLLM.BaseURL)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
