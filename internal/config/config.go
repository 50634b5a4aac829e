package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the chat gateway service
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Text generation provider configuration
	LLMProvider   string  `envconfig:"LLM_PROVIDER" default:"openai"` // openai, mock
	OpenAIAPIKey  string  `envconfig:"OPENAI_API_KEY" default:""`
	OpenAIBaseURL string  `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	OpenAIModel   string  `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	Temperature   float64 `envconfig:"LLM_TEMPERATURE" default:"0.7"`
	MaxTokens     int     `envconfig:"LLM_MAX_TOKENS" default:"300"`
	SystemPrompt  string  `envconfig:"SYSTEM_PROMPT" default:"You are a friendly voice assistant. Keep replies short and conversational."`

	// Speech synthesis provider configuration
	TTSProviders      []string `envconfig:"TTS_PROVIDERS" default:"elevenlabs,openai"` // failover order
	ElevenLabsAPIKey  string   `envconfig:"ELEVENLABS_API_KEY" default:""`
	ElevenLabsBaseURL string   `envconfig:"ELEVENLABS_BASE_URL" default:"https://api.elevenlabs.io"`
	ElevenLabsModelID string   `envconfig:"ELEVENLABS_MODEL_ID" default:"eleven_turbo_v2_5"`
	OpenAITTSModel    string   `envconfig:"OPENAI_TTS_MODEL" default:"gpt-4o-mini-tts"`
	DefaultLanguage   string   `envconfig:"DEFAULT_LANGUAGE" default:"en-US"` // BCP 47 language tag
	DefaultVoiceType  string   `envconfig:"DEFAULT_VOICE_TYPE" default:"female"`
	ProviderTimeout   int      `envconfig:"PROVIDER_TIMEOUT" default:"30"` // seconds, per outbound provider call

	// Response assembly configuration
	PartialWaitMs   int     `envconfig:"PARTIAL_WAIT_MS" default:"400"`   // Max wait before returning the partial chunk
	PartialMinChars int     `envconfig:"PARTIAL_MIN_CHARS" default:"10"`  // Minimum partial length worth synthesizing
	DedupRatio      float64 `envconfig:"DEDUP_RATIO" default:"1.5"`       // Skip re-synthesis below finalLen < ratio*partialLen

	// Cache configuration
	ResponseRetention int `envconfig:"RESPONSE_RETENTION_SECONDS" default:"600"` // Completed-response retention window
	AudioCacheSize    int `envconfig:"AUDIO_CACHE_SIZE" default:"50"`            // Most recent audio blobs to keep

	// Poll protocol configuration (consumed by the bundled chat client)
	PollIntervalMs  int `envconfig:"POLL_INTERVAL_MS" default:"500"`
	PollMaxAttempts int `envconfig:"POLL_MAX_ATTEMPTS" default:"30"`

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.LLMProvider {
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when LLM_PROVIDER is openai")
		}
	case "mock":
		// No credentials needed
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q (expected openai or mock)", c.LLMProvider)
	}

	if len(c.TTSProviders) == 0 {
		return fmt.Errorf("TTS_PROVIDERS must list at least one provider")
	}
	for _, p := range c.TTSProviders {
		switch p {
		case "elevenlabs", "openai", "mock":
		default:
			return fmt.Errorf("unknown TTS provider %q (expected elevenlabs, openai or mock)", p)
		}
	}

	// Missing TTS credentials are not fatal here: a provider without a key
	// fails at synthesis time and the failover chain moves on.

	if c.DedupRatio <= 1.0 {
		return fmt.Errorf("DEDUP_RATIO must be greater than 1.0, got %v", c.DedupRatio)
	}
	if c.AudioCacheSize < 1 {
		return fmt.Errorf("AUDIO_CACHE_SIZE must be at least 1, got %d", c.AudioCacheSize)
	}

	return nil
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
