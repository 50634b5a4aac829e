package config

import (
	"os"
	"testing"
)

func TestLoad(t *testing.T) {
	// Set required environment variables
	os.Setenv("OPENAI_API_KEY", "test-openai-key")
	defer os.Unsetenv("OPENAI_API_KEY")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.OpenAIAPIKey != "test-openai-key" {
		t.Errorf("Expected OpenAIAPIKey 'test-openai-key', got '%s'", cfg.OpenAIAPIKey)
	}

	if cfg.LLMProvider != "openai" {
		t.Errorf("Expected default LLMProvider 'openai', got '%s'", cfg.LLMProvider)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	// Clear environment variables
	os.Unsetenv("OPENAI_API_KEY")
	os.Unsetenv("LLM_PROVIDER")

	_, err := Load()
	if err == nil {
		t.Error("Expected error when OPENAI_API_KEY is missing")
	}
}

func TestLoad_MockProviderNeedsNoKey(t *testing.T) {
	os.Unsetenv("OPENAI_API_KEY")
	os.Setenv("LLM_PROVIDER", "mock")
	os.Setenv("TTS_PROVIDERS", "mock")
	defer os.Unsetenv("LLM_PROVIDER")
	defer os.Unsetenv("TTS_PROVIDERS")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.LLMProvider != "mock" {
		t.Errorf("Expected LLMProvider 'mock', got '%s'", cfg.LLMProvider)
	}

	if len(cfg.TTSProviders) != 1 || cfg.TTSProviders[0] != "mock" {
		t.Errorf("Expected TTSProviders [mock], got %v", cfg.TTSProviders)
	}
}

func TestLoad_Defaults(t *testing.T) {
	os.Setenv("OPENAI_API_KEY", "test-openai-key")
	defer os.Unsetenv("OPENAI_API_KEY")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	// Check defaults
	if cfg.Port != "8080" {
		t.Errorf("Expected default Port '8080', got '%s'", cfg.Port)
	}

	if cfg.OpenAIModel != "gpt-4o-mini" {
		t.Errorf("Expected default OpenAIModel 'gpt-4o-mini', got '%s'", cfg.OpenAIModel)
	}

	if cfg.OpenAIBaseURL != "https://api.openai.com/v1" {
		t.Errorf("Expected default OpenAIBaseURL 'https://api.openai.com/v1', got '%s'", cfg.OpenAIBaseURL)
	}

	if len(cfg.TTSProviders) != 2 || cfg.TTSProviders[0] != "elevenlabs" || cfg.TTSProviders[1] != "openai" {
		t.Errorf("Expected default TTSProviders [elevenlabs openai], got %v", cfg.TTSProviders)
	}

	if cfg.DefaultLanguage != "en-US" {
		t.Errorf("Expected default DefaultLanguage 'en-US', got '%s'", cfg.DefaultLanguage)
	}

	if cfg.DefaultVoiceType != "female" {
		t.Errorf("Expected default DefaultVoiceType 'female', got '%s'", cfg.DefaultVoiceType)
	}

	if cfg.OpenAITTSModel != "gpt-4o-mini-tts" {
		t.Errorf("Expected default OpenAITTSModel 'gpt-4o-mini-tts', got '%s'", cfg.OpenAITTSModel)
	}

	if cfg.ElevenLabsBaseURL != "https://api.elevenlabs.io" {
		t.Errorf("Expected default ElevenLabsBaseURL 'https://api.elevenlabs.io', got '%s'", cfg.ElevenLabsBaseURL)
	}

	if cfg.ProviderTimeout != 30 {
		t.Errorf("Expected default ProviderTimeout 30, got %d", cfg.ProviderTimeout)
	}
}

func TestLoad_AssemblyDefaults(t *testing.T) {
	os.Setenv("OPENAI_API_KEY", "test-openai-key")
	defer os.Unsetenv("OPENAI_API_KEY")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.PartialWaitMs != 400 {
		t.Errorf("Expected default PartialWaitMs 400, got %d", cfg.PartialWaitMs)
	}

	if cfg.PartialMinChars != 10 {
		t.Errorf("Expected default PartialMinChars 10, got %d", cfg.PartialMinChars)
	}

	if cfg.DedupRatio != 1.5 {
		t.Errorf("Expected default DedupRatio 1.5, got %f", cfg.DedupRatio)
	}

	if cfg.ResponseRetention != 600 {
		t.Errorf("Expected default ResponseRetention 600, got %d", cfg.ResponseRetention)
	}

	if cfg.AudioCacheSize != 50 {
		t.Errorf("Expected default AudioCacheSize 50, got %d", cfg.AudioCacheSize)
	}

	if cfg.PollIntervalMs != 500 {
		t.Errorf("Expected default PollIntervalMs 500, got %d", cfg.PollIntervalMs)
	}

	if cfg.PollMaxAttempts != 30 {
		t.Errorf("Expected default PollMaxAttempts 30, got %d", cfg.PollMaxAttempts)
	}
}

func TestLoad_UnknownLLMProvider(t *testing.T) {
	os.Setenv("LLM_PROVIDER", "fancy-new-model")
	defer os.Unsetenv("LLM_PROVIDER")

	_, err := Load()
	if err == nil {
		t.Error("Expected error for unknown LLM provider")
	}
}

func TestLoad_UnknownTTSProvider(t *testing.T) {
	os.Setenv("OPENAI_API_KEY", "test-openai-key")
	os.Setenv("TTS_PROVIDERS", "elevenlabs,espeak")
	defer os.Unsetenv("OPENAI_API_KEY")
	defer os.Unsetenv("TTS_PROVIDERS")

	_, err := Load()
	if err == nil {
		t.Error("Expected error for unknown TTS provider")
	}
}

func TestLoad_InvalidDedupRatio(t *testing.T) {
	os.Setenv("OPENAI_API_KEY", "test-openai-key")
	os.Setenv("DEDUP_RATIO", "0.9")
	defer os.Unsetenv("OPENAI_API_KEY")
	defer os.Unsetenv("DEDUP_RATIO")

	_, err := Load()
	if err == nil {
		t.Error("Expected error for DEDUP_RATIO below 1.0")
	}
}

func TestLoadFromEnv(t *testing.T) {
	os.Setenv("OPENAI_API_KEY", "test-openai-key")
	defer os.Unsetenv("OPENAI_API_KEY")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if cfg.OpenAIAPIKey != "test-openai-key" {
		t.Errorf("Expected OpenAIAPIKey 'test-openai-key', got '%s'", cfg.OpenAIAPIKey)
	}
}

func TestGetEnv(t *testing.T) {
	os.Setenv("TEST_KEY", "test-value")
	defer os.Unsetenv("TEST_KEY")

	value := GetEnv("TEST_KEY", "default")
	if value != "test-value" {
		t.Errorf("Expected 'test-value', got '%s'", value)
	}

	value = GetEnv("NON_EXISTENT_KEY", "default")
	if value != "default" {
		t.Errorf("Expected 'default', got '%s'", value)
	}
}

func TestConfig_ObservabilityDefaults(t *testing.T) {
	os.Setenv("OPENAI_API_KEY", "test-openai-key")
	// Clear LOG_LEVEL to ensure we get the default
	os.Unsetenv("LOG_LEVEL")
	defer os.Unsetenv("OPENAI_API_KEY")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	// The default should be "info" (lowercase) as defined in config.go
	if cfg.LogLevel != "info" {
		t.Errorf("Expected default LogLevel 'info', got '%s'", cfg.LogLevel)
	}

	if cfg.LogPretty {
		t.Error("Expected default LogPretty false, got true")
	}

	if !cfg.MetricsEnabled {
		t.Error("Expected default MetricsEnabled true, got false")
	}
}
