// Package tts is the speech synthesis port with an ordered provider failover.
package tts

import (
	"context"
	"fmt"

	"github.com/voiceloopai/chat-gateway/internal/config"
)

// SynthesisRequest asks for audio of a text in a given voice.
type SynthesisRequest struct {
	Text      string
	VoiceType string // "female" or "male"
	Language  string // BCP 47 tag, e.g. "en-US"
}

// SynthesisResult is the synthesized audio payload.
type SynthesisResult struct {
	Audio       []byte
	ContentType string
}

// Synthesizer defines the interface for a speech synthesis provider
type Synthesizer interface {
	// Synthesize converts text to audio
	Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error)

	// Name identifies the provider in logs and metrics
	Name() string

	// HealthCheck reports whether the provider is usable
	HealthCheck(ctx context.Context) (bool, error)
}

// SynthesisError marks a provider synthesis failure. The failover chain
// treats every one of them, missing credentials included, as a cue to try
// the next provider.
type SynthesisError struct {
	Provider string
	Err      error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("%s synthesis failed: %v", e.Provider, e.Err)
}

func (e *SynthesisError) Unwrap() error {
	return e.Err
}

// NewSynthesizer builds the configured provider failover chain.
func NewSynthesizer(cfg *config.Config) (Synthesizer, error) {
	catalog, err := NewCatalog(cfg.DefaultLanguage, cfg.DefaultVoiceType)
	if err != nil {
		return nil, err
	}

	providers := make([]Synthesizer, 0, len(cfg.TTSProviders))
	for _, name := range cfg.TTSProviders {
		switch name {
		case "elevenlabs":
			providers = append(providers, NewElevenLabsClient(cfg, catalog))
		case "openai":
			providers = append(providers, NewOpenAISpeechClient(cfg, catalog))
		case "mock":
			providers = append(providers, NewMockSynthesizer())
		default:
			return nil, fmt.Errorf("unknown TTS provider %q", name)
		}
	}

	return NewFailover(providers...), nil
}

// truncate shortens text to a provider's character limit without splitting a
// rune.
func truncate(text string, limit int) string {
	if limit <= 0 || len(text) <= limit {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
