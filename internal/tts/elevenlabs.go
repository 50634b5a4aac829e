package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/voiceloopai/chat-gateway/internal/config"
)

// elevenLabsMaxChars is the request text limit; longer text is truncated
// before synthesis.
const elevenLabsMaxChars = 1500

// ElevenLabsClient implements Synthesizer using the ElevenLabs TTS API
type ElevenLabsClient struct {
	config     *config.Config
	apiKey     string
	apiURL     string
	modelID    string
	catalog    *Catalog
	httpClient *http.Client
}

// elevenLabsRequest represents the request payload for the ElevenLabs TTS API
type elevenLabsRequest struct {
	Text          string                   `json:"text"`
	ModelID       string                   `json:"model_id,omitempty"`
	VoiceSettings *elevenLabsVoiceSettings `json:"voice_settings,omitempty"`
}

type elevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// NewElevenLabsClient creates a new ElevenLabs TTS client
func NewElevenLabsClient(cfg *config.Config, catalog *Catalog) *ElevenLabsClient {
	return &ElevenLabsClient{
		config:     cfg,
		apiKey:     cfg.ElevenLabsAPIKey,
		apiURL:     strings.TrimSuffix(cfg.ElevenLabsBaseURL, "/") + "/v1/text-to-speech",
		modelID:    cfg.ElevenLabsModelID,
		catalog:    catalog,
		httpClient: &http.Client{Timeout: time.Duration(cfg.ProviderTimeout) * time.Second},
	}
}

// Synthesize converts text to MP3 audio
func (c *ElevenLabsClient) Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, &SynthesisError{Provider: c.Name(), Err: fmt.Errorf("no text to synthesize")}
	}
	if c.apiKey == "" {
		return nil, &SynthesisError{Provider: c.Name(), Err: fmt.Errorf("api key is not configured")}
	}

	voice, err := c.catalog.Resolve(c.Name(), req.Language, req.VoiceType)
	if err != nil {
		return nil, &SynthesisError{Provider: c.Name(), Err: err}
	}

	reqBody := elevenLabsRequest{
		Text:    truncate(req.Text, elevenLabsMaxChars),
		ModelID: c.modelID,
		VoiceSettings: &elevenLabsVoiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &SynthesisError{Provider: c.Name(), Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/%s", c.apiURL, voice.ID), bytes.NewReader(jsonData))
	if err != nil {
		return nil, &SynthesisError{Provider: c.Name(), Err: fmt.Errorf("failed to create request: %w", err)}
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/mpeg")
	httpReq.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &SynthesisError{Provider: c.Name(), Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &SynthesisError{Provider: c.Name(),
			Err: fmt.Errorf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))}
	}

	// Failures can come back as 200 with a JSON body instead of audio
	if ct := resp.Header.Get("Content-Type"); strings.Contains(ct, "application/json") {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &SynthesisError{Provider: c.Name(),
			Err: fmt.Errorf("unexpected JSON response: %s", strings.TrimSpace(string(body)))}
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &SynthesisError{Provider: c.Name(), Err: fmt.Errorf("failed to read audio response: %w", err)}
	}
	if len(audio) == 0 {
		return nil, &SynthesisError{Provider: c.Name(), Err: fmt.Errorf("empty audio response")}
	}

	return &SynthesisResult{Audio: audio, ContentType: "audio/mpeg"}, nil
}

func (c *ElevenLabsClient) Name() string {
	return "elevenlabs"
}

// HealthCheck validates the client configuration without spending an API call
func (c *ElevenLabsClient) HealthCheck(ctx context.Context) (bool, error) {
	if c.apiKey == "" {
		return false, fmt.Errorf("elevenlabs api key is not configured")
	}
	return true, nil
}
