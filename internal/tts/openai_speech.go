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

// openAISpeechMaxChars matches the /v1/audio/speech input limit.
const openAISpeechMaxChars = 4096

// OpenAISpeechClient implements Synthesizer using the OpenAI speech API
type OpenAISpeechClient struct {
	config     *config.Config
	apiKey     string
	apiURL     string
	model      string
	catalog    *Catalog
	httpClient *http.Client
}

// speechRequest represents the request payload for the OpenAI speech API
type speechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format,omitempty"`
}

// NewOpenAISpeechClient creates a new OpenAI TTS client
func NewOpenAISpeechClient(cfg *config.Config, catalog *Catalog) *OpenAISpeechClient {
	return &OpenAISpeechClient{
		config:     cfg,
		apiKey:     cfg.OpenAIAPIKey,
		apiURL:     strings.TrimSuffix(cfg.OpenAIBaseURL, "/") + "/audio/speech",
		model:      cfg.OpenAITTSModel,
		catalog:    catalog,
		httpClient: &http.Client{Timeout: time.Duration(cfg.ProviderTimeout) * time.Second},
	}
}

// Synthesize converts text to MP3 audio
func (c *OpenAISpeechClient) Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error) {
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

	reqBody := speechRequest{
		Model:          c.model,
		Input:          truncate(req.Text, openAISpeechMaxChars),
		Voice:          voice.ID,
		ResponseFormat: "mp3",
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &SynthesisError{Provider: c.Name(), Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(jsonData))
	if err != nil {
		return nil, &SynthesisError{Provider: c.Name(), Err: fmt.Errorf("failed to create request: %w", err)}
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

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

	// An error payload can arrive with a 200 status; audio never comes back
	// as JSON
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

func (c *OpenAISpeechClient) Name() string {
	return "openai"
}

// HealthCheck validates the client configuration without spending an API call
func (c *OpenAISpeechClient) HealthCheck(ctx context.Context) (bool, error) {
	if c.apiKey == "" {
		return false, fmt.Errorf("openai api key is not configured")
	}
	return true, nil
}
