package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/voiceloopai/chat-gateway/internal/config"
	"github.com/voiceloopai/chat-gateway/internal/observability"
)

// OpenAIClient implements Generator against an OpenAI-compatible chat
// completions endpoint using SSE streaming.
type OpenAIClient struct {
	config      *config.Config
	apiKey      string
	apiURL      string
	model       string
	partialWait time.Duration
	httpClient  *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatCompletionChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// NewOpenAIClient creates a new chat completions client
func NewOpenAIClient(cfg *config.Config) *OpenAIClient {
	return &OpenAIClient{
		config:      cfg,
		apiKey:      cfg.OpenAIAPIKey,
		apiURL:      strings.TrimSuffix(cfg.OpenAIBaseURL, "/") + "/chat/completions",
		model:       cfg.OpenAIModel,
		partialWait: time.Duration(cfg.PartialWaitMs) * time.Millisecond,
		httpClient:  &http.Client{Timeout: time.Duration(cfg.ProviderTimeout) * time.Second},
	}
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate runs a non-streaming completion and blocks for the full reply.
func (c *OpenAIClient) Generate(ctx context.Context, message, systemPrompt string) (string, error) {
	reqBody := chatCompletionRequest{
		Model:       c.model,
		Messages:    buildMessages(message, systemPrompt),
		Temperature: c.config.Temperature,
		MaxTokens:   c.config.MaxTokens,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", &GenerationError{Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(jsonData))
	if err != nil {
		return "", &GenerationError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		observability.RecordGeneration(false, time.Since(start).Seconds())
		return "", &GenerationError{Err: fmt.Errorf("chat completion request failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		observability.RecordGeneration(false, time.Since(start).Seconds())
		return "", &GenerationError{Err: fmt.Errorf("chat completion returned status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(body)))}
	}

	var parsed chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		observability.RecordGeneration(false, time.Since(start).Seconds())
		return "", &GenerationError{Err: fmt.Errorf("failed to decode completion response: %w", err)}
	}
	if len(parsed.Choices) == 0 {
		observability.RecordGeneration(false, time.Since(start).Seconds())
		return "", &GenerationError{Err: fmt.Errorf("completion response carried no choices")}
	}

	observability.RecordGeneration(true, time.Since(start).Seconds())
	return parsed.Choices[0].Message.Content, nil
}

// GenerateStream starts a streaming completion and returns once a useful
// partial chunk exists, generation finishes outright, or the partial-wait
// deadline passes.
func (c *OpenAIClient) GenerateStream(ctx context.Context, message, systemPrompt string) (*Stream, error) {
	reqBody := chatCompletionRequest{
		Model:       c.model,
		Messages:    buildMessages(message, systemPrompt),
		Temperature: c.config.Temperature,
		MaxTokens:   c.config.MaxTokens,
		Stream:      true,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &GenerationError{Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	// The stream must outlive the originating HTTP request: the background
	// continuation keeps reading after the partial response is written, so
	// cancellation is dropped and the client timeout is the only bound.
	req, err := http.NewRequestWithContext(context.WithoutCancel(ctx), http.MethodPost, c.apiURL, bytes.NewReader(jsonData))
	if err != nil {
		return nil, &GenerationError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "text/event-stream")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &GenerationError{Err: fmt.Errorf("chat completion request failed: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, &GenerationError{Err: fmt.Errorf("chat completion returned status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(body)))}
	}

	stream := newStream(observability.NewCorrelationID())
	ready := make(chan struct{})

	go c.consume(resp.Body, stream, ready, start)

	select {
	case <-ready:
	case <-stream.done:
	case <-time.After(c.partialWait):
	case <-ctx.Done():
		return nil, &GenerationError{Err: ctx.Err()}
	}

	partial := stream.snapshot()
	if strings.TrimSpace(partial) == "" {
		stream.Partial = PlaceholderText
		stream.Placeholder = true
	} else {
		stream.Partial = partial
	}

	return stream, nil
}

// consume reads the SSE stream, accumulating delta content until the
// terminator or an error, then resolves the stream.
func (c *OpenAIClient) consume(body io.ReadCloser, stream *Stream, ready chan struct{}, start time.Time) {
	defer body.Close()

	logger := observability.WithCorrelationID(stream.ID)
	signaled := false

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			break
		}
		if payload == "" {
			continue
		}

		var chunk chatCompletionChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			logger.Warn().Err(err).Msg("Skipping malformed stream chunk")
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}

		text := stream.append(delta)
		if !signaled && partialReady(text, partialTriggerChars) {
			close(ready)
			signaled = true
		}
	}

	scanErr := scanner.Err()
	if scanErr != nil {
		logger.Error().Err(scanErr).Msg("Chat completion stream ended with error")
	}

	text := stream.snapshot()
	if strings.TrimSpace(text) == "" {
		text = fallbackText
	}
	stream.finish(text)

	observability.RecordGeneration(scanErr == nil, time.Since(start).Seconds())
}

func (c *OpenAIClient) Name() string {
	return "openai"
}

// HealthCheck validates the client configuration without spending an API call
func (c *OpenAIClient) HealthCheck(ctx context.Context) (bool, error) {
	if c.apiKey == "" {
		return false, fmt.Errorf("openai api key is not configured")
	}
	return true, nil
}

func buildMessages(message, systemPrompt string) []chatMessage {
	messages := make([]chatMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: message})
	return messages
}
