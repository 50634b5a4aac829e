// Package poller is the client side of the delivery protocol: submit a chat
// message, render the partial reply, and poll the completion endpoint until
// the full reply lands or the retry budget runs out.
package poller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/voiceloopai/chat-gateway/internal/observability"
)

// ChatReply is the immediate result of a submission.
type ChatReply struct {
	Text     string
	Partial  bool
	StreamID string
	AudioURL string // empty when no partial-stage audio exists
}

// Delivery is the completed reply for a stream. AudioURLs is ordered for
// playback: the initial fragment first when the reply is multipart.
type Delivery struct {
	StreamID  string
	Text      string
	AudioURLs []string
}

// State of a pending stream.
type State int

const (
	StateIdle State = iota
	StateSubmitted
	StatePolling
	StateDelivered
	StateAbandoned
)

type pendingStream struct {
	state    State
	attempts int
}

// Client submits chat messages and services all pending streams from one
// shared polling loop. The loop stops entirely when the pending set empties
// and restarts on the next submission.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	interval    time.Duration
	maxAttempts int

	// OnDelivered fires once per stream with the completed reply.
	OnDelivered func(Delivery)
	// OnAbandoned fires when a stream's retry budget is spent. The caller
	// keeps whatever partial content it already rendered.
	OnAbandoned func(streamID string)

	mu      sync.Mutex
	pending map[string]*pendingStream
	running bool
}

// NewClient creates a poller client against a gateway base URL.
func NewClient(baseURL string, interval time.Duration, maxAttempts int) *Client {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	if maxAttempts <= 0 {
		maxAttempts = 30
	}
	return &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		interval:    interval,
		maxAttempts: maxAttempts,
		pending:     make(map[string]*pendingStream),
	}
}

type submitRequest struct {
	Message       string            `json:"message"`
	SystemPrompt  string            `json:"systemPrompt,omitempty"`
	VoiceSettings *voiceSettingsDTO `json:"voiceSettings,omitempty"`
}

type voiceSettingsDTO struct {
	VoiceType string `json:"voiceType,omitempty"`
	Language  string `json:"language,omitempty"`
}

type submitResponse struct {
	Success   bool    `json:"success"`
	Text      string  `json:"text"`
	IsPartial bool    `json:"isPartial"`
	StreamID  string  `json:"streamId"`
	AudioURL  *string `json:"audioUrl"`
	Error     string  `json:"error"`
}

type pollResponse struct {
	Success           bool    `json:"success"`
	Complete          bool    `json:"complete"`
	Text              string  `json:"text"`
	AudioURL          *string `json:"audioUrl"`
	InitialAudioURL   *string `json:"initialAudioUrl"`
	HasMultipartAudio bool    `json:"hasMultipartAudio"`
}

// Submit posts a chat message and returns the partial reply. The stream is
// registered as pending and the shared polling loop is guaranteed to be
// running when Submit returns.
func (c *Client) Submit(ctx context.Context, message, systemPrompt, voiceType, language string) (*ChatReply, error) {
	req := submitRequest{
		Message:      message,
		SystemPrompt: systemPrompt,
	}
	if voiceType != "" || language != "" {
		req.VoiceSettings = &voiceSettingsDTO{VoiceType: voiceType, Language: language}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	var parsed submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode chat response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !parsed.Success {
		msg := parsed.Error
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("chat submission rejected: %s", msg)
	}
	if parsed.StreamID == "" {
		return nil, fmt.Errorf("chat response carried no stream id")
	}

	reply := &ChatReply{
		Text:     parsed.Text,
		Partial:  parsed.IsPartial,
		StreamID: parsed.StreamID,
	}
	if parsed.AudioURL != nil {
		reply.AudioURL = *parsed.AudioURL
	}

	if reply.Partial {
		c.register(reply.StreamID)
	}
	return reply, nil
}

// register adds a stream to the pending set and starts the shared loop if it
// is not already running.
func (c *Client) register(streamID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending[streamID] = &pendingStream{state: StatePolling}
	if !c.running {
		c.running = true
		go c.loop()
	}
}

// PendingCount reports how many streams are still awaiting completion.
func (c *Client) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// StreamState reports the tracked state of a stream. Streams that were
// delivered, abandoned, or never submitted read as StateIdle.
func (c *Client) StreamState(streamID string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.pending[streamID]; ok {
		return p.state
	}
	return StateIdle
}

// loop is the single shared ticker servicing every pending stream. It exits,
// clearing the running flag, as soon as the pending set is empty, so no
// timer runs while there is nothing to poll.
func (c *Client) loop() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for range ticker.C {
		for _, id := range c.pendingIDs() {
			c.pollOne(id)
		}

		c.mu.Lock()
		if len(c.pending) == 0 {
			c.running = false
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()
	}
}

func (c *Client) pendingIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.pending))
	for id := range c.pending {
		ids = append(ids, id)
	}
	return ids
}

// pollOne polls the completion endpoint for one stream once. Completion
// delivers and removes the stream; anything else, transport failures
// included, spends one attempt from its budget.
func (c *Client) pollOne(streamID string) {
	parsed, err := c.fetchCompletion(streamID)
	if err == nil && parsed.Complete {
		c.mu.Lock()
		_, still := c.pending[streamID]
		delete(c.pending, streamID)
		c.mu.Unlock()
		if still && c.OnDelivered != nil {
			c.OnDelivered(Delivery{
				StreamID:  streamID,
				Text:      parsed.Text,
				AudioURLs: playbackOrder(parsed),
			})
		}
		return
	}
	if err != nil {
		logger := observability.WithCorrelationID(streamID)
		logger.Warn().Err(err).Msg("Poll attempt failed")
	}

	c.mu.Lock()
	p, ok := c.pending[streamID]
	if !ok {
		c.mu.Unlock()
		return
	}
	p.attempts++
	exhausted := p.attempts >= c.maxAttempts
	if exhausted {
		p.state = StateAbandoned
		delete(c.pending, streamID)
	}
	c.mu.Unlock()

	if exhausted {
		// Silent give-up: the partial content stays on screen.
		logger := observability.WithCorrelationID(streamID)
		logger.Debug().
			Int("attempts", p.attempts).
			Msg("Abandoning stream after exhausted poll budget")
		if c.OnAbandoned != nil {
			c.OnAbandoned(streamID)
		}
	}
}

func (c *Client) fetchCompletion(streamID string) (*pollResponse, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/response/" + streamID)
	if err != nil {
		return nil, fmt.Errorf("poll request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("poll returned status %d", resp.StatusCode)
	}

	var parsed pollResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode poll response: %w", err)
	}
	return &parsed, nil
}

// playbackOrder flattens a completed poll response into the URL sequence the
// client should play: initial fragment first when multipart.
func playbackOrder(parsed *pollResponse) []string {
	var urls []string
	if parsed.HasMultipartAudio && parsed.InitialAudioURL != nil {
		urls = append(urls, *parsed.InitialAudioURL)
	}
	if parsed.AudioURL != nil {
		urls = append(urls, *parsed.AudioURL)
	}
	return urls
}
