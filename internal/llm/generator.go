// Package llm is the text generation port: it turns a chat message into a
// reply stream whose partial chunk is available within a bounded delay and
// whose full text resolves in the background.
package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/voiceloopai/chat-gateway/internal/config"
)

// PlaceholderText is handed back as the partial chunk when nothing has
// streamed in within the partial-wait budget.
const PlaceholderText = "Processing your request..."

// fallbackText closes out a stream whose upstream failed before any usable
// text arrived. Callers of Final always get a speakable string.
const fallbackText = "Sorry, I could not finish generating that response."

// partialTriggerChars is the accumulated length past which waiting for more
// text no longer improves the partial chunk.
const partialTriggerChars = 48

// Generator is the text generation port.
type Generator interface {
	// Generate blocks until the full reply is available.
	Generate(ctx context.Context, message, systemPrompt string) (string, error)
	// GenerateStream starts a completion and returns within the configured
	// partial-wait budget, carrying whatever text has arrived so far.
	GenerateStream(ctx context.Context, message, systemPrompt string) (*Stream, error)
	Name() string
	HealthCheck(ctx context.Context) (bool, error)
}

// NewGenerator builds the configured text generation provider.
func NewGenerator(cfg *config.Config) (Generator, error) {
	switch cfg.LLMProvider {
	case "openai":
		return NewOpenAIClient(cfg), nil
	case "mock":
		return NewMockGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.LLMProvider)
	}
}

// GenerationError marks a generation failure that aborts the whole request.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("text generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Stream is a live completion. The partial chunk is fixed at creation; the
// full text resolves exactly once in the background.
type Stream struct {
	ID          string
	Partial     string
	Placeholder bool // the partial is PlaceholderText, not reply content

	mu      sync.Mutex
	buf     strings.Builder
	final   string
	resolve sync.Once
	done    chan struct{}
}

func newStream(id string) *Stream {
	return &Stream{ID: id, done: make(chan struct{})}
}

// append adds a chunk and returns the accumulated text.
func (s *Stream) append(chunk string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.WriteString(chunk)
	return s.buf.String()
}

func (s *Stream) snapshot() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

// finish resolves the stream. Later calls are no-ops.
func (s *Stream) finish(text string) {
	s.resolve.Do(func() {
		s.mu.Lock()
		s.final = text
		s.mu.Unlock()
		close(s.done)
	})
}

// Final blocks until the full reply has been assembled and returns it. It
// never fails: an upstream error yields the text accumulated so far, or a
// fallback sentence when nothing arrived. Cancelling the context returns the
// best text available at that moment.
func (s *Stream) Final(ctx context.Context) string {
	select {
	case <-s.done:
	case <-ctx.Done():
		if text := s.snapshot(); strings.TrimSpace(text) != "" {
			return text
		}
		return s.Partial
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.final
}

// partialReady reports whether enough text has arrived to hand back a useful
// partial chunk: a finished sentence, or enough characters that waiting
// longer buys nothing.
func partialReady(text string, minChars int) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return false
	}
	if len(t) >= minChars {
		return true
	}
	switch t[len(t)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}
