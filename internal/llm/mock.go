package llm

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/voiceloopai/chat-gateway/internal/observability"
)

// MockGenerator produces canned replies without an upstream provider. Tests
// drive it directly; keyless demo runs get a rotating reply set.
type MockGenerator struct {
	// Replies are served in rotation.
	Replies []string
	// PartialChars controls how much of the reply forms the partial chunk:
	// 0 surfaces the first sentence, a positive value that exact prefix
	// length, and a negative value forces the placeholder.
	PartialChars int
	// Finish, when set, holds the final text back until the channel closes.
	Finish chan struct{}
	// FinalOverride, when set, resolves the final text to a value that may
	// diverge from the partial prefix.
	FinalOverride string
	// Delay paces the background resolution when no Finish gate is set.
	Delay time.Duration
	// FailRequest makes GenerateStream fail outright.
	FailRequest bool

	mu   sync.Mutex
	next int
}

// NewMockGenerator returns a generator with demo replies.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{
		Replies: []string{
			"Sure, I can help with that. Let me walk you through it step by step, starting with the basics and working up from there.",
			"That's a good question. The short answer is yes, and the longer answer depends on what you are trying to achieve.",
			"Here's what I found. Everything looks on track, though there are a couple of details worth double-checking before you commit.",
		},
		Delay: 600 * time.Millisecond,
	}
}

// Generate blocks for the full canned reply.
func (m *MockGenerator) Generate(ctx context.Context, message, systemPrompt string) (string, error) {
	if m.FailRequest {
		return "", &GenerationError{Err: errors.New("mock generator configured to fail")}
	}

	m.mu.Lock()
	reply := "Hello! This is a canned reply."
	if len(m.Replies) > 0 {
		reply = m.Replies[m.next%len(m.Replies)]
		m.next++
	}
	m.mu.Unlock()

	if m.FinalOverride != "" {
		reply = m.FinalOverride
	}
	return reply, nil
}

func (m *MockGenerator) GenerateStream(ctx context.Context, message, systemPrompt string) (*Stream, error) {
	if m.FailRequest {
		return nil, &GenerationError{Err: errors.New("mock generator configured to fail")}
	}

	m.mu.Lock()
	reply := "Hello! This is a canned reply."
	if len(m.Replies) > 0 {
		reply = m.Replies[m.next%len(m.Replies)]
		m.next++
	}
	m.mu.Unlock()

	s := newStream(observability.NewCorrelationID())

	var partial string
	switch {
	case m.PartialChars < 0:
		s.Partial = PlaceholderText
		s.Placeholder = true
	case m.PartialChars == 0:
		partial = firstSentence(reply)
	case m.PartialChars >= len(reply):
		partial = reply
	default:
		partial = reply[:m.PartialChars]
	}
	if partial != "" {
		s.append(partial)
		s.Partial = partial
	}

	finish := m.Finish
	delay := m.Delay
	go func() {
		if finish != nil {
			<-finish
		} else if delay > 0 {
			time.Sleep(delay)
		}
		if len(partial) < len(reply) {
			s.append(reply[len(partial):])
		}
		final := reply
		if m.FinalOverride != "" {
			final = m.FinalOverride
		}
		s.finish(final)
	}()

	return s, nil
}

func (m *MockGenerator) Name() string {
	return "mock"
}

func (m *MockGenerator) HealthCheck(ctx context.Context) (bool, error) {
	return true, nil
}

// firstSentence returns the prefix through the first sentence-final mark, or
// the whole text when there is none.
func firstSentence(text string) string {
	for i, r := range text {
		switch r {
		case '.', '!', '?':
			return text[:i+1]
		}
	}
	return text
}
