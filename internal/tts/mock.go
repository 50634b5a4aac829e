package tts

import (
	"context"
	"errors"
	"sync"
)

// mockAudio is a single silent-ish MP3 frame header, enough for callers that
// only care about having bytes to cache and serve.
var mockAudio = []byte{0xff, 0xfb, 0x90, 0x64, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}

// MockSynthesizer returns canned audio without an upstream provider. Tests
// inspect the requests it saw; keyless demo runs get placeholder bytes.
type MockSynthesizer struct {
	// Fail makes every synthesis attempt fail.
	Fail bool

	mu    sync.Mutex
	calls []SynthesisRequest
}

// NewMockSynthesizer returns an always-succeeding mock.
func NewMockSynthesizer() *MockSynthesizer {
	return &MockSynthesizer{}
}

func (m *MockSynthesizer) Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()

	if m.Fail {
		return nil, &SynthesisError{Provider: m.Name(), Err: errors.New("mock synthesizer configured to fail")}
	}

	return &SynthesisResult{Audio: mockAudio, ContentType: "audio/mpeg"}, nil
}

func (m *MockSynthesizer) Name() string {
	return "mock"
}

func (m *MockSynthesizer) HealthCheck(ctx context.Context) (bool, error) {
	return true, nil
}

// Calls returns a copy of the synthesis requests seen so far.
func (m *MockSynthesizer) Calls() []SynthesisRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SynthesisRequest, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many synthesis requests were made.
func (m *MockSynthesizer) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
