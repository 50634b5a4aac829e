package tts

import (
	"context"
	"fmt"
	"time"

	"github.com/voiceloopai/chat-gateway/internal/observability"
)

// Failover tries each provider in its configured order and returns the first
// success. Every provider failure, credentials included, falls through to
// the next provider; only when all providers fail does the caller see an
// error.
type Failover struct {
	providers []Synthesizer
}

// NewFailover creates a failover chain over the given providers.
func NewFailover(providers ...Synthesizer) *Failover {
	return &Failover{providers: providers}
}

// Synthesize runs the provider chain in order.
func (f *Failover) Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error) {
	logger := observability.GetLogger()

	var lastErr error
	for i, provider := range f.providers {
		if i > 0 {
			observability.RecordFailover()
		}

		start := time.Now()
		result, err := provider.Synthesize(ctx, req)
		observability.RecordSynthesis(provider.Name(), err == nil, time.Since(start).Seconds())

		if err == nil {
			return result, nil
		}

		lastErr = err
		logger.Warn().
			Err(err).
			Str("provider", provider.Name()).
			Msg("Synthesis provider failed")
	}

	if lastErr == nil {
		lastErr = &SynthesisError{Provider: f.Name(), Err: fmt.Errorf("no providers configured")}
	}
	return nil, lastErr
}

func (f *Failover) Name() string {
	return "failover"
}

// HealthCheck reports healthy when any provider in the chain is usable.
func (f *Failover) HealthCheck(ctx context.Context) (bool, error) {
	var lastErr error
	for _, provider := range f.providers {
		ok, err := provider.HealthCheck(ctx)
		if ok {
			return true, nil
		}
		lastErr = err
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no providers configured")
	}
	return false, lastErr
}
