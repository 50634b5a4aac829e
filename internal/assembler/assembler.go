// Package assembler coordinates text generation and speech synthesis into a
// two-stage reply: a partial chunk returned immediately with best-effort
// audio, and a background continuation that completes the text, synthesizes
// the remainder, and publishes the result for pickup by stream ID.
package assembler

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voiceloopai/chat-gateway/internal/config"
	"github.com/voiceloopai/chat-gateway/internal/llm"
	"github.com/voiceloopai/chat-gateway/internal/observability"
	"github.com/voiceloopai/chat-gateway/internal/store"
	"github.com/voiceloopai/chat-gateway/internal/tts"
)

// VoiceSettings selects the voice for both synthesis stages of a reply.
type VoiceSettings struct {
	VoiceType string
	Language  string
}

// Reply is the immediate result of a chat submission. The full text and its
// audio arrive later through the correlation store under StreamID.
type Reply struct {
	Text     string
	Partial  bool
	StreamID string
	AudioRef string // blob filename of the partial-stage audio, empty when none
}

// Assembler is the response assembly pipeline. Its only interaction with the
// world after Respond returns is through the injected stores.
type Assembler struct {
	generator llm.Generator
	synth     tts.Synthesizer
	records   store.CorrelationStore
	blobs     store.BlobStore

	partialMinChars int
	dedupRatio      float64

	wg sync.WaitGroup
}

// New wires the assembler from its ports, stores, and tuning knobs.
func New(cfg *config.Config, generator llm.Generator, synth tts.Synthesizer,
	records store.CorrelationStore, blobs store.BlobStore) *Assembler {
	return &Assembler{
		generator:       generator,
		synth:           synth,
		records:         records,
		blobs:           blobs,
		partialMinChars: cfg.PartialMinChars,
		dedupRatio:      cfg.DedupRatio,
	}
}

// Respond starts a streamed generation and returns as soon as the partial
// chunk is ready, with audio for it when synthesis succeeded in time. The
// continuation that completes the reply runs in the background and publishes
// a record under the returned StreamID.
//
// A generation failure aborts the whole request; a synthesis failure never
// does.
func (a *Assembler) Respond(ctx context.Context, message, systemPrompt string, voice VoiceSettings) (*Reply, error) {
	stream, err := a.generator.GenerateStream(ctx, message, systemPrompt)
	if err != nil {
		return nil, err
	}

	// The placeholder is filler for an empty stream, not reply content, so
	// it gets no voice and never participates in the dedup comparison.
	var initialRef string
	if !stream.Placeholder && len(stream.Partial) > a.partialMinChars {
		initialRef = a.synthesizeToBlob(ctx, stream.ID, stream.Partial, voice)
	}

	a.wg.Add(1)
	go a.complete(stream, voice, initialRef)

	return &Reply{
		Text:     stream.Partial,
		Partial:  true,
		StreamID: stream.ID,
		AudioRef: initialRef,
	}, nil
}

// complete finishes a reply after the partial response has been handed back:
// it waits for the full text, synthesizes whatever audio is still missing,
// and publishes the completion record.
func (a *Assembler) complete(stream *llm.Stream, voice VoiceSettings, initialRef string) {
	defer a.wg.Done()

	// Detached from the request; the provider client timeout is the bound.
	ctx := context.Background()
	logger := observability.WithCorrelationID(stream.ID)

	final := stream.Final(ctx)

	partial := stream.Partial
	if stream.Placeholder {
		partial = ""
	}

	rec := store.CompletionRecord{
		StreamID:  stream.ID,
		Text:      final,
		CreatedAt: time.Now(),
	}

	switch {
	case initialRef != "" && float64(len(final)) < a.dedupRatio*float64(len(partial)):
		// The reply barely outgrew the spoken fragment; re-speaking it
		// would stutter.
		rec.AudioRef = initialRef
		logger.Debug().Msg("Reusing partial-stage audio for full reply")

	case initialRef != "":
		remainder := final
		if strings.HasPrefix(final, partial) {
			remainder = final[len(partial):]
		}
		if strings.TrimSpace(remainder) == "" {
			rec.AudioRef = initialRef
			break
		}
		if ref := a.synthesizeToBlob(ctx, stream.ID, remainder, voice); ref != "" {
			rec.AudioRef = ref
			rec.InitialAudioRef = initialRef
			rec.Multipart = true
		} else {
			rec.AudioRef = initialRef
		}

	default:
		// No audio yet; voice the whole reply, or deliver text-only when
		// synthesis is down.
		rec.AudioRef = a.synthesizeToBlob(ctx, stream.ID, final, voice)
	}

	a.records.Publish(rec)
	logger.Debug().
		Bool("multipart", rec.Multipart).
		Bool("has_audio", rec.AudioRef != "").
		Msg("Completion record published")
}

// synthesizeToBlob voices a text and caches the audio under a fresh
// filename. Failures are logged and reported as an empty filename; audio is
// an enhancement, never a dependency.
func (a *Assembler) synthesizeToBlob(ctx context.Context, streamID, text string, voice VoiceSettings) string {
	result, err := a.synth.Synthesize(ctx, tts.SynthesisRequest{
		Text:      text,
		VoiceType: voice.VoiceType,
		Language:  voice.Language,
	})
	if err != nil {
		logger := observability.WithCorrelationID(streamID)
		logger.Warn().
			Err(err).
			Msg("Speech synthesis failed, continuing without audio")
		return ""
	}

	filename := uuid.New().String() + ".mp3"
	a.blobs.Put(store.AudioBlob{
		Filename:    filename,
		Data:        result.Audio,
		ContentType: result.ContentType,
		CreatedAt:   time.Now(),
	})
	return filename
}

// Shutdown blocks until every background continuation has published, or the
// context expires.
func (a *Assembler) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
