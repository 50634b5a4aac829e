// Package server is the HTTP delivery surface: submit a chat message, poll
// for its completed response, and fetch synthesized audio by name.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/voiceloopai/chat-gateway/internal/assembler"
	"github.com/voiceloopai/chat-gateway/internal/config"
	"github.com/voiceloopai/chat-gateway/internal/observability"
	"github.com/voiceloopai/chat-gateway/internal/store"
	"github.com/voiceloopai/chat-gateway/internal/tts"
)

// audioCacheMaxAge is the client-side cache lifetime for audio fetches. The
// blobs are immutable, so long caching is safe.
const audioCacheMaxAge = 24 * time.Hour

// Server routes the delivery endpoints onto the assembler and stores.
type Server struct {
	assembler *assembler.Assembler
	synth     tts.Synthesizer
	records   store.CorrelationStore
	blobs     store.BlobStore
	cfg       *config.Config
}

// New builds the HTTP handler for the delivery endpoint set.
func New(cfg *config.Config, asm *assembler.Assembler, synth tts.Synthesizer,
	records store.CorrelationStore, blobs store.BlobStore) *Server {
	return &Server{
		assembler: asm,
		synth:     synth,
		records:   records,
		blobs:     blobs,
		cfg:       cfg,
	}
}

// Register mounts the delivery routes on a mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/chat", s.handleChat)
	mux.HandleFunc("/response/", s.handlePollResponse)
	mux.HandleFunc("/audio/", s.handleFetchAudio)
	mux.HandleFunc("/tts", s.handleTTS)
	mux.HandleFunc("/health", observability.HealthCheckHandler())
}

// Request/response DTOs

type voiceSettingsDTO struct {
	VoiceType string `json:"voiceType,omitempty"`
	Language  string `json:"language,omitempty"`
}

type chatRequest struct {
	Message       string           `json:"message"`
	SystemPrompt  string           `json:"systemPrompt,omitempty"`
	VoiceSettings voiceSettingsDTO `json:"voiceSettings,omitempty"`
}

type chatResponse struct {
	Success   bool    `json:"success"`
	Text      string  `json:"text"`
	IsPartial bool    `json:"isPartial"`
	StreamID  string  `json:"streamId"`
	AudioURL  *string `json:"audioUrl"`
}

type pollResponse struct {
	Success           bool    `json:"success"`
	Complete          bool    `json:"complete"`
	Text              string  `json:"text,omitempty"`
	AudioURL          *string `json:"audioUrl,omitempty"`
	InitialAudioURL   *string `json:"initialAudioUrl,omitempty"`
	HasMultipartAudio bool    `json:"hasMultipartAudio,omitempty"`
}

type ttsRequest struct {
	Text      string `json:"text"`
	VoiceType string `json:"voiceType,omitempty"`
	Language  string `json:"language,omitempty"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// handleChat accepts a message, returns the partial reply immediately, and
// leaves the rest to the assembler's background continuation.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		badRequest(w, "message is required")
		return
	}

	systemPrompt := req.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = s.cfg.SystemPrompt
	}

	start := time.Now()
	reply, err := s.assembler.Respond(r.Context(), req.Message, systemPrompt, assembler.VoiceSettings{
		VoiceType: req.VoiceSettings.VoiceType,
		Language:  req.VoiceSettings.Language,
	})
	if err != nil {
		observability.RecordChatRequest("error", time.Since(start).Seconds())
		logger := observability.GetLogger()
		logger.Error().Err(err).Msg("Chat generation failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to generate a response"})
		return
	}
	observability.RecordChatRequest("success", time.Since(start).Seconds())

	writeJSON(w, http.StatusOK, chatResponse{
		Success:   true,
		Text:      reply.Text,
		IsPartial: reply.Partial,
		StreamID:  reply.StreamID,
		AudioURL:  s.audioURL(reply.AudioRef),
	})
}

// handlePollResponse claims the completion record for a stream ID. The read
// consumes the record: the first complete poll wins, every later one sees
// complete:false.
func (s *Server) handlePollResponse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	streamID := strings.TrimPrefix(r.URL.Path, "/response/")
	if streamID == "" || strings.Contains(streamID, "/") {
		badRequest(w, "stream id is required")
		return
	}

	rec, ok := s.records.Take(streamID)
	if !ok {
		observability.RecordPoll("pending")
		writeJSON(w, http.StatusOK, pollResponse{Success: true, Complete: false})
		return
	}

	observability.RecordPoll("delivered")
	writeJSON(w, http.StatusOK, pollResponse{
		Success:           true,
		Complete:          true,
		Text:              rec.Text,
		AudioURL:          s.audioURL(rec.AudioRef),
		InitialAudioURL:   s.audioURL(rec.InitialAudioRef),
		HasMultipartAudio: rec.Multipart,
	})
}

// handleFetchAudio streams cached audio bytes by filename.
func (s *Server) handleFetchAudio(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	filename := strings.TrimPrefix(r.URL.Path, "/audio/")
	if filename == "" || strings.Contains(filename, "/") {
		badRequest(w, "filename is required")
		return
	}

	blob, ok := s.blobs.Get(filename)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "audio not found"})
		return
	}

	contentType := blob.ContentType
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(blob.Data)))
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(audioCacheMaxAge.Seconds())))
	w.WriteHeader(http.StatusOK)
	w.Write(blob.Data)
}

// handleTTS synthesizes arbitrary text through the provider failover chain
// and returns the raw audio.
func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var req ttsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		badRequest(w, "text is required")
		return
	}

	result, err := s.synth.Synthesize(r.Context(), tts.SynthesisRequest{
		Text:      req.Text,
		VoiceType: req.VoiceType,
		Language:  req.Language,
	})
	if err != nil {
		logger := observability.GetLogger()
		logger.Error().Err(err).Msg("All synthesis providers failed")
		var synthErr *tts.SynthesisError
		msg := "speech synthesis failed"
		if errors.As(err, &synthErr) {
			msg = synthErr.Error()
		}
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: msg})
		return
	}

	w.Header().Set("Content-Type", result.ContentType)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(result.Audio)))
	w.WriteHeader(http.StatusOK)
	w.Write(result.Audio)
}

// audioURL renders a blob filename as a fetchable URL, or nil when there is
// no audio. Only this layer knows the route shape.
func (s *Server) audioURL(ref string) *string {
	if ref == "" {
		return nil
	}
	url := "/audio/" + ref
	return &url
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
}
