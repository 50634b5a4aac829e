package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voiceloopai/chat-gateway/internal/assembler"
	"github.com/voiceloopai/chat-gateway/internal/config"
	"github.com/voiceloopai/chat-gateway/internal/llm"
	"github.com/voiceloopai/chat-gateway/internal/observability"
	"github.com/voiceloopai/chat-gateway/internal/server"
	"github.com/voiceloopai/chat-gateway/internal/store"
	"github.com/voiceloopai/chat-gateway/internal/tts"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("llm_provider", cfg.LLMProvider).
		Strs("tts_providers", cfg.TTSProviders).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Chat Gateway Service starting")

	// Build providers and stores
	generator, err := llm.NewGenerator(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create text generation provider")
	}

	synthesizer, err := tts.NewSynthesizer(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create speech synthesis provider")
	}

	retention := time.Duration(cfg.ResponseRetention) * time.Second
	records := store.NewMemoryCorrelationStore(retention)
	blobs := store.NewMemoryBlobStore(cfg.AudioCacheSize)

	asm := assembler.New(cfg, generator, synthesizer, records, blobs)

	// Create HTTP server
	mux := http.NewServeMux()

	// Delivery endpoints (chat, response polling, audio, tts, health)
	server.New(cfg, asm, synthesizer, records, blobs).Register(mux)

	// Readiness endpoint with provider checks
	mux.HandleFunc("/ready", observability.ReadinessHandler(
		observability.DependencyCheck{Name: "llm", Check: generator.HealthCheck},
		observability.DependencyCheck{Name: "tts", Check: synthesizer.HealthCheck},
	))

	// Metrics endpoint (Prometheus)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	// Janitor: expire unclaimed completion records even when nothing writes
	janitorStop := make(chan struct{})
	go func() {
		interval := retention / 2
		if interval < time.Second {
			interval = time.Second
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := records.PruneExpired(); n > 0 {
					logger.Debug().Int("expired", n).Msg("Janitor pruned unclaimed responses")
				}
			case <-janitorStop:
				return
			}
		}
	}()

	// Create HTTP server with timeouts
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("http://localhost:%s/chat", cfg.Port)).
			Msg("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")
	close(janitorStop)

	// Graceful shutdown with timeout, then drain background continuations
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := asm.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("Background continuations did not drain in time")
	}

	logger.Info().Msg("Server exited gracefully")
}
