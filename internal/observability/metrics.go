package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Chat request metrics
	chatRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_gateway_chat_requests_total",
		Help: "Total number of chat requests",
	}, []string{"status"})

	chatLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "chat_gateway_chat_latency_seconds",
		Help:    "Latency until the partial chat response is returned",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
	})

	// Text generation metrics
	generationRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_gateway_generation_requests_total",
		Help: "Total number of text generation requests",
	}, []string{"status"})

	generationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "chat_gateway_generation_latency_seconds",
		Help:    "Full text generation latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
	})

	// Speech synthesis metrics
	ttsRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_gateway_tts_requests_total",
		Help: "Total number of TTS requests",
	}, []string{"provider", "status"})

	ttsLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chat_gateway_tts_latency_seconds",
		Help:    "TTS synthesis latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
	}, []string{"provider"})

	ttsFailovers = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_gateway_tts_failovers_total",
		Help: "Times synthesis fell through to a lower-priority provider",
	})

	// Completed-response cache metrics
	responsesPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_gateway_responses_published_total",
		Help: "Completed responses published for pickup",
	})

	responsesConsumed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_gateway_responses_consumed_total",
		Help: "Completed responses delivered to a poller",
	})

	responsesExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_gateway_responses_expired_total",
		Help: "Completed responses evicted unclaimed after the retention window",
	})

	responsesPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_gateway_responses_pending",
		Help: "Completed responses currently awaiting pickup",
	})

	// Audio blob cache metrics
	audioBlobsCached = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_gateway_audio_blobs_cached",
		Help: "Audio blobs currently held in the cache",
	})

	audioBlobsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_gateway_audio_blobs_evicted_total",
		Help: "Audio blobs evicted to respect the cache capacity",
	})

	// Poll endpoint metrics
	pollRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_gateway_poll_requests_total",
		Help: "Total number of response poll requests",
	}, []string{"result"}) // result: "delivered", "pending"
)

// RecordChatRequest records a chat request outcome and its latency up to the
// partial response
func RecordChatRequest(status string, seconds float64) {
	chatRequests.WithLabelValues(status).Inc()
	chatLatency.Observe(seconds)
}

// RecordGeneration records a completed text generation attempt
func RecordGeneration(success bool, seconds float64) {
	status := "success"
	if !success {
		status = "error"
	}
	generationRequests.WithLabelValues(status).Inc()
	generationLatency.Observe(seconds)
}

// RecordSynthesis records a single provider synthesis attempt
func RecordSynthesis(provider string, success bool, seconds float64) {
	status := "success"
	if !success {
		status = "error"
	}
	ttsRequests.WithLabelValues(provider, status).Inc()
	ttsLatency.WithLabelValues(provider).Observe(seconds)
}

// RecordFailover records a fall-through to the next synthesis provider
func RecordFailover() {
	ttsFailovers.Inc()
}

// RecordResponsePublished records a completed response entering the cache
func RecordResponsePublished() {
	responsesPublished.Inc()
}

// RecordResponseConsumed records a completed response claimed by a poller
func RecordResponseConsumed() {
	responsesConsumed.Inc()
}

// RecordResponsesExpired records unclaimed responses dropped by eviction
func RecordResponsesExpired(count int) {
	responsesExpired.Add(float64(count))
}

// SetResponsesPending updates the pending-response gauge
func SetResponsesPending(count int) {
	responsesPending.Set(float64(count))
}

// SetAudioBlobsCached updates the audio cache size gauge
func SetAudioBlobsCached(count int) {
	audioBlobsCached.Set(float64(count))
}

// RecordAudioBlobsEvicted records blobs dropped by the capacity policy
func RecordAudioBlobsEvicted(count int) {
	audioBlobsEvicted.Add(float64(count))
}

// RecordPoll records a poll request and whether it delivered a response
func RecordPoll(result string) {
	pollRequests.WithLabelValues(result).Inc()
}
