package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tts_gateway_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "code"})

	httpLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tts_gateway_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
	})

	// Synthesis metrics
	synthesisRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tts_gateway_synthesis_requests_total",
		Help: "Total number of synthesis requests to the speech provider",
	}, []string{"status", "voice"})

	synthesisLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tts_gateway_synthesis_latency_seconds",
		Help:    "Speech synthesis latency in seconds",
		Buckets: []float64{0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	})

	audioBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tts_gateway_audio_bytes_total",
		Help: "Total audio bytes generated",
	})

	// Bot metrics
	botMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tts_gateway_bot_messages_total",
		Help: "Total number of bot messages handled",
	}, []string{"kind", "status"})

	// Temp file metrics
	filesStaged = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tts_gateway_staged_files",
		Help: "Number of audio files currently staged on disk",
	})

	filesSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tts_gateway_swept_files_total",
		Help: "Total number of files removed by the periodic sweep",
	})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tts_gateway_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})
)

// RecordHTTPRequest records a completed HTTP request
func RecordHTTPRequest(method string, code int, duration time.Duration) {
	httpRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpLatency.Observe(duration.Seconds())
}

// RecordSynthesis records the outcome of one provider synthesis call
func RecordSynthesis(voice string, success bool, duration time.Duration, bytes int) {
	status := "success"
	if !success {
		status = "error"
	}
	synthesisRequests.WithLabelValues(status, voice).Inc()
	synthesisLatency.Observe(duration.Seconds())
	if bytes > 0 {
		audioBytes.Add(float64(bytes))
	}
}

// RecordBotMessage records a handled bot message of the given kind
// ("command" or "text")
func RecordBotMessage(kind string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	botMessages.WithLabelValues(kind, status).Inc()
}

// RecordFileStaged tracks a file added to the temp store
func RecordFileStaged() {
	filesStaged.Inc()
}

// RecordFileRemoved tracks a file removed from the temp store
func RecordFileRemoved() {
	filesStaged.Dec()
}

// RecordSweep records the result of one sweep pass
func RecordSweep(removed int) {
	if removed > 0 {
		filesSwept.Add(float64(removed))
		filesStaged.Sub(float64(removed))
	}
}

// UpdateCircuitBreakerState updates the breaker state gauge
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}
