package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the packaging service.
type Metrics struct {
	registry               *prometheus.Registry
	requestsTotal          prometheus.Counter
	transcodesTotal        prometheus.Counter
	transcodeFailuresTotal prometheus.Counter
	activeTranscodes       prometheus.Gauge
	tokensIssuedTotal      prometheus.Counter
	errorsTotal            prometheus.Counter
}

// New creates and registers Prometheus metrics for the packaging service.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vod_requests_total",
		Help: "Total number of HTTP requests received",
	})
	transcodesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vod_transcodes_total",
		Help: "Total number of uploads packaged successfully",
	})
	transcodeFailuresTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vod_transcode_failures_total",
		Help: "Total number of upload pipelines that failed",
	})
	activeTranscodes := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "vod_active_transcodes",
		Help: "Number of encoder pipelines currently running",
	})
	tokensIssuedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vod_tokens_issued_total",
		Help: "Total number of signed playback tokens issued",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vod_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})

	registry.MustRegister(
		requestsTotal,
		transcodesTotal,
		transcodeFailuresTotal,
		activeTranscodes,
		tokensIssuedTotal,
		errorsTotal,
	)

	return &Metrics{
		registry:               registry,
		requestsTotal:          requestsTotal,
		transcodesTotal:        transcodesTotal,
		transcodeFailuresTotal: transcodeFailuresTotal,
		activeTranscodes:       activeTranscodes,
		tokensIssuedTotal:      tokensIssuedTotal,
		errorsTotal:            errorsTotal,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncTranscodes increments the successful transcode counter.
func (m *Metrics) IncTranscodes() {
	m.transcodesTotal.Inc()
}

// IncTranscodeFailures increments the failed pipeline counter.
func (m *Metrics) IncTranscodeFailures() {
	m.transcodeFailuresTotal.Inc()
}

// TranscodeStarted increments the active transcode gauge.
func (m *Metrics) TranscodeStarted() {
	m.activeTranscodes.Inc()
}

// TranscodeFinished decrements the active transcode gauge.
func (m *Metrics) TranscodeFinished() {
	m.activeTranscodes.Dec()
}

// IncTokensIssued increments the issued token counter.
func (m *Metrics) IncTokensIssued() {
	m.tokensIssuedTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
