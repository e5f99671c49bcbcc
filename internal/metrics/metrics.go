package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// PollsTotal counts stream polls by result (offline, live, api_error, transport_error, invalid_token)
	PollsTotal *prometheus.CounterVec
	// ImageFetchesTotal counts preview image fetches by result (saved, not_modified, error)
	ImageFetchesTotal *prometheus.CounterVec
	// AuthExchangesTotal counts client-credentials exchanges by result
	AuthExchangesTotal *prometheus.CounterVec
	// SinkOperationsTotal counts capture sink calls by sink and status
	SinkOperationsTotal *prometheus.CounterVec
	// SleepsTotal counts loop pauses by reason (interval, backoff)
	SleepsTotal *prometheus.CounterVec
	// ChannelLive is 1 while the last poll reported the channel live
	ChannelLive prometheus.Gauge
	// LastCaptureTimestamp is the capture time of the newest saved image
	LastCaptureTimestamp prometheus.Gauge
	// RequestLatency tracks status server latency by endpoint and method
	RequestLatency *prometheus.HistogramVec
	// HTTPRequestsTotal total status server requests
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTPRequestsInFlight current status server requests being processed
	HTTPRequestsInFlight prometheus.Gauge
	// registry is the custom registry for this metrics instance
	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		PollsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "polls_total",
				Help:      "Total number of stream polls",
			},
			[]string{"result"},
		),
		ImageFetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "image_fetches_total",
				Help:      "Total number of preview image fetches",
			},
			[]string{"result"},
		),
		AuthExchangesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_exchanges_total",
				Help:      "Total number of access token exchanges",
			},
			[]string{"result"},
		),
		SinkOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sink_operations_total",
				Help:      "Total number of capture sink operations",
			},
			[]string{"sink", "status"},
		),
		SleepsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sleeps_total",
				Help:      "Total number of loop pauses",
			},
			[]string{"reason"},
		),
		ChannelLive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "channel_live",
				Help:      "Whether the channel was live at the last poll (1=live, 0=offline)",
			},
		),
		LastCaptureTimestamp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_capture_timestamp_seconds",
				Help:      "Unix time of the newest saved capture",
			},
		),
		RequestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_latency_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
			[]string{"endpoint", "method", "status"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"endpoint", "method", "status"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),
	}

	// Register metrics with custom registry
	registry.MustRegister(
		m.PollsTotal,
		m.ImageFetchesTotal,
		m.AuthExchangesTotal,
		m.SinkOperationsTotal,
		m.SleepsTotal,
		m.ChannelLive,
		m.LastCaptureTimestamp,
		m.RequestLatency,
		m.HTTPRequestsTotal,
		m.HTTPRequestsInFlight,
	)

	return m
}

// Handler returns a Prometheus handler for these metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for gathering in tests and tools.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordPoll records the result of a stream poll
func (m *Metrics) RecordPoll(result string) {
	m.PollsTotal.WithLabelValues(result).Inc()
}

// RecordImageFetch records the result of an image fetch
func (m *Metrics) RecordImageFetch(result string) {
	m.ImageFetchesTotal.WithLabelValues(result).Inc()
}

// RecordAuthExchange records a token exchange attempt
func (m *Metrics) RecordAuthExchange(result string) {
	m.AuthExchangesTotal.WithLabelValues(result).Inc()
}

// RecordSink records a capture sink operation
func (m *Metrics) RecordSink(sink, status string) {
	m.SinkOperationsTotal.WithLabelValues(sink, status).Inc()
}

// RecordSleep records a pause of the grab loop
func (m *Metrics) RecordSleep(reason string) {
	m.SleepsTotal.WithLabelValues(reason).Inc()
}

// SetChannelLive sets the live gauge
func (m *Metrics) SetChannelLive(live bool) {
	value := 1.0
	if !live {
		value = 0.0
	}
	m.ChannelLive.Set(value)
}

// SetLastCapture records the capture time of the newest saved image
func (m *Metrics) SetLastCapture(t time.Time) {
	m.LastCaptureTimestamp.Set(float64(t.Unix()))
}

// RecordRequestLatency records the latency of an HTTP request
func (m *Metrics) RecordRequestLatency(endpoint, method, status string, durationSeconds float64) {
	m.RequestLatency.WithLabelValues(endpoint, method, status).Observe(durationSeconds)
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(endpoint, method, status string) {
	m.HTTPRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
}

// IncHTTPRequestsInFlight increments the in-flight requests counter
func (m *Metrics) IncHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Inc()
}

// DecHTTPRequestsInFlight decrements the in-flight requests counter
func (m *Metrics) DecHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Dec()
}
