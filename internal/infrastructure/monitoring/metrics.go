package monitoring

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "codeprep"

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Playground metrics
	PlaygroundsActive prometheus.Gauge
	RunsTotal         *prometheus.CounterVec
	RunDuration       prometheus.Histogram
	OutputRecords     *prometheus.CounterVec

	// Tutor metrics
	TutorCalls    *prometheus.CounterVec
	TutorDuration prometheus.Histogram

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	Uptime    prometheus.GaugeFunc
	startTime time.Time

	snapshot snapshot
}

type snapshot struct {
	requests    atomic.Int64
	errors      atomic.Int64
	runs        atomic.Int64
	faults      atomic.Int64
	playgrounds atomic.Int64
	connections atomic.Int64
}

// Snapshot holds current values for the JSON status endpoint
type Snapshot struct {
	Requests          int64   `json:"requests"`
	Errors            int64   `json:"errors"`
	Runs              int64   `json:"runs"`
	Faults            int64   `json:"faults"`
	ActivePlaygrounds int64   `json:"active_playgrounds"`
	ActiveConnections int64   `json:"active_connections"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
}

// NewMetrics creates a collector backed by its own registry, which also
// carries the Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewMetricsWith(reg)
}

// NewMetricsWith registers every metric on reg
func NewMetricsWith(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		ResponseSize: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_response_size_bytes",
				Help:      "HTTP response size in bytes",
				Buckets:   []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "path"},
		),

		PlaygroundsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "playgrounds_active",
			Help:      "Number of open playgrounds",
		}),
		RunsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "playground_runs_total",
				Help:      "Playground runs by outcome",
			},
			[]string{"outcome"},
		),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "playground_run_duration_seconds",
			Help:      "Time from run start to the end of synchronous execution",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 2.5, 5, 10},
		}),
		OutputRecords: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "playground_output_records_total",
				Help:      "Console records captured by kind",
			},
			[]string{"kind"},
		),

		TutorCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tutor_calls_total",
				Help:      "Tutor requests by outcome",
			},
			[]string{"outcome"},
		),
		TutorDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tutor_call_duration_seconds",
			Help:      "Tutor request duration in seconds",
			Buckets:   []float64{.1, .5, 1, 2.5, 5, 10, 30, 60},
		}),

		WSConnections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_connections_active",
			Help:      "Number of active WebSocket connections",
		}),
		WSMessages: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "websocket_messages_total",
				Help:      "WebSocket messages by direction and type",
			},
			[]string{"direction", "type"},
		),
	}

	m.Uptime = f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "uptime_seconds",
		Help:      "Seconds since the server started",
	}, func() float64 {
		return time.Since(m.startTime).Seconds()
	})

	return m
}

// Registry returns the registry metrics are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records one served request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.snapshot.requests.Add(1)
	if len(status) > 0 && status[0] >= '4' {
		m.snapshot.errors.Add(1)
	}
}

// RecordRun records a finished playground run
func (m *Metrics) RecordRun(outcome string, d time.Duration) {
	m.RunsTotal.WithLabelValues(outcome).Inc()
	m.RunDuration.Observe(d.Seconds())

	m.snapshot.runs.Add(1)
	if outcome != "ok" {
		m.snapshot.faults.Add(1)
	}
}

// RecordOutput counts one console record
func (m *Metrics) RecordOutput(kind string) {
	m.OutputRecords.WithLabelValues(kind).Inc()
}

func (m *Metrics) SetPlaygroundsActive(count int) {
	m.PlaygroundsActive.Set(float64(count))
	m.snapshot.playgrounds.Store(int64(count))
}

// RecordTutorCall records one tutor request
func (m *Metrics) RecordTutorCall(outcome string, d time.Duration) {
	m.TutorCalls.WithLabelValues(outcome).Inc()
	m.TutorDuration.Observe(d.Seconds())
}

func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
	m.snapshot.connections.Add(1)
}

func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
	m.snapshot.connections.Add(-1)
}

// Snapshot returns current totals
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Requests:          m.snapshot.requests.Load(),
		Errors:            m.snapshot.errors.Load(),
		Runs:              m.snapshot.runs.Load(),
		Faults:            m.snapshot.faults.Load(),
		ActivePlaygrounds: m.snapshot.playgrounds.Load(),
		ActiveConnections: m.snapshot.connections.Load(),
		UptimeSeconds:     time.Since(m.startTime).Seconds(),
	}
}
