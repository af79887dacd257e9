// file: internal/metrics/metrics.go

package metrics

import (
	"os"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/process"
)

// Metrics provides centralized metrics collection for the webhook gateway
type Metrics struct {
	registry *prometheus.Registry

	// Signature verification metrics
	signatureVerificationsTotal   *prometheus.CounterVec
	signatureVerificationDuration *prometheus.HistogramVec

	// HTTP Inbound metrics
	httpInboundRequestsTotal *prometheus.CounterVec
	httpRequestDuration      *prometheus.HistogramVec
	inboundQueueDepth        prometheus.Gauge

	// NATS metrics
	natsPublishTotal     *prometheus.CounterVec
	natsConnectionStatus prometheus.Gauge
	natsReconnects       prometheus.Counter

	// System metrics
	goroutines  prometheus.Gauge
	memoryBytes prometheus.Gauge
	cpuPercent  prometheus.Gauge
	rssBytes    prometheus.Gauge

	// proc is nil when the process handle could not be opened
	proc *process.Process
}

// NewMetrics creates a new metrics instance with all collectors registered
func NewMetrics(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{
		registry: registry,

		// Signature verification
		signatureVerificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signature_verifications_total",
				Help: "Total number of signature verifications by sender and result",
			},
			[]string{"sender", "result"},
		),
		signatureVerificationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signature_verification_duration_seconds",
				Help:    "Duration of signature verification operations",
				Buckets: []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01},
			},
			[]string{"sender"},
		),

		// HTTP Inbound
		httpInboundRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_inbound_requests_total",
				Help: "Total number of inbound HTTP requests",
			},
			[]string{"path", "method", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of inbound HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path", "method"},
		),
		inboundQueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "inbound_queue_depth",
				Help: "Number of accepted webhooks waiting to be forwarded",
			},
		),

		// NATS
		natsPublishTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_publish_total",
				Help: "Total number of forwarded webhooks by subject and status",
			},
			[]string{"subject", "status"},
		),
		natsConnectionStatus: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "nats_connection_status",
				Help: "NATS connection status (1 = connected, 0 = disconnected)",
			},
		),
		natsReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "nats_reconnects_total",
				Help: "Total number of NATS reconnections",
			},
		),

		// System metrics
		goroutines: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "process_goroutines",
				Help: "Number of goroutines",
			},
		),
		memoryBytes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "process_memory_bytes",
				Help: "Go heap bytes allocated",
			},
		),
		cpuPercent: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "process_cpu_percent",
				Help: "Process CPU usage percent since the previous sample",
			},
		),
		rssBytes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "process_rss_bytes",
				Help: "Process resident set size in bytes",
			},
		),
	}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		m.proc = proc
	}

	// Register all collectors
	collectors := []prometheus.Collector{
		m.signatureVerificationsTotal,
		m.signatureVerificationDuration,
		m.httpInboundRequestsTotal,
		m.httpRequestDuration,
		m.inboundQueueDepth,
		m.natsPublishTotal,
		m.natsConnectionStatus,
		m.natsReconnects,
		m.goroutines,
		m.memoryBytes,
		m.cpuPercent,
		m.rssBytes,
	}

	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Registry returns the registry the metrics were registered with
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveVerification records a signature verification outcome. It satisfies
// signature.Observer.
func (m *Metrics) ObserveVerification(sender, result string, duration time.Duration) {
	m.signatureVerificationsTotal.WithLabelValues(sender, result).Inc()
	m.signatureVerificationDuration.WithLabelValues(sender).Observe(duration.Seconds())
}

// HTTP Inbound metrics
func (m *Metrics) IncHTTPInboundRequestsTotal(path, method, status string) {
	m.httpInboundRequestsTotal.WithLabelValues(path, method, status).Inc()
}

func (m *Metrics) ObserveHTTPRequestDuration(path, method string, seconds float64) {
	m.httpRequestDuration.WithLabelValues(path, method).Observe(seconds)
}

func (m *Metrics) SetInboundQueueDepth(depth float64) {
	m.inboundQueueDepth.Set(depth)
}

// NATS metrics
func (m *Metrics) IncNATSPublish(subject, status string) {
	m.natsPublishTotal.WithLabelValues(subject, status).Inc()
}

func (m *Metrics) SetNATSConnectionStatus(connected bool) {
	if connected {
		m.natsConnectionStatus.Set(1)
	} else {
		m.natsConnectionStatus.Set(0)
	}
}

func (m *Metrics) IncNATSReconnects() {
	m.natsReconnects.Inc()
}

// System metrics
func (m *Metrics) UpdateSystemMetrics() {
	m.goroutines.Set(float64(runtime.NumGoroutine()))

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	m.memoryBytes.Set(float64(memStats.Alloc))

	if m.proc == nil {
		return
	}
	if pct, err := m.proc.Percent(0); err == nil {
		m.cpuPercent.Set(pct)
	}
	if mem, err := m.proc.MemoryInfo(); err == nil {
		m.rssBytes.Set(float64(mem.RSS))
	}
}
