package server

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tnpagents/processmate/pkg/observability"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

// Metrics implements the observability hooks on a Prometheus registry.
// Each server owns its registry so tests can run several servers.
type Metrics struct {
	Registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	generations     *prometheus.CounterVec
	generateLatency prometheus.Histogram
	fallbacks       prometheus.Counter
	previews        *prometheus.CounterVec
	cacheEvents     *prometheus.CounterVec
	cacheBytes      *prometheus.CounterVec
}

// NewMetrics creates the collectors on a fresh registry, together with the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		// Labels: method, route (chi pattern), status
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "processmate",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),

		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "processmate",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "route"}),

		// Labels: result (ok, error)
		generations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "processmate",
			Subsystem: "diagram",
			Name:      "generations_total",
			Help:      "Diagram generations by result",
		}, []string{"result"}),

		generateLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "processmate",
			Subsystem: "diagram",
			Name:      "generate_duration_seconds",
			Help:      "Diagram generation latency in seconds, cache hits included",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		fallbacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: "processmate",
			Subsystem: "diagram",
			Name:      "fallback_branches_total",
			Help:      "Branches redirected to the fallback end event",
		}),

		// Labels: format, result
		previews: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "processmate",
			Subsystem: "preview",
			Name:      "renders_total",
			Help:      "Graphviz previews by format and result",
		}, []string{"format", "result"}),

		// Labels: kind (diagram, preview), event (hit, miss, set)
		cacheEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "processmate",
			Subsystem: "cache",
			Name:      "events_total",
			Help:      "Cache hits, misses and writes",
		}, []string{"kind", "event"}),

		cacheBytes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "processmate",
			Subsystem: "cache",
			Name:      "written_bytes_total",
			Help:      "Bytes written to the cache",
		}, []string{"kind"}),
	}
}

// Register installs m as the process-wide observability hooks.
func (m *Metrics) Register() {
	observability.SetPipelineHooks(m)
	observability.SetCacheHooks(m)
	observability.SetAPIHooks(m)
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) OnGenerateStart(context.Context, int) {}

func (m *Metrics) OnGenerateComplete(_ context.Context, _ int, fallbacks int, d time.Duration, err error) {
	m.generations.WithLabelValues(result(err)).Inc()
	m.generateLatency.Observe(d.Seconds())
	m.fallbacks.Add(float64(fallbacks))
}

func (m *Metrics) OnPreviewStart(context.Context, string) {}

func (m *Metrics) OnPreviewComplete(_ context.Context, format string, _ time.Duration, err error) {
	m.previews.WithLabelValues(format, result(err)).Inc()
}

func (m *Metrics) OnCacheHit(_ context.Context, kind string) {
	m.cacheEvents.WithLabelValues(kind, "hit").Inc()
}

func (m *Metrics) OnCacheMiss(_ context.Context, kind string) {
	m.cacheEvents.WithLabelValues(kind, "miss").Inc()
}

func (m *Metrics) OnCacheSet(_ context.Context, kind string, size int) {
	m.cacheEvents.WithLabelValues(kind, "set").Inc()
	m.cacheBytes.WithLabelValues(kind).Add(float64(size))
}

func (m *Metrics) OnRequest(context.Context, string, string) {}

func (m *Metrics) OnResponse(_ context.Context, method, route string, status int, d time.Duration) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

var (
	_ observability.PipelineHooks = (*Metrics)(nil)
	_ observability.CacheHooks    = (*Metrics)(nil)
	_ observability.APIHooks      = (*Metrics)(nil)
)
