package chromaffi

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"

	"github.com/hupe1980/chromaffi/internal/frontend"
)

// MetricsCollector defines an interface for collecting per-call metrics.
type MetricsCollector interface {
	// RecordCall is called after every boundary call with the entry point
	// name, the time taken and the resulting code.
	RecordCall(source string, duration time.Duration, code Code)
}

// TextExporter is implemented by collectors that can render the Prometheus
// text exposition format.
type TextExporter interface {
	WriteText(w io.Writer) error
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordCall(string, time.Duration, Code) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and tests without a registry.
type BasicMetricsCollector struct {
	CallCount  atomic.Int64
	ErrorCount atomic.Int64
	TotalNanos atomic.Int64

	mu     sync.Mutex
	codes  map[Code]int64
	source map[string]int64
}

// RecordCall implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCall(source string, duration time.Duration, code Code) {
	b.CallCount.Add(1)
	b.TotalNanos.Add(duration.Nanoseconds())
	if code != Success {
		b.ErrorCount.Add(1)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.codes == nil {
		b.codes = make(map[Code]int64)
		b.source = make(map[string]int64)
	}
	b.codes[code]++
	b.source[source]++
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	stats := BasicMetricsStats{
		CallCount:  b.CallCount.Load(),
		ErrorCount: b.ErrorCount.Load(),
		Codes:      make(map[Code]int64),
		Sources:    make(map[string]int64),
	}
	if stats.CallCount > 0 {
		stats.AvgNanos = b.TotalNanos.Load() / stats.CallCount
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for k, v := range b.codes {
		stats.Codes[k] = v
	}
	for k, v := range b.source {
		stats.Sources[k] = v
	}
	return stats
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	CallCount  int64
	ErrorCount int64
	AvgNanos   int64
	Codes      map[Code]int64
	Sources    map[string]int64
}

// PrometheusCollector records call metrics in a private Prometheus registry.
type PrometheusCollector struct {
	registry *prometheus.Registry
	calls    *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewPrometheusCollector creates a collector with its own registry.
func NewPrometheusCollector() *PrometheusCollector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &PrometheusCollector{
		registry: registry,
		calls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chroma_ffi_calls_total",
			Help: "Boundary calls by entry point and result code.",
		}, []string{"source", "code"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chroma_ffi_call_duration_seconds",
			Help:    "Boundary call latency by entry point.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"source"}),
	}
}

// RecordCall implements MetricsCollector.
func (p *PrometheusCollector) RecordCall(source string, duration time.Duration, code Code) {
	p.calls.WithLabelValues(source, code.String()).Inc()
	p.latency.WithLabelValues(source).Observe(duration.Seconds())
}

// Registry returns the underlying registry.
func (p *PrometheusCollector) Registry() *prometheus.Registry { return p.registry }

// RegisterEngine exports the segment cache statistics of an engine. It
// returns an error when another engine was registered already.
func (p *PrometheusCollector) RegisterEngine(stats func() frontend.Stats) error {
	collectors := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "chroma_segment_cache_entries",
			Help: "Collection segments held in the cache.",
		}, func() float64 { return float64(stats().CachedSegments) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "chroma_segment_cache_memory_bytes",
			Help: "Estimated memory held by cached segments.",
		}, func() float64 { return float64(stats().MemoryBytes) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "chroma_segment_cache_hits_total",
			Help: "Segment cache hits.",
		}, func() float64 { return float64(stats().CacheHits) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "chroma_segment_cache_misses_total",
			Help: "Segment cache misses.",
		}, func() float64 { return float64(stats().CacheMisses) }),
	}
	for _, c := range collectors {
		if err := p.registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// WriteText writes all metrics in the Prometheus text exposition format.
func (p *PrometheusCollector) WriteText(w io.Writer) error {
	families, err := p.registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
