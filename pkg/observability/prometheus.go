package observability

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics implements Metrics on a private Prometheus registry.
// Collectors are created on first use; the label set of a metric is fixed
// by its first observation and later observations with other label keys
// are dropped.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
	labels     map[string][]string
}

// NewPrometheusMetrics creates a registry with the Go and process collectors.
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &PrometheusMetrics{
		registry:   registry,
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		labels:     make(map[string][]string),
	}
}

// Registry exposes the underlying registry.
func (p *PrometheusMetrics) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (p *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *PrometheusMetrics) Counter(name string, value int64, tags ...Tag) {
	if value < 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	fq := promName(name) + "_total"
	keys, values := split(tags)
	vec, ok := p.counters[fq]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{Name: fq, Help: name}, keys)
		if !p.register(fq, keys, vec) {
			return
		}
		p.counters[fq] = vec
	}
	if !p.sameLabels(fq, keys) {
		return
	}
	vec.WithLabelValues(values...).Add(float64(value))
}

func (p *PrometheusMetrics) Gauge(name string, value float64, tags ...Tag) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fq := promName(name)
	keys, values := split(tags)
	vec, ok := p.gauges[fq]
	if !ok {
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: fq, Help: name}, keys)
		if !p.register(fq, keys, vec) {
			return
		}
		p.gauges[fq] = vec
	}
	if !p.sameLabels(fq, keys) {
		return
	}
	vec.WithLabelValues(values...).Set(value)
}

func (p *PrometheusMetrics) Histogram(name string, value float64, tags ...Tag) {
	p.observe(promName(name), name, value, tags)
}

// Timing records durations in seconds.
func (p *PrometheusMetrics) Timing(name string, duration time.Duration, tags ...Tag) {
	p.observe(promName(name)+"_seconds", name, duration.Seconds(), tags)
}

func (p *PrometheusMetrics) observe(fq, help string, value float64, tags []Tag) {
	p.mu.Lock()
	defer p.mu.Unlock()

	keys, values := split(tags)
	vec, ok := p.histograms[fq]
	if !ok {
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    fq,
			Help:    help,
			Buckets: prometheus.DefBuckets,
		}, keys)
		if !p.register(fq, keys, vec) {
			return
		}
		p.histograms[fq] = vec
	}
	if !p.sameLabels(fq, keys) {
		return
	}
	vec.WithLabelValues(values...).Observe(value)
}

func (p *PrometheusMetrics) register(fq string, keys []string, c prometheus.Collector) bool {
	if err := p.registry.Register(c); err != nil {
		return false
	}
	p.labels[fq] = keys
	return true
}

func (p *PrometheusMetrics) sameLabels(fq string, keys []string) bool {
	known := p.labels[fq]
	if len(known) != len(keys) {
		return false
	}
	for i := range keys {
		if known[i] != keys[i] {
			return false
		}
	}
	return true
}

// promName converts a dotted metric name into a Prometheus identifier.
func promName(name string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(name)
}

func split(tags []Tag) ([]string, []string) {
	sorted := sortTags(tags)
	keys := make([]string, len(sorted))
	values := make([]string, len(sorted))
	for i, t := range sorted {
		keys[i] = t.Key
		values[i] = t.Value
	}
	return keys, values
}
