// Package metrics exposes Prometheus counters and histograms for gateway
// attempts, searches and council loops.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hassan-khan-web/ScholarForge/council"
	"github.com/hassan-khan-web/ScholarForge/evidence"
	"github.com/hassan-khan-web/ScholarForge/llm"
)

const namespace = "scholarforge"

// Outcome label values.
const (
	outcomeSuccess = "success"
	outcomeError   = "error"
)

// Metrics holds every collector on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	llmAttempts     *prometheus.CounterVec
	llmDuration     *prometheus.HistogramVec
	searchRequests  *prometheus.CounterVec
	searchResults   *prometheus.HistogramVec
	councilCycles   prometheus.Histogram
	councilApproved *prometheus.CounterVec
}

// New creates and registers the collectors. Go runtime and process
// collectors are included when withRuntime is set.
func New(withRuntime bool) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		llmAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "attempts_total",
			Help:      "Provider attempts by role, endpoint and outcome class.",
		}, []string{"role", "model", "outcome"}),
		llmDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "attempt_duration_seconds",
			Help:      "Provider attempt latency by role.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 120},
		}, []string{"role"}),
		searchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Search provider requests by provider, purpose and outcome.",
		}, []string{"provider", "purpose", "outcome"}),
		searchResults: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "results",
			Help:      "Records returned per search.",
			Buckets:   []float64{0, 1, 2, 3, 5, 10},
		}, []string{"provider"}),
		councilCycles: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "council",
			Name:      "cycles",
			Help:      "Review cycles used per section.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5},
		}),
		councilApproved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "council",
			Name:      "sections_total",
			Help:      "Council sections by whether they were approved.",
		}, []string{"approved"}),
	}

	m.registry.MustRegister(
		m.llmAttempts,
		m.llmDuration,
		m.searchRequests,
		m.searchResults,
		m.councilCycles,
		m.councilApproved,
	)
	if withRuntime {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCall implements llm.Observer.
func (m *Metrics) ObserveCall(e llm.CallEvent) {
	outcome := outcomeSuccess
	if e.Err != nil {
		outcome = e.Class.String()
	}
	m.llmAttempts.WithLabelValues(string(e.Role), e.Endpoint, outcome).Inc()
	m.llmDuration.WithLabelValues(string(e.Role)).Observe(e.Duration.Seconds())
}

// ObserveSearch implements evidence.Observer.
func (m *Metrics) ObserveSearch(e evidence.SearchEvent) {
	outcome := outcomeSuccess
	if e.Err != nil {
		outcome = outcomeError
	}
	m.searchRequests.WithLabelValues(e.Provider, e.Purpose, outcome).Inc()
	if e.Err == nil {
		m.searchResults.WithLabelValues(e.Provider).Observe(float64(e.Results))
	}
}

// ObserveOutcome implements council.Observer.
func (m *Metrics) ObserveOutcome(_ string, o council.Outcome) {
	m.councilCycles.Observe(float64(o.Cycles))
	approved := "false"
	if o.Approved {
		approved = "true"
	}
	m.councilApproved.WithLabelValues(approved).Inc()
}

var (
	_ llm.Observer      = (*Metrics)(nil)
	_ evidence.Observer = (*Metrics)(nil)
	_ council.Observer  = (*Metrics)(nil)
)
