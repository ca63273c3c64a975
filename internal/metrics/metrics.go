// Package metrics exposes Prometheus collectors for price resolution,
// alert delivery and session runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aristath/pricesentry/internal/domain"
)

// Registry holds every collector on its own prometheus.Registry
type Registry struct {
	reg *prometheus.Registry

	providerCalls    *prometheus.CounterVec
	providerLatency  *prometheus.HistogramVec
	breakerState     *prometheus.GaugeVec
	cacheLookups     *prometheus.CounterVec
	pricesResolved   *prometheus.CounterVec
	alertsDispatched *prometheus.CounterVec
	sessionRuns      *prometheus.CounterVec
	sessionDuration  *prometheus.HistogramVec
}

// NewRegistry creates and registers all collectors, plus the Go and process collectors
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		providerCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricesentry_provider_calls_total",
				Help: "Provider calls by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		providerLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pricesentry_provider_call_duration_seconds",
				Help:    "Provider call duration including rate-limit waits and retries",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
			},
			[]string{"provider"},
		),
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pricesentry_provider_breaker_open",
				Help: "1 while the provider circuit breaker is open",
			},
			[]string{"provider"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricesentry_cache_lookups_total",
				Help: "Price cache lookups by category and result",
			},
			[]string{"category", "result"},
		),
		pricesResolved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricesentry_prices_resolved_total",
				Help: "Tickers resolved by category and source (cache, provider, stale, unresolved)",
			},
			[]string{"category", "source"},
		),
		alertsDispatched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricesentry_alerts_total",
				Help: "Alerts dispatched by session and outcome",
			},
			[]string{"session", "outcome"},
		),
		sessionRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricesentry_session_runs_total",
				Help: "Session runs by session and outcome",
			},
			[]string{"session", "outcome"},
		),
		sessionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pricesentry_session_run_duration_seconds",
				Help:    "Duration of a full session run",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10),
			},
			[]string{"session"},
		),
	}

	r.reg.MustRegister(
		r.providerCalls,
		r.providerLatency,
		r.breakerState,
		r.cacheLookups,
		r.pricesResolved,
		r.alertsDispatched,
		r.sessionRuns,
		r.sessionDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Gatherer exposes the underlying registry
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// ProviderCall records one provider call
func (r *Registry) ProviderCall(provider domain.ProviderID, outcome string, elapsed time.Duration) {
	r.providerCalls.WithLabelValues(string(provider), outcome).Inc()
	r.providerLatency.WithLabelValues(string(provider)).Observe(elapsed.Seconds())
}

// BreakerState records a breaker transition
func (r *Registry) BreakerState(provider domain.ProviderID, state string) {
	v := 0.0
	if state == "open" {
		v = 1
	}
	r.breakerState.WithLabelValues(string(provider)).Set(v)
}

// CacheLookup records a cache hit or miss
func (r *Registry) CacheLookup(category domain.Category, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(string(category), result).Inc()
}

// Resolved records how many tickers came from source
func (r *Registry) Resolved(category domain.Category, source string, n int) {
	if n > 0 {
		r.pricesResolved.WithLabelValues(string(category), source).Add(float64(n))
	}
}

// AlertsDispatched records a dispatch outcome
func (r *Registry) AlertsDispatched(session domain.Session, count int, outcome string) {
	r.alertsDispatched.WithLabelValues(string(session), outcome).Add(float64(count))
}

// SessionRun records a finished run
func (r *Registry) SessionRun(session domain.Session, outcome string, elapsed time.Duration) {
	r.sessionRuns.WithLabelValues(string(session), outcome).Inc()
	r.sessionDuration.WithLabelValues(string(session)).Observe(elapsed.Seconds())
}

// WatchCacheSize exports size() as the cache size gauge, read on every scrape.
// Call it once.
func (r *Registry) WatchCacheSize(size func() int) prometheus.Collector {
	g := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "pricesentry_cache_entries",
			Help: "Symbols currently held in the price cache",
		},
		func() float64 { return float64(size()) },
	)
	r.reg.MustRegister(g)
	return g
}
