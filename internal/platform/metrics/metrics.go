package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch outcomes recorded by ObserveFetch.
const (
	OutcomeSuccess    = "success"
	OutcomeError      = "error"
	OutcomeSuperseded = "superseded"
)

// Metrics holds Prometheus collectors for the trending coordinator and its
// view server. All methods are safe to call on a nil *Metrics, which turns
// recording off (e.g. in tests).
type Metrics struct {
	registry      *prometheus.Registry
	requestsTotal prometheus.Counter
	errorsTotal   prometheus.Counter
	fetchesTotal  *prometheus.CounterVec
	fetchDuration prometheus.Histogram
	cacheLookups  *prometheus.CounterVec
	inFlight      prometheus.Gauge
	breakerState  prometheus.Gauge
	subscribers   prometheus.Gauge
	cacheEntries  prometheus.Gauge
}

// New creates and registers the collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "trending_http_requests_total",
		Help: "Total number of HTTP requests received by the view server",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "trending_http_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	fetchesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trending_fetches_total",
		Help: "Trending backend fetches by outcome",
	}, []string{"outcome"})
	fetchDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "trending_fetch_duration_seconds",
		Help:    "Duration of trending backend fetches that were applied or failed",
		Buckets: []float64{.05, .1, .25, .5, 1, 2, 4, 8},
	})
	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trending_cache_lookups_total",
		Help: "Trending cache lookups by result (hit or miss)",
	}, []string{"result"})
	inFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "trending_inflight_requests",
		Help: "Trending requests currently in flight (0 or 1 per coordinator)",
	})
	breakerState := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "trending_breaker_state",
		Help: "Circuit breaker state: 0 closed, 1 half-open, 2 open",
	})
	subscribers := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "trending_view_subscribers",
		Help: "Number of connected live view subscribers",
	})
	cacheEntries := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "trending_cache_entries",
		Help: "Entries held in the trending cache, including expired ones not yet evicted",
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		fetchesTotal,
		fetchDuration,
		cacheLookups,
		inFlight,
		breakerState,
		subscribers,
		cacheEntries,
	)

	return &Metrics{
		registry:      registry,
		requestsTotal: requestsTotal,
		errorsTotal:   errorsTotal,
		fetchesTotal:  fetchesTotal,
		fetchDuration: fetchDuration,
		cacheLookups:  cacheLookups,
		inFlight:      inFlight,
		breakerState:  breakerState,
		subscribers:   subscribers,
		cacheEntries:  cacheEntries,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	if m == nil {
		return
	}
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	if m == nil {
		return
	}
	m.errorsTotal.Inc()
}

// FetchStarted marks a request as in flight.
func (m *Metrics) FetchStarted() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

// ObserveFetch records the end of a request started with FetchStarted.
// Superseded requests are counted but not timed.
func (m *Metrics) ObserveFetch(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.inFlight.Dec()
	m.fetchesTotal.WithLabelValues(outcome).Inc()
	if outcome != OutcomeSuperseded {
		m.fetchDuration.Observe(d.Seconds())
	}
}

// CacheHit records a fresh cache entry served without a request.
func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues("hit").Inc()
}

// CacheMiss records a lookup that fell through to the network.
func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

// SetCacheEntries sets the cache size gauge.
func (m *Metrics) SetCacheEntries(n int) {
	if m == nil {
		return
	}
	m.cacheEntries.Set(float64(n))
}

// SetBreakerState sets the breaker gauge (0 closed, 1 half-open, 2 open).
func (m *Metrics) SetBreakerState(v float64) {
	if m == nil {
		return
	}
	m.breakerState.Set(v)
}

// AddSubscribers adjusts the live subscriber gauge by delta.
func (m *Metrics) AddSubscribers(delta int) {
	if m == nil {
		return
	}
	m.subscribers.Add(float64(delta))
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
