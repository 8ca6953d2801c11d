package obs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	RequestsTotal       prometheus.Counter
	RateLimitDropsTotal prometheus.Counter

	ProviderErrors      *prometheus.CounterVec
	ProviderLatency     *prometheus.HistogramVec
	MatchOutcomes       *prometheus.CounterVec
	MergeFailures       prometheus.Counter
	ListingsReturned    prometheus.Histogram
	PriceCacheLookups   *prometheus.CounterVec
	OfferCacheOps       *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestsTotal   *prometheus.CounterVec
	Registry            *prometheus.Registry
}

// Create Prometheus collectors and register them
func NewMetrics(p *prometheus.Registry) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hotel_search_requests_total",
			Help: "Total number of search requests",
		}),
		RateLimitDropsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hotel_ratelimit_drops_total",
			Help: "Requests dropped due to rate limiting",
		}),
		ProviderErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "provider_errors_total",
			Help: "Errors returned by each provider",
		}, []string{"provider"},
		),
		ProviderLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "provider_latency_seconds",
				Help:    "Latency between aggregator and provider",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		MatchOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hotel_match_outcomes_total",
			Help: "Canonical matching outcomes by method",
		}, []string{"method", "advertise"}),
		MergeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hotel_merge_failures_total",
			Help: "Canonical groups dropped because they could not be merged",
		}),
		ListingsReturned: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hotel_search_listings",
			Help:    "Unified listings returned per search",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		PriceCacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hotel_price_cache_lookups_total",
			Help: "Price cache lookups by result (fresh, stale, miss, error)",
		}, []string{"result"}),
		OfferCacheOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hotel_offer_cache_ops_total",
			Help: "Offer cache operations by op and result",
		}, []string{"op", "result"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latencies",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		Registry: p,
	}

	// Register metrics with Prometheus
	p.MustRegister(
		m.RequestsTotal,
		m.RateLimitDropsTotal,
		m.ProviderErrors,
		m.ProviderLatency,
		m.MatchOutcomes,
		m.MergeFailures,
		m.ListingsReturned,
		m.PriceCacheLookups,
		m.OfferCacheOps,
		m.HTTPRequestDuration,
		m.HTTPRequestsTotal,
	)

	return m
}

// NewNop returns metrics bound to a private registry, for tests and tools.
func NewNop() *Metrics { return NewMetrics(prometheus.NewRegistry()) }

func (m *Metrics) IncRequests() { m.RequestsTotal.Inc() }

func (m *Metrics) IncRateLimitDrops() { m.RateLimitDropsTotal.Inc() }

func (m *Metrics) ObserveProviderLatency(provider string, seconds float64) {
	m.ProviderLatency.WithLabelValues(provider).Observe(seconds)
}

func (m *Metrics) IncProviderFailure(provider string) {
	m.ProviderErrors.WithLabelValues(provider).Inc()
}

func (m *Metrics) IncMatch(method string, advertise bool) {
	adv := "false"
	if advertise {
		adv = "true"
	}
	m.MatchOutcomes.WithLabelValues(method, adv).Inc()
}

func (m *Metrics) IncMergeFailure() { m.MergeFailures.Inc() }

func (m *Metrics) ObserveListings(n int) { m.ListingsReturned.Observe(float64(n)) }

func (m *Metrics) IncPriceCacheLookup(result string) {
	m.PriceCacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) IncOfferCacheOp(op, result string) {
	m.OfferCacheOps.WithLabelValues(op, result).Inc()
}

func (m *Metrics) ObserveHTTPRequestDuration(method string, path string, status string, seconds float64) {
	m.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(seconds)
}

func (m *Metrics) IncHTTPRequestsTotal(method string, path string, status string) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
