// Package monitoring holds the prometheus instrumentation for the service.
package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the set of collectors the service reports. A degraded upstream
// fetch (fallback data served) is observable here even though callers see
// the same success shape as a live fetch.
type Metrics struct {
	requestDuration *prometheus.HistogramVec
	requestCount    *prometheus.CounterVec

	upstreamFetches *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	hotSetSize      prometheus.Gauge
	hotSetAge       prometheus.Gauge

	tradesTotal    *prometheus.CounterVec
	tradesRejected *prometheus.CounterVec
}

// NewMetrics registers and returns the service collectors.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		requestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"handler", "method", "status"},
		),
		requestCount: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),
		upstreamFetches: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_fetches_total",
				Help:      "Upstream market data fetches by endpoint and source (live, fallback, error)",
			},
			[]string{"endpoint", "source"},
		),
		cacheLookups: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "price_cache_lookups_total",
				Help:      "Price cache lookups by result (hit_fresh, hit_stale, miss)",
			},
			[]string{"result"},
		),
		hotSetSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "hot_set_size",
				Help:      "Number of instruments in the hot set snapshot",
			},
		),
		hotSetAge: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "hot_set_age_seconds",
				Help:      "Age of the current hot set snapshot",
			},
		),
		tradesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trades_total",
				Help:      "Completed trades by side",
			},
			[]string{"side"},
		),
		tradesRejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trades_rejected_total",
				Help:      "Rejected orders by error code",
			},
			[]string{"code"},
		),
	}
}

func (m *Metrics) ObserveRequest(handler, method string, status int, duration time.Duration) {
	s := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(handler, method, s).Observe(duration.Seconds())
	m.requestCount.WithLabelValues(handler, method, s).Inc()
}

func (m *Metrics) ObserveFetch(endpoint, source string) {
	m.upstreamFetches.WithLabelValues(endpoint, source).Inc()
}

func (m *Metrics) ObserveCacheLookup(result string) {
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) SetHotSet(size int, updatedAt time.Time) {
	m.hotSetSize.Set(float64(size))
	m.hotSetAge.Set(time.Since(updatedAt).Seconds())
}

func (m *Metrics) ObserveTrade(side string) {
	m.tradesTotal.WithLabelValues(side).Inc()
}

func (m *Metrics) ObserveRejectedTrade(code string) {
	m.tradesRejected.WithLabelValues(code).Inc()
}

// Handler exposes the prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
