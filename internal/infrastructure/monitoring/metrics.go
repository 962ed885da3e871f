package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "authz"

// Metrics holds the Prometheus series of the authorization engine.
type Metrics struct {
	TokenRequests         *prometheus.CounterVec
	TokenRequestDuration  *prometheus.HistogramVec
	AuthorizationRequests *prometheus.CounterVec
	Introspections        *prometheus.CounterVec
	TokenRevocations      *prometheus.CounterVec
	CleanupDeleted        prometheus.Counter
	CleanupFailures       prometheus.Counter
	ClientCacheRequests   *prometheus.CounterVec
	RateLimitHits         *prometheus.CounterVec
	HTTPRequests          *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
}

// NewMetrics creates and registers the metrics against reg.
// A nil reg registers against the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		TokenRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_requests_total",
				Help:      "Total number of token endpoint requests.",
			},
			[]string{"grant_type", "result"},
		),
		TokenRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "token_request_duration_seconds",
				Help:      "Latency of token endpoint requests.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"grant_type"},
		),
		AuthorizationRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "authorization_requests_total",
				Help:      "Total number of authorization endpoint requests.",
			},
			[]string{"result"},
		),
		Introspections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "introspections_total",
				Help:      "Total number of token introspections by outcome.",
			},
			[]string{"active"},
		),
		TokenRevocations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_revocations_total",
				Help:      "Total number of token revocation attempts.",
			},
			[]string{"result"},
		),
		CleanupDeleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleanup_deleted_total",
			Help:      "Expired token records removed by cleanup.",
		}),
		CleanupFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleanup_failures_total",
			Help:      "Expired token records cleanup failed to remove.",
		}),
		ClientCacheRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "client_cache_requests_total",
				Help:      "Client registry cache lookups by result.",
			},
			[]string{"result"},
		),
		RateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_hits_total",
				Help:      "Total number of requests rejected by the rate limiter.",
			},
			[]string{"route"},
		),
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Latency of HTTP requests.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// RecordTokenRequest records the outcome and latency of one token request.
func (m *Metrics) RecordTokenRequest(grantType, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.TokenRequests.WithLabelValues(grantType, result).Inc()
	m.TokenRequestDuration.WithLabelValues(grantType).Observe(duration.Seconds())
}

func (m *Metrics) RecordAuthorization(result string) {
	if m == nil {
		return
	}
	m.AuthorizationRequests.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordIntrospection(active bool) {
	if m == nil {
		return
	}
	label := "false"
	if active {
		label = "true"
	}
	m.Introspections.WithLabelValues(label).Inc()
}

func (m *Metrics) RecordRevocation(result string) {
	if m == nil {
		return
	}
	m.TokenRevocations.WithLabelValues(result).Inc()
}

// RecordCleanup adds one cleanup run's counts.
func (m *Metrics) RecordCleanup(deleted, failed int) {
	if m == nil {
		return
	}
	m.CleanupDeleted.Add(float64(deleted))
	m.CleanupFailures.Add(float64(failed))
}

// ObserveClientCache matches cache.ObserveFunc.
func (m *Metrics) ObserveClientCache(result string) {
	if m == nil {
		return
	}
	m.ClientCacheRequests.WithLabelValues(result).Inc()
}

// RecordRateLimitHit records a rejected request on route.
func (m *Metrics) RecordRateLimitHit(route string) {
	if m == nil {
		return
	}
	m.RateLimitHits.WithLabelValues(route).Inc()
}
