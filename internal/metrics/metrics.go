// Package metrics exposes the abuse-prevention counters on a private
// Prometheus registry served at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chefguard"

// Decision outcomes recorded by RateLimitDecisions
const (
	OutcomeAllowed  = "allowed"
	OutcomeDenied   = "denied"
	OutcomeFailOpen = "fail_open"
)

// Metrics holds every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	RateLimitDecisions    *prometheus.CounterVec
	ThrottleRejections    *prometheus.CounterVec
	EmailsSent            *prometheus.CounterVec
	NotificationsDropped  prometheus.Counter
	AttemptsPurged        prometheus.Counter
	AuthProviderLatencyMs prometheus.Histogram
}

// New registers the collectors on a fresh registry
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		RateLimitDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_decisions_total",
			Help:      "Rate limit checks by attempt type and outcome",
		}, []string{"attempt_type", "outcome"}),
		ThrottleRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ip_throttle_rejections_total",
			Help:      "Requests rejected by the per-IP endpoint throttle",
		}, []string{"scope"}),
		EmailsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_sent_total",
			Help:      "Transactional emails by template and status",
		}, []string{"template", "status"}),
		NotificationsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lockout_notifications_dropped_total",
			Help:      "Lockout notifications dropped because the dispatch queue was full",
		}),
		AttemptsPurged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_purged_total",
			Help:      "Attempt records deleted by the cleanup job",
		}),
		AuthProviderLatencyMs: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "auth_provider_latency_ms",
			Help:      "Latency of recovery link requests in milliseconds",
			Buckets:   []float64{25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Decision counts one rate limit decision
func (m *Metrics) Decision(attemptType, outcome string) {
	if m == nil {
		return
	}
	m.RateLimitDecisions.WithLabelValues(attemptType, outcome).Inc()
}

// Throttled counts one per-IP rejection
func (m *Metrics) Throttled(scope string) {
	if m == nil {
		return
	}
	m.ThrottleRejections.WithLabelValues(scope).Inc()
}

// EmailSent counts one send attempt. status is "sent" or "failed".
func (m *Metrics) EmailSent(template, status string) {
	if m == nil {
		return
	}
	m.EmailsSent.WithLabelValues(template, status).Inc()
}

// NotificationDropped counts one dropped lockout notification
func (m *Metrics) NotificationDropped() {
	if m == nil {
		return
	}
	m.NotificationsDropped.Inc()
}

// Purged adds n to the purged attempt count
func (m *Metrics) Purged(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.AttemptsPurged.Add(float64(n))
}

// ObserveAuthProvider records one recovery link request latency
func (m *Metrics) ObserveAuthProvider(ms float64) {
	if m == nil {
		return
	}
	m.AuthProviderLatencyMs.Observe(ms)
}
