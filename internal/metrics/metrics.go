// Package metrics exposes Prometheus collectors for the auth service and an
// instrumenting decorator around service.Auth. The core never imports this
// package; instrumentation is composed at wiring time.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "auth"

// Collectors groups every metric the service exports.
type Collectors struct {
	LoginAttempts *prometheus.CounterVec
	Failures      *prometheus.CounterVec
	TokensIssued  *prometheus.CounterVec
	Refreshes     *prometheus.CounterVec
	Validations   *prometheus.CounterVec
	Registrations *prometheus.CounterVec
	OpDuration    *prometheus.HistogramVec

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewCollectors creates the collectors and registers them with reg.
func NewCollectors(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		LoginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Login attempts by outcome",
		}, []string{"outcome"}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Rejected auth operations by operation and internal reason",
		}, []string{"op", "reason"}),
		TokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_issued_total",
			Help:      "Tokens minted by kind",
		}, []string{"kind"}),
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_total",
			Help:      "Refresh token rotations by outcome",
		}, []string{"outcome"}),
		Validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validations_total",
			Help:      "Access token validations by outcome",
		}, []string{"outcome"}),
		Registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Registrations by outcome",
		}, []string{"outcome"}),
		OpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Auth core operation latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests",
		}, []string{"path", "method", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "http",
			Name:      "request_duration_seconds",
			Help:      "Request duration",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path", "method"}),
	}
	reg.MustRegister(
		c.LoginAttempts, c.Failures, c.TokensIssued, c.Refreshes,
		c.Validations, c.Registrations, c.OpDuration,
		c.HTTPRequests, c.HTTPDuration,
	)
	return c
}
