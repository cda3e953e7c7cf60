package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tipjar/internal/ratelimit"
	"tipjar/internal/relay"
)

// Metrics is the relay's private registry. It doubles as the relay.Observer.
type Metrics struct {
	registry      *prometheus.Registry
	relayRequests *prometheus.CounterVec
	relayDuration *prometheus.HistogramVec
	rateLimited   *prometheus.CounterVec
	confirmations *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tipjar_relay_requests_total",
		Help: "Relay requests by outcome code",
	}, []string{"outcome"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tipjar_relay_duration_seconds",
		Help:    "Time spent handling a relay request, confirmation wait included",
		Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	}, []string{"outcome"})

	limited := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tipjar_rate_limited_total",
		Help: "Requests rejected by a rate limit",
	}, []string{"scope"})

	confirmations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tipjar_confirmations_total",
		Help: "Settled confirmation waits by status",
	}, []string{"status"})

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tipjar_http_requests_total",
		Help: "HTTP requests by route and status code",
	}, []string{"route", "code"})

	r := prometheus.NewRegistry()
	r.MustRegister(requests, duration, limited, confirmations, httpRequests)

	return &Metrics{
		registry:      r,
		relayRequests: requests,
		relayDuration: duration,
		rateLimited:   limited,
		confirmations: confirmations,
		httpRequests:  httpRequests,
	}
}

func (m *Metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRelay(outcome string, elapsed time.Duration) {
	m.relayRequests.WithLabelValues(outcome).Inc()
	m.relayDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveRateLimited(scope ratelimit.Scope) {
	m.rateLimited.WithLabelValues(string(scope)).Inc()
}

func (m *Metrics) ObserveConfirmation(status relay.TxStatus) {
	m.confirmations.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) incHTTP(route string, code int) {
	m.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
