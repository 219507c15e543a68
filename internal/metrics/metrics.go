// Package metrics holds the Prometheus collectors for the loyalty service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Redemption outcomes used as the "outcome" label.
const (
	OutcomeOK            = "ok"
	OutcomeUnauth        = "unauthenticated"
	OutcomeNotFound      = "not_found"
	OutcomeInactive      = "inactive"
	OutcomeInvalidConfig = "invalid_config"
	OutcomeOutOfStock    = "out_of_stock"
	OutcomeInsufficient  = "insufficient_points"
	OutcomeStoreError    = "store_error"
)

type Metrics struct {
	registry *prometheus.Registry

	Redemptions  *prometheus.CounterVec
	PointsEarned prometheus.Counter
	PointsSpent  prometheus.Counter
	ClaimsSent   prometheus.Counter
	HTTPRequests *prometheus.CounterVec
}

// New registers every collector on a fresh registry, plus the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Redemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ybg",
			Name:      "redemptions_total",
			Help:      "Reward redemption attempts by outcome.",
		}, []string{"outcome"}),
		PointsEarned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ybg",
			Name:      "points_earned_total",
			Help:      "Points credited to users.",
		}),
		PointsSpent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ybg",
			Name:      "points_spent_total",
			Help:      "Points debited by redemptions.",
		}),
		ClaimsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ybg",
			Name:      "claims_sent_total",
			Help:      "Claims handed off to the fulfilment admin.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ybg",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
	}
	reg.MustRegister(
		m.Redemptions, m.PointsEarned, m.PointsSpent, m.ClaimsSent, m.HTTPRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Instrument counts requests passing through next.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return promhttp.InstrumentHandlerCounter(m.HTTPRequests, next)
}

func (m *Metrics) Redeemed(outcome string, cost int64) {
	if m == nil {
		return
	}
	m.Redemptions.WithLabelValues(outcome).Inc()
	if outcome == OutcomeOK {
		m.PointsSpent.Add(float64(cost))
	}
}

func (m *Metrics) Earned(points int64) {
	if m == nil {
		return
	}
	m.PointsEarned.Add(float64(points))
}

func (m *Metrics) Sent() {
	if m == nil {
		return
	}
	m.ClaimsSent.Inc()
}
