package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"inventoryd/pkg/admission"
)

// Metrics holds the server's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry
	checkins *prometheus.CounterVec
	rejected *prometheus.CounterVec
}

// NewMetrics registers the inventory collectors. limiter feeds the tracked
// address gauge and may be nil.
func NewMetrics(limiter *admission.Limiter) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		checkins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inventory",
			Name:      "checkins_total",
			Help:      "Check-in requests by outcome.",
		}, []string{"outcome"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inventory",
			Name:      "admission_rejections_total",
			Help:      "Requests refused by admission control by reason.",
		}, []string{"reason"}),
	}
	reg.MustRegister(m.checkins, m.rejected)

	if limiter != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "inventory",
			Name:      "rate_limiter_clients",
			Help:      "Client addresses currently tracked by the check-in rate limiter.",
		}, func() float64 { return float64(limiter.Len()) }))
	}
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observeCheckin(outcome string) {
	m.checkins.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeRejection(reason string) {
	m.rejected.WithLabelValues(reason).Inc()
}
