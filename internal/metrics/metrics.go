// Package metrics exposes cycle counters for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "autotrader"

// Metrics holds the collectors updated by the trading loop.
type Metrics struct {
	registry *prometheus.Registry

	cycles         *prometheus.CounterVec
	cycleDuration  prometheus.Histogram
	retries        prometheus.Counter
	portfolioValue prometheus.Gauge
	orders         *prometheus.CounterVec
}

// New registers the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Completed trading cycles by status and reason.",
		}, []string{"status", "reason"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of a trading cycle.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Retried exchange or recommendation calls.",
		}),
		portfolioValue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "portfolio_value",
			Help:      "Last computed portfolio value in the quote currency.",
		}),
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_total",
			Help:      "Submitted orders by side and mode.",
		}, []string{"side", "mode"}),
	}

	m.registry.MustRegister(
		m.cycles, m.cycleDuration, m.retries, m.portfolioValue, m.orders,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// ObserveCycle records the outcome of one cycle.
func (m *Metrics) ObserveCycle(status, reason string, d time.Duration) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(status, reason).Inc()
	m.cycleDuration.Observe(d.Seconds())
}

func (m *Metrics) IncRetry() {
	if m == nil {
		return
	}
	m.retries.Inc()
}

func (m *Metrics) SetPortfolioValue(v float64) {
	if m == nil {
		return
	}
	m.portfolioValue.Set(v)
}

// ObserveOrder counts a submitted order.
func (m *Metrics) ObserveOrder(side string, simulated bool) {
	if m == nil {
		return
	}
	mode := "live"
	if simulated {
		mode = "simulated"
	}
	m.orders.WithLabelValues(side, mode).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
