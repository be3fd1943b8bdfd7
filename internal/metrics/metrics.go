// Package metrics holds the Prometheus collectors of the service. A nil *Metrics is valid
// and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "autopurch"

type Metrics struct {
	registry *prometheus.Registry

	Requests          *prometheus.CounterVec
	LatencyMS         *prometheus.HistogramVec
	Checkouts         *prometheus.CounterVec
	SubOrdersCreated  prometheus.Counter
	StatusTransitions *prometheus.CounterVec
	OutboxPublished   *prometheus.CounterVec
}

func New(service string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: service,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "method", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: service,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"route"}),
		Checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: service,
			Name:      "checkouts_total",
			Help:      "Checkout attempts by result.",
		}, []string{"result"}),
		SubOrdersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: service,
			Name:      "sub_orders_created_total",
			Help:      "Sub-orders created by successful checkouts.",
		}),
		StatusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: service,
			Name:      "sub_order_transitions_total",
			Help:      "Applied sub-order status transitions.",
		}, []string{"from", "to"}),
		OutboxPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: service,
			Name:      "outbox_events_published_total",
			Help:      "Outbox events handed to the publisher by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Requests,
		m.LatencyMS,
		m.Checkouts,
		m.SubOrdersCreated,
		m.StatusTransitions,
		m.OutboxPublished,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.LatencyMS.WithLabelValues(route).Observe(float64(elapsed.Milliseconds()))
}

func (m *Metrics) ObserveCheckout(result string, subOrders int) {
	if m == nil {
		return
	}
	m.Checkouts.WithLabelValues(result).Inc()
	if subOrders > 0 {
		m.SubOrdersCreated.Add(float64(subOrders))
	}
}

func (m *Metrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.StatusTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) ObservePublish(result string) {
	if m == nil {
		return
	}
	m.OutboxPublished.WithLabelValues(result).Inc()
}
