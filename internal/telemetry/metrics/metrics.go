// Package metrics exposes Prometheus counters for HTTP traffic, lifecycle events and scheduler
// sweeps on a private registry.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kennarddh/asset-management-sub000/internal/events"
)

// Namespace prefixes every metric name.
const Namespace = "asset_lending"

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry        *prometheus.Registry
	requestCount    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	lifecycleEvents *prometheus.CounterVec
	sweepOrders     *prometheus.CounterVec
	sweeps          prometheus.Counter
}

// New registers the collectors, plus the Go runtime and process collectors, on a new registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route pattern and status.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		lifecycleEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Order and session lifecycle events by type.",
		}, []string{"type"}),
		sweepOrders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "scheduler",
			Name:      "orders_total",
			Help:      "Orders handled by scheduler sweeps by result.",
		}, []string{"result"}),
		sweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "scheduler",
			Name:      "sweeps_total",
			Help:      "Completed scheduler sweeps.",
		}),
	}
	m.registry.MustRegister(
		m.requestCount,
		m.requestDuration,
		m.lifecycleEvents,
		m.sweepOrders,
		m.sweeps,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware counts requests by chi route pattern so path parameters do not explode label
// cardinality. Unmatched requests are labelled "unmatched".
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requestCount.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.requestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Publish counts events by type. It implements events.Publisher so it can sit next to the
// broker publisher in an events.Multi.
func (m *Metrics) Publish(_ context.Context, evs ...events.Event) error {
	if m == nil {
		return nil
	}
	for _, ev := range evs {
		m.lifecycleEvents.WithLabelValues(ev.Type).Inc()
	}
	return nil
}

// SweepCompleted records one scheduler sweep.
func (m *Metrics) SweepCompleted(activated, overdue, skipped, failed int) {
	if m == nil {
		return
	}
	m.sweeps.Inc()
	m.sweepOrders.WithLabelValues("activated").Add(float64(activated))
	m.sweepOrders.WithLabelValues("overdue").Add(float64(overdue))
	m.sweepOrders.WithLabelValues("skipped").Add(float64(skipped))
	m.sweepOrders.WithLabelValues("failed").Add(float64(failed))
}
