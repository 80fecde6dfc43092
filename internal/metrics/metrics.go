// Package metrics exposes boot and dispatch measurements to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/conneroisu/ni/internal/dispatch"
	"github.com/conneroisu/ni/internal/registry"
	"github.com/conneroisu/ni/internal/types"
)

const (
	namespace = "ni"
	missLabel = "none"
)

// Metrics holds the collectors of one application. Each instance owns its
// registry so tests and multiple apps in one process do not collide.
type Metrics struct {
	registry *prometheus.Registry

	bootDuration     prometheus.Histogram
	bootFailures     prometheus.Counter
	artifacts        *prometheus.GaugeVec
	dispatches       *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	requests         *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		bootDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "boot_duration_seconds",
			Help:      "Time taken to load all artifact collections",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		bootFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "boot_failures_total",
			Help:      "Number of failed boots",
		}),
		artifacts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "artifacts_loaded",
			Help:      "Number of artifacts loaded per collection",
		}, []string{"kind"}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatches_total",
			Help:      "Dispatched requests by handler group, action and outcome",
		}, []string{"controller", "action", "outcome"}),
		dispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent resolving and running actions",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code",
		}, []string{"method", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}

	m.registry.MustRegister(
		m.bootDuration,
		m.bootFailures,
		m.artifacts,
		m.dispatches,
		m.dispatchDuration,
		m.requests,
		m.requestDuration,
	)

	return m
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveBoot records a boot attempt. store is nil when boot failed.
func (m *Metrics) ObserveBoot(store *registry.Store, elapsed time.Duration) {
	m.bootDuration.Observe(elapsed.Seconds())
	if store == nil {
		m.bootFailures.Inc()
		return
	}
	for _, kind := range types.Kinds {
		m.artifacts.WithLabelValues(string(kind)).Set(float64(store.Count(kind)))
	}
}

// ObserveDispatch implements dispatch.Observer. Misses are counted under
// a fixed label since their names come from arbitrary URLs.
func (m *Metrics) ObserveDispatch(route dispatch.Route, elapsed time.Duration) {
	outcome := "miss"
	controller, action := missLabel, missLabel
	if route.Found {
		outcome = "hit"
		controller, action = route.Controller, route.Action
	}

	m.dispatches.WithLabelValues(controller, action, outcome).Inc()
	m.dispatchDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// Middleware records method, status code and latency of every request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(r.Method, strconv.Itoa(status)).Inc()
		m.requestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

var _ dispatch.Observer = (*Metrics)(nil)
