// Package metrics exposes Prometheus collectors for the proxy.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the proxy's collectors on a private Prometheus registry.
type Registry struct {
	reg *prometheus.Registry

	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	routes   prometheus.Gauge
	reloads  prometheus.Counter
}

func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "routeproxy_requests_total",
			Help: "Total number of proxied requests.",
		}, []string{"route", "method", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "routeproxy_upstream_latency_seconds",
			Help:    "Upstream round-trip latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		routes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "routeproxy_routes_active",
			Help: "Number of routes in the active table.",
		}),
		reloads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "routeproxy_table_reloads_total",
			Help: "Number of route table swaps.",
		}),
	}
	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.requests, r.latency, r.routes, r.reloads,
	)
	return r
}

func (r *Registry) IncRequest(route, method, status string) {
	r.requests.WithLabelValues(route, method, status).Inc()
}

func (r *Registry) ObserveLatency(route string, d time.Duration) {
	r.latency.WithLabelValues(route).Observe(d.Seconds())
}

func (r *Registry) SetActiveRoutes(n int) {
	r.routes.Set(float64(n))
}

func (r *Registry) IncReload() {
	r.reloads.Inc()
}

// Handler serves the registry in Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
