// Package metrics exposes Prometheus metrics for the topology service.
package metrics

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all metrics for the application
type Registry struct {
	// Topology build metrics
	BuildsTotal   *prometheus.CounterVec
	BuildDuration prometheus.Histogram
	Routers       prometheus.Gauge
	Nodes         prometheus.Gauge
	Links         *prometheus.GaugeVec
	LastBuild     prometheus.Gauge

	// Border router fetch metrics
	FetchDuration *prometheus.HistogramVec
	FetchErrors   *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	LiveClients         prometheus.Gauge

	// System metrics
	UptimeSeconds prometheus.Gauge
	GoRoutines    prometheus.Gauge

	registry  *prometheus.Registry
	startTime time.Time
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	r := &Registry{
		registry:  prometheus.NewRegistry(),
		startTime: time.Now(),
	}

	r.initTopologyMetrics()
	r.initHTTPMetrics()
	r.initSystemMetrics()

	return r
}

func (r *Registry) initTopologyMetrics() {
	factory := promauto.With(r.registry)

	r.BuildsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otbr_topology_builds_total",
			Help: "Total number of topology refreshes by outcome",
		},
		[]string{"status"},
	)

	r.BuildDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "otbr_topology_build_duration_seconds",
			Help:    "Time spent turning diagnostics into a graph",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
	)

	r.Routers = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "otbr_topology_routers",
			Help: "Routers in the latest graph",
		},
	)

	r.Nodes = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "otbr_topology_nodes",
			Help: "Nodes (routers and children) in the latest graph",
		},
	)

	r.Links = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "otbr_topology_links",
			Help: "Links in the latest graph by type",
		},
		[]string{"type"},
	)

	r.LastBuild = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "otbr_topology_last_build_timestamp_seconds",
			Help: "Unix time of the latest successful build",
		},
	)

	r.FetchDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "otbr_border_router_request_duration_seconds",
			Help:    "Border router REST request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	r.FetchErrors = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otbr_border_router_request_errors_total",
			Help: "Failed border router REST requests",
		},
		[]string{"endpoint"},
	)
}

func (r *Registry) initHTTPMetrics() {
	factory := promauto.With(r.registry)

	r.HTTPRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otbr_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	r.HTTPRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "otbr_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	r.LiveClients = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "otbr_live_clients",
			Help: "Connected live topology WebSocket clients",
		},
	)
}

func (r *Registry) initSystemMetrics() {
	factory := promauto.With(r.registry)

	r.UptimeSeconds = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "otbr_uptime_seconds",
			Help: "Time since the service started in seconds",
		},
	)

	r.GoRoutines = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "otbr_goroutines",
			Help: "Number of goroutines",
		},
	)
}

// RecordBuild records a successful topology build.
func (r *Registry) RecordBuild(duration time.Duration, routers, nodes, routerLinks, childLinks int) {
	r.BuildsTotal.WithLabelValues("success").Inc()
	r.BuildDuration.Observe(duration.Seconds())
	r.Routers.Set(float64(routers))
	r.Nodes.Set(float64(nodes))
	r.Links.WithLabelValues("router").Set(float64(routerLinks))
	r.Links.WithLabelValues("child").Set(float64(childLinks))
	r.LastBuild.Set(float64(time.Now().Unix()))
}

// RecordBuildFailure records a refresh that produced no graph.
func (r *Registry) RecordBuildFailure() {
	r.BuildsTotal.WithLabelValues("error").Inc()
}

// RecordFetch records one border router request.
func (r *Registry) RecordFetch(endpoint string, duration time.Duration, err error) {
	r.FetchDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
	if err != nil {
		r.FetchErrors.WithLabelValues(endpoint).Inc()
	}
}

// RecordHTTPRequest records an HTTP request with its duration
func (r *Registry) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	r.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// UpdateSystemMetrics refreshes uptime and goroutine gauges.
func (r *Registry) UpdateSystemMetrics() {
	r.UptimeSeconds.Set(time.Since(r.startTime).Seconds())
	r.GoRoutines.Set(float64(runtime.NumGoroutine()))
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	inner := promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.UpdateSystemMetrics()
		inner.ServeHTTP(w, req)
	})
}
