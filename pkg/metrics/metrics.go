// Package metrics exposes pool counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/offloadio/offload/pkg/pool"
)

// DefaultRegistry is the registry the package-level helpers use.
var DefaultRegistry = prometheus.NewRegistry()

// PoolCollector reads a pool's Stats snapshot at scrape time.
type PoolCollector struct {
	pool *pool.Pool

	submitted *prometheus.Desc
	completed *prometheus.Desc
	cancelled *prometheus.Desc
	queued    *prometheus.Desc
	active    *prometheus.Desc
	workers   *prometheus.Desc
}

// NewPoolCollector creates a collector over p.
func NewPoolCollector(p *pool.Pool) *PoolCollector {
	return &PoolCollector{
		pool: p,
		submitted: prometheus.NewDesc("offload_requests_submitted_total",
			"Requests accepted by Submit.", nil, nil),
		completed: prometheus.NewDesc("offload_requests_completed_total",
			"Done callbacks delivered, cancelled requests included.", nil, nil),
		cancelled: prometheus.NewDesc("offload_requests_cancelled_total",
			"Requests cancelled before pickup.", nil, nil),
		queued: prometheus.NewDesc("offload_queue_depth",
			"Requests waiting for a worker.", nil, nil),
		active: prometheus.NewDesc("offload_active_workers",
			"Workers currently executing a request.", nil, nil),
		workers: prometheus.NewDesc("offload_pool_size",
			"Configured worker count.", nil, nil),
	}
}

func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.submitted
	ch <- c.completed
	ch <- c.cancelled
	ch <- c.queued
	ch <- c.active
	ch <- c.workers
}

func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.pool.Stats()
	ch <- prometheus.MustNewConstMetric(c.submitted, prometheus.CounterValue, float64(s.Submitted))
	ch <- prometheus.MustNewConstMetric(c.completed, prometheus.CounterValue, float64(s.Completed))
	ch <- prometheus.MustNewConstMetric(c.cancelled, prometheus.CounterValue, float64(s.Cancelled))
	ch <- prometheus.MustNewConstMetric(c.queued, prometheus.GaugeValue, float64(s.Queued))
	ch <- prometheus.MustNewConstMetric(c.active, prometheus.GaugeValue, float64(s.Active))
	ch <- prometheus.MustNewConstMetric(c.workers, prometheus.GaugeValue, float64(s.Workers))
}

// Register registers a collector for p on DefaultRegistry.
func Register(p *pool.Pool) error {
	return DefaultRegistry.Register(NewPoolCollector(p))
}

// Handler returns an HTTP handler serving DefaultRegistry.
func Handler() http.Handler {
	return promhttp.HandlerFor(DefaultRegistry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// HandlerFor returns an HTTP handler for a custom registry.
func HandlerFor(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
