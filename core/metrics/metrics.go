// Package metrics exposes export lifecycle counters for Prometheus
// scraping. The collector subscribes to the lifecycle event bus; nothing in
// the export pipeline depends on it.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/artpar/rpcgate/core/events"
)

// Collector tracks export lifecycle metrics.
type Collector struct {
	registry *prometheus.Registry

	exportsTotal   *prometheus.CounterVec
	unexportsTotal *prometheus.CounterVec
	activeServices prometheus.Gauge
}

// NewCollector creates a collector with its own Prometheus registry.
func NewCollector(prefix string) *Collector {
	if prefix == "" {
		prefix = "rpcgate"
	}
	reg := prometheus.NewRegistry()

	c := &Collector{
		registry: reg,
		exportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_service_exports_total",
				Help: "Total number of completed service exports",
			},
			[]string{"service"},
		),
		unexportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_service_unexports_total",
				Help: "Total number of completed service unexports",
			},
			[]string{"service"},
		),
		activeServices: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: prefix + "_services_exported",
				Help: "Number of services currently exported",
			},
		),
	}
	reg.MustRegister(c.exportsTotal, c.unexportsTotal, c.activeServices)
	return c
}

// Attach subscribes the collector to a lifecycle event bus.
func (c *Collector) Attach(bus *events.Bus) {
	bus.Subscribe(events.ServiceExported, func(_ context.Context, e events.Event) error {
		c.exportsTotal.WithLabelValues(e.ServiceKey).Inc()
		c.activeServices.Inc()
		return nil
	})
	bus.Subscribe(events.ServiceUnexported, func(_ context.Context, e events.Event) error {
		c.unexportsTotal.WithLabelValues(e.ServiceKey).Inc()
		c.activeServices.Dec()
		return nil
	})
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying Prometheus registry (for tests).
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
