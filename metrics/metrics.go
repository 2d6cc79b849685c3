// Package metrics exports auth activity as Prometheus metrics.
//
// Metric naming follows Prometheus conventions:
//   - shop_auth_ prefix for all custom metrics
//   - _total suffix for counters
package metrics

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	auth "github.com/goliatone/go-shop-auth"
)

// Collector records auth activity and HTTP outcomes. It implements
// auth.ActivitySink.
type Collector struct {
	registry *prometheus.Registry

	// EventsTotal counts activity events by event type.
	EventsTotal *prometheus.CounterVec

	// RequestsTotal counts HTTP responses by method, route and status class.
	RequestsTotal *prometheus.CounterVec

	// RateLimitedTotal counts requests rejected by the limiter.
	RateLimitedTotal prometheus.Counter
}

// New creates a Collector with its own registry, including Go runtime and
// process collectors
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		EventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shop_auth_events_total",
				Help: "Total auth activity events by type.",
			},
			[]string{"event"},
		),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shop_http_requests_total",
				Help: "Total HTTP responses by method, route and status class.",
			},
			[]string{"method", "route", "status"},
		),
		RateLimitedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "shop_auth_rate_limited_total",
				Help: "Total requests rejected by the login rate limiter.",
			},
		),
	}

	c.registry.MustRegister(
		c.EventsTotal,
		c.RequestsTotal,
		c.RateLimitedTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

// Registry returns the collector's registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Record implements auth.ActivitySink.
func (c *Collector) Record(_ context.Context, event auth.ActivityEvent) error {
	c.EventsTotal.WithLabelValues(string(event.EventType)).Inc()
	return nil
}

var _ auth.ActivitySink = (*Collector)(nil)

// Middleware counts every response. Routes are labelled by their pattern
// so ids do not blow up cardinality.
func (c *Collector) Middleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()

		status := ctx.Response().StatusCode()
		if err != nil {
			// the app error handler has not written the response yet
			status = auth.StatusCode(err)
		}
		if status == http.StatusTooManyRequests {
			c.RateLimitedTotal.Inc()
		}

		route := ctx.Route().Path
		if route == "" {
			route = "unmatched"
		}

		c.RequestsTotal.WithLabelValues(ctx.Method(), route, statusClass(status)).Inc()
		return err
	}
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
