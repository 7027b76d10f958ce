package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "store",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "store",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "store",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)

	// OrdersPlaced counts checkouts by outcome (success, empty_cart, out_of_stock, error).
	OrdersPlaced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "store",
			Subsystem: "orders",
			Name:      "placed_total",
			Help:      "Checkouts attempted, by outcome.",
		},
		[]string{"outcome"},
	)

	// OrderTransitions counts admin status and payment changes.
	OrderTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "store",
			Subsystem: "orders",
			Name:      "transitions_total",
			Help:      "Order status and payment status changes, by kind, target and outcome.",
		},
		[]string{"kind", "target", "outcome"},
	)

	// CartMutations counts cart changes by operation and owner kind.
	CartMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "store",
			Subsystem: "cart",
			Name:      "mutations_total",
			Help:      "Cart changes, by operation and owner kind.",
		},
		[]string{"op", "owner"},
	)

	// AdminGateDenials counts requests turned away from the admin area.
	AdminGateDenials = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "store",
			Subsystem: "admin",
			Name:      "gate_denials_total",
			Help:      "Requests denied by the admin gate, by reason.",
		},
		[]string{"reason"},
	)

	// EventPublishFailures counts order events that could not be delivered.
	EventPublishFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "store",
			Subsystem: "events",
			Name:      "publish_failures_total",
			Help:      "Order events that failed to publish.",
		},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		httpInFlight,
		httpRequests,
		httpDuration,
		OrdersPlaced,
		OrderTransitions,
		CartMutations,
		AdminGateDenials,
		EventPublishFailures,
	)
}

// Handler exposes the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records request count and latency per matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
