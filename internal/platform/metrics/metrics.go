package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a private registry so tests and multiple servers in one
// process never collide on the default registerer.
type Collector struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlightGauge   prometheus.Gauge

	BookingsTotal    *prometheus.CounterVec
	SlotQueriesTotal *prometheus.CounterVec
	FreeSlots        prometheus.Histogram

	CalendarBreakerState *prometheus.GaugeVec
}

func NewCollector(serviceName string) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Collector{
		registry: reg,

		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, route, and status code.",
		}, []string{"method", "path", "status"}),

		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "path", "status"}),

		InFlightGauge: f.NewGauge(prometheus.GaugeOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),

		BookingsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "booking",
			Name:      "operations_total",
			Help:      "Booking writes by operation (book, reschedule, cancel, status) and outcome.",
		}, []string{"op", "outcome"}),

		SlotQueriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "booking",
			Name:      "slot_queries_total",
			Help:      "Available-slot queries by empty-result reason; reason is empty when slots were returned.",
		}, []string{"reason"}),

		FreeSlots: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: serviceName,
			Subsystem: "booking",
			Name:      "free_slots",
			Help:      "Number of free slots returned per availability query.",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 32, 48},
		}),

		CalendarBreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: serviceName,
			Subsystem: "calendar",
			Name:      "breaker_state",
			Help:      "Doctor-service circuit breaker state: 0 closed, 1 half-open, 2 open.",
		}, []string{"name"}),
	}
}

// ObserveRequest records one finished HTTP request. path must be the route
// template, not the raw URL.
func (c *Collector) ObserveRequest(method, path string, status int, elapsed time.Duration) {
	code := strconv.Itoa(status)
	c.RequestsTotal.WithLabelValues(method, path, code).Inc()
	c.RequestDuration.WithLabelValues(method, path, code).Observe(elapsed.Seconds())
}

func (c *Collector) ObserveBooking(op, outcome string) {
	c.BookingsTotal.WithLabelValues(op, outcome).Inc()
}

func (c *Collector) ObserveSlotQuery(reason string, free int) {
	c.SlotQueriesTotal.WithLabelValues(reason).Inc()
	c.FreeSlots.Observe(float64(free))
}

func (c *Collector) ObserveBreakerState(name string, state int) {
	c.CalendarBreakerState.WithLabelValues(name).Set(float64(state))
}

// RegisterPool exposes pgxpool statistics, read at scrape time.
func (c *Collector) RegisterPool(serviceName string, pool *pgxpool.Pool) {
	f := promauto.With(c.registry)
	gauge := func(name, help string, read func(*pgxpool.Stat) float64) {
		f.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: serviceName,
			Subsystem: "db",
			Name:      name,
			Help:      help,
		}, func() float64 { return read(pool.Stat()) })
	}
	gauge("total_connections", "Connections currently open in the pool.",
		func(s *pgxpool.Stat) float64 { return float64(s.TotalConns()) })
	gauge("acquired_connections", "Connections currently checked out.",
		func(s *pgxpool.Stat) float64 { return float64(s.AcquiredConns()) })
	gauge("idle_connections", "Idle connections in the pool.",
		func(s *pgxpool.Stat) float64 { return float64(s.IdleConns()) })
	gauge("max_connections", "Configured pool size.",
		func(s *pgxpool.Stat) float64 { return float64(s.MaxConns()) })
}

func (c *Collector) Registry() *prometheus.Registry { return c.registry }

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
