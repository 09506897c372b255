package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mediconnect/booking/internal/platform/metrics"
)

// Metrics records request counts and latency by route template. Requests
// that matched no route are grouped under "unmatched".
func Metrics(col *metrics.Collector) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			col.InFlightGauge.Inc()
			defer col.InFlightGauge.Dec()

			start := time.Now()
			err := next(c)

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			col.ObserveRequest(c.Request().Method, route, responseStatus(c, err), time.Since(start))
			return err
		}
	}
}
