package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/metrics"
)

// Metrics records request count, latency and concurrency. Requests are
// labelled by route pattern so ids do not explode cardinality.
func Metrics(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m.HTTPInFlight.Inc()
			defer m.HTTPInFlight.Dec()

			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method

			m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			m.HTTPDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
