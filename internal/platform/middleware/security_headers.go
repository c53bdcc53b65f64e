package middleware

import (
	"github.com/labstack/echo/v4"
)

var apiHeaders = map[string]string{
	"X-Content-Type-Options":  "nosniff",
	"X-Frame-Options":         "DENY",
	"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
	"Referrer-Policy":         "no-referrer",
	// Patient data must not land in shared caches.
	"Cache-Control": "no-store",
}

// SecurityHeaders sets the response headers of a JSON API. HSTS is only sent
// when the server runs behind TLS.
func SecurityHeaders(hsts bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			for k, v := range apiHeaders {
				h.Set(k, v)
			}
			if hsts {
				h.Set("Strict-Transport-Security", "max-age=31536000")
			}
			return next(c)
		}
	}
}
