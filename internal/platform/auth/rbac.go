package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"golang.org/x/text/cases"
)

// NormalizeRole case-folds a role name so "Doctor" and "DOCTOR" compare equal.
func NormalizeRole(role string) string {
	return cases.Fold().String(strings.TrimSpace(role))
}

// ValidRole reports whether role is one of the known staff roles.
func ValidRole(role string) bool {
	r := NormalizeRole(role)
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// Allowed reports whether a session may pass a guard listing roles.
// An empty list admits nobody and no role bypasses the list.
func Allowed(s *Session, roles ...string) bool {
	if s == nil || s.Role == "" {
		return false
	}
	for _, r := range roles {
		if s.HasRole(r) {
			return true
		}
	}
	return false
}

// RequireRole returns middleware that lets a request through only when the
// session role is in roles. Anonymous callers get 401, others 403.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			s := SessionFromContext(c.Request().Context())
			if s == nil || s.Role == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			if !Allowed(s, roles...) {
				return echo.NewHTTPError(http.StatusForbidden, "access denied for role "+s.Role)
			}
			return next(c)
		}
	}
}

// RequireSession rejects anonymous requests but accepts any role.
func RequireSession() echo.MiddlewareFunc {
	return RequireRole(Roles...)
}
