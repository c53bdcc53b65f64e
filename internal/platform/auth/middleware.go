package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// DevUserID is the user id of the synthetic session used in development mode.
var DevUserID = uuid.MustParse("00000000-0000-0000-0000-00000000d0d0")

// BearerToken extracts the token of an "Authorization: Bearer" header.
// ok is false when the header is present but malformed.
func BearerToken(header string) (token string, ok bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// Authenticate resolves the bearer token into a session. Requests without
// an Authorization header continue anonymously and are left to RequireRole.
func Authenticate(issuer *TokenIssuer, store RevocationStore) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if header == "" {
				return next(c)
			}

			token, ok := BearerToken(header)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			s, err := issuer.Parse(token)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
			}

			ctx := c.Request().Context()
			if store != nil {
				revoked, err := store.IsRevoked(ctx, s.ID)
				if err != nil {
					return echo.NewHTTPError(http.StatusInternalServerError, "session check failed")
				}
				if revoked {
					return echo.NewHTTPError(http.StatusUnauthorized, "session has been closed")
				}
			}

			c.SetRequest(c.Request().WithContext(WithSession(ctx, s)))
			return next(c)
		}
	}
}

// DevAuthMiddleware gives requests without a token an admin session.
// Requests that carry a token are still authenticated normally.
func DevAuthMiddleware(issuer *TokenIssuer, store RevocationStore) echo.MiddlewareFunc {
	authenticate := Authenticate(issuer, store)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		withToken := authenticate(next)
		return func(c echo.Context) error {
			if c.Request().Header.Get("Authorization") != "" {
				return withToken(c)
			}
			now := time.Now().UTC()
			s := &Session{
				ID:        "dev-session",
				UserID:    DevUserID,
				Username:  "dev",
				Role:      RoleAdmin,
				IssuedAt:  now,
				ExpiresAt: now.Add(time.Hour),
			}
			c.SetRequest(c.Request().WithContext(WithSession(c.Request().Context(), s)))
			return next(c)
		}
	}
}
