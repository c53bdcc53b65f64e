package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type contextKey string

const sessionKey contextKey = "session"

// Staff roles known to the API.
const (
	RoleAdmin        = "admin"
	RoleDoctor       = "doctor"
	RoleNurse        = "nurse"
	RolePharmacist   = "pharmacist"
	RoleReceptionist = "receptionist"
)

// Roles lists every valid role.
var Roles = []string{RoleAdmin, RoleDoctor, RoleNurse, RolePharmacist, RoleReceptionist}

// Session is the authenticated caller of a request. It is created at login
// and stays valid until it expires or is revoked by logout.
type Session struct {
	ID        string    `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is past its expiry at the given time.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// HasRole reports whether the session role matches role, ignoring case.
func (s *Session) HasRole(role string) bool {
	return s != nil && s.Role != "" && NormalizeRole(s.Role) == NormalizeRole(role)
}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromContext returns the session of the request, or nil when the
// caller is anonymous.
func SessionFromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey).(*Session)
	return s
}

// UserIDFromContext returns the caller's user id, or uuid.Nil.
func UserIDFromContext(ctx context.Context) uuid.UUID {
	if s := SessionFromContext(ctx); s != nil {
		return s.UserID
	}
	return uuid.Nil
}

// RoleFromContext returns the normalized caller role, or "".
func RoleFromContext(ctx context.Context) string {
	if s := SessionFromContext(ctx); s != nil {
		return NormalizeRole(s.Role)
	}
	return ""
}
