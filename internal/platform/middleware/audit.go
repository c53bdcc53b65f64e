package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/auth"
)

const apiPrefix = "/api/v1/"

// AuditEntry records who changed or opened what, and with which outcome.
type AuditEntry struct {
	UserID     uuid.UUID
	Username   string
	Role       string
	Resource   string
	ResourceID string
	PatientID  string
	Action     string // create, update, delete, read
	Method     string
	Path       string
	IPAddress  string
	RequestID  string
	StatusCode int
	Timestamp  time.Time
}

// AuditRecorder persists audit entries somewhere other than the log.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// Audit logs every mutating /api/v1 request and every read of a patient's
// record, after the handler ran so the final status is known.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path
			if !isAuditable(req.Method, path) {
				return next(c)
			}

			err := next(c)

			entry := AuditEntry{
				Timestamp:  time.Now().UTC(),
				Method:     req.Method,
				Path:       path,
				IPAddress:  c.RealIP(),
				Action:     methodToAction(req.Method),
				StatusCode: c.Response().Status,
			}
			if he, ok := err.(*echo.HTTPError); ok {
				entry.StatusCode = he.Code
			}
			if s := auth.SessionFromContext(req.Context()); s != nil {
				entry.UserID = s.UserID
				entry.Username = s.Username
				entry.Role = s.Role
			}
			entry.RequestID, _ = c.Get("request_id").(string)
			entry.Resource, entry.ResourceID = splitResource(path)
			if entry.Resource == "patients" {
				entry.PatientID = entry.ResourceID
			} else if p := c.QueryParam("patient_id"); p != "" {
				entry.PatientID = p
			}

			for _, r := range recorders {
				if r == nil {
					continue
				}
				if recErr := r.RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).Str("request_id", entry.RequestID).Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "audit").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID.String()).
				Str("username", entry.Username).
				Str("role", entry.Role).
				Str("resource", entry.Resource).
				Str("resource_id", entry.ResourceID).
				Str("patient_id", entry.PatientID).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("audit")

			return err
		}
	}
}

func isAuditable(method, path string) bool {
	if !strings.HasPrefix(path, apiPrefix) {
		return false
	}
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	case http.MethodGet:
		return strings.HasPrefix(path, apiPrefix+"patients/")
	}
	return false
}

func methodToAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// splitResource returns the collection and, when present, the id of an
// /api/v1 path: /api/v1/prescriptions/<id>/deliver -> prescriptions, <id>.
func splitResource(path string) (resource, id string) {
	segments := strings.Split(strings.Trim(strings.TrimPrefix(path, apiPrefix), "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return "unknown", ""
	}
	resource = segments[0]
	if len(segments) > 1 {
		if _, err := uuid.Parse(segments[1]); err == nil {
			id = segments[1]
		}
	}
	return resource, id
}
