// Package apperr classifies domain errors so handlers can translate them
// into HTTP statuses without knowing where they came from.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/labstack/echo/v4"
)

// Error kinds. Match them with errors.Is.
var (
	ErrInvalid      = errors.New("invalid")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// Error is a classified error with a message safe to show to clients.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

func New(kind error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Invalidf(format string, args ...interface{}) error {
	return &Error{Kind: ErrInvalid, Msg: fmt.Sprintf(format, args...)}
}

func NotFound(what string) error {
	return &Error{Kind: ErrNotFound, Msg: what + " not found"}
}

func Conflictf(format string, args ...interface{}) error {
	return &Error{Kind: ErrConflict, Msg: fmt.Sprintf(format, args...)}
}

// FromDB maps pgx errors: no rows becomes NotFound(what), unique
// violations become conflicts and foreign key or check violations become
// invalid input. Other errors are wrapped unchanged.
func FromDB(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return NotFound(what)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return Conflictf("%s already exists", what)
		case "23503":
			return Invalidf("%s references a missing record", what)
		case "23514":
			return Invalidf("%s violates constraint %s", what, pgErr.ConstraintName)
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}

// Status returns the HTTP status for err.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// HTTP converts err to an echo error. Unclassified errors keep their cause
// for the logger but only expose a generic message.
func HTTP(err error) error {
	if err == nil {
		return nil
	}
	status := Status(err)
	if status == http.StatusInternalServerError {
		return echo.NewHTTPError(status, "internal server error").SetInternal(err)
	}
	return echo.NewHTTPError(status, err.Error())
}
