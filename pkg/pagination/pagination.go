package pagination

import (
	"math"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
	// MaxPage keeps Offset from overflowing.
	MaxPage = math.MaxInt / MaxLimit
)

// Params holds the page, page size and free-text search of a list request.
type Params struct {
	Page   int
	Limit  int
	Search string
}

// FromContext extracts pagination parameters from the echo context. Invalid
// or out-of-range values are clamped, so the effective page and limit may
// differ from what the client asked for.
func FromContext(c echo.Context) Params {
	return Normalize(atoi(c.QueryParam("page")), atoi(c.QueryParam("limit")), c.QueryParam("search"))
}

// Normalize clamps page and limit to their allowed ranges.
func Normalize(page, limit int, search string) Params {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Params{Page: page, Limit: limit, Search: strings.TrimSpace(search)}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}

// Offset returns the number of rows to skip for the current page.
func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Response is the single paginated envelope returned by every list endpoint.
type Response[T any] struct {
	Rows       []T  `json:"rows"`
	Count      int  `json:"count"`
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	TotalPages int  `json:"total_pages"`
	HasMore    bool `json:"has_more"`
}

func NewResponse[T any](rows []T, count int, p Params) *Response[T] {
	if rows == nil {
		rows = []T{}
	}
	return &Response[T]{
		Rows:       rows,
		Count:      count,
		Page:       p.Page,
		Limit:      p.Limit,
		TotalPages: p.TotalPages(count),
		HasMore:    p.Offset()+len(rows) < count,
	}
}

// TotalPages returns the number of pages needed for count rows.
func (p Params) TotalPages(count int) int {
	if count <= 0 {
		return 0
	}
	return (count + p.Limit - 1) / p.Limit
}
