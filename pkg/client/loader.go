package client

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrSuperseded is returned by a load whose result was discarded because a
// newer load started before it finished.
var ErrSuperseded = errors.New("load superseded by a newer request")

const defaultLimit = 10

// Query selects a page of a list endpoint.
type Query struct {
	Page   int
	Limit  int
	Search string
}

// Normalize applies the server defaults: page 1, limit 10.
func (q Query) Normalize() Query {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	q.Search = strings.TrimSpace(q.Search)
	return q
}

type FetchFunc[T any] func(ctx context.Context, q Query) (*Page[T], error)

// Loader keeps the current page of a list view. Only the most recent load
// may update it: starting a load cancels the one in flight, and a result
// that arrives after a newer load started is dropped.
type Loader[T any] struct {
	fetch FetchFunc[T]

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	query  Query
	shown  Query
	loaded bool
	page   *Page[T]
	err    error
}

func NewLoader[T any](fetch FetchFunc[T]) *Loader[T] {
	return &Loader[T]{fetch: fetch}
}

// Set loads q unless it is the query already loaded.
func (l *Loader[T]) Set(ctx context.Context, q Query) (*Page[T], error) {
	q = q.Normalize()
	l.mu.Lock()
	if l.loaded && l.cancel == nil && l.shown == q && l.err == nil {
		page := l.page
		l.mu.Unlock()
		return page, nil
	}
	l.mu.Unlock()
	return l.Load(ctx, q)
}

// Load fetches q unconditionally.
func (l *Loader[T]) Load(ctx context.Context, q Query) (*Page[T], error) {
	q = q.Normalize()

	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
	}
	l.gen++
	gen := l.gen
	fetchCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.query = q
	l.mu.Unlock()

	page, err := l.fetch(fetchCtx, q)

	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen {
		cancel()
		return nil, ErrSuperseded
	}
	cancel()
	l.cancel = nil
	if err != nil {
		// The displayed page and its query stay as they were.
		l.err = err
		if l.loaded {
			l.query = l.shown
		}
		return nil, err
	}
	l.loaded = true
	l.shown = q
	l.err = nil
	l.page = page
	return page, nil
}

// SetPage, SetLimit and SetSearch change one field of the current query and
// reload. A new search goes back to the first page.
func (l *Loader[T]) SetPage(ctx context.Context, page int) (*Page[T], error) {
	q := l.Query()
	q.Page = page
	return l.Set(ctx, q)
}

func (l *Loader[T]) SetLimit(ctx context.Context, limit int) (*Page[T], error) {
	q := l.Query()
	q.Limit = limit
	q.Page = 1
	return l.Set(ctx, q)
}

func (l *Loader[T]) SetSearch(ctx context.Context, search string) (*Page[T], error) {
	q := l.Query()
	q.Search = search
	q.Page = 1
	return l.Set(ctx, q)
}

// Query returns the query of the latest load.
func (l *Loader[T]) Query() Query {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.query.Normalize()
}

// Current returns the last successfully loaded page and the error of the
// latest completed load, if it failed.
func (l *Loader[T]) Current() (*Page[T], error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.page, l.err
}
