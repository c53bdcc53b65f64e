package client

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Page is one page of a list endpoint.
type Page[T any] struct {
	Rows  []T
	Count int
	Page  int
	Limit int
}

// Collections are the named list keys older endpoints answer with.
var Collections = []string{"patients", "prescriptions", "medicaments", "rendez_vous", "soins", "consultations", "examens", "users"}

// DecodePage reads a list response. Shapes are tried in order: a named
// collection ({"patients": [...], "total": n}), the {rows, count} envelope,
// then a bare array. Anything else yields an empty page. collection may be
// empty, in which case every key of Collections is tried.
func DecodePage[T any](body []byte, collection string) (*Page[T], error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return &Page[T]{Rows: []T{}}, nil
	}

	if body[0] == '[' {
		var rows []T
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("decode list: %w", err)
		}
		return newPage(rows, len(rows), 0, 0), nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, fmt.Errorf("decode page: %w", err)
	}

	keys := Collections
	if collection != "" {
		keys = []string{collection}
	}
	for _, k := range keys {
		raw, ok := obj[k]
		if !ok || !isArray(raw) {
			continue
		}
		var rows []T
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, fmt.Errorf("decode %s: %w", k, err)
		}
		return newPage(rows, intField(obj, "total", len(rows)), intField(obj, "page", 0), intField(obj, "limit", 0)), nil
	}

	if raw, ok := obj["rows"]; ok && isArray(raw) {
		var rows []T
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, fmt.Errorf("decode rows: %w", err)
		}
		return newPage(rows, intField(obj, "count", len(rows)), intField(obj, "page", 0), intField(obj, "limit", 0)), nil
	}

	return &Page[T]{Rows: []T{}}, nil
}

func newPage[T any](rows []T, count, page, limit int) *Page[T] {
	if rows == nil {
		rows = []T{}
	}
	return &Page[T]{Rows: rows, Count: count, Page: page, Limit: limit}
}

func isArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}

func intField(obj map[string]json.RawMessage, key string, fallback int) int {
	raw, ok := obj[key]
	if !ok {
		return fallback
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return fallback
	}
	return n
}
