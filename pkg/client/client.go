// Package client is a Go client for the clinic API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const apiPrefix = "/api/v1"

// APIError is a non-2xx answer of the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("clinic api: %d %s", e.Status, e.Message)
}

// ShortageError is the 409 answer of a delivery when stock is insufficient.
// Prescription is set so the caller can print a paper prescription instead.
type ShortageError struct {
	Message      string
	Prescription *Prescription
}

func (e *ShortageError) Error() string {
	return "stock shortage: " + e.Message
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Login opens a session and keeps its token for the following calls.
func (c *Client) Login(ctx context.Context, username, password string) (*Session, error) {
	var out struct {
		Token   string   `json:"token"`
		Session *Session `json:"session"`
	}
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, body, &out); err != nil {
		return nil, err
	}
	c.setToken(out.Token)
	return out.Session, nil
}

// Logout closes the session and forgets the token.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, nil)
	c.setToken("")
	return err
}

func (c *Client) ListPatients(ctx context.Context, q Query) (*Page[Patient], error) {
	return listPage[Patient](ctx, c, "/patients", "patients", q, nil)
}

func (c *Client) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	var p Patient
	if err := c.do(ctx, http.MethodGet, "/patients/"+id.String(), nil, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) ListMedications(ctx context.Context, q Query) (*Page[Medication], error) {
	return listPage[Medication](ctx, c, "/medicaments", "medicaments", q, nil)
}

// ListPrescriptions lists prescriptions, optionally filtered by status.
func (c *Client) ListPrescriptions(ctx context.Context, q Query, status string) (*Page[Prescription], error) {
	var extra url.Values
	if status != "" {
		extra = url.Values{"statut": {status}}
	}
	return listPage[Prescription](ctx, c, "/prescriptions", "prescriptions", q, extra)
}

func (c *Client) GetPrescription(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	var p Prescription
	if err := c.do(ctx, http.MethodGet, "/prescriptions/"+id.String(), nil, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Deliver hands out quantity units for a prescription. A stock shortage is
// returned as *ShortageError.
func (c *Client) Deliver(ctx context.Context, id uuid.UUID, quantity int, notes string) (*Delivery, error) {
	body := struct {
		Quantity int     `json:"quantity"`
		Notes    *string `json:"notes,omitempty"`
	}{Quantity: quantity}
	if notes != "" {
		body.Notes = &notes
	}
	var out Delivery
	if err := c.do(ctx, http.MethodPost, "/prescriptions/"+id.String()+"/deliver", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func listPage[T any](ctx context.Context, c *Client, path, collection string, q Query, extra url.Values) (*Page[T], error) {
	q = q.Normalize()
	params := url.Values{}
	for k, v := range extra {
		params[k] = v
	}
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("limit", strconv.Itoa(q.Limit))
	if q.Search != "" {
		params.Set("search", q.Search)
	}

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, path, params, nil, &raw); err != nil {
		return nil, err
	}
	page, err := DecodePage[T](raw, collection)
	if err != nil {
		return nil, err
	}
	if page.Page == 0 {
		page.Page = q.Page
	}
	if page.Limit == 0 {
		page.Limit = q.Limit
	}
	return page, nil
}

// do sends one request. Errors are returned as they come: the client never
// retries.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, in, out any) error {
	u := c.baseURL + apiPrefix + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(status int, data []byte) error {
	var body struct {
		Message      string        `json:"message"`
		Rupture      bool          `json:"rupture"`
		Prescription *Prescription `json:"prescription"`
	}
	_ = json.Unmarshal(data, &body)

	if status == http.StatusConflict && body.Rupture {
		return &ShortageError{Message: body.Message, Prescription: body.Prescription}
	}
	msg := body.Message
	if msg == "" {
		msg = strings.TrimSpace(string(data))
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{Status: status, Message: msg}
}
