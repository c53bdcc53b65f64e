package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func newTestServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL)
}

func TestClient_LoginStoresToken(t *testing.T) {
	var gotAuth string
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/auth/login":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["username"] != "pharma" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"message":"invalid credentials"}`))
				return
			}
			_, _ = w.Write([]byte(`{"token":"tok-1","session":{"id":"s1","role":"pharmacist","username":"pharma"}}`))
		case "/api/v1/patients":
			gotAuth = r.Header.Get("Authorization")
			_, _ = w.Write([]byte(`{"rows":[],"count":0,"page":1,"limit":10}`))
		}
	})

	s, err := c.Login(context.Background(), "pharma", "secret-pass")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Role != "pharmacist" || c.Token() != "tok-1" {
		t.Errorf("unexpected session %+v token %q", s, c.Token())
	}
	if _, err := c.ListPatients(context.Background(), Query{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "Bearer tok-1" {
		t.Errorf("expected bearer token, got %q", gotAuth)
	}

	_, err = c.Login(context.Background(), "nobody", "x")
	if !IsStatus(err, http.StatusUnauthorized) {
		t.Errorf("expected 401 APIError, got %v", err)
	}
}

func TestClient_ListSendsQuery(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("page") != "2" || q.Get("limit") != "5" || q.Get("search") != "ibu" || q.Get("statut") != "en_attente" {
			t.Errorf("unexpected query %v", q)
		}
		_, _ = w.Write([]byte(`{"prescriptions":[{"id":"` + uuid.NewString() + `","statut":"en_attente","quantite":2}],"total":6}`))
	})

	page, err := c.ListPrescriptions(context.Background(), Query{Page: 2, Limit: 5, Search: "ibu"}, "en_attente")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Rows) != 1 || page.Count != 6 || page.Page != 2 || page.Limit != 5 {
		t.Errorf("unexpected page %+v", page)
	}
}

func TestClient_DeliverShortage(t *testing.T) {
	id := uuid.New()
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/prescriptions/"+id.String()+"/deliver" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["quantity"] != float64(5) {
			t.Errorf("unexpected body %v", body)
		}
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"insufficient stock","rupture":true,"prescription":{"id":"` + id.String() + `","statut":"en_attente","posologie":"1 cp x 3/j"}}`))
	})

	_, err := c.Deliver(context.Background(), id, 5, "")
	var shortage *ShortageError
	if !errors.As(err, &shortage) {
		t.Fatalf("expected ShortageError, got %v", err)
	}
	if shortage.Prescription == nil || shortage.Prescription.Dosage != "1 cp x 3/j" {
		t.Errorf("shortage must carry the prescription, got %+v", shortage.Prescription)
	}
}

func TestClient_DeliverSuccessAndServerError(t *testing.T) {
	calls := 0
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			_, _ = w.Write([]byte(`{"message":"delivered","prescription":{"statut":"delivree"},"medicament":{"quantite_disponible":0}}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"internal server error"}`))
	})

	d, err := c.Deliver(context.Background(), uuid.New(), 10, "boite entiere")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Prescription.Status != "delivree" || d.Medication.AvailableQuantity != 0 {
		t.Errorf("unexpected delivery %+v", d)
	}

	_, err = c.Deliver(context.Background(), uuid.New(), 1, "")
	if !IsStatus(err, http.StatusInternalServerError) {
		t.Errorf("expected 500 APIError, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected no retry, got %d calls", calls)
	}
}

func TestClient_LoaderOverList(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"` + uuid.NewString() + `","nom":"` + r.URL.Query().Get("search") + `"}]`))
	})

	l := NewLoader(c.ListPatients)
	page, err := l.SetSearch(context.Background(), "Diallo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Rows) != 1 || page.Rows[0].LastName != "Diallo" || page.Page != 1 || page.Limit != 10 {
		t.Errorf("unexpected page %+v", page)
	}
}
