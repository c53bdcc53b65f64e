package medication

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/query"
)

type mockRepo struct {
	store map[uuid.UUID]*Medication
}

func newMockRepo() *mockRepo {
	return &mockRepo{store: make(map[uuid.UUID]*Medication)}
}

func (m *mockRepo) Create(_ context.Context, med *Medication) error {
	med.ID = uuid.New()
	med.CreatedAt = time.Now()
	med.UpdatedAt = med.CreatedAt
	med.refreshLowStock()
	cp := *med
	m.store[med.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Medication, error) {
	med, ok := m.store[id]
	if !ok {
		return nil, apperr.NotFound("medication")
	}
	cp := *med
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, med *Medication) error {
	existing, ok := m.store[med.ID]
	if !ok {
		return apperr.NotFound("medication")
	}
	med.AvailableQuantity = existing.AvailableQuantity
	med.refreshLowStock()
	cp := *med
	m.store[med.ID] = &cp
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.store[id]; !ok {
		return apperr.NotFound("medication")
	}
	delete(m.store, id)
	return nil
}

func (m *mockRepo) List(_ context.Context, f ListFilter, limit, offset int) ([]*Medication, int, error) {
	var matched []*Medication
	term := query.Fold(f.Search)
	for _, med := range m.store {
		if term != "" && !strings.Contains(query.SearchText(med.CommercialName, med.DCIName, med.Form), term) {
			continue
		}
		if f.LowStockOnly && !med.IsLowStock() {
			continue
		}
		cp := *med
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CommercialName < matched[j].CommercialName })
	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (m *mockRepo) Restock(_ context.Context, id uuid.UUID, qty int) (*Medication, error) {
	med, ok := m.store[id]
	if !ok {
		return nil, apperr.NotFound("medication")
	}
	med.AvailableQuantity += qty
	med.refreshLowStock()
	cp := *med
	return &cp, nil
}

func (m *mockRepo) Decrement(_ context.Context, id uuid.UUID, qty int) (*Medication, error) {
	med, ok := m.store[id]
	if !ok {
		return nil, apperr.NotFound("medication")
	}
	if med.AvailableQuantity < qty {
		return nil, ErrStockShortage
	}
	med.AvailableQuantity -= qty
	med.refreshLowStock()
	cp := *med
	return &cp, nil
}

type gaugeRecorder struct {
	calls []int
}

func (g *gaugeRecorder) SetLowStock(n int) { g.calls = append(g.calls, n) }

func newTestService() (*Service, *mockRepo, *gaugeRecorder) {
	repo := newMockRepo()
	g := &gaugeRecorder{}
	return NewService(repo, g, zerolog.Nop()), repo, g
}

func newMedication(name string, qty, threshold int) *Medication {
	return &Medication{
		CommercialName:    name,
		DCIName:           strings.ToLower(name) + "-dci",
		Form:              "comprime",
		AvailableQuantity: qty,
		AlertThreshold:    threshold,
	}
}

func TestCreateMedication(t *testing.T) {
	svc, _, _ := newTestService()
	unit := "  boite "
	m := newMedication("Doliprane", 40, 10)
	m.QuantityUnit = &unit

	if err := svc.CreateMedication(context.Background(), m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.ID == uuid.Nil {
		t.Error("expected ID to be assigned")
	}
	if m.QuantityUnit == nil || *m.QuantityUnit != "boite" {
		t.Errorf("expected trimmed unit, got %v", m.QuantityUnit)
	}
	if m.LowStock {
		t.Error("40 above threshold 10 should not be low stock")
	}
}

func TestCreateMedication_Validation(t *testing.T) {
	svc, _, _ := newTestService()
	tests := []struct {
		name string
		m    *Medication
	}{
		{"missing commercial name", &Medication{DCIName: "x", Form: "sirop"}},
		{"missing dci", &Medication{CommercialName: "x", Form: "sirop"}},
		{"missing form", &Medication{CommercialName: "x", DCIName: "y"}},
		{"negative stock", newMedication("Neg", -1, 0)},
		{"negative threshold", newMedication("Neg", 1, -5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.CreateMedication(context.Background(), tt.m)
			if !errors.Is(err, apperr.ErrInvalid) {
				t.Errorf("expected invalid, got %v", err)
			}
		})
	}
}

func TestUpdateMedication_KeepsStock(t *testing.T) {
	svc, _, _ := newTestService()
	m := newMedication("Amoxil", 12, 5)
	_ = svc.CreateMedication(context.Background(), m)

	upd := newMedication("Amoxil Gé", 999, 20)
	upd.ID = m.ID
	if err := svc.UpdateMedication(context.Background(), upd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := svc.GetMedication(context.Background(), m.ID)
	if got.AvailableQuantity != 12 {
		t.Errorf("update must not change stock, got %d", got.AvailableQuantity)
	}
	if got.AlertThreshold != 20 || !got.LowStock {
		t.Errorf("expected new threshold to flag low stock, got %+v", got)
	}
}

func TestUpdateMedication_NotFound(t *testing.T) {
	svc, _, _ := newTestService()
	m := newMedication("Ghost", 1, 0)
	m.ID = uuid.New()
	if err := svc.UpdateMedication(context.Background(), m); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestRestock(t *testing.T) {
	svc, _, _ := newTestService()
	m := newMedication("Ventoline", 2, 5)
	_ = svc.CreateMedication(context.Background(), m)

	got, err := svc.Restock(context.Background(), m.ID, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.AvailableQuantity != 12 || got.LowStock {
		t.Errorf("expected 12 in stock and not low, got %+v", got)
	}
}

func TestRestock_RejectsNonPositive(t *testing.T) {
	svc, _, _ := newTestService()
	m := newMedication("Ventoline", 2, 5)
	_ = svc.CreateMedication(context.Background(), m)

	for _, qty := range []int{0, -3} {
		if _, err := svc.Restock(context.Background(), m.ID, qty); !errors.Is(err, apperr.ErrInvalid) {
			t.Errorf("Restock(%d): expected invalid, got %v", qty, err)
		}
	}
	got, _ := svc.GetMedication(context.Background(), m.ID)
	if got.AvailableQuantity != 2 {
		t.Errorf("stock changed to %d", got.AvailableQuantity)
	}
}

func TestScanLowStock(t *testing.T) {
	svc, _, gauge := newTestService()
	_ = svc.CreateMedication(context.Background(), newMedication("A", 0, 5))
	_ = svc.CreateMedication(context.Background(), newMedication("B", 5, 5))
	_ = svc.CreateMedication(context.Background(), newMedication("C", 50, 5))

	if err := svc.ScanLowStock(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(gauge.calls) != 1 || gauge.calls[0] != 2 {
		t.Errorf("expected one report of 2 low-stock medications, got %v", gauge.calls)
	}
}

func TestScanLowStock_NilReporter(t *testing.T) {
	svc := NewService(newMockRepo(), nil, zerolog.Nop())
	if err := svc.ScanLowStock(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestIsLowStock_Boundary(t *testing.T) {
	m := &Medication{AvailableQuantity: 10, AlertThreshold: 10}
	if !m.IsLowStock() {
		t.Error("stock equal to threshold is low stock")
	}
	m.AvailableQuantity = 11
	if m.IsLowStock() {
		t.Error("stock above threshold is not low stock")
	}
}
