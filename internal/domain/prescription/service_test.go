package prescription

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/clinic/clinic/internal/domain/medication"
	"github.com/clinic/clinic/internal/domain/patient"
	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/metrics"
	"github.com/clinic/clinic/internal/platform/query"
)

// mockStore holds prescriptions, consultations and stock. It implements
// both Repository and StockRepository.
type mockStore struct {
	mu            sync.Mutex
	prescriptions map[uuid.UUID]*Prescription
	meds          map[uuid.UUID]*medication.Medication
	consultations map[uuid.UUID]*ConsultationRef
}

func newMockStore() *mockStore {
	return &mockStore{
		prescriptions: make(map[uuid.UUID]*Prescription),
		meds:          make(map[uuid.UUID]*medication.Medication),
		consultations: make(map[uuid.UUID]*ConsultationRef),
	}
}

type snapshot struct {
	prescriptions map[uuid.UUID]Prescription
	stock         map[uuid.UUID]int
}

func (m *mockStore) snapshot() snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := snapshot{prescriptions: make(map[uuid.UUID]Prescription), stock: make(map[uuid.UUID]int)}
	for id, p := range m.prescriptions {
		s.prescriptions[id] = *p
	}
	for id, med := range m.meds {
		s.stock[id] = med.AvailableQuantity
	}
	return s
}

func (m *mockStore) restore(s snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prescriptions = make(map[uuid.UUID]*Prescription)
	for id, p := range s.prescriptions {
		cp := p
		m.prescriptions[id] = &cp
	}
	for id, qty := range s.stock {
		m.meds[id].AvailableQuantity = qty
	}
}

func (m *mockStore) addMedication(name string, stock int) *medication.Medication {
	m.mu.Lock()
	defer m.mu.Unlock()
	med := &medication.Medication{ID: uuid.New(), CommercialName: name, DCIName: name, Form: "comprime", AvailableQuantity: stock}
	m.meds[med.ID] = med
	return med
}

func (m *mockStore) addConsultation(lastName string) *ConsultationRef {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := &ConsultationRef{
		ID:       uuid.New(),
		Date:     time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		Motive:   "fievre",
		DoctorID: uuid.New(),
		Patient:  &patient.Summary{ID: uuid.New(), FileNumber: "P-2026-000001", LastName: lastName, FirstName: "Awa"},
	}
	m.consultations[c.ID] = c
	return c
}

func (m *mockStore) stockOf(id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.meds[id].AvailableQuantity
}

func (m *mockStore) statusOf(id uuid.UUID) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prescriptions[id].Status
}

func (m *mockStore) Create(_ context.Context, p *Prescription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.consultations[p.ConsultationID]; !ok {
		return apperr.Invalidf("prescription references a missing record")
	}
	if _, ok := m.meds[p.MedicationID]; !ok {
		return apperr.Invalidf("prescription references a missing record")
	}
	p.ID = uuid.New()
	p.Status = StatusPending
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	cp.Consultation, cp.Medication = nil, nil
	m.prescriptions[p.ID] = &cp
	return nil
}

func (m *mockStore) joined(p *Prescription) *Prescription {
	cp := *p
	if c, ok := m.consultations[p.ConsultationID]; ok {
		cons := *c
		cp.Consultation = &cons
	}
	if med, ok := m.meds[p.MedicationID]; ok {
		mc := *med
		mc.LowStock = mc.IsLowStock()
		cp.Medication = &mc
	}
	return &cp
}

func (m *mockStore) GetByID(_ context.Context, id uuid.UUID) (*Prescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prescriptions[id]
	if !ok {
		return nil, apperr.NotFound("prescription")
	}
	return m.joined(p), nil
}

func (m *mockStore) Update(_ context.Context, p *Prescription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.prescriptions[p.ID]
	if !ok {
		return apperr.NotFound("prescription")
	}
	if existing.Status != StatusPending {
		return ErrNotPending
	}
	existing.MedicationID = p.MedicationID
	existing.Dosage = p.Dosage
	existing.Duration = p.Duration
	existing.Quantity = p.Quantity
	existing.Instructions = p.Instructions
	existing.UpdatedAt = time.Now()
	return nil
}

func (m *mockStore) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prescriptions[id]
	if !ok {
		return apperr.NotFound("prescription")
	}
	if p.Status == StatusDelivered {
		return ErrDeliveredImmutable
	}
	delete(m.prescriptions, id)
	return nil
}

func (m *mockStore) List(_ context.Context, f ListFilter, limit, offset int) ([]*Prescription, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	term := query.Fold(f.Search)
	var matched []*Prescription
	for _, p := range m.prescriptions {
		j := m.joined(p)
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.PatientID != nil && (j.Consultation == nil || j.Consultation.Patient.ID != *f.PatientID) {
			continue
		}
		if f.ConsultationID != nil && p.ConsultationID != *f.ConsultationID {
			continue
		}
		if term != "" {
			text := query.SearchText(j.Consultation.Patient.LastName, j.Consultation.Patient.FirstName, j.Medication.CommercialName)
			if !strings.Contains(text, term) {
				continue
			}
		}
		matched = append(matched, j)
	}
	sort.Slice(matched, func(i, k int) bool { return matched[i].CreatedAt.After(matched[k].CreatedAt) })
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

func (m *mockStore) Cancel(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prescriptions[id]
	if !ok {
		return apperr.NotFound("prescription")
	}
	if p.Status == StatusDelivered {
		return ErrAlreadyDelivered
	}
	if p.Status != StatusPending {
		return ErrNotPending
	}
	p.Status = StatusCancelled
	return nil
}

func (m *mockStore) MarkDelivered(_ context.Context, id uuid.UUID, d Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prescriptions[id]
	if !ok {
		return apperr.NotFound("prescription")
	}
	if p.Status == StatusDelivered {
		return ErrAlreadyDelivered
	}
	if p.Status != StatusPending {
		return ErrNotPending
	}
	qty, at, by := d.Quantity, d.At, d.By
	p.Status = StatusDelivered
	p.DeliveredQuantity = &qty
	p.DeliveredAt = &at
	p.DeliveredBy = &by
	p.DeliveryNotes = d.Notes
	return nil
}

func (m *mockStore) Decrement(_ context.Context, id uuid.UUID, qty int) (*medication.Medication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	med, ok := m.meds[id]
	if !ok {
		return nil, apperr.NotFound("medication")
	}
	if med.AvailableQuantity < qty {
		return nil, medication.ErrStockShortage
	}
	med.AvailableQuantity -= qty
	cp := *med
	cp.LowStock = cp.IsLowStock()
	return &cp, nil
}

// mockTx serializes transactions and restores the store when fn fails.
type mockTx struct {
	mu        sync.Mutex
	store     *mockStore
	commits   int
	rollbacks int
}

func (t *mockTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	snap := t.store.snapshot()
	if err := fn(ctx); err != nil {
		t.store.restore(snap)
		t.rollbacks++
		return err
	}
	t.commits++
	return nil
}

type outcomeRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (o *outcomeRecorder) ObserveDelivery(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.counts == nil {
		o.counts = make(map[string]int)
	}
	o.counts[outcome]++
}

type fixture struct {
	svc      *Service
	store    *mockStore
	tx       *mockTx
	outcomes *outcomeRecorder
}

var fixedNow = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

func newFixture() *fixture {
	store := newMockStore()
	tx := &mockTx{store: store}
	outcomes := &outcomeRecorder{}
	svc := NewService(store, store, tx, outcomes, zerolog.Nop())
	svc.now = func() time.Time { return fixedNow }
	return &fixture{svc: svc, store: store, tx: tx, outcomes: outcomes}
}

// prescribe creates a pending prescription for qty units of a medication
// holding stock units.
func (f *fixture) prescribe(t *testing.T, stock, qty int) (*Prescription, *medication.Medication) {
	t.Helper()
	med := f.store.addMedication("Doliprane", stock)
	cons := f.store.addConsultation("Ndiaye")
	p := &Prescription{ConsultationID: cons.ID, MedicationID: med.ID, Dosage: "1 cp x 3/j", Duration: "5 jours", Quantity: qty}
	if err := f.svc.CreatePrescription(context.Background(), p); err != nil {
		t.Fatalf("create prescription: %v", err)
	}
	return p, med
}

func TestCreatePrescription_ResolvesJoins(t *testing.T) {
	f := newFixture()
	p, med := f.prescribe(t, 10, 2)

	if p.Status != StatusPending {
		t.Errorf("expected pending, got %q", p.Status)
	}
	if p.Consultation == nil || p.Consultation.Patient == nil || p.Consultation.Patient.LastName != "Ndiaye" {
		t.Errorf("expected consultation.patient to be resolved, got %+v", p.Consultation)
	}
	if p.Medication == nil || p.Medication.ID != med.ID {
		t.Errorf("expected medicament to be resolved, got %+v", p.Medication)
	}
}

func TestCreatePrescription_Validation(t *testing.T) {
	f := newFixture()
	med := f.store.addMedication("Amoxil", 5)
	cons := f.store.addConsultation("Ba")
	valid := func() *Prescription {
		return &Prescription{ConsultationID: cons.ID, MedicationID: med.ID, Dosage: "1/j", Duration: "7j", Quantity: 1}
	}

	tests := []struct {
		name   string
		mutate func(p *Prescription)
	}{
		{"missing consultation", func(p *Prescription) { p.ConsultationID = uuid.Nil }},
		{"missing medication", func(p *Prescription) { p.MedicationID = uuid.Nil }},
		{"blank dosage", func(p *Prescription) { p.Dosage = "  " }},
		{"blank duration", func(p *Prescription) { p.Duration = "" }},
		{"zero quantity", func(p *Prescription) { p.Quantity = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid()
			tt.mutate(p)
			if err := f.svc.CreatePrescription(context.Background(), p); !errors.Is(err, apperr.ErrInvalid) {
				t.Errorf("expected invalid, got %v", err)
			}
		})
	}
}

func TestDeliver_ExactStockThenRedeliver(t *testing.T) {
	f := newFixture()
	p, med := f.prescribe(t, 10, 10)
	pharmacist := uuid.New()

	res, err := f.svc.Deliver(context.Background(), p.ID, DeliverRequest{Quantity: 10}, pharmacist)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Medication.AvailableQuantity != 0 {
		t.Errorf("expected stock 0, got %d", res.Medication.AvailableQuantity)
	}
	if !res.Medication.LowStock {
		t.Error("empty stock should be flagged low")
	}
	if res.Prescription.Status != StatusDelivered {
		t.Errorf("expected delivered, got %q", res.Prescription.Status)
	}
	if res.Prescription.DeliveredQuantity == nil || *res.Prescription.DeliveredQuantity != 10 {
		t.Errorf("expected delivered quantity 10, got %v", res.Prescription.DeliveredQuantity)
	}
	if res.Prescription.DeliveredBy == nil || *res.Prescription.DeliveredBy != pharmacist {
		t.Errorf("expected delivered by %s, got %v", pharmacist, res.Prescription.DeliveredBy)
	}
	if res.Prescription.DeliveredAt == nil || !res.Prescription.DeliveredAt.Equal(fixedNow) {
		t.Errorf("expected delivery time %v, got %v", fixedNow, res.Prescription.DeliveredAt)
	}

	_, err = f.svc.Deliver(context.Background(), p.ID, DeliverRequest{Quantity: 10}, pharmacist)
	if !errors.Is(err, ErrAlreadyDelivered) {
		t.Fatalf("expected ErrAlreadyDelivered, got %v", err)
	}
	if got := f.store.stockOf(med.ID); got != 0 {
		t.Errorf("second delivery must not touch stock, got %d", got)
	}
	if apperr.Status(err) != 409 {
		t.Errorf("expected conflict status, got %d", apperr.Status(err))
	}
	if f.outcomes.counts[metrics.OutcomeDelivered] != 1 || f.outcomes.counts[metrics.OutcomeAlreadyDelivered] != 1 {
		t.Errorf("unexpected outcomes: %v", f.outcomes.counts)
	}
}

func TestDeliver_ShortageChangesNothing(t *testing.T) {
	f := newFixture()
	p, med := f.prescribe(t, 3, 5)

	res, err := f.svc.Deliver(context.Background(), p.ID, DeliverRequest{Quantity: 5}, uuid.New())
	if !errors.Is(err, medication.ErrStockShortage) {
		t.Fatalf("expected ErrStockShortage, got %v", err)
	}
	if res == nil || res.Prescription == nil {
		t.Fatal("shortage result must carry the prescription")
	}
	if res.Prescription.Status != StatusPending || res.Prescription.ID != p.ID {
		t.Errorf("expected the unchanged pending prescription, got %+v", res.Prescription)
	}
	if res.Medication != nil {
		t.Error("shortage result must not carry a medication")
	}
	if got := f.store.stockOf(med.ID); got != 3 {
		t.Errorf("expected stock 3, got %d", got)
	}
	if got := f.store.statusOf(p.ID); got != StatusPending {
		t.Errorf("expected prescription to stay pending, got %q", got)
	}
	if f.tx.rollbacks != 1 || f.tx.commits != 0 {
		t.Errorf("expected one rollback, got commits=%d rollbacks=%d", f.tx.commits, f.tx.rollbacks)
	}
	if f.outcomes.counts[metrics.OutcomeShortage] != 1 {
		t.Errorf("unexpected outcomes: %v", f.outcomes.counts)
	}
}

func TestDeliver_PartialQuantity(t *testing.T) {
	f := newFixture()
	p, med := f.prescribe(t, 20, 6)

	res, err := f.svc.Deliver(context.Background(), p.ID, DeliverRequest{Quantity: 4}, uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Medication.AvailableQuantity != 16 || f.store.stockOf(med.ID) != 16 {
		t.Errorf("expected stock 16, got %d", res.Medication.AvailableQuantity)
	}
}

func TestDeliver_MissingMedicationRollsBack(t *testing.T) {
	f := newFixture()
	p, med := f.prescribe(t, 10, 1)
	f.store.mu.Lock()
	delete(f.store.meds, med.ID)
	f.store.mu.Unlock()

	_, err := f.svc.Deliver(context.Background(), p.ID, DeliverRequest{Quantity: 1}, uuid.New())
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if got := f.store.statusOf(p.ID); got != StatusPending {
		t.Errorf("prescription must stay pending after rollback, got %q", got)
	}
}

func TestDeliver_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		qty     int
		setup   func(f *fixture, p *Prescription) uuid.UUID
		wantErr error
		outcome string
	}{
		{"zero quantity", 0, func(_ *fixture, p *Prescription) uuid.UUID { return p.ID }, apperr.ErrInvalid, metrics.OutcomeInvalid},
		{"negative quantity", -2, func(_ *fixture, p *Prescription) uuid.UUID { return p.ID }, apperr.ErrInvalid, metrics.OutcomeInvalid},
		{"unknown prescription", 1, func(*fixture, *Prescription) uuid.UUID { return uuid.New() }, apperr.ErrNotFound, metrics.OutcomeNotFound},
		{"cancelled prescription", 1, func(f *fixture, p *Prescription) uuid.UUID {
			f.store.prescriptions[p.ID].Status = StatusCancelled
			return p.ID
		}, ErrNotPending, metrics.OutcomeAlreadyDelivered},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			p, med := f.prescribe(t, 10, 1)
			id := tt.setup(f, p)

			_, err := f.svc.Deliver(context.Background(), id, DeliverRequest{Quantity: tt.qty}, uuid.New())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if got := f.store.stockOf(med.ID); got != 10 {
				t.Errorf("stock changed to %d", got)
			}
			if f.outcomes.counts[tt.outcome] != 1 {
				t.Errorf("expected outcome %q, got %v", tt.outcome, f.outcomes.counts)
			}
		})
	}
}

func TestDeliver_ConcurrentDeliveriesNeverOversell(t *testing.T) {
	f := newFixture()
	med := f.store.addMedication("Ibuprofene", 5)
	cons := f.store.addConsultation("Diallo")

	var ids []uuid.UUID
	for i := 0; i < 12; i++ {
		p := &Prescription{ConsultationID: cons.ID, MedicationID: med.ID, Dosage: "1/j", Duration: "3j", Quantity: 1}
		if err := f.svc.CreatePrescription(context.Background(), p); err != nil {
			t.Fatalf("create: %v", err)
		}
		ids = append(ids, p.ID)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		delivered int
		shortages int
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := f.svc.Deliver(context.Background(), id, DeliverRequest{Quantity: 1}, uuid.New())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				delivered++
			case errors.Is(err, medication.ErrStockShortage):
				shortages++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(id)
	}
	wg.Wait()

	if delivered != 5 || shortages != 7 {
		t.Errorf("expected 5 deliveries and 7 shortages, got %d and %d", delivered, shortages)
	}
	if got := f.store.stockOf(med.ID); got != 0 {
		t.Errorf("expected stock 0, got %d", got)
	}
}

func TestDeliver_SamePrescriptionConcurrently(t *testing.T) {
	f := newFixture()
	p, med := f.prescribe(t, 100, 2)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		delivered int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Deliver(context.Background(), p.ID, DeliverRequest{Quantity: 2}, uuid.New()); err == nil {
				mu.Lock()
				delivered++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if delivered != 1 {
		t.Errorf("expected exactly one delivery, got %d", delivered)
	}
	if got := f.store.stockOf(med.ID); got != 98 {
		t.Errorf("expected stock 98, got %d", got)
	}
}

func TestDeliver_PrometheusCounters(t *testing.T) {
	store := newMockStore()
	m := metrics.New()
	svc := NewService(store, store, &mockTx{store: store}, m, zerolog.Nop())
	f := &fixture{svc: svc, store: store}
	p, _ := f.prescribe(t, 1, 2)

	_, _ = svc.Deliver(context.Background(), p.ID, DeliverRequest{Quantity: 2}, uuid.New())
	_, _ = svc.Deliver(context.Background(), p.ID, DeliverRequest{Quantity: 1}, uuid.New())

	if got := testutil.ToFloat64(m.Deliveries.WithLabelValues(metrics.OutcomeShortage)); got != 1 {
		t.Errorf("expected 1 shortage, got %v", got)
	}
	if got := testutil.ToFloat64(m.Deliveries.WithLabelValues(metrics.OutcomeDelivered)); got != 1 {
		t.Errorf("expected 1 delivery, got %v", got)
	}
}

func TestDeliver_RecordsSpan(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	f := newFixture()
	p, _ := f.prescribe(t, 3, 5)
	_, _ = f.svc.Deliver(context.Background(), p.ID, DeliverRequest{Quantity: 5}, uuid.New())

	spans := rec.Ended()
	if len(spans) != 1 || spans[0].Name() != "prescription.deliver" {
		t.Fatalf("expected one prescription.deliver span, got %d", len(spans))
	}
	var outcome string
	for _, kv := range spans[0].Attributes() {
		if kv.Key == "delivery.outcome" {
			outcome = kv.Value.AsString()
		}
	}
	if outcome != metrics.OutcomeShortage {
		t.Errorf("expected outcome attribute %q, got %q", metrics.OutcomeShortage, outcome)
	}
}

func TestUpdatePrescription(t *testing.T) {
	f := newFixture()
	p, med := f.prescribe(t, 10, 2)
	otherCons := f.store.addConsultation("Other")

	upd := &Prescription{ID: p.ID, ConsultationID: otherCons.ID, MedicationID: med.ID, Dosage: "2 cp/j", Duration: "10 jours", Quantity: 4}
	if err := f.svc.UpdatePrescription(context.Background(), upd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if upd.Quantity != 4 || upd.Dosage != "2 cp/j" {
		t.Errorf("update not applied: %+v", upd)
	}
	if upd.ConsultationID != p.ConsultationID {
		t.Error("consultation must not change on update")
	}
}

func TestUpdatePrescription_DeliveredRejected(t *testing.T) {
	f := newFixture()
	p, med := f.prescribe(t, 10, 2)
	if _, err := f.svc.Deliver(context.Background(), p.ID, DeliverRequest{Quantity: 2}, uuid.New()); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	upd := &Prescription{ID: p.ID, MedicationID: med.ID, Dosage: "x", Duration: "y", Quantity: 1}
	if err := f.svc.UpdatePrescription(context.Background(), upd); !errors.Is(err, ErrAlreadyDelivered) {
		t.Errorf("expected ErrAlreadyDelivered, got %v", err)
	}
}

func TestCancelPrescription(t *testing.T) {
	f := newFixture()
	p, med := f.prescribe(t, 10, 2)

	cancelled, err := f.svc.CancelPrescription(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Errorf("expected %q, got %q", StatusCancelled, cancelled.Status)
	}

	if _, err := f.svc.Deliver(context.Background(), p.ID, DeliverRequest{Quantity: 2}, uuid.New()); !errors.Is(err, ErrNotPending) {
		t.Errorf("cancelled prescription must not be delivered, got %v", err)
	}
	if f.store.stockOf(med.ID) != 10 {
		t.Errorf("stock changed to %d", f.store.stockOf(med.ID))
	}
	upd := &Prescription{ID: p.ID, MedicationID: med.ID, Dosage: "x", Duration: "y", Quantity: 1}
	if err := f.svc.UpdatePrescription(context.Background(), upd); !errors.Is(err, ErrNotPending) {
		t.Errorf("expected ErrNotPending on update, got %v", err)
	}
	if _, err := f.svc.CancelPrescription(context.Background(), p.ID); !errors.Is(err, ErrNotPending) {
		t.Errorf("expected ErrNotPending on second cancel, got %v", err)
	}
}

func TestCancelPrescription_DeliveredOrMissing(t *testing.T) {
	f := newFixture()
	p, _ := f.prescribe(t, 10, 1)
	if _, err := f.svc.Deliver(context.Background(), p.ID, DeliverRequest{Quantity: 1}, uuid.New()); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if _, err := f.svc.CancelPrescription(context.Background(), p.ID); !errors.Is(err, ErrAlreadyDelivered) {
		t.Errorf("expected ErrAlreadyDelivered, got %v", err)
	}
	if _, err := f.svc.CancelPrescription(context.Background(), uuid.New()); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestDeletePrescription(t *testing.T) {
	f := newFixture()
	pending, _ := f.prescribe(t, 10, 1)
	delivered, _ := f.prescribe(t, 10, 1)
	if _, err := f.svc.Deliver(context.Background(), delivered.ID, DeliverRequest{Quantity: 1}, uuid.New()); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	if err := f.svc.DeletePrescription(context.Background(), pending.ID); err != nil {
		t.Errorf("pending prescription should be deletable: %v", err)
	}
	if err := f.svc.DeletePrescription(context.Background(), delivered.ID); !errors.Is(err, ErrDeliveredImmutable) {
		t.Errorf("expected ErrDeliveredImmutable, got %v", err)
	}
}

func TestListPrescriptions_StatusFilter(t *testing.T) {
	f := newFixture()
	p1, _ := f.prescribe(t, 10, 1)
	f.prescribe(t, 10, 1)
	if _, err := f.svc.Deliver(context.Background(), p1.ID, DeliverRequest{Quantity: 1}, uuid.New()); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	items, total, err := f.svc.ListPrescriptions(context.Background(), ListFilter{Status: StatusPending}, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(items) != 1 || items[0].ID == p1.ID {
		t.Errorf("expected only the pending prescription, got %d", total)
	}

	if _, _, err := f.svc.ListPrescriptions(context.Background(), ListFilter{Status: "perdu"}, 10, 0); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("expected invalid status filter, got %v", err)
	}
}

func TestListByPatient(t *testing.T) {
	f := newFixture()
	p, _ := f.prescribe(t, 10, 1)
	f.prescribe(t, 10, 1)

	items, err := f.svc.ListByPatient(context.Background(), p.Consultation.Patient.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 || items[0].ID != p.ID {
		t.Errorf("expected the patient's single prescription, got %d", len(items))
	}
}
