package carnet

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/appointment"
	"github.com/clinic/clinic/internal/domain/patient"
	"github.com/clinic/clinic/internal/domain/prescription"
	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
)

// -- mocks --

func matches(f Filter, patientID, authorID uuid.UUID) bool {
	if f.PatientID != nil && *f.PatientID != patientID {
		return false
	}
	if f.AuthorID != nil && *f.AuthorID != authorID {
		return false
	}
	return true
}

type mockConsultations struct {
	store      map[uuid.UUID]*Consultation
	deliveries map[uuid.UUID]bool
}

func (m *mockConsultations) Create(_ context.Context, c *Consultation) error {
	c.ID = uuid.New()
	cp := *c
	m.store[c.ID] = &cp
	return nil
}

func (m *mockConsultations) GetByID(_ context.Context, id uuid.UUID) (*Consultation, error) {
	c, ok := m.store[id]
	if !ok {
		return nil, apperr.NotFound("consultation")
	}
	cp := *c
	cp.Patient = &patient.Summary{ID: c.PatientID}
	return &cp, nil
}

func (m *mockConsultations) Update(_ context.Context, c *Consultation) error {
	if _, ok := m.store[c.ID]; !ok {
		return apperr.NotFound("consultation")
	}
	cp := *c
	m.store[c.ID] = &cp
	return nil
}

func (m *mockConsultations) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.store[id]; !ok {
		return apperr.NotFound("consultation")
	}
	if m.deliveries[id] {
		return ErrHasDeliveries
	}
	delete(m.store, id)
	return nil
}

func (m *mockConsultations) List(_ context.Context, f Filter, limit, offset int) ([]*Consultation, int, error) {
	var out []*Consultation
	for _, c := range m.store {
		if matches(f, c.PatientID, c.DoctorID) {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

type mockCare struct {
	store map[uuid.UUID]*CareEpisode
}

func (m *mockCare) Create(_ context.Context, e *CareEpisode) error {
	e.ID = uuid.New()
	cp := *e
	m.store[e.ID] = &cp
	return nil
}

func (m *mockCare) GetByID(_ context.Context, id uuid.UUID) (*CareEpisode, error) {
	e, ok := m.store[id]
	if !ok {
		return nil, apperr.NotFound("care episode")
	}
	cp := *e
	return &cp, nil
}

func (m *mockCare) Update(_ context.Context, e *CareEpisode) error {
	existing, ok := m.store[e.ID]
	if !ok {
		return apperr.NotFound("care episode")
	}
	if existing.ValidationStatus != ReviewPending {
		return ErrAlreadyReviewed
	}
	cp := *e
	cp.ValidationStatus = existing.ValidationStatus
	m.store[e.ID] = &cp
	return nil
}

func (m *mockCare) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.store[id]; !ok {
		return apperr.NotFound("care episode")
	}
	delete(m.store, id)
	return nil
}

func (m *mockCare) List(_ context.Context, f Filter, limit, offset int) ([]*CareEpisode, int, error) {
	var out []*CareEpisode
	for _, e := range m.store {
		if !matches(f, e.PatientID, e.NurseID) || (f.Status != "" && e.ValidationStatus != f.Status) {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (m *mockCare) Review(_ context.Context, id uuid.UUID, r Review) error {
	e, ok := m.store[id]
	if !ok {
		return apperr.NotFound("care episode")
	}
	if e.ValidationStatus != ReviewPending {
		return ErrAlreadyReviewed
	}
	doctor, at := r.DoctorID, r.At
	e.ValidationStatus = r.Status
	e.ValidationComment = r.Comment
	e.DoctorID = &doctor
	e.ValidatedAt = &at
	return nil
}

type mockExams struct {
	store map[uuid.UUID]*Exam
}

func (m *mockExams) Create(_ context.Context, e *Exam) error {
	e.ID = uuid.New()
	cp := *e
	m.store[e.ID] = &cp
	return nil
}

func (m *mockExams) GetByID(_ context.Context, id uuid.UUID) (*Exam, error) {
	e, ok := m.store[id]
	if !ok {
		return nil, apperr.NotFound("exam")
	}
	cp := *e
	return &cp, nil
}

func (m *mockExams) Update(_ context.Context, e *Exam) error {
	if _, ok := m.store[e.ID]; !ok {
		return apperr.NotFound("exam")
	}
	cp := *e
	m.store[e.ID] = &cp
	return nil
}

func (m *mockExams) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.store[id]; !ok {
		return apperr.NotFound("exam")
	}
	delete(m.store, id)
	return nil
}

func (m *mockExams) List(_ context.Context, f Filter, limit, offset int) ([]*Exam, int, error) {
	var out []*Exam
	for _, e := range m.store {
		if !matches(f, e.PatientID, e.DoctorID) || (f.Status != "" && e.Status != f.Status) {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	return out, len(out), nil
}

type mockPatients map[uuid.UUID]*patient.Patient

func (m mockPatients) GetPatient(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	p, ok := m[id]
	if !ok {
		return nil, apperr.NotFound("patient")
	}
	return p, nil
}

type mockPrescriptions map[uuid.UUID][]*prescription.Prescription

func (m mockPrescriptions) ListByPatient(_ context.Context, id uuid.UUID) ([]*prescription.Prescription, error) {
	return m[id], nil
}

type mockAppointments map[uuid.UUID][]*appointment.Appointment

func (m mockAppointments) ListByPatient(_ context.Context, id uuid.UUID) ([]*appointment.Appointment, error) {
	return m[id], nil
}

type fixture struct {
	svc           *Service
	consultations *mockConsultations
	care          *mockCare
	exams         *mockExams
	patients      mockPatients
	prescriptions mockPrescriptions
	appointments  mockAppointments
}

var testNow = time.Date(2026, 3, 14, 8, 15, 0, 0, time.UTC)

func newFixture() *fixture {
	f := &fixture{
		consultations: &mockConsultations{store: make(map[uuid.UUID]*Consultation), deliveries: make(map[uuid.UUID]bool)},
		care:          &mockCare{store: make(map[uuid.UUID]*CareEpisode)},
		exams:         &mockExams{store: make(map[uuid.UUID]*Exam)},
		patients:      mockPatients{},
		prescriptions: mockPrescriptions{},
		appointments:  mockAppointments{},
	}
	f.svc = NewService(f.consultations, f.care, f.exams, f.patients, f.prescriptions, f.appointments)
	f.svc.now = func() time.Time { return testNow }
	return f
}

func (f *fixture) addPatient() *patient.Patient {
	p := &patient.Patient{ID: uuid.New(), FileNumber: "P-2026-000042", LastName: "Faye", FirstName: "Khady"}
	f.patients[p.ID] = p
	return p
}

func session(role string) *auth.Session {
	return &auth.Session{ID: "s", UserID: uuid.New(), Role: role}
}

// -- tests --

func TestCreateConsultation_DoctorSignsOwn(t *testing.T) {
	f := newFixture()
	doc := session(auth.RoleDoctor)
	other := uuid.New()
	c := &Consultation{PatientID: uuid.New(), DoctorID: other, Motive: " toux "}

	if err := f.svc.CreateConsultation(context.Background(), c, doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.DoctorID != doc.UserID {
		t.Error("a doctor's consultation must carry their own id")
	}
	if c.Motive != "toux" || !c.Date.Equal(testNow) {
		t.Errorf("unexpected consultation: %+v", c)
	}
}

func TestCreateConsultation_AdminMustNameDoctor(t *testing.T) {
	f := newFixture()
	c := &Consultation{PatientID: uuid.New(), Motive: "bilan"}
	if err := f.svc.CreateConsultation(context.Background(), c, session(auth.RoleAdmin)); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("expected invalid, got %v", err)
	}

	doctor := uuid.New()
	c.DoctorID = doctor
	if err := f.svc.CreateConsultation(context.Background(), c, session(auth.RoleAdmin)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.DoctorID != doctor {
		t.Error("expected the named doctor")
	}
}

func TestUpdateConsultation_KeepsPatientAndDoctor(t *testing.T) {
	f := newFixture()
	c := &Consultation{PatientID: uuid.New(), Motive: "douleur"}
	doc := session(auth.RoleDoctor)
	_ = f.svc.CreateConsultation(context.Background(), c, doc)

	diag := "paludisme"
	upd := &Consultation{ID: c.ID, PatientID: uuid.New(), DoctorID: uuid.New(), Motive: "douleur", Diagnosis: &diag}
	if err := f.svc.UpdateConsultation(context.Background(), upd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if upd.PatientID != c.PatientID || upd.DoctorID != doc.UserID {
		t.Error("patient and doctor must not change")
	}
	if upd.Diagnosis == nil || *upd.Diagnosis != "paludisme" || !upd.Date.Equal(c.Date) {
		t.Errorf("unexpected update: %+v", upd)
	}
}

func TestDeleteConsultation_WithDeliveries(t *testing.T) {
	f := newFixture()
	c := &Consultation{PatientID: uuid.New(), Motive: "x"}
	_ = f.svc.CreateConsultation(context.Background(), c, session(auth.RoleDoctor))
	f.consultations.deliveries[c.ID] = true

	if err := f.svc.DeleteConsultation(context.Background(), c.ID); !errors.Is(err, ErrHasDeliveries) {
		t.Errorf("expected ErrHasDeliveries, got %v", err)
	}
}

func TestCreateCareEpisode_ForcedPending(t *testing.T) {
	f := newFixture()
	nurse := session(auth.RoleNurse)
	comment := "ok"
	temp := 38.2
	e := &CareEpisode{
		PatientID:         uuid.New(),
		Type:              "pansement",
		Temperature:       &temp,
		ValidationStatus:  ReviewApproved,
		ValidationComment: &comment,
	}

	if err := f.svc.CreateCareEpisode(context.Background(), e, nurse); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.ValidationStatus != ReviewPending || e.ValidationComment != nil {
		t.Errorf("new episode must await review, got %q", e.ValidationStatus)
	}
	if e.NurseID != nurse.UserID {
		t.Error("episode must carry the nurse's id")
	}
	if !e.PerformedAt.Equal(testNow) {
		t.Errorf("expected default date_soin %v, got %v", testNow, e.PerformedAt)
	}
}

func TestCreateCareEpisode_Vitals(t *testing.T) {
	f := newFixture()
	hot, zero, sat := 47.0, 0, 140
	tests := []struct {
		name   string
		mutate func(e *CareEpisode)
	}{
		{"missing type", func(e *CareEpisode) { e.Type = "" }},
		{"temperature", func(e *CareEpisode) { e.Temperature = &hot }},
		{"pulse", func(e *CareEpisode) { e.Pulse = &zero }},
		{"saturation", func(e *CareEpisode) { e.OxygenSaturation = &sat }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &CareEpisode{PatientID: uuid.New(), Type: "injection"}
			tt.mutate(e)
			if err := f.svc.CreateCareEpisode(context.Background(), e, session(auth.RoleNurse)); !errors.Is(err, apperr.ErrInvalid) {
				t.Errorf("expected invalid, got %v", err)
			}
		})
	}
}

func TestReviewCareEpisode(t *testing.T) {
	f := newFixture()
	e := &CareEpisode{PatientID: uuid.New(), Type: "perfusion"}
	_ = f.svc.CreateCareEpisode(context.Background(), e, session(auth.RoleNurse))
	doctor := uuid.New()
	note := "  RAS "

	got, err := f.svc.ReviewCareEpisode(context.Background(), e.ID, ReviewRequest{Status: ReviewApproved, Comment: &note}, doctor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ValidationStatus != ReviewApproved || got.DoctorID == nil || *got.DoctorID != doctor {
		t.Errorf("unexpected review: %+v", got)
	}
	if got.ValidationComment == nil || *got.ValidationComment != "RAS" {
		t.Errorf("expected trimmed comment, got %v", got.ValidationComment)
	}
	if got.ValidatedAt == nil || !got.ValidatedAt.Equal(testNow) {
		t.Errorf("expected valide_le %v, got %v", testNow, got.ValidatedAt)
	}

	_, err = f.svc.ReviewCareEpisode(context.Background(), e.ID, ReviewRequest{Status: ReviewRejected}, doctor)
	if !errors.Is(err, ErrAlreadyReviewed) {
		t.Errorf("second review: expected ErrAlreadyReviewed, got %v", err)
	}
}

func TestReviewCareEpisode_InvalidTarget(t *testing.T) {
	f := newFixture()
	e := &CareEpisode{PatientID: uuid.New(), Type: "perfusion"}
	_ = f.svc.CreateCareEpisode(context.Background(), e, session(auth.RoleNurse))

	for _, status := range []string{"", ReviewPending, "approuve"} {
		if _, err := f.svc.ReviewCareEpisode(context.Background(), e.ID, ReviewRequest{Status: status}, uuid.New()); !errors.Is(err, apperr.ErrInvalid) {
			t.Errorf("status %q: expected invalid, got %v", status, err)
		}
	}
	if f.care.store[e.ID].ValidationStatus != ReviewPending {
		t.Error("episode must stay pending")
	}
}

func TestUpdateCareEpisode_AfterReview(t *testing.T) {
	f := newFixture()
	e := &CareEpisode{PatientID: uuid.New(), Type: "perfusion"}
	_ = f.svc.CreateCareEpisode(context.Background(), e, session(auth.RoleNurse))
	_, _ = f.svc.ReviewCareEpisode(context.Background(), e.ID, ReviewRequest{Status: ReviewRejected}, uuid.New())

	upd := &CareEpisode{ID: e.ID, Type: "perfusion corrigee"}
	if err := f.svc.UpdateCareEpisode(context.Background(), upd); !errors.Is(err, ErrAlreadyReviewed) {
		t.Errorf("expected ErrAlreadyReviewed, got %v", err)
	}
}

func TestListCareEpisodes_PendingQueue(t *testing.T) {
	f := newFixture()
	a := &CareEpisode{PatientID: uuid.New(), Type: "a"}
	b := &CareEpisode{PatientID: uuid.New(), Type: "b"}
	_ = f.svc.CreateCareEpisode(context.Background(), a, session(auth.RoleNurse))
	_ = f.svc.CreateCareEpisode(context.Background(), b, session(auth.RoleNurse))
	_, _ = f.svc.ReviewCareEpisode(context.Background(), a.ID, ReviewRequest{Status: ReviewApproved}, uuid.New())

	items, total, err := f.svc.ListCareEpisodes(context.Background(), Filter{Status: ReviewPending}, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || items[0].ID != b.ID {
		t.Errorf("expected only the pending episode, got %d", total)
	}

	if _, _, err := f.svc.ListCareEpisodes(context.Background(), Filter{Status: "done"}, 10, 0); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("expected invalid status, got %v", err)
	}
}

func TestExam_Lifecycle(t *testing.T) {
	f := newFixture()
	doc := session(auth.RoleDoctor)
	e := &Exam{PatientID: uuid.New(), Type: "NFS"}
	if err := f.svc.CreateExam(context.Background(), e, doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Status != ExamRequested || e.PerformedAt != nil || e.DoctorID != doc.UserID {
		t.Errorf("unexpected new exam: %+v", e)
	}

	result := "Hb 12 g/dL"
	upd := &Exam{ID: e.ID, Type: "NFS", Status: ExamDone, Result: &result}
	if err := f.svc.UpdateExam(context.Background(), upd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if upd.PerformedAt == nil || !upd.PerformedAt.Equal(testNow) {
		t.Errorf("expected date_realisation to default to now, got %v", upd.PerformedAt)
	}
	if !upd.RequestedAt.Equal(e.RequestedAt) {
		t.Error("date_demande must be kept")
	}

	bad := &Exam{ID: e.ID, Type: "NFS", Status: "annule"}
	if err := f.svc.UpdateExam(context.Background(), bad); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("expected invalid status, got %v", err)
	}
}

func TestGetCarnet(t *testing.T) {
	f := newFixture()
	p := f.addPatient()
	other := f.addPatient()
	doc := session(auth.RoleDoctor)

	_ = f.svc.CreateConsultation(context.Background(), &Consultation{PatientID: p.ID, Motive: "fievre"}, doc)
	_ = f.svc.CreateConsultation(context.Background(), &Consultation{PatientID: other.ID, Motive: "autre"}, doc)
	_ = f.svc.CreateCareEpisode(context.Background(), &CareEpisode{PatientID: p.ID, Type: "injection"}, session(auth.RoleNurse))
	_ = f.svc.CreateExam(context.Background(), &Exam{PatientID: p.ID, Type: "goutte epaisse"}, doc)
	f.prescriptions[p.ID] = []*prescription.Prescription{{ID: uuid.New(), Status: prescription.StatusPending}}

	c, err := f.svc.GetCarnet(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Patient.ID != p.ID {
		t.Error("wrong patient")
	}
	if len(c.Consultations) != 1 || len(c.CareEpisodes) != 1 || len(c.Exams) != 1 || len(c.Prescriptions) != 1 {
		t.Errorf("unexpected carnet sizes: %d %d %d %d", len(c.Consultations), len(c.CareEpisodes), len(c.Exams), len(c.Prescriptions))
	}
	if c.Appointments == nil || len(c.Appointments) != 0 {
		t.Error("empty sections must be empty slices")
	}
}

func TestGetCarnet_UnknownPatient(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.GetCarnet(context.Background(), uuid.New()); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}
