package carnet

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/appointment"
	"github.com/clinic/clinic/internal/domain/patient"
	"github.com/clinic/clinic/internal/domain/prescription"
	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
)

var (
	ErrAlreadyReviewed = apperr.New(apperr.ErrConflict, "care episode was already reviewed")
	ErrHasDeliveries   = apperr.New(apperr.ErrConflict, "consultation has delivered prescriptions")
)

// Upper bound on each list embedded in a carnet.
const maxCarnetRows = 500

type PatientReader interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

type PrescriptionReader interface {
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*prescription.Prescription, error)
}

type AppointmentReader interface {
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*appointment.Appointment, error)
}

type Service struct {
	consultations ConsultationRepository
	care          CareEpisodeRepository
	exams         ExamRepository
	patients      PatientReader
	prescriptions PrescriptionReader
	appointments  AppointmentReader
	now           func() time.Time
}

func NewService(consultations ConsultationRepository, care CareEpisodeRepository, exams ExamRepository,
	patients PatientReader, prescriptions PrescriptionReader, appointments AppointmentReader) *Service {
	return &Service{
		consultations: consultations,
		care:          care,
		exams:         exams,
		patients:      patients,
		prescriptions: prescriptions,
		appointments:  appointments,
		now:           time.Now,
	}
}

// author returns the caller's id when they hold role, otherwise given,
// which must then be set.
func author(s *auth.Session, role string, given uuid.UUID, field string) (uuid.UUID, error) {
	if s != nil && s.HasRole(role) {
		return s.UserID, nil
	}
	if given == uuid.Nil {
		return uuid.Nil, apperr.Invalidf("%s is required", field)
	}
	return given, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// -- Carnet --

// GetCarnet assembles a patient's record: consultations, care episodes and
// exams newest first, prescriptions and appointments.
func (s *Service) GetCarnet(ctx context.Context, patientID uuid.UUID) (*Carnet, error) {
	p, err := s.patients.GetPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	f := Filter{PatientID: &patientID}
	c := &Carnet{Patient: p}

	if c.Consultations, _, err = s.consultations.List(ctx, f, maxCarnetRows, 0); err != nil {
		return nil, fmt.Errorf("carnet consultations: %w", err)
	}
	if c.CareEpisodes, _, err = s.care.List(ctx, f, maxCarnetRows, 0); err != nil {
		return nil, fmt.Errorf("carnet care episodes: %w", err)
	}
	if c.Exams, _, err = s.exams.List(ctx, f, maxCarnetRows, 0); err != nil {
		return nil, fmt.Errorf("carnet exams: %w", err)
	}
	if c.Prescriptions, err = s.prescriptions.ListByPatient(ctx, patientID); err != nil {
		return nil, fmt.Errorf("carnet prescriptions: %w", err)
	}
	if c.Appointments, err = s.appointments.ListByPatient(ctx, patientID); err != nil {
		return nil, fmt.Errorf("carnet appointments: %w", err)
	}

	if c.Consultations == nil {
		c.Consultations = []*Consultation{}
	}
	if c.CareEpisodes == nil {
		c.CareEpisodes = []*CareEpisode{}
	}
	if c.Exams == nil {
		c.Exams = []*Exam{}
	}
	if c.Prescriptions == nil {
		c.Prescriptions = []*prescription.Prescription{}
	}
	if c.Appointments == nil {
		c.Appointments = []*appointment.Appointment{}
	}
	return c, nil
}

// -- Consultation --

func validateConsultation(c *Consultation) error {
	if c.PatientID == uuid.Nil {
		return apperr.Invalidf("patient_id is required")
	}
	c.Motive = strings.TrimSpace(c.Motive)
	if c.Motive == "" {
		return apperr.Invalidf("motif is required")
	}
	c.Diagnosis = trimmed(c.Diagnosis)
	c.Notes = trimmed(c.Notes)
	return nil
}

// CreateConsultation records a consultation. Doctors sign their own;
// other roles must name the doctor.
func (s *Service) CreateConsultation(ctx context.Context, c *Consultation, by *auth.Session) error {
	if err := validateConsultation(c); err != nil {
		return err
	}
	doctor, err := author(by, auth.RoleDoctor, c.DoctorID, "medecin_id")
	if err != nil {
		return err
	}
	c.DoctorID = doctor
	if c.Date.IsZero() {
		c.Date = s.now().UTC()
	}
	if err := s.consultations.Create(ctx, c); err != nil {
		return err
	}
	return s.reloadConsultation(ctx, c)
}

func (s *Service) GetConsultation(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	return s.consultations.GetByID(ctx, id)
}

// UpdateConsultation edits the clinical content. The patient and doctor
// are fixed at creation.
func (s *Service) UpdateConsultation(ctx context.Context, c *Consultation) error {
	existing, err := s.consultations.GetByID(ctx, c.ID)
	if err != nil {
		return err
	}
	c.PatientID = existing.PatientID
	c.DoctorID = existing.DoctorID
	if c.Date.IsZero() {
		c.Date = existing.Date
	}
	if err := validateConsultation(c); err != nil {
		return err
	}
	if err := s.consultations.Update(ctx, c); err != nil {
		return err
	}
	return s.reloadConsultation(ctx, c)
}

func (s *Service) DeleteConsultation(ctx context.Context, id uuid.UUID) error {
	return s.consultations.Delete(ctx, id)
}

func (s *Service) ListConsultations(ctx context.Context, f Filter, limit, offset int) ([]*Consultation, int, error) {
	return s.consultations.List(ctx, f, limit, offset)
}

func (s *Service) reloadConsultation(ctx context.Context, c *Consultation) error {
	full, err := s.consultations.GetByID(ctx, c.ID)
	if err != nil {
		return err
	}
	*c = *full
	return nil
}

// -- Care episode --

func validateCareEpisode(e *CareEpisode) error {
	if e.PatientID == uuid.Nil {
		return apperr.Invalidf("patient_id is required")
	}
	e.Type = strings.TrimSpace(e.Type)
	if e.Type == "" {
		return apperr.Invalidf("type_soin is required")
	}
	if e.Temperature != nil && (*e.Temperature < 25 || *e.Temperature > 45) {
		return apperr.Invalidf("temperature %.1f is out of range", *e.Temperature)
	}
	if e.OxygenSaturation != nil && (*e.OxygenSaturation < 0 || *e.OxygenSaturation > 100) {
		return apperr.Invalidf("saturation_oxygene must be between 0 and 100")
	}
	for name, v := range map[string]*int{
		"tension_systolique":     e.SystolicBP,
		"tension_diastolique":    e.DiastolicBP,
		"pouls":                  e.Pulse,
		"frequence_respiratoire": e.RespiratoryRate,
	} {
		if v != nil && *v <= 0 {
			return apperr.Invalidf("%s must be positive", name)
		}
	}
	if e.Weight != nil && *e.Weight <= 0 {
		return apperr.Invalidf("poids must be positive")
	}
	e.Observations = trimmed(e.Observations)
	return nil
}

// CreateCareEpisode records a nursing act. It always starts awaiting a
// doctor's review whatever the request says.
func (s *Service) CreateCareEpisode(ctx context.Context, e *CareEpisode, by *auth.Session) error {
	if err := validateCareEpisode(e); err != nil {
		return err
	}
	nurse, err := author(by, auth.RoleNurse, e.NurseID, "infirmier_id")
	if err != nil {
		return err
	}
	e.NurseID = nurse
	e.ValidationStatus = ReviewPending
	e.ValidationComment = nil
	e.ValidatedAt = nil
	if e.PerformedAt.IsZero() {
		e.PerformedAt = s.now().UTC()
	}
	if err := s.care.Create(ctx, e); err != nil {
		return err
	}
	return s.reloadCareEpisode(ctx, e)
}

func (s *Service) GetCareEpisode(ctx context.Context, id uuid.UUID) (*CareEpisode, error) {
	return s.care.GetByID(ctx, id)
}

// UpdateCareEpisode edits an episode that has not been reviewed yet.
func (s *Service) UpdateCareEpisode(ctx context.Context, e *CareEpisode) error {
	existing, err := s.care.GetByID(ctx, e.ID)
	if err != nil {
		return err
	}
	if existing.ValidationStatus != ReviewPending {
		return ErrAlreadyReviewed
	}
	e.PatientID = existing.PatientID
	e.NurseID = existing.NurseID
	if e.PerformedAt.IsZero() {
		e.PerformedAt = existing.PerformedAt
	}
	if err := validateCareEpisode(e); err != nil {
		return err
	}
	if err := s.care.Update(ctx, e); err != nil {
		return err
	}
	return s.reloadCareEpisode(ctx, e)
}

func (s *Service) DeleteCareEpisode(ctx context.Context, id uuid.UUID) error {
	return s.care.Delete(ctx, id)
}

func (s *Service) ListCareEpisodes(ctx context.Context, f Filter, limit, offset int) ([]*CareEpisode, int, error) {
	if f.Status != "" && f.Status != ReviewPending && f.Status != ReviewApproved && f.Status != ReviewRejected {
		return nil, 0, apperr.Invalidf("unknown statut_validation %q", f.Status)
	}
	return s.care.List(ctx, f, limit, offset)
}

// ReviewCareEpisode records a doctor's decision on a pending episode.
func (s *Service) ReviewCareEpisode(ctx context.Context, id uuid.UUID, req ReviewRequest, doctorID uuid.UUID) (*CareEpisode, error) {
	if req.Status != ReviewApproved && req.Status != ReviewRejected {
		return nil, apperr.Invalidf("statut_validation must be %s or %s", ReviewApproved, ReviewRejected)
	}
	err := s.care.Review(ctx, id, Review{
		Status:   req.Status,
		Comment:  trimmed(req.Comment),
		DoctorID: doctorID,
		At:       s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	return s.care.GetByID(ctx, id)
}

func (s *Service) reloadCareEpisode(ctx context.Context, e *CareEpisode) error {
	full, err := s.care.GetByID(ctx, e.ID)
	if err != nil {
		return err
	}
	*e = *full
	return nil
}

// -- Exam --

func (s *Service) prepareExam(e *Exam) error {
	if e.PatientID == uuid.Nil {
		return apperr.Invalidf("patient_id is required")
	}
	e.Type = strings.TrimSpace(e.Type)
	if e.Type == "" {
		return apperr.Invalidf("type_examen is required")
	}
	if e.Status == "" {
		e.Status = ExamRequested
	}
	switch e.Status {
	case ExamRequested:
		e.PerformedAt = nil
	case ExamDone:
		if e.PerformedAt == nil {
			now := s.now().UTC()
			e.PerformedAt = &now
		}
	default:
		return apperr.Invalidf("statut must be %s or %s", ExamRequested, ExamDone)
	}
	if e.RequestedAt.IsZero() {
		e.RequestedAt = s.now().UTC()
	}
	e.Result = trimmed(e.Result)
	return nil
}

// CreateExam requests an exam. Doctors request in their own name.
func (s *Service) CreateExam(ctx context.Context, e *Exam, by *auth.Session) error {
	if err := s.prepareExam(e); err != nil {
		return err
	}
	doctor, err := author(by, auth.RoleDoctor, e.DoctorID, "medecin_id")
	if err != nil {
		return err
	}
	e.DoctorID = doctor
	if err := s.exams.Create(ctx, e); err != nil {
		return err
	}
	return s.reloadExam(ctx, e)
}

func (s *Service) GetExam(ctx context.Context, id uuid.UUID) (*Exam, error) {
	return s.exams.GetByID(ctx, id)
}

// UpdateExam edits an exam, typically to record its result.
func (s *Service) UpdateExam(ctx context.Context, e *Exam) error {
	existing, err := s.exams.GetByID(ctx, e.ID)
	if err != nil {
		return err
	}
	e.PatientID = existing.PatientID
	e.DoctorID = existing.DoctorID
	if e.RequestedAt.IsZero() {
		e.RequestedAt = existing.RequestedAt
	}
	if err := s.prepareExam(e); err != nil {
		return err
	}
	if err := s.exams.Update(ctx, e); err != nil {
		return err
	}
	return s.reloadExam(ctx, e)
}

func (s *Service) DeleteExam(ctx context.Context, id uuid.UUID) error {
	return s.exams.Delete(ctx, id)
}

func (s *Service) ListExams(ctx context.Context, f Filter, limit, offset int) ([]*Exam, int, error) {
	if f.Status != "" && f.Status != ExamRequested && f.Status != ExamDone {
		return nil, 0, apperr.Invalidf("unknown statut %q", f.Status)
	}
	return s.exams.List(ctx, f, limit, offset)
}

func (s *Service) reloadExam(ctx context.Context, e *Exam) error {
	full, err := s.exams.GetByID(ctx, e.ID)
	if err != nil {
		return err
	}
	*e = *full
	return nil
}
