package appointment

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/apperr"
)

// Upper bound on the rows returned by the unpaginated views.
const maxUnpaged = 500

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func validStatus(s string) bool {
	return s == StatusPlanned || s == StatusDone || s == StatusCancelled
}

func validate(a *Appointment) error {
	if a.PatientID == uuid.Nil {
		return apperr.Invalidf("patient_id is required")
	}
	if a.DoctorID == uuid.Nil {
		return apperr.Invalidf("medecin_id is required")
	}
	if a.Date.IsZero() {
		return apperr.Invalidf("date_rdv is required")
	}
	a.Motive = strings.TrimSpace(a.Motive)
	if a.Motive == "" {
		return apperr.Invalidf("motif is required")
	}
	if a.Status == "" {
		a.Status = StatusPlanned
	}
	if !validStatus(a.Status) {
		return apperr.Invalidf("statut must be one of %s, %s or %s", StatusPlanned, StatusDone, StatusCancelled)
	}
	return nil
}

func (s *Service) CreateAppointment(ctx context.Context, a *Appointment) error {
	if err := validate(a); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return err
	}
	return s.reload(ctx, a)
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateAppointment(ctx context.Context, a *Appointment) error {
	if _, err := s.repo.GetByID(ctx, a.ID); err != nil {
		return err
	}
	if err := validate(a); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, a); err != nil {
		return err
	}
	return s.reload(ctx, a)
}

func (s *Service) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) ListAppointments(ctx context.Context, f ListFilter, limit, offset int) ([]*Appointment, int, error) {
	if f.Status != "" && !validStatus(f.Status) {
		return nil, 0, apperr.Invalidf("unknown statut %q", f.Status)
	}
	return s.repo.List(ctx, f, limit, offset)
}

// DayBounds returns the local midnight starting the day of t and the one
// after it.
func DayBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}

// Today lists today's appointments in date order, for one doctor when
// doctorID is set.
func (s *Service) Today(ctx context.Context, doctorID *uuid.UUID) ([]*Appointment, error) {
	from, to := DayBounds(s.now())
	items, _, err := s.repo.List(ctx, ListFilter{DoctorID: doctorID, From: &from, To: &to}, maxUnpaged, 0)
	return items, err
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Appointment, error) {
	items, _, err := s.repo.List(ctx, ListFilter{PatientID: &patientID}, maxUnpaged, 0)
	return items, err
}

func (s *Service) reload(ctx context.Context, a *Appointment) error {
	full, err := s.repo.GetByID(ctx, a.ID)
	if err != nil {
		return err
	}
	*a = *full
	return nil
}
