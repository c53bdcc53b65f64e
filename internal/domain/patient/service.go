package patient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/apperr"
)

var validBloodGroups = map[string]bool{
	"A+": true, "A-": true, "B+": true, "B-": true,
	"AB+": true, "AB-": true, "O+": true, "O-": true,
}

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (s *Service) validate(p *Patient) error {
	p.LastName = strings.TrimSpace(p.LastName)
	p.FirstName = strings.TrimSpace(p.FirstName)
	if p.LastName == "" || p.FirstName == "" {
		return apperr.Invalidf("nom and prenom are required")
	}
	p.Sex = strings.ToUpper(strings.TrimSpace(p.Sex))
	if p.Sex != "M" && p.Sex != "F" {
		return apperr.Invalidf("sexe must be M or F")
	}
	if p.BirthDate.IsZero() {
		return apperr.Invalidf("date_naissance is required")
	}
	if p.BirthDate.After(s.now()) {
		return apperr.Invalidf("date_naissance cannot be in the future")
	}
	if p.BloodGroup != nil {
		bg := strings.ToUpper(strings.TrimSpace(*p.BloodGroup))
		if bg == "" {
			p.BloodGroup = nil
		} else if !validBloodGroups[bg] {
			return apperr.Invalidf("groupe_sanguin %q is not a valid blood group", *p.BloodGroup)
		} else {
			p.BloodGroup = &bg
		}
	}
	p.FileNumber = strings.TrimSpace(p.FileNumber)
	return nil
}

// CreatePatient registers a patient, assigning a P-YYYY-NNNNNN file number
// when none is given.
func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	if err := s.validate(p); err != nil {
		return err
	}
	if p.FileNumber == "" {
		n, err := s.repo.NextFileSequence(ctx)
		if err != nil {
			return fmt.Errorf("allocate file number: %w", err)
		}
		p.FileNumber = FormatFileNumber(s.now().Year(), n)
	}
	return s.repo.Create(ctx, p)
}

func FormatFileNumber(year int, seq int64) string {
	return fmt.Sprintf("P-%d-%06d", year, seq)
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdatePatient(ctx context.Context, p *Patient) error {
	existing, err := s.repo.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	if err := s.validate(p); err != nil {
		return err
	}
	if p.FileNumber == "" {
		p.FileNumber = existing.FileNumber
	}
	return s.repo.Update(ctx, p)
}

func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, search string, limit, offset int) ([]*Patient, int, error) {
	return s.repo.List(ctx, search, limit, offset)
}
