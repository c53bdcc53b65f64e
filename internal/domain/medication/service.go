package medication

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/apperr"
)

// ErrStockShortage is returned by Decrement when the stock cannot cover the
// requested quantity. Nothing is changed in that case.
var ErrStockShortage = apperr.New(apperr.ErrConflict, "insufficient stock")

// Number of rows the low-stock scan logs individually.
const lowStockLogLimit = 50

// LowStockReporter receives the result of each low-stock scan.
type LowStockReporter interface {
	SetLowStock(n int)
}

type Service struct {
	repo     Repository
	reporter LowStockReporter
	logger   zerolog.Logger
}

// NewService builds the inventory service. reporter may be nil.
func NewService(repo Repository, reporter LowStockReporter, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		reporter: reporter,
		logger:   logger.With().Str("component", "medication").Logger(),
	}
}

func optional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func validate(m *Medication) error {
	m.CommercialName = strings.TrimSpace(m.CommercialName)
	m.DCIName = strings.TrimSpace(m.DCIName)
	m.Form = strings.TrimSpace(m.Form)
	if m.CommercialName == "" {
		return apperr.Invalidf("nom_commercial is required")
	}
	if m.DCIName == "" {
		return apperr.Invalidf("nom_dci is required")
	}
	if m.Form == "" {
		return apperr.Invalidf("forme is required")
	}
	if m.AvailableQuantity < 0 {
		return apperr.Invalidf("quantite_disponible cannot be negative")
	}
	if m.AlertThreshold < 0 {
		return apperr.Invalidf("seuil_alerte cannot be negative")
	}
	m.FormUnit = optional(m.FormUnit)
	m.QuantityUnit = optional(m.QuantityUnit)
	m.ThresholdUnit = optional(m.ThresholdUnit)
	return nil
}

func (s *Service) CreateMedication(ctx context.Context, m *Medication) error {
	if err := validate(m); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return err
	}
	s.logger.Info().Str("medication_id", m.ID.String()).Int("quantity", m.AvailableQuantity).Msg("medication created")
	return nil
}

func (s *Service) GetMedication(ctx context.Context, id uuid.UUID) (*Medication, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateMedication rewrites the descriptive fields. quantite_disponible in
// the request is ignored; use Restock to add stock.
func (s *Service) UpdateMedication(ctx context.Context, m *Medication) error {
	existing, err := s.repo.GetByID(ctx, m.ID)
	if err != nil {
		return err
	}
	m.AvailableQuantity = existing.AvailableQuantity
	if err := validate(m); err != nil {
		return err
	}
	return s.repo.Update(ctx, m)
}

func (s *Service) DeleteMedication(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) ListMedications(ctx context.Context, f ListFilter, limit, offset int) ([]*Medication, int, error) {
	return s.repo.List(ctx, f, limit, offset)
}

func (s *Service) Restock(ctx context.Context, id uuid.UUID, qty int) (*Medication, error) {
	if qty <= 0 {
		return nil, apperr.Invalidf("quantite must be positive")
	}
	m, err := s.repo.Restock(ctx, id, qty)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("medication_id", id.String()).Int("added", qty).Int("stock", m.AvailableQuantity).Msg("medication restocked")
	return m, nil
}

// ScanLowStock logs the medications at or below their alert threshold and
// reports how many there are.
func (s *Service) ScanLowStock(ctx context.Context) error {
	meds, total, err := s.repo.List(ctx, ListFilter{LowStockOnly: true}, lowStockLogLimit, 0)
	if err != nil {
		return err
	}
	for _, m := range meds {
		s.logger.Warn().
			Str("medication_id", m.ID.String()).
			Str("nom_commercial", m.CommercialName).
			Int("stock", m.AvailableQuantity).
			Int("threshold", m.AlertThreshold).
			Msg("low stock")
	}
	if s.reporter != nil {
		s.reporter.SetLowStock(total)
	}
	return nil
}
