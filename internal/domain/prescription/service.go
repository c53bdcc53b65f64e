package prescription

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/clinic/clinic/internal/domain/medication"
	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/metrics"
	"github.com/clinic/clinic/internal/platform/tracing"
)

var (
	ErrAlreadyDelivered   = apperr.New(apperr.ErrConflict, "prescription already delivered")
	ErrNotPending         = apperr.New(apperr.ErrConflict, "prescription is not pending")
	ErrDeliveredImmutable = apperr.New(apperr.ErrConflict, "delivered prescriptions cannot be deleted")
)

// Upper bound on the prescriptions embedded in a medical record.
const maxPatientPrescriptions = 500

// StockRepository is the part of the inventory the delivery workflow
// writes to.
type StockRepository interface {
	Decrement(ctx context.Context, id uuid.UUID, qty int) (*medication.Medication, error)
}

// DeliveryObserver counts delivery attempts by outcome.
type DeliveryObserver interface {
	ObserveDelivery(outcome string)
}

type Service struct {
	repo     Repository
	stock    StockRepository
	tx       db.TxRunner
	observer DeliveryObserver
	logger   zerolog.Logger
	now      func() time.Time
}

// NewService wires the prescription service. observer may be nil.
func NewService(repo Repository, stock StockRepository, tx db.TxRunner, observer DeliveryObserver, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		stock:    stock,
		tx:       tx,
		observer: observer,
		logger:   logger.With().Str("component", "prescription").Logger(),
		now:      time.Now,
	}
}

func validate(p *Prescription) error {
	if p.ConsultationID == uuid.Nil {
		return apperr.Invalidf("consultation_id is required")
	}
	if p.MedicationID == uuid.Nil {
		return apperr.Invalidf("medicament_id is required")
	}
	p.Dosage = strings.TrimSpace(p.Dosage)
	p.Duration = strings.TrimSpace(p.Duration)
	if p.Dosage == "" {
		return apperr.Invalidf("posologie is required")
	}
	if p.Duration == "" {
		return apperr.Invalidf("duree is required")
	}
	if p.Quantity <= 0 {
		return apperr.Invalidf("quantite must be positive")
	}
	return nil
}

func (s *Service) CreatePrescription(ctx context.Context, p *Prescription) error {
	if err := validate(p); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return err
	}
	return s.reload(ctx, p)
}

func (s *Service) GetPrescription(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdatePrescription edits a prescription that has not been delivered. The
// consultation it belongs to cannot change.
func (s *Service) UpdatePrescription(ctx context.Context, p *Prescription) error {
	existing, err := s.repo.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	if existing.Status == StatusDelivered {
		return ErrAlreadyDelivered
	}
	if existing.Status != StatusPending {
		return ErrNotPending
	}
	p.ConsultationID = existing.ConsultationID
	if err := validate(p); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return err
	}
	return s.reload(ctx, p)
}

// CancelPrescription withdraws a pending prescription. A cancelled
// prescription can no longer be edited or delivered.
func (s *Service) CancelPrescription(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	if err := s.repo.Cancel(ctx, id); err != nil {
		return nil, err
	}
	s.logger.Info().Str("prescription_id", id.String()).Msg("prescription cancelled")
	return s.repo.GetByID(ctx, id)
}

func (s *Service) DeletePrescription(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) ListPrescriptions(ctx context.Context, f ListFilter, limit, offset int) ([]*Prescription, int, error) {
	if f.Status != "" && f.Status != StatusPending && f.Status != StatusDelivered && f.Status != StatusCancelled {
		return nil, 0, apperr.Invalidf("unknown statut %q", f.Status)
	}
	return s.repo.List(ctx, f, limit, offset)
}

// ListByPatient returns every prescription written for a patient, newest
// first.
func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Prescription, error) {
	items, _, err := s.repo.List(ctx, ListFilter{PatientID: &patientID}, maxPatientPrescriptions, 0)
	return items, err
}

func (s *Service) reload(ctx context.Context, p *Prescription) error {
	full, err := s.repo.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	*p = *full
	return nil
}

// Deliver hands out qty units of the prescribed medication. Marking the
// prescription and decrementing the stock happen in one transaction: on
// a shortage or any other failure neither is applied. On a shortage the
// result still carries the unchanged prescription.
func (s *Service) Deliver(ctx context.Context, id uuid.UUID, req DeliverRequest, by uuid.UUID) (*DeliveryResult, error) {
	ctx, span := tracing.Start(ctx, "prescription.deliver",
		attribute.String("prescription.id", id.String()),
		attribute.Int("delivery.quantity", req.Quantity),
	)
	defer span.End()

	result, err := s.deliver(ctx, id, req, by)

	outcome := deliveryOutcome(err)
	span.SetAttributes(attribute.String("delivery.outcome", outcome))
	if s.observer != nil {
		s.observer.ObserveDelivery(outcome)
	}

	log := s.logger.With().Str("prescription_id", id.String()).Int("quantity", req.Quantity).Str("outcome", outcome).Logger()
	switch outcome {
	case metrics.OutcomeDelivered:
		log.Info().
			Str("medication_id", result.Medication.ID.String()).
			Int("stock", result.Medication.AvailableQuantity).
			Msg("prescription delivered")
	case metrics.OutcomeShortage:
		log.Warn().Msg("delivery refused: insufficient stock")
	case metrics.OutcomeError:
		tracing.RecordError(span, err)
		log.Error().Err(err).Msg("delivery failed")
	default:
		log.Info().Err(err).Msg("delivery rejected")
	}
	return result, err
}

func (s *Service) deliver(ctx context.Context, id uuid.UUID, req DeliverRequest, by uuid.UUID) (*DeliveryResult, error) {
	if req.Quantity <= 0 {
		return nil, apperr.Invalidf("quantity must be positive")
	}
	if req.Notes != nil {
		if n := strings.TrimSpace(*req.Notes); n == "" {
			req.Notes = nil
		} else {
			req.Notes = &n
		}
	}

	var before *Prescription
	result := &DeliveryResult{}
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		before = p
		switch p.Status {
		case StatusDelivered:
			return ErrAlreadyDelivered
		case StatusPending:
		default:
			return ErrNotPending
		}

		err = s.repo.MarkDelivered(ctx, id, Delivery{
			Quantity: req.Quantity,
			By:       by,
			At:       s.now().UTC(),
			Notes:    req.Notes,
		})
		if err != nil {
			return err
		}

		med, err := s.stock.Decrement(ctx, p.MedicationID, req.Quantity)
		if err != nil {
			return err
		}

		updated, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		result.Prescription = updated
		result.Medication = med
		return nil
	})
	if errors.Is(err, medication.ErrStockShortage) {
		return &DeliveryResult{Prescription: before}, err
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func deliveryOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeDelivered
	case errors.Is(err, medication.ErrStockShortage):
		return metrics.OutcomeShortage
	case errors.Is(err, ErrAlreadyDelivered), errors.Is(err, ErrNotPending):
		return metrics.OutcomeAlreadyDelivered
	case errors.Is(err, apperr.ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, apperr.ErrInvalid):
		return metrics.OutcomeInvalid
	default:
		return metrics.OutcomeError
	}
}
