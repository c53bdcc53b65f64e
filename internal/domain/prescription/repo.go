package prescription

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Prescription) error
	// GetByID returns the prescription with its consultation, patient and
	// medication resolved.
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	// Update rewrites a pending prescription. Anything else is a conflict.
	Update(ctx context.Context, p *Prescription) error
	// Delete removes a prescription unless it was delivered.
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Prescription, int, error)
	// MarkDelivered flips a pending prescription to delivered, returning
	// ErrAlreadyDelivered when another request got there first.
	MarkDelivered(ctx context.Context, id uuid.UUID, d Delivery) error
	// Cancel flips a pending prescription to cancelled.
	Cancel(ctx context.Context, id uuid.UUID) error
}
