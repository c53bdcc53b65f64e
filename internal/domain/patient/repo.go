package patient

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, search string, limit, offset int) ([]*Patient, int, error)
	// NextFileSequence returns a fresh value of the file number sequence.
	NextFileSequence(ctx context.Context) (int64, error)
}
