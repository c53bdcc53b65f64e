package carnet

import (
	"context"

	"github.com/google/uuid"
)

type ConsultationRepository interface {
	Create(ctx context.Context, c *Consultation) error
	GetByID(ctx context.Context, id uuid.UUID) (*Consultation, error)
	Update(ctx context.Context, c *Consultation) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*Consultation, int, error)
}

type CareEpisodeRepository interface {
	Create(ctx context.Context, e *CareEpisode) error
	GetByID(ctx context.Context, id uuid.UUID) (*CareEpisode, error)
	// Update rewrites an episode still awaiting review.
	Update(ctx context.Context, e *CareEpisode) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*CareEpisode, int, error)
	// Review records a decision on a pending episode. An episode that was
	// already reviewed yields ErrAlreadyReviewed.
	Review(ctx context.Context, id uuid.UUID, r Review) error
}

type ExamRepository interface {
	Create(ctx context.Context, e *Exam) error
	GetByID(ctx context.Context, id uuid.UUID) (*Exam, error)
	Update(ctx context.Context, e *Exam) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*Exam, int, error)
}
