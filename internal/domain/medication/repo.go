package medication

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, m *Medication) error
	GetByID(ctx context.Context, id uuid.UUID) (*Medication, error)
	// Update writes descriptive fields and the alert threshold. The stock
	// level only changes through Restock and Decrement.
	Update(ctx context.Context, m *Medication) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Medication, int, error)
	// Restock atomically adds qty to the stock.
	Restock(ctx context.Context, id uuid.UUID, qty int) (*Medication, error)
	// Decrement atomically removes qty from the stock, failing with
	// ErrStockShortage when less than qty is available.
	Decrement(ctx context.Context, id uuid.UUID, qty int) (*Medication, error)
}
