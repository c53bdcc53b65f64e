package dashboard

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	CountPatients(ctx context.Context) (int, error)
	CountActiveStaff(ctx context.Context) (int, error)
	CountMedications(ctx context.Context) (int, error)
	CountLowStock(ctx context.Context) (int, error)
	// CountPrescriptions counts by status and prescribing doctor; empty
	// status or nil doctor match all.
	CountPrescriptions(ctx context.Context, status string, doctorID *uuid.UUID) (int, error)
	CountAppointments(ctx context.Context, from, to time.Time, doctorID *uuid.UUID) (int, error)
	CountCareEpisodes(ctx context.Context, f CareCount) (int, error)
}
