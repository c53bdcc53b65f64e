package dashboard

import (
	"context"
	"time"

	"github.com/clinic/clinic/internal/domain/appointment"
	"github.com/clinic/clinic/internal/domain/carnet"
	"github.com/clinic/clinic/internal/domain/prescription"
	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// tally collects counters until the first error.
type tally struct {
	ctx      context.Context
	counters map[string]int
	err      error
}

func (t *tally) add(key string, fn func(ctx context.Context) (int, error)) {
	if t.err != nil {
		return
	}
	n, err := fn(t.ctx)
	if err != nil {
		t.err = err
		return
	}
	t.counters[key] = n
}

// ForSession builds the dashboard for the caller's role.
func (s *Service) ForSession(ctx context.Context, sess *auth.Session) (*Dashboard, error) {
	if sess == nil {
		return nil, apperr.New(apperr.ErrUnauthorized, "authentication required")
	}
	role := auth.NormalizeRole(sess.Role)
	now := s.now()
	from, to := appointment.DayBounds(now)
	me := sess.UserID
	t := &tally{ctx: ctx, counters: make(map[string]int)}

	switch role {
	case auth.RoleAdmin:
		t.add(KeyPatients, s.repo.CountPatients)
		t.add(KeyStaff, s.repo.CountActiveStaff)
		t.add(KeyMedications, s.repo.CountMedications)
		t.add(KeyPrescriptions, func(ctx context.Context) (int, error) {
			return s.repo.CountPrescriptions(ctx, "", nil)
		})
		t.add(KeyAppointmentsToday, func(ctx context.Context) (int, error) {
			return s.repo.CountAppointments(ctx, from, to, nil)
		})
	case auth.RoleDoctor:
		t.add(KeyAppointmentsToday, func(ctx context.Context) (int, error) {
			return s.repo.CountAppointments(ctx, from, to, &me)
		})
		t.add(KeyPendingCare, func(ctx context.Context) (int, error) {
			return s.repo.CountCareEpisodes(ctx, CareCount{Status: carnet.ReviewPending})
		})
		t.add(KeyWrittenPrescriptions, func(ctx context.Context) (int, error) {
			return s.repo.CountPrescriptions(ctx, "", &me)
		})
	case auth.RoleNurse:
		t.add(KeyPendingCare, func(ctx context.Context) (int, error) {
			return s.repo.CountCareEpisodes(ctx, CareCount{Status: carnet.ReviewPending, NurseID: &me})
		})
		t.add(KeyCareToday, func(ctx context.Context) (int, error) {
			return s.repo.CountCareEpisodes(ctx, CareCount{NurseID: &me, From: &from, To: &to})
		})
	case auth.RolePharmacist:
		t.add(KeyPendingPrescriptions, func(ctx context.Context) (int, error) {
			return s.repo.CountPrescriptions(ctx, prescription.StatusPending, nil)
		})
		t.add(KeyLowStock, s.repo.CountLowStock)
	case auth.RoleReceptionist:
		t.add(KeyPatients, s.repo.CountPatients)
		t.add(KeyAppointmentsToday, func(ctx context.Context) (int, error) {
			return s.repo.CountAppointments(ctx, from, to, nil)
		})
	default:
		return nil, apperr.New(apperr.ErrForbidden, "no dashboard for role "+sess.Role)
	}

	if t.err != nil {
		return nil, t.err
	}
	return &Dashboard{Role: role, Counters: t.counters, GeneratedAt: now.UTC()}, nil
}
