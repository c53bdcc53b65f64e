package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/query"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) count(ctx context.Context, qb *query.Builder) (int, error) {
	var n int
	if err := db.QuerierFromContext(ctx, r.pool).QueryRow(ctx, qb.CountSQL(), qb.CountArgs()...).Scan(&n); err != nil {
		return 0, fmt.Errorf("dashboard count: %w", err)
	}
	return n, nil
}

func (r *repoPG) CountPatients(ctx context.Context) (int, error) {
	return r.count(ctx, query.New("patient", ""))
}

func (r *repoPG) CountActiveStaff(ctx context.Context) (int, error) {
	qb := query.New("utilisateur", "")
	qb.Add("actif")
	return r.count(ctx, qb)
}

func (r *repoPG) CountMedications(ctx context.Context) (int, error) {
	return r.count(ctx, query.New("medicament", ""))
}

func (r *repoPG) CountLowStock(ctx context.Context) (int, error) {
	qb := query.New("medicament", "")
	qb.Add("quantite_disponible <= seuil_alerte")
	return r.count(ctx, qb)
}

func (r *repoPG) CountPrescriptions(ctx context.Context, status string, doctorID *uuid.UUID) (int, error) {
	qb := query.New("prescription pr JOIN consultation c ON c.id = pr.consultation_id", "")
	if status != "" {
		qb.Eq("pr.statut", status)
	}
	if doctorID != nil {
		qb.Eq("c.medecin_id", *doctorID)
	}
	return r.count(ctx, qb)
}

func (r *repoPG) CountAppointments(ctx context.Context, from, to time.Time, doctorID *uuid.UUID) (int, error) {
	qb := query.New("rendez_vous", "")
	qb.Add(fmt.Sprintf("date_rdv >= $%d AND date_rdv < $%d", qb.Idx(), qb.Idx()+1), from, to)
	qb.Add("statut <> 'annule'")
	if doctorID != nil {
		qb.Eq("medecin_id", *doctorID)
	}
	return r.count(ctx, qb)
}

func (r *repoPG) CountCareEpisodes(ctx context.Context, f CareCount) (int, error) {
	qb := query.New("soin", "")
	if f.Status != "" {
		qb.Eq("statut_validation", f.Status)
	}
	if f.NurseID != nil {
		qb.Eq("infirmier_id", *f.NurseID)
	}
	if f.From != nil {
		qb.Add(fmt.Sprintf("date_soin >= $%d", qb.Idx()), *f.From)
	}
	if f.To != nil {
		qb.Add(fmt.Sprintf("date_soin < $%d", qb.Idx()), *f.To)
	}
	return r.count(ctx, qb)
}
