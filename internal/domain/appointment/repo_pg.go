package appointment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/domain/patient"
	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/query"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.QuerierFromContext(ctx, r.pool)
}

const joinedFrom = `rendez_vous r
	JOIN patient pa ON pa.id = r.patient_id
	JOIN utilisateur u ON u.id = r.medecin_id`

const joinedCols = `r.id, r.patient_id, r.medecin_id, r.date_rdv, r.motif, r.observations, r.statut,
	r.created_at, r.updated_at,
	pa.numero_dossier, pa.nom, pa.prenom, u.nom, u.prenom`

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO rendez_vous (id, patient_id, medecin_id, date_rdv, motif, observations, statut)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.DoctorID, a.Date, a.Motive, a.Observations, a.Status,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	return apperr.FromDB(err, "appointment")
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := scanAppointment(r.conn(ctx).QueryRow(ctx, `SELECT `+joinedCols+` FROM `+joinedFrom+` WHERE r.id = $1`, id))
	return a, apperr.FromDB(err, "appointment")
}

func (r *repoPG) Update(ctx context.Context, a *Appointment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE rendez_vous SET
			patient_id = $2, medecin_id = $3, date_rdv = $4, motif = $5,
			observations = $6, statut = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.DoctorID, a.Date, a.Motive, a.Observations, a.Status,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	return apperr.FromDB(err, "appointment")
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM rendez_vous WHERE id = $1`, id)
	if err != nil {
		return apperr.FromDB(err, "appointment")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("appointment")
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Appointment, int, error) {
	qb := query.New(joinedFrom, joinedCols)
	if f.Status != "" {
		qb.Eq("r.statut", f.Status)
	}
	if f.DoctorID != nil {
		qb.Eq("r.medecin_id", *f.DoctorID)
	}
	if f.PatientID != nil {
		qb.Eq("r.patient_id", *f.PatientID)
	}
	if f.From != nil {
		qb.Add(fmt.Sprintf("r.date_rdv >= $%d", qb.Idx()), *f.From)
	}
	if f.To != nil {
		qb.Add(fmt.Sprintf("r.date_rdv < $%d", qb.Idx()), *f.To)
	}
	qb.SearchAny(f.Search, "pa.search_text", "u.search_text")
	qb.OrderBy("r.date_rdv")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, qb.CountSQL(), qb.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, apperr.FromDB(err, "appointments")
	}

	rows, err := r.conn(ctx).Query(ctx, qb.DataSQL(), qb.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, apperr.FromDB(err, "appointments")
	}
	defer rows.Close()

	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	p := &patient.Summary{}
	d := &DoctorRef{}
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.Date, &a.Motive, &a.Observations, &a.Status,
		&a.CreatedAt, &a.UpdatedAt,
		&p.FileNumber, &p.LastName, &p.FirstName, &d.LastName, &d.FirstName)
	if err != nil {
		return nil, err
	}
	p.ID = a.PatientID
	d.ID = a.DoctorID
	a.Patient = p
	a.Doctor = d
	return &a, nil
}
