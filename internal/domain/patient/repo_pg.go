package patient

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

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

const patientCols = `id, numero_dossier, nom, prenom, sexe, date_naissance,
	adresse, telephone, groupe_sanguin, allergies, created_at, updated_at`

func searchText(p *Patient) string {
	return query.SearchText(p.FileNumber, p.LastName, p.FirstName)
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient (id, numero_dossier, nom, prenom, sexe, date_naissance,
			adresse, telephone, groupe_sanguin, allergies, search_text)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`,
		p.ID, p.FileNumber, p.LastName, p.FirstName, p.Sex, p.BirthDate.Time,
		p.Address, p.Phone, p.BloodGroup, p.Allergies, searchText(p),
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return apperr.FromDB(err, "patient")
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
	return p, apperr.FromDB(err, "patient")
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE patient SET
			numero_dossier = $2, nom = $3, prenom = $4, sexe = $5, date_naissance = $6,
			adresse = $7, telephone = $8, groupe_sanguin = $9, allergies = $10,
			search_text = $11, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		p.ID, p.FileNumber, p.LastName, p.FirstName, p.Sex, p.BirthDate.Time,
		p.Address, p.Phone, p.BloodGroup, p.Allergies, searchText(p),
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return apperr.FromDB(err, "patient")
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patient WHERE id = $1`, id)
	if err != nil {
		return apperr.FromDB(err, "patient")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("patient")
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, search string, limit, offset int) ([]*Patient, int, error) {
	qb := query.New("patient", patientCols)
	qb.Search("search_text", search)
	qb.OrderBy("nom, prenom, numero_dossier")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, qb.CountSQL(), qb.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, apperr.FromDB(err, "patients")
	}

	rows, err := r.conn(ctx).Query(ctx, qb.DataSQL(), qb.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, apperr.FromDB(err, "patients")
	}
	defer rows.Close()

	var patients []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		patients = append(patients, p)
	}
	return patients, total, rows.Err()
}

func (r *repoPG) NextFileSequence(ctx context.Context) (int64, error) {
	var n int64
	err := r.conn(ctx).QueryRow(ctx, `SELECT nextval('patient_dossier_seq')`).Scan(&n)
	return n, err
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.FileNumber, &p.LastName, &p.FirstName, &p.Sex, &p.BirthDate.Time,
		&p.Address, &p.Phone, &p.BloodGroup, &p.Allergies, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
