package medication

import (
	"context"
	"errors"

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

const medicationCols = `id, nom_commercial, nom_dci, forme, unite_forme,
	quantite_disponible, unite_quantite, seuil_alerte, unite_seuil, created_at, updated_at`

func searchText(m *Medication) string {
	return query.SearchText(m.CommercialName, m.DCIName, m.Form)
}

func (r *repoPG) Create(ctx context.Context, m *Medication) error {
	m.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medicament (id, nom_commercial, nom_dci, forme, unite_forme,
			quantite_disponible, unite_quantite, seuil_alerte, unite_seuil, search_text)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`,
		m.ID, m.CommercialName, m.DCIName, m.Form, m.FormUnit,
		m.AvailableQuantity, m.QuantityUnit, m.AlertThreshold, m.ThresholdUnit, searchText(m),
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	m.refreshLowStock()
	return apperr.FromDB(err, "medication")
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Medication, error) {
	m, err := scanMedication(r.conn(ctx).QueryRow(ctx, `SELECT `+medicationCols+` FROM medicament WHERE id = $1`, id))
	return m, apperr.FromDB(err, "medication")
}

func (r *repoPG) Update(ctx context.Context, m *Medication) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE medicament SET
			nom_commercial = $2, nom_dci = $3, forme = $4, unite_forme = $5,
			unite_quantite = $6, seuil_alerte = $7, unite_seuil = $8,
			search_text = $9, updated_at = NOW()
		WHERE id = $1
		RETURNING quantite_disponible, created_at, updated_at`,
		m.ID, m.CommercialName, m.DCIName, m.Form, m.FormUnit,
		m.QuantityUnit, m.AlertThreshold, m.ThresholdUnit, searchText(m),
	).Scan(&m.AvailableQuantity, &m.CreatedAt, &m.UpdatedAt)
	m.refreshLowStock()
	return apperr.FromDB(err, "medication")
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM medicament WHERE id = $1`, id)
	if db.IsForeignKeyViolation(err) {
		return apperr.Conflictf("medication is referenced by prescriptions")
	}
	if err != nil {
		return apperr.FromDB(err, "medication")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("medication")
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Medication, int, error) {
	qb := query.New("medicament", medicationCols)
	qb.Search("search_text", f.Search)
	if f.LowStockOnly {
		qb.Add("quantite_disponible <= seuil_alerte")
		qb.OrderBy("quantite_disponible - seuil_alerte, nom_commercial")
	} else {
		qb.OrderBy("nom_commercial, nom_dci")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, qb.CountSQL(), qb.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, apperr.FromDB(err, "medications")
	}

	rows, err := r.conn(ctx).Query(ctx, qb.DataSQL(), qb.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, apperr.FromDB(err, "medications")
	}
	defer rows.Close()

	var meds []*Medication
	for rows.Next() {
		m, err := scanMedication(rows)
		if err != nil {
			return nil, 0, err
		}
		meds = append(meds, m)
	}
	return meds, total, rows.Err()
}

func (r *repoPG) Restock(ctx context.Context, id uuid.UUID, qty int) (*Medication, error) {
	m, err := scanMedication(r.conn(ctx).QueryRow(ctx, `
		UPDATE medicament SET quantite_disponible = quantite_disponible + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+medicationCols, id, qty))
	return m, apperr.FromDB(err, "medication")
}

// Decrement is a single conditional UPDATE, so two concurrent deliveries
// can never both pass the stock check.
func (r *repoPG) Decrement(ctx context.Context, id uuid.UUID, qty int) (*Medication, error) {
	m, err := scanMedication(r.conn(ctx).QueryRow(ctx, `
		UPDATE medicament SET quantite_disponible = quantite_disponible - $2, updated_at = NOW()
		WHERE id = $1 AND quantite_disponible >= $2
		RETURNING `+medicationCols, id, qty))
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.FromDB(err, "medication")
	}

	var exists bool
	if err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM medicament WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, apperr.FromDB(err, "medication")
	}
	if !exists {
		return nil, apperr.NotFound("medication")
	}
	return nil, ErrStockShortage
}

func scanMedication(row pgx.Row) (*Medication, error) {
	var m Medication
	err := row.Scan(&m.ID, &m.CommercialName, &m.DCIName, &m.Form, &m.FormUnit,
		&m.AvailableQuantity, &m.QuantityUnit, &m.AlertThreshold, &m.ThresholdUnit,
		&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.refreshLowStock()
	return &m, nil
}
