package prescription

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/domain/medication"
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

const joinedFrom = `prescription pr
	JOIN consultation c ON c.id = pr.consultation_id
	JOIN patient pa ON pa.id = c.patient_id
	JOIN medicament m ON m.id = pr.medicament_id`

const joinedCols = `pr.id, pr.consultation_id, pr.medicament_id, pr.posologie, pr.duree, pr.quantite,
	pr.instructions, pr.statut, pr.quantite_delivree, pr.delivree_le, pr.delivree_par,
	pr.notes_delivrance, pr.created_at, pr.updated_at,
	c.date_consultation, c.motif, c.medecin_id,
	pa.id, pa.numero_dossier, pa.nom, pa.prenom,
	m.nom_commercial, m.nom_dci, m.forme, m.unite_forme, m.quantite_disponible,
	m.unite_quantite, m.seuil_alerte, m.unite_seuil, m.created_at, m.updated_at`

func (r *repoPG) Create(ctx context.Context, p *Prescription) error {
	p.ID = uuid.New()
	p.Status = StatusPending
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO prescription (id, consultation_id, medicament_id, posologie, duree, quantite, instructions, statut)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		p.ID, p.ConsultationID, p.MedicationID, p.Dosage, p.Duration, p.Quantity, p.Instructions, p.Status,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return apperr.FromDB(err, "prescription")
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	p, err := scanPrescription(r.conn(ctx).QueryRow(ctx, `SELECT `+joinedCols+` FROM `+joinedFrom+` WHERE pr.id = $1`, id))
	return p, apperr.FromDB(err, "prescription")
}

func (r *repoPG) Update(ctx context.Context, p *Prescription) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE prescription SET
			medicament_id = $2, posologie = $3, duree = $4, quantite = $5,
			instructions = $6, updated_at = NOW()
		WHERE id = $1 AND statut = 'en_attente'`,
		p.ID, p.MedicationID, p.Dosage, p.Duration, p.Quantity, p.Instructions)
	if err != nil {
		return apperr.FromDB(err, "prescription")
	}
	if tag.RowsAffected() == 0 {
		return r.statusError(ctx, p.ID, ErrNotPending)
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM prescription WHERE id = $1 AND statut <> 'delivree'`, id)
	if err != nil {
		return apperr.FromDB(err, "prescription")
	}
	if tag.RowsAffected() == 0 {
		return r.statusError(ctx, id, ErrDeliveredImmutable)
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Prescription, int, error) {
	qb := query.New(joinedFrom, joinedCols)
	if f.Status != "" {
		qb.Eq("pr.statut", f.Status)
	}
	if f.PatientID != nil {
		qb.Eq("c.patient_id", *f.PatientID)
	}
	if f.ConsultationID != nil {
		qb.Eq("pr.consultation_id", *f.ConsultationID)
	}
	if f.DoctorID != nil {
		qb.Eq("c.medecin_id", *f.DoctorID)
	}
	qb.SearchAny(f.Search, "pa.search_text", "m.search_text")
	qb.OrderBy("pr.created_at DESC")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, qb.CountSQL(), qb.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, apperr.FromDB(err, "prescriptions")
	}

	rows, err := r.conn(ctx).Query(ctx, qb.DataSQL(), qb.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, apperr.FromDB(err, "prescriptions")
	}
	defer rows.Close()

	var items []*Prescription
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

// MarkDelivered only matches pending rows, so of two concurrent deliveries
// of the same prescription exactly one succeeds.
func (r *repoPG) MarkDelivered(ctx context.Context, id uuid.UUID, d Delivery) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE prescription SET
			statut = 'delivree', quantite_delivree = $2, delivree_le = $3,
			delivree_par = $4, notes_delivrance = $5, updated_at = NOW()
		WHERE id = $1 AND statut = 'en_attente'`,
		id, d.Quantity, d.At, d.By, d.Notes)
	if err != nil {
		return apperr.FromDB(err, "prescription")
	}
	if tag.RowsAffected() == 0 {
		return r.statusError(ctx, id, ErrNotPending)
	}
	return nil
}

func (r *repoPG) Cancel(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE prescription SET statut = 'annulee', updated_at = NOW()
		WHERE id = $1 AND statut = 'en_attente'`, id)
	if err != nil {
		return apperr.FromDB(err, "prescription")
	}
	if tag.RowsAffected() == 0 {
		return r.statusError(ctx, id, ErrNotPending)
	}
	return nil
}

// statusError explains why a conditional write matched no row.
func (r *repoPG) statusError(ctx context.Context, id uuid.UUID, fallback error) error {
	var status string
	err := r.conn(ctx).QueryRow(ctx, `SELECT statut FROM prescription WHERE id = $1`, id).Scan(&status)
	if err != nil {
		return apperr.FromDB(err, "prescription")
	}
	if status == StatusDelivered && fallback == ErrNotPending {
		return ErrAlreadyDelivered
	}
	return fallback
}

func scanPrescription(row pgx.Row) (*Prescription, error) {
	var p Prescription
	cons := &ConsultationRef{Patient: &patient.Summary{}}
	med := &medication.Medication{}
	err := row.Scan(
		&p.ID, &p.ConsultationID, &p.MedicationID, &p.Dosage, &p.Duration, &p.Quantity,
		&p.Instructions, &p.Status, &p.DeliveredQuantity, &p.DeliveredAt, &p.DeliveredBy,
		&p.DeliveryNotes, &p.CreatedAt, &p.UpdatedAt,
		&cons.Date, &cons.Motive, &cons.DoctorID,
		&cons.Patient.ID, &cons.Patient.FileNumber, &cons.Patient.LastName, &cons.Patient.FirstName,
		&med.CommercialName, &med.DCIName, &med.Form, &med.FormUnit, &med.AvailableQuantity,
		&med.QuantityUnit, &med.AlertThreshold, &med.ThresholdUnit, &med.CreatedAt, &med.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	cons.ID = p.ConsultationID
	med.ID = p.MedicationID
	med.LowStock = med.IsLowStock()
	p.Consultation = cons
	p.Medication = med
	return &p, nil
}
