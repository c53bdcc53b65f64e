package carnet

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/domain/patient"
	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/query"
)

// listPage runs the count and page queries of qb and scans each row.
func listPage[T any](ctx context.Context, q db.Querier, qb *query.Builder, limit, offset int, what string, scan func(pgx.Row) (*T, error)) ([]*T, int, error) {
	var total int
	if err := q.QueryRow(ctx, qb.CountSQL(), qb.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, apperr.FromDB(err, what)
	}

	rows, err := q.Query(ctx, qb.DataSQL(), qb.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, apperr.FromDB(err, what)
	}
	defer rows.Close()

	var items []*T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	return items, total, rows.Err()
}

func applyFilter(qb *query.Builder, alias, authorCol string, f Filter) {
	if f.PatientID != nil {
		qb.Eq(alias+".patient_id", *f.PatientID)
	}
	if f.AuthorID != nil {
		qb.Eq(alias+"."+authorCol, *f.AuthorID)
	}
	qb.SearchAny(f.Search, "pa.search_text")
}

// -- Consultation --

type consultationRepoPG struct {
	pool *pgxpool.Pool
}

func NewConsultationRepo(pool *pgxpool.Pool) ConsultationRepository {
	return &consultationRepoPG{pool: pool}
}

func (r *consultationRepoPG) conn(ctx context.Context) db.Querier {
	return db.QuerierFromContext(ctx, r.pool)
}

const consultationFrom = `consultation c JOIN patient pa ON pa.id = c.patient_id`

const consultationCols = `c.id, c.patient_id, c.medecin_id, c.date_consultation, c.motif, c.diagnostic, c.notes,
	c.created_at, c.updated_at, pa.numero_dossier, pa.nom, pa.prenom`

func (r *consultationRepoPG) Create(ctx context.Context, c *Consultation) error {
	c.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO consultation (id, patient_id, medecin_id, date_consultation, motif, diagnostic, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		c.ID, c.PatientID, c.DoctorID, c.Date, c.Motive, c.Diagnosis, c.Notes,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	return apperr.FromDB(err, "consultation")
}

func (r *consultationRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	c, err := scanConsultation(r.conn(ctx).QueryRow(ctx, `SELECT `+consultationCols+` FROM `+consultationFrom+` WHERE c.id = $1`, id))
	return c, apperr.FromDB(err, "consultation")
}

func (r *consultationRepoPG) Update(ctx context.Context, c *Consultation) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE consultation SET
			date_consultation = $2, motif = $3, diagnostic = $4, notes = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		c.ID, c.Date, c.Motive, c.Diagnosis, c.Notes,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	return apperr.FromDB(err, "consultation")
}

// Delete cascades to the consultation's prescriptions, so it is refused
// once one of them was delivered.
func (r *consultationRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		DELETE FROM consultation WHERE id = $1
		AND NOT EXISTS (SELECT 1 FROM prescription WHERE consultation_id = $1 AND statut = 'delivree')`, id)
	if err != nil {
		return apperr.FromDB(err, "consultation")
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var exists bool
	if err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM consultation WHERE id = $1)`, id).Scan(&exists); err != nil {
		return apperr.FromDB(err, "consultation")
	}
	if !exists {
		return apperr.NotFound("consultation")
	}
	return ErrHasDeliveries
}

func (r *consultationRepoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Consultation, int, error) {
	qb := query.New(consultationFrom, consultationCols)
	applyFilter(qb, "c", "medecin_id", f)
	qb.OrderBy("c.date_consultation DESC")
	return listPage(ctx, r.conn(ctx), qb, limit, offset, "consultations", scanConsultation)
}

func scanConsultation(row pgx.Row) (*Consultation, error) {
	var c Consultation
	p := &patient.Summary{}
	err := row.Scan(&c.ID, &c.PatientID, &c.DoctorID, &c.Date, &c.Motive, &c.Diagnosis, &c.Notes,
		&c.CreatedAt, &c.UpdatedAt, &p.FileNumber, &p.LastName, &p.FirstName)
	if err != nil {
		return nil, err
	}
	p.ID = c.PatientID
	c.Patient = p
	return &c, nil
}

// -- Care episode --

type careRepoPG struct {
	pool *pgxpool.Pool
}

func NewCareEpisodeRepo(pool *pgxpool.Pool) CareEpisodeRepository {
	return &careRepoPG{pool: pool}
}

func (r *careRepoPG) conn(ctx context.Context) db.Querier {
	return db.QuerierFromContext(ctx, r.pool)
}

const careFrom = `soin s JOIN patient pa ON pa.id = s.patient_id`

const careCols = `s.id, s.patient_id, s.infirmier_id, s.medecin_id, s.type_soin, s.date_soin, s.observations,
	s.temperature, s.tension_systolique, s.tension_diastolique, s.pouls, s.frequence_respiratoire,
	s.saturation_oxygene, s.poids, s.statut_validation, s.commentaire_validation, s.valide_le,
	s.created_at, s.updated_at, pa.numero_dossier, pa.nom, pa.prenom`

func (r *careRepoPG) Create(ctx context.Context, e *CareEpisode) error {
	e.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO soin (id, patient_id, infirmier_id, medecin_id, type_soin, date_soin, observations,
			temperature, tension_systolique, tension_diastolique, pouls, frequence_respiratoire,
			saturation_oxygene, poids, statut_validation)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at, updated_at`,
		e.ID, e.PatientID, e.NurseID, e.DoctorID, e.Type, e.PerformedAt, e.Observations,
		e.Temperature, e.SystolicBP, e.DiastolicBP, e.Pulse, e.RespiratoryRate,
		e.OxygenSaturation, e.Weight, e.ValidationStatus,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	return apperr.FromDB(err, "care episode")
}

func (r *careRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*CareEpisode, error) {
	e, err := scanCareEpisode(r.conn(ctx).QueryRow(ctx, `SELECT `+careCols+` FROM `+careFrom+` WHERE s.id = $1`, id))
	return e, apperr.FromDB(err, "care episode")
}

func (r *careRepoPG) Update(ctx context.Context, e *CareEpisode) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE soin SET
			type_soin = $2, date_soin = $3, observations = $4, temperature = $5,
			tension_systolique = $6, tension_diastolique = $7, pouls = $8,
			frequence_respiratoire = $9, saturation_oxygene = $10, poids = $11, updated_at = NOW()
		WHERE id = $1 AND statut_validation = 'en_attente'`,
		e.ID, e.Type, e.PerformedAt, e.Observations, e.Temperature,
		e.SystolicBP, e.DiastolicBP, e.Pulse, e.RespiratoryRate, e.OxygenSaturation, e.Weight)
	if err != nil {
		return apperr.FromDB(err, "care episode")
	}
	if tag.RowsAffected() == 0 {
		return r.missingOrReviewed(ctx, e.ID)
	}
	return nil
}

func (r *careRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	return deleteRow(ctx, r.conn(ctx), `DELETE FROM soin WHERE id = $1`, id, "care episode")
}

func (r *careRepoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*CareEpisode, int, error) {
	qb := query.New(careFrom, careCols)
	applyFilter(qb, "s", "infirmier_id", f)
	if f.Status != "" {
		qb.Eq("s.statut_validation", f.Status)
	}
	qb.OrderBy("s.date_soin DESC")
	return listPage(ctx, r.conn(ctx), qb, limit, offset, "care episodes", scanCareEpisode)
}

// Review only matches pending rows so a decision cannot be overwritten.
func (r *careRepoPG) Review(ctx context.Context, id uuid.UUID, rv Review) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE soin SET
			statut_validation = $2, commentaire_validation = $3, medecin_id = $4,
			valide_le = $5, updated_at = NOW()
		WHERE id = $1 AND statut_validation = 'en_attente'`,
		id, rv.Status, rv.Comment, rv.DoctorID, rv.At)
	if err != nil {
		return apperr.FromDB(err, "care episode")
	}
	if tag.RowsAffected() == 0 {
		return r.missingOrReviewed(ctx, id)
	}
	return nil
}

func (r *careRepoPG) missingOrReviewed(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM soin WHERE id = $1)`, id).Scan(&exists); err != nil {
		return apperr.FromDB(err, "care episode")
	}
	if !exists {
		return apperr.NotFound("care episode")
	}
	return ErrAlreadyReviewed
}

func scanCareEpisode(row pgx.Row) (*CareEpisode, error) {
	var e CareEpisode
	p := &patient.Summary{}
	err := row.Scan(&e.ID, &e.PatientID, &e.NurseID, &e.DoctorID, &e.Type, &e.PerformedAt, &e.Observations,
		&e.Temperature, &e.SystolicBP, &e.DiastolicBP, &e.Pulse, &e.RespiratoryRate,
		&e.OxygenSaturation, &e.Weight, &e.ValidationStatus, &e.ValidationComment, &e.ValidatedAt,
		&e.CreatedAt, &e.UpdatedAt, &p.FileNumber, &p.LastName, &p.FirstName)
	if err != nil {
		return nil, err
	}
	p.ID = e.PatientID
	e.Patient = p
	return &e, nil
}

// -- Exam --

type examRepoPG struct {
	pool *pgxpool.Pool
}

func NewExamRepo(pool *pgxpool.Pool) ExamRepository {
	return &examRepoPG{pool: pool}
}

func (r *examRepoPG) conn(ctx context.Context) db.Querier {
	return db.QuerierFromContext(ctx, r.pool)
}

const examFrom = `examen x JOIN patient pa ON pa.id = x.patient_id`

const examCols = `x.id, x.patient_id, x.medecin_id, x.type_examen, x.date_demande, x.date_realisation,
	x.resultat, x.statut, x.created_at, x.updated_at, pa.numero_dossier, pa.nom, pa.prenom`

func (r *examRepoPG) Create(ctx context.Context, e *Exam) error {
	e.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO examen (id, patient_id, medecin_id, type_examen, date_demande, date_realisation, resultat, statut)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		e.ID, e.PatientID, e.DoctorID, e.Type, e.RequestedAt, e.PerformedAt, e.Result, e.Status,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	return apperr.FromDB(err, "exam")
}

func (r *examRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Exam, error) {
	e, err := scanExam(r.conn(ctx).QueryRow(ctx, `SELECT `+examCols+` FROM `+examFrom+` WHERE x.id = $1`, id))
	return e, apperr.FromDB(err, "exam")
}

func (r *examRepoPG) Update(ctx context.Context, e *Exam) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE examen SET
			type_examen = $2, date_demande = $3, date_realisation = $4, resultat = $5,
			statut = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		e.ID, e.Type, e.RequestedAt, e.PerformedAt, e.Result, e.Status,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	return apperr.FromDB(err, "exam")
}

func (r *examRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	return deleteRow(ctx, r.conn(ctx), `DELETE FROM examen WHERE id = $1`, id, "exam")
}

func (r *examRepoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Exam, int, error) {
	qb := query.New(examFrom, examCols)
	applyFilter(qb, "x", "medecin_id", f)
	if f.Status != "" {
		qb.Eq("x.statut", f.Status)
	}
	qb.OrderBy("x.date_demande DESC")
	return listPage(ctx, r.conn(ctx), qb, limit, offset, "exams", scanExam)
}

func scanExam(row pgx.Row) (*Exam, error) {
	var e Exam
	p := &patient.Summary{}
	err := row.Scan(&e.ID, &e.PatientID, &e.DoctorID, &e.Type, &e.RequestedAt, &e.PerformedAt,
		&e.Result, &e.Status, &e.CreatedAt, &e.UpdatedAt, &p.FileNumber, &p.LastName, &p.FirstName)
	if err != nil {
		return nil, err
	}
	p.ID = e.PatientID
	e.Patient = p
	return &e, nil
}

func deleteRow(ctx context.Context, q db.Querier, sql string, id uuid.UUID, what string) error {
	tag, err := q.Exec(ctx, sql, id)
	if err != nil {
		return apperr.FromDB(err, what)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(what)
	}
	return nil
}
