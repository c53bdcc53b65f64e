package carnet

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/appointment"
	"github.com/clinic/clinic/internal/domain/patient"
	"github.com/clinic/clinic/internal/domain/prescription"
)

// Care episode review states.
const (
	ReviewPending  = "en_attente"
	ReviewApproved = "valide"
	ReviewRejected = "rejete"
)

// Exam states.
const (
	ExamRequested = "demande"
	ExamDone      = "realise"
)

type Consultation struct {
	ID        uuid.UUID `db:"id" json:"id"`
	PatientID uuid.UUID `db:"patient_id" json:"patient_id"`
	DoctorID  uuid.UUID `db:"medecin_id" json:"medecin_id"`
	Date      time.Time `db:"date_consultation" json:"date_consultation"`
	Motive    string    `db:"motif" json:"motif"`
	Diagnosis *string   `db:"diagnostic" json:"diagnostic,omitempty"`
	Notes     *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	Patient *patient.Summary `json:"patient,omitempty"`
}

// CareEpisode is a nursing act (soin) with the vitals taken during it. A
// doctor reviews each episode once.
type CareEpisode struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	PatientID         uuid.UUID  `db:"patient_id" json:"patient_id"`
	NurseID           uuid.UUID  `db:"infirmier_id" json:"infirmier_id"`
	DoctorID          *uuid.UUID `db:"medecin_id" json:"medecin_id,omitempty"`
	Type              string     `db:"type_soin" json:"type_soin"`
	PerformedAt       time.Time  `db:"date_soin" json:"date_soin"`
	Observations      *string    `db:"observations" json:"observations,omitempty"`
	Temperature       *float64   `db:"temperature" json:"temperature,omitempty"`
	SystolicBP        *int       `db:"tension_systolique" json:"tension_systolique,omitempty"`
	DiastolicBP       *int       `db:"tension_diastolique" json:"tension_diastolique,omitempty"`
	Pulse             *int       `db:"pouls" json:"pouls,omitempty"`
	RespiratoryRate   *int       `db:"frequence_respiratoire" json:"frequence_respiratoire,omitempty"`
	OxygenSaturation  *int       `db:"saturation_oxygene" json:"saturation_oxygene,omitempty"`
	Weight            *float64   `db:"poids" json:"poids,omitempty"`
	ValidationStatus  string     `db:"statut_validation" json:"statut_validation"`
	ValidationComment *string    `db:"commentaire_validation" json:"commentaire_validation,omitempty"`
	ValidatedAt       *time.Time `db:"valide_le" json:"valide_le,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`

	Patient *patient.Summary `json:"patient,omitempty"`
}

type Exam struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	PatientID   uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID    uuid.UUID  `db:"medecin_id" json:"medecin_id"`
	Type        string     `db:"type_examen" json:"type_examen"`
	RequestedAt time.Time  `db:"date_demande" json:"date_demande"`
	PerformedAt *time.Time `db:"date_realisation" json:"date_realisation,omitempty"`
	Result      *string    `db:"resultat" json:"resultat,omitempty"`
	Status      string     `db:"statut" json:"statut"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`

	Patient *patient.Summary `json:"patient,omitempty"`
}

// ReviewRequest is a doctor's decision on a care episode.
type ReviewRequest struct {
	Status  string  `json:"statut_validation"`
	Comment *string `json:"commentaire,omitempty"`
}

// Review is what the store records for a decision.
type Review struct {
	Status   string
	Comment  *string
	DoctorID uuid.UUID
	At       time.Time
}

// Filter narrows the consultation, care episode and exam lists. AuthorID
// matches the doctor for consultations and exams and the nurse for care
// episodes.
type Filter struct {
	Search    string
	PatientID *uuid.UUID
	AuthorID  *uuid.UUID
	Status    string
}

// Carnet is a patient's full medical record.
type Carnet struct {
	Patient       *patient.Patient             `json:"patient"`
	Consultations []*Consultation              `json:"consultations"`
	CareEpisodes  []*CareEpisode               `json:"soins"`
	Exams         []*Exam                      `json:"examens"`
	Prescriptions []*prescription.Prescription `json:"prescriptions"`
	Appointments  []*appointment.Appointment   `json:"rendez_vous"`
}
