package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/patient"
)

const (
	StatusPlanned   = "planifie"
	StatusDone      = "termine"
	StatusCancelled = "annule"
)

type Appointment struct {
	ID           uuid.UUID `db:"id" json:"id"`
	PatientID    uuid.UUID `db:"patient_id" json:"patient_id"`
	DoctorID     uuid.UUID `db:"medecin_id" json:"medecin_id"`
	Date         time.Time `db:"date_rdv" json:"date_rdv"`
	Motive       string    `db:"motif" json:"motif"`
	Observations *string   `db:"observations" json:"observations,omitempty"`
	Status       string    `db:"statut" json:"statut"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`

	Patient *patient.Summary `json:"patient,omitempty"`
	Doctor  *DoctorRef       `json:"medecin,omitempty"`
}

type DoctorRef struct {
	ID        uuid.UUID `json:"id"`
	LastName  string    `json:"nom"`
	FirstName string    `json:"prenom"`
}

type ListFilter struct {
	Search    string
	Status    string
	DoctorID  *uuid.UUID
	PatientID *uuid.UUID
	// From and To bound date_rdv as [From, To).
	From *time.Time
	To   *time.Time
}
