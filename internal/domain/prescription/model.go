package prescription

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/medication"
	"github.com/clinic/clinic/internal/domain/patient"
)

const (
	StatusPending   = "en_attente"
	StatusDelivered = "delivree"
	StatusCancelled = "annulee"
)

// Prescription maps to the prescription table. Consultation and Medication
// are resolved by the store and ignored on input.
type Prescription struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	ConsultationID    uuid.UUID  `db:"consultation_id" json:"consultation_id"`
	MedicationID      uuid.UUID  `db:"medicament_id" json:"medicament_id"`
	Dosage            string     `db:"posologie" json:"posologie"`
	Duration          string     `db:"duree" json:"duree"`
	Quantity          int        `db:"quantite" json:"quantite"`
	Instructions      *string    `db:"instructions" json:"instructions,omitempty"`
	Status            string     `db:"statut" json:"statut"`
	DeliveredQuantity *int       `db:"quantite_delivree" json:"quantite_delivree,omitempty"`
	DeliveredAt       *time.Time `db:"delivree_le" json:"delivree_le,omitempty"`
	DeliveredBy       *uuid.UUID `db:"delivree_par" json:"delivree_par,omitempty"`
	DeliveryNotes     *string    `db:"notes_delivrance" json:"notes_delivrance,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`

	Consultation *ConsultationRef       `json:"consultation,omitempty"`
	Medication   *medication.Medication `json:"medicament,omitempty"`
}

// ConsultationRef is the read-only view of the consultation a prescription
// was written in.
type ConsultationRef struct {
	ID       uuid.UUID        `json:"id"`
	Date     time.Time        `json:"date_consultation"`
	Motive   string           `json:"motif"`
	DoctorID uuid.UUID        `json:"medecin_id"`
	Patient  *patient.Summary `json:"patient"`
}

type ListFilter struct {
	Search         string
	Status         string
	PatientID      *uuid.UUID
	ConsultationID *uuid.UUID
	DoctorID       *uuid.UUID
}

// DeliverRequest is the pharmacist's delivery payload.
type DeliverRequest struct {
	Quantity int     `json:"quantity"`
	Notes    *string `json:"notes,omitempty"`
}

// Delivery is what MarkDelivered records on the prescription.
type Delivery struct {
	Quantity int
	By       uuid.UUID
	At       time.Time
	Notes    *string
}

// DeliveryResult is the outcome of a delivery. On a stock shortage only
// Prescription is set and reflects the unchanged record.
type DeliveryResult struct {
	Prescription *Prescription
	Medication   *medication.Medication
}
