package client

import (
	"time"

	"github.com/google/uuid"
)

// Session is the identity returned at login.
type Session struct {
	ID        string    `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type PatientRef struct {
	ID         uuid.UUID `json:"id"`
	FileNumber string    `json:"numero_dossier"`
	LastName   string    `json:"nom"`
	FirstName  string    `json:"prenom"`
}

type Patient struct {
	PatientRef
	Sex        string  `json:"sexe"`
	BirthDate  string  `json:"date_naissance"`
	Address    *string `json:"adresse,omitempty"`
	Phone      *string `json:"telephone,omitempty"`
	BloodGroup *string `json:"groupe_sanguin,omitempty"`
	Allergies  *string `json:"allergies,omitempty"`
}

type Medication struct {
	ID                uuid.UUID `json:"id"`
	CommercialName    string    `json:"nom_commercial"`
	DCIName           string    `json:"nom_dci"`
	Form              string    `json:"forme"`
	AvailableQuantity int       `json:"quantite_disponible"`
	AlertThreshold    int       `json:"seuil_alerte"`
	LowStock          bool      `json:"stock_faible"`
}

type Consultation struct {
	ID       uuid.UUID   `json:"id"`
	Date     time.Time   `json:"date_consultation"`
	Motive   string      `json:"motif"`
	DoctorID uuid.UUID   `json:"medecin_id"`
	Patient  *PatientRef `json:"patient,omitempty"`
}

// Prescription carries everything needed to print a paper prescription.
type Prescription struct {
	ID                uuid.UUID     `json:"id"`
	ConsultationID    uuid.UUID     `json:"consultation_id"`
	MedicationID      uuid.UUID     `json:"medicament_id"`
	Dosage            string        `json:"posologie"`
	Duration          string        `json:"duree"`
	Quantity          int           `json:"quantite"`
	Instructions      *string       `json:"instructions,omitempty"`
	Status            string        `json:"statut"`
	DeliveredQuantity *int          `json:"quantite_delivree,omitempty"`
	DeliveredAt       *time.Time    `json:"delivree_le,omitempty"`
	Consultation      *Consultation `json:"consultation,omitempty"`
	Medication        *Medication   `json:"medicament,omitempty"`
}

// Delivery is the successful answer of a delivery.
type Delivery struct {
	Message      string        `json:"message"`
	Prescription *Prescription `json:"prescription"`
	Medication   *Medication   `json:"medicament"`
}
