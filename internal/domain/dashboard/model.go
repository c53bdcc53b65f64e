package dashboard

import (
	"time"

	"github.com/google/uuid"
)

// Counter keys.
const (
	KeyPatients             = "patients"
	KeyStaff                = "personnel"
	KeyMedications          = "medicaments"
	KeyPrescriptions        = "prescriptions"
	KeyAppointmentsToday    = "rendez_vous_du_jour"
	KeyPendingCare          = "soins_en_attente"
	KeyCareToday            = "soins_du_jour"
	KeyPendingPrescriptions = "prescriptions_en_attente"
	KeyLowStock             = "stock_faible"
	KeyWrittenPrescriptions = "prescriptions_redigees"
)

// Dashboard holds the counters shown to one role.
type Dashboard struct {
	Role        string         `json:"role"`
	Counters    map[string]int `json:"counters"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// CareCount narrows CountCareEpisodes. Zero values match everything.
type CareCount struct {
	Status  string
	NurseID *uuid.UUID
	From    *time.Time
	To      *time.Time
}
