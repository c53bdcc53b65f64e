package medication

import (
	"time"

	"github.com/google/uuid"
)

// Medication maps to the medicament table.
type Medication struct {
	ID                uuid.UUID `db:"id" json:"id"`
	CommercialName    string    `db:"nom_commercial" json:"nom_commercial"`
	DCIName           string    `db:"nom_dci" json:"nom_dci"`
	Form              string    `db:"forme" json:"forme"`
	FormUnit          *string   `db:"unite_forme" json:"unite_forme,omitempty"`
	AvailableQuantity int       `db:"quantite_disponible" json:"quantite_disponible"`
	QuantityUnit      *string   `db:"unite_quantite" json:"unite_quantite,omitempty"`
	AlertThreshold    int       `db:"seuil_alerte" json:"seuil_alerte"`
	ThresholdUnit     *string   `db:"unite_seuil" json:"unite_seuil,omitempty"`
	LowStock          bool      `json:"stock_faible"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// IsLowStock reports whether the stock is at or below the alert threshold.
func (m *Medication) IsLowStock() bool {
	return m.AvailableQuantity <= m.AlertThreshold
}

func (m *Medication) refreshLowStock() {
	m.LowStock = m.IsLowStock()
}

type ListFilter struct {
	Search       string
	LowStockOnly bool
}

type RestockRequest struct {
	Quantity int `json:"quantite"`
}
