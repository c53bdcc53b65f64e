package patient

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

// Date is a calendar date serialized as YYYY-MM-DD.
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(dateLayout))
}

// UnmarshalJSON accepts YYYY-MM-DD and full RFC 3339 timestamps.
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		if string(b) == "null" {
			d.Time = time.Time{}
			return nil
		}
		return fmt.Errorf("date must be a string")
	}
	s = strings.TrimSpace(s)
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	d.Time = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return nil
}

// Patient maps to the patient table.
type Patient struct {
	ID         uuid.UUID `db:"id" json:"id"`
	FileNumber string    `db:"numero_dossier" json:"numero_dossier"`
	LastName   string    `db:"nom" json:"nom"`
	FirstName  string    `db:"prenom" json:"prenom"`
	Sex        string    `db:"sexe" json:"sexe"`
	BirthDate  Date      `db:"date_naissance" json:"date_naissance"`
	Address    *string   `db:"adresse" json:"adresse,omitempty"`
	Phone      *string   `db:"telephone" json:"telephone,omitempty"`
	BloodGroup *string   `db:"groupe_sanguin" json:"groupe_sanguin,omitempty"`
	Allergies  *string   `db:"allergies" json:"allergies,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

func (p *Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

// Age returns the patient's age in whole years at the given time.
func (p *Patient) Age(at time.Time) int {
	if p.BirthDate.IsZero() {
		return 0
	}
	years := at.Year() - p.BirthDate.Year()
	if at.YearDay() < p.BirthDate.YearDay() {
		years--
	}
	return years
}

// Summary is the read-only view of a patient embedded in other records.
type Summary struct {
	ID         uuid.UUID `json:"id"`
	FileNumber string    `json:"numero_dossier"`
	LastName   string    `json:"nom"`
	FirstName  string    `json:"prenom"`
}
