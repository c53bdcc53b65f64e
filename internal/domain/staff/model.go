package staff

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/auth"
)

// User maps to the utilisateur table.
type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	LastName     string    `db:"nom" json:"nom"`
	FirstName    string    `db:"prenom" json:"prenom"`
	Role         string    `db:"role" json:"role"`
	Active       bool      `db:"actif" json:"actif"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

type CreateUserRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	LastName  string `json:"nom"`
	FirstName string `json:"prenom"`
	Role      string `json:"role"`
}

// UpdateUserRequest changes only the fields that are set.
type UpdateUserRequest struct {
	LastName  *string `json:"nom"`
	FirstName *string `json:"prenom"`
	Role      *string `json:"role"`
	Active    *bool   `json:"actif"`
	Password  *string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token   string        `json:"token"`
	Session *auth.Session `json:"session"`
	User    *User         `json:"user"`
}

// ListFilter narrows user listings.
type ListFilter struct {
	Role       string
	Search     string
	ActiveOnly bool
}
