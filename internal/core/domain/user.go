package domain

import (
	"strings"
	"time"
)

// Role is the kind of account a user holds.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleClinic  Role = "CLINIC"
	RolePatient Role = "PATIENT"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleClinic, RolePatient:
		return true
	}
	return false
}

// User is the persisted account record. ClinicID is only meaningful for
// patients; Actor enforces that at the type level.
type User struct {
	ID                 int64
	Name               string
	Email              string
	PasswordHash       string
	Role               Role
	ClinicID           *int64
	MustChangePassword bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Actor converts the record into its role variant.
func (u *User) Actor() (Actor, error) {
	return NewActor(u.ID, u.Role, u.ClinicID)
}

// Party returns the summary embedded in visits.
func (u *User) Party() *Party {
	return &Party{ID: u.ID, Name: u.Name, Email: u.Email}
}

// NormalizeEmail lowercases and trims an address so uniqueness is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
