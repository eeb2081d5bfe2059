package domain

import "fmt"

// Actor is the authenticated caller. It is a closed set of variants: Admin,
// Clinic and Patient. Only Patient carries a clinic reference.
type Actor interface {
	ActorID() int64
	ActorRole() Role
	isActor()
}

type Admin struct {
	ID int64
}

type Clinic struct {
	ID int64
}

// Patient may be unassigned, in which case ClinicID is nil.
type Patient struct {
	ID       int64
	ClinicID *int64
}

func (a Admin) ActorID() int64  { return a.ID }
func (Admin) ActorRole() Role    { return RoleAdmin }
func (Admin) isActor()           {}
func (c Clinic) ActorID() int64  { return c.ID }
func (Clinic) ActorRole() Role   { return RoleClinic }
func (Clinic) isActor()          {}
func (p Patient) ActorID() int64 { return p.ID }
func (Patient) ActorRole() Role  { return RolePatient }
func (Patient) isActor()         {}

// NewActor builds the variant for role. A clinic reference on anything but a
// patient is rejected.
func NewActor(id int64, role Role, clinicID *int64) (Actor, error) {
	if role != RolePatient && clinicID != nil {
		return nil, fmt.Errorf("%w: only patients can belong to a clinic", ErrValidation)
	}
	switch role {
	case RoleAdmin:
		return Admin{ID: id}, nil
	case RoleClinic:
		return Clinic{ID: id}, nil
	case RolePatient:
		return Patient{ID: id, ClinicID: clinicID}, nil
	}
	return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
}
