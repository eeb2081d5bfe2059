package service

import (
	"fmt"

	"github.com/dentalcare/clinic-visits/internal/core/domain"
	"github.com/dentalcare/clinic-visits/internal/core/ports"
)

// ScopeCreateVisit rewrites a create request to what the actor may author.
// Clinics always book into their own schedule; patients book for themselves
// into their assigned clinic with the default status.
func ScopeCreateVisit(actor domain.Actor, in ports.CreateVisitInput) (ports.CreateVisitInput, error) {
	switch a := actor.(type) {
	case domain.Admin:
		return in, nil
	case domain.Clinic:
		in.ClinicID = a.ID
		return in, nil
	case domain.Patient:
		if a.ClinicID == nil {
			return in, fmt.Errorf("%w: patient must be assigned to a clinic", domain.ErrPrecondition)
		}
		in.PatientID = a.ID
		in.ClinicID = *a.ClinicID
		in.Status = domain.StatusProgramada
		return in, nil
	}
	return in, domain.ErrForbidden
}

// ScopeUpdateVisit strips the fields the actor may not change.
func ScopeUpdateVisit(actor domain.Actor, in ports.UpdateVisitInput) (ports.UpdateVisitInput, error) {
	switch a := actor.(type) {
	case domain.Admin:
		return in, nil
	case domain.Clinic:
		if in.ClinicID != nil {
			id := a.ID
			in.ClinicID = &id
		}
		return in, nil
	case domain.Patient:
		in.PatientID = nil
		in.ClinicID = nil
		in.Status = nil
		return in, nil
	}
	return in, domain.ErrForbidden
}

// ScopeClinicID narrows a clinic filter. A clinic asking for another clinic is
// redirected to its own schedule; a patient is redirected to its assigned
// clinic (0 when unassigned).
func ScopeClinicID(actor domain.Actor, clinicID int64) int64 {
	switch a := actor.(type) {
	case domain.Clinic:
		return a.ID
	case domain.Patient:
		if a.ClinicID == nil {
			return 0
		}
		return *a.ClinicID
	}
	return clinicID
}

// ScopePatientID narrows a patient filter. Patients only see themselves.
func ScopePatientID(actor domain.Actor, patientID int64) int64 {
	if p, ok := actor.(domain.Patient); ok {
		return p.ID
	}
	return patientID
}

// CanAccessVisit reports whether actor takes part in v.
func CanAccessVisit(actor domain.Actor, v *domain.Visit) bool {
	switch a := actor.(type) {
	case domain.Admin:
		return true
	case domain.Clinic:
		return v.ClinicID == a.ID
	case domain.Patient:
		return v.PatientID == a.ID
	}
	return false
}
