package service

import (
	"errors"
	"testing"

	"github.com/dentalcare/clinic-visits/internal/core/domain"
	"github.com/dentalcare/clinic-visits/internal/core/ports"
)

func TestScopeCreateVisit(t *testing.T) {
	in := ports.CreateVisitInput{PatientID: 21, ClinicID: 99, Status: domain.StatusCompletada}

	got, err := ScopeCreateVisit(domain.Admin{ID: 1}, in)
	if err != nil || got != in {
		t.Fatalf("admin request must pass unchanged, got %+v (%v)", got, err)
	}

	got, err = ScopeCreateVisit(domain.Clinic{ID: 10}, in)
	if err != nil {
		t.Fatalf("clinic: %v", err)
	}
	if got.ClinicID != 10 || got.PatientID != 21 || got.Status != domain.StatusCompletada {
		t.Fatalf("clinic scoping wrong: %+v", got)
	}

	got, err = ScopeCreateVisit(domain.Patient{ID: 20, ClinicID: int64p(10)}, in)
	if err != nil {
		t.Fatalf("patient: %v", err)
	}
	if got.ClinicID != 10 || got.PatientID != 20 || got.Status != domain.StatusProgramada {
		t.Fatalf("patient scoping wrong: %+v", got)
	}

	if _, err := ScopeCreateVisit(domain.Patient{ID: 22}, in); !errors.Is(err, domain.ErrPrecondition) {
		t.Fatalf("expected ErrPrecondition, got %v", err)
	}
}

func TestScopeUpdateVisit(t *testing.T) {
	status := domain.StatusCancelada
	in := ports.UpdateVisitInput{PatientID: int64p(21), ClinicID: int64p(11), Status: &status}

	got, _ := ScopeUpdateVisit(domain.Patient{ID: 20}, in)
	if got.PatientID != nil || got.ClinicID != nil || got.Status != nil {
		t.Fatalf("patient update must be stripped: %+v", got)
	}

	got, _ = ScopeUpdateVisit(domain.Clinic{ID: 10}, in)
	if got.ClinicID == nil || *got.ClinicID != 10 {
		t.Fatalf("clinic id must be forced to actor: %+v", got)
	}
	if got.Status == nil || *got.Status != status {
		t.Fatalf("clinic keeps status")
	}

	got, _ = ScopeUpdateVisit(domain.Clinic{ID: 10}, ports.UpdateVisitInput{})
	if got.ClinicID != nil {
		t.Fatalf("clinic id only forced when supplied")
	}
}

func TestScopeListFilters(t *testing.T) {
	if got := ScopeClinicID(domain.Clinic{ID: 10}, 11); got != 10 {
		t.Errorf("clinic redirected to self, got %d", got)
	}
	if got := ScopeClinicID(domain.Admin{ID: 1}, 11); got != 11 {
		t.Errorf("admin unchanged, got %d", got)
	}
	if got := ScopePatientID(domain.Patient{ID: 20}, 21); got != 20 {
		t.Errorf("patient redirected to self, got %d", got)
	}
	if got := ScopePatientID(domain.Clinic{ID: 10}, 21); got != 21 {
		t.Errorf("clinic keeps patient filter, got %d", got)
	}
}

func TestCanAccessVisit(t *testing.T) {
	v := &domain.Visit{PatientID: 20, ClinicID: 10}

	cases := []struct {
		actor domain.Actor
		want  bool
	}{
		{domain.Admin{ID: 1}, true},
		{domain.Clinic{ID: 10}, true},
		{domain.Clinic{ID: 11}, false},
		{domain.Patient{ID: 20}, true},
		{domain.Patient{ID: 21}, false},
	}
	for _, tc := range cases {
		if got := CanAccessVisit(tc.actor, v); got != tc.want {
			t.Errorf("%T %d: got %v, want %v", tc.actor, tc.actor.ActorID(), got, tc.want)
		}
	}
}
