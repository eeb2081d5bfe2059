package ports

import (
	"context"
	"time"

	"github.com/dentalcare/clinic-visits/internal/core/domain"
)

// CreateVisitInput carries the fields of a new visit. Zero IDs mean "not
// supplied"; the access policy may fill them from the actor.
type CreateVisitInput struct {
	Title     string
	StartTime time.Time
	EndTime   time.Time
	Type      domain.VisitType
	Status    domain.VisitStatus // empty = PROGRAMADA
	Notes     *string
	PatientID int64
	ClinicID  int64
}

// UpdateVisitInput is a partial update; nil fields are left untouched.
type UpdateVisitInput struct {
	Title     *string
	StartTime *time.Time
	EndTime   *time.Time
	Type      *domain.VisitType
	Status    *domain.VisitStatus
	Notes     *string
	PatientID *int64
	ClinicID  *int64
}

// VisitService is the visit lifecycle API consumed by the transport layer.
type VisitService interface {
	Create(ctx context.Context, actor domain.Actor, in CreateVisitInput) (*domain.Visit, error)
	Update(ctx context.Context, actor domain.Actor, id int64, in UpdateVisitInput) (*domain.Visit, error)
	UpdateStatus(ctx context.Context, actor domain.Actor, id int64, status domain.VisitStatus) (*domain.Visit, error)
	Delete(ctx context.Context, actor domain.Actor, id int64) (*domain.Visit, error)

	Get(ctx context.Context, actor domain.Actor, id int64) (*domain.Visit, error)
	List(ctx context.Context) ([]*domain.Visit, error)
	ListByClinic(ctx context.Context, actor domain.Actor, clinicID int64) ([]*domain.Visit, error)
	ListByPatient(ctx context.Context, actor domain.Actor, patientID int64) ([]*domain.Visit, error)
	Occupied(ctx context.Context, clinicID int64, from, to time.Time) ([]*domain.Visit, error)
}
