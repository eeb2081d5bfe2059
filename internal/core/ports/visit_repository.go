package ports

import (
	"context"
	"time"

	"github.com/dentalcare/clinic-visits/internal/core/domain"
)

// VisitFilter narrows List. Nil fields are ignored.
type VisitFilter struct {
	ClinicID  *int64
	PatientID *int64
	StartFrom *time.Time // start_time >= StartFrom
	EndTo     *time.Time // end_time <= EndTo
}

// VisitField names what a partial Update writes.
type VisitField string

const (
	VisitFieldTitle    VisitField = "title"
	VisitFieldSchedule VisitField = "schedule" // start and end together
	VisitFieldType     VisitField = "type"
	VisitFieldStatus   VisitField = "status"
	VisitFieldNotes    VisitField = "notes"
	VisitFieldPatient  VisitField = "patient"
	VisitFieldClinic   VisitField = "clinic"
)

// VisitRepository persists visits. Every read returns visits with Patient and
// Clinic summaries loaded; lists are ordered by start time ascending.
type VisitRepository interface {
	FindByID(ctx context.Context, id int64) (*domain.Visit, error)
	List(ctx context.Context, filter VisitFilter) ([]*domain.Visit, error)
	// FindOverlapping returns the clinic's visits intersecting iv, skipping
	// excludeID when it is non-zero.
	FindOverlapping(ctx context.Context, clinicID int64, iv domain.Interval, excludeID int64) ([]*domain.Visit, error)
	// Create assigns ID on success. Callers set the timestamps.
	Create(ctx context.Context, v *domain.Visit) error
	// Update writes the listed fields of v, plus UpdatedAt, leaving every other
	// stored field as it is.
	Update(ctx context.Context, v *domain.Visit, fields []VisitField) error
	Delete(ctx context.Context, id int64) error
}
