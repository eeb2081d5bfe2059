package service

import (
	"context"
	"fmt"

	"github.com/dentalcare/clinic-visits/internal/core/domain"
	"github.com/dentalcare/clinic-visits/internal/core/ports"
)

// ConflictDetector decides whether a time range can be booked in a clinic.
type ConflictDetector struct {
	visits ports.VisitRepository
}

func NewConflictDetector(visits ports.VisitRepository) *ConflictDetector {
	return &ConflictDetector{visits: visits}
}

// HasConflict reports whether iv overlaps any visit of clinicID other than
// excludeID. Other clinics are never considered.
func (d *ConflictDetector) HasConflict(ctx context.Context, clinicID int64, iv domain.Interval, excludeID int64) (bool, error) {
	candidates, err := d.visits.FindOverlapping(ctx, clinicID, iv, excludeID)
	if err != nil {
		return false, fmt.Errorf("conflict lookup: %w", err)
	}
	for _, v := range candidates {
		if v.ID == excludeID || v.ClinicID != clinicID {
			continue
		}
		if v.Interval().Overlaps(iv) {
			return true, nil
		}
	}
	return false, nil
}
