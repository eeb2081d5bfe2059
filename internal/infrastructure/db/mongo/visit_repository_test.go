package mongo

import (
	"testing"
	"time"

	"github.com/dentalcare/clinic-visits/internal/core/domain"
	"github.com/dentalcare/clinic-visits/internal/core/ports"
)

func TestVisitSet_OnlyListedFields(t *testing.T) {
	now := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	notes := "Traer radiografías"
	v := &domain.Visit{
		ID:        1,
		Title:     "stale title",
		StartTime: now.Add(time.Hour),
		EndTime:   now.Add(2 * time.Hour),
		Notes:     &notes,
		UpdatedAt: now,
	}

	set, err := visitSet(v, []ports.VisitField{ports.VisitFieldNotes})
	if err != nil {
		t.Fatalf("visitSet: %v", err)
	}
	if len(set) != 2 || set["notes"] != v.Notes || set["updated_at"] != now {
		t.Fatalf("unexpected $set: %v", set)
	}
	for _, key := range []string{"title", "start_time", "end_time", "clinic_id", "status"} {
		if _, ok := set[key]; ok {
			t.Errorf("%s must not be written", key)
		}
	}
}

func TestVisitSet_ScheduleWritesBothBounds(t *testing.T) {
	start := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	v := &domain.Visit{StartTime: start, EndTime: start.Add(time.Hour), ClinicID: 10}

	set, err := visitSet(v, []ports.VisitField{ports.VisitFieldSchedule, ports.VisitFieldClinic})
	if err != nil {
		t.Fatalf("visitSet: %v", err)
	}
	if set["start_time"] != v.StartTime || set["end_time"] != v.EndTime || set["clinic_id"] != int64(10) {
		t.Fatalf("unexpected $set: %v", set)
	}
}

func TestVisitSet_UnknownField(t *testing.T) {
	if _, err := visitSet(&domain.Visit{}, []ports.VisitField{"color"}); err == nil {
		t.Fatal("expected error for unknown field")
	}
}
