package postgres

import (
	"testing"
	"time"

	"github.com/dentalcare/clinic-visits/internal/core/domain"
	"github.com/dentalcare/clinic-visits/internal/core/ports"
)

func TestVisitAssignments_NotesOnly(t *testing.T) {
	now := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	notes := "Traer radiografías"
	v := &domain.Visit{ID: 7, Title: "stale", Notes: &notes, UpdatedAt: now}

	sets, args, err := visitAssignments(v, []ports.VisitField{ports.VisitFieldNotes})
	if err != nil {
		t.Fatalf("visitAssignments: %v", err)
	}
	if sets != "notes = $2, updated_at = $3" {
		t.Fatalf("unexpected SET list %q", sets)
	}
	if len(args) != 3 || args[0] != int64(7) || args[1] != v.Notes || args[2] != now {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestVisitAssignments_Reschedule(t *testing.T) {
	start := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	v := &domain.Visit{ID: 3, StartTime: start, EndTime: start.Add(time.Hour), ClinicID: 11}

	sets, args, err := visitAssignments(v, []ports.VisitField{ports.VisitFieldSchedule, ports.VisitFieldClinic})
	if err != nil {
		t.Fatalf("visitAssignments: %v", err)
	}
	want := "start_time = $2, end_time = $3, clinic_id = $4, updated_at = $5"
	if sets != want {
		t.Fatalf("want %q, got %q", want, sets)
	}
	if len(args) != 5 {
		t.Fatalf("want 5 args, got %d", len(args))
	}
}

func TestVisitAssignments_UnknownField(t *testing.T) {
	if _, _, err := visitAssignments(&domain.Visit{}, []ports.VisitField{"color"}); err == nil {
		t.Fatal("expected error for unknown field")
	}
}
