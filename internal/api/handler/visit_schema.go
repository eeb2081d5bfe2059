package handler

import (
	"time"

	"github.com/dentalcare/clinic-visits/internal/core/domain"
	"github.com/dentalcare/clinic-visits/internal/core/ports"
)

// createVisitRequest leaves patient_id and clinic_id optional because the
// access policy fills them for clinic and patient callers.
type createVisitRequest struct {
	Title     string    `json:"title"      validate:"required,max=200"`
	StartTime time.Time `json:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time"   validate:"required"`
	Type      string    `json:"type"       validate:"required,visit_type"`
	Status    string    `json:"status"     validate:"omitempty,visit_status"`
	Notes     *string   `json:"notes"      validate:"omitempty,max=2000"`
	PatientID int64     `json:"patient_id" validate:"omitempty,gt=0"`
	ClinicID  int64     `json:"clinic_id"  validate:"omitempty,gt=0"`
}

func (r createVisitRequest) toInput() ports.CreateVisitInput {
	return ports.CreateVisitInput{
		Title:     r.Title,
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
		Type:      domain.VisitType(r.Type),
		Status:    domain.VisitStatus(r.Status),
		Notes:     r.Notes,
		PatientID: r.PatientID,
		ClinicID:  r.ClinicID,
	}
}

type updateVisitRequest struct {
	Title     *string    `json:"title"      validate:"omitempty,min=1,max=200"`
	StartTime *time.Time `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
	Type      *string    `json:"type"       validate:"omitempty,visit_type"`
	Status    *string    `json:"status"     validate:"omitempty,visit_status"`
	Notes     *string    `json:"notes"      validate:"omitempty,max=2000"`
	PatientID *int64     `json:"patient_id" validate:"omitempty,gt=0"`
	ClinicID  *int64     `json:"clinic_id"  validate:"omitempty,gt=0"`
}

func (r updateVisitRequest) toInput() ports.UpdateVisitInput {
	in := ports.UpdateVisitInput{
		Title:     r.Title,
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
		Notes:     r.Notes,
		PatientID: r.PatientID,
		ClinicID:  r.ClinicID,
	}
	if r.Type != nil {
		t := domain.VisitType(*r.Type)
		in.Type = &t
	}
	if r.Status != nil {
		s := domain.VisitStatus(*r.Status)
		in.Status = &s
	}
	return in
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,visit_status"`
}

type partyResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type visitResponse struct {
	ID        int64          `json:"id"`
	Title     string         `json:"title"`
	StartTime time.Time      `json:"start_time"`
	EndTime   time.Time      `json:"end_time"`
	Type      string         `json:"type"`
	Status    string         `json:"status"`
	Notes     *string        `json:"notes"`
	PatientID int64          `json:"patient_id"`
	ClinicID  int64          `json:"clinic_id"`
	Patient   *partyResponse `json:"patient,omitempty"`
	Clinic    *partyResponse `json:"clinic,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// slotResponse is the anonymised view of a booked interval.
type slotResponse struct {
	ID        int64     `json:"id"`
	ClinicID  int64     `json:"clinic_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Status    string    `json:"status"`
}

func toParty(p *domain.Party) *partyResponse {
	if p == nil {
		return nil
	}
	return &partyResponse{ID: p.ID, Name: p.Name, Email: p.Email}
}

func toVisitResponse(v *domain.Visit) visitResponse {
	return visitResponse{
		ID:        v.ID,
		Title:     v.Title,
		StartTime: v.StartTime,
		EndTime:   v.EndTime,
		Type:      string(v.Type),
		Status:    string(v.Status),
		Notes:     v.Notes,
		PatientID: v.PatientID,
		ClinicID:  v.ClinicID,
		Patient:   toParty(v.Patient),
		Clinic:    toParty(v.Clinic),
		CreatedAt: v.CreatedAt,
		UpdatedAt: v.UpdatedAt,
	}
}

func toVisitResponses(visits []*domain.Visit) []visitResponse {
	out := make([]visitResponse, 0, len(visits))
	for _, v := range visits {
		out = append(out, toVisitResponse(v))
	}
	return out
}

func toSlotResponses(visits []*domain.Visit) []slotResponse {
	out := make([]slotResponse, 0, len(visits))
	for _, v := range visits {
		out = append(out, slotResponse{
			ID:        v.ID,
			ClinicID:  v.ClinicID,
			StartTime: v.StartTime,
			EndTime:   v.EndTime,
			Status:    string(v.Status),
		})
	}
	return out
}
