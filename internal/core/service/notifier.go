package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dentalcare/clinic-visits/internal/core/domain"
	"github.com/dentalcare/clinic-visits/internal/core/ports"
)

// DefaultBrand is the product name shown in patient-facing subjects.
const DefaultBrand = "DentalCare Pro"

// Mail templates sent on visit events, one per recipient side.
const (
	recipientPatient = "patient"
	recipientClinic  = "clinic"
)

// TemplateName returns the template key for an event and recipient side,
// e.g. "visit-scheduled-patient".
func TemplateName(event domain.VisitEvent, recipient string) string {
	return fmt.Sprintf("visit-%s-%s", event, recipient)
}

// VisitMailer maps visit events to two mail messages, one for the patient and
// one for the clinic, and hands them to a queue. It never fails the caller.
type VisitMailer struct {
	queue  ports.MailQueue
	brand  string
	loc    *time.Location
	logger zerolog.Logger
}

func NewVisitMailer(queue ports.MailQueue, brand string, loc *time.Location, logger zerolog.Logger) *VisitMailer {
	if brand == "" {
		brand = DefaultBrand
	}
	if loc == nil {
		loc = time.UTC
	}
	return &VisitMailer{queue: queue, brand: brand, loc: loc, logger: logger}
}

// Notify enqueues both deliveries. Enqueue failures are logged and dropped.
func (m *VisitMailer) Notify(ctx context.Context, event domain.VisitEvent, v *domain.Visit) {
	msgs, err := m.Messages(event, v)
	if err != nil {
		m.logger.Warn().Err(err).Int64("visit_id", v.ID).Str("event", string(event)).Msg("notification skipped")
		return
	}
	for _, msg := range msgs {
		if err := m.queue.Enqueue(ctx, msg); err != nil {
			m.logger.Warn().Err(err).
				Int64("visit_id", v.ID).
				Str("template", msg.Template).
				Msg("notification not enqueued")
		}
	}
}

// Messages builds the patient and clinic messages for event.
func (m *VisitMailer) Messages(event domain.VisitEvent, v *domain.Visit) ([]domain.MailMessage, error) {
	if v.Patient == nil || v.Clinic == nil {
		return nil, fmt.Errorf("visit %d has no patient or clinic summary", v.ID)
	}

	var patientSubject, clinicSubject string
	switch event {
	case domain.EventVisitScheduled:
		patientSubject = "Cita Programada - " + m.brand
		clinicSubject = "Nueva Cita Programada - " + v.Patient.Name
	case domain.EventVisitUpdated:
		patientSubject = "Cita Actualizada - " + m.brand
		clinicSubject = "Cita Actualizada - " + v.Patient.Name
	case domain.EventVisitCanceled:
		patientSubject = "Cita Cancelada - " + m.brand
		clinicSubject = "Cita Cancelada - " + v.Patient.Name
	default:
		return nil, fmt.Errorf("unknown visit event %q", event)
	}

	data := m.context(v)
	stamp := v.UpdatedAt.UnixNano()
	return []domain.MailMessage{
		{
			Key:      fmt.Sprintf("%s:%d:%d", TemplateName(event, recipientPatient), v.ID, stamp),
			To:       v.Patient.Email,
			Template: TemplateName(event, recipientPatient),
			Subject:  patientSubject,
			Data:     data,
		},
		{
			Key:      fmt.Sprintf("%s:%d:%d", TemplateName(event, recipientClinic), v.ID, stamp),
			To:       v.Clinic.Email,
			Template: TemplateName(event, recipientClinic),
			Subject:  clinicSubject,
			Data:     data,
		},
	}, nil
}

func (m *VisitMailer) context(v *domain.Visit) map[string]any {
	var notes any
	if v.Notes != nil {
		notes = *v.Notes
	}
	return map[string]any{
		"patientName":       v.Patient.Name,
		"clinicName":        v.Clinic.Name,
		"patientEmail":      v.Patient.Email,
		"clinicEmail":       v.Clinic.Email,
		"visitTitle":        v.Title,
		"visitType":         v.Type.Label(),
		"formattedDateTime": FormatVisitWindow(v.StartTime, v.EndTime, m.loc),
		"notes":             notes,
		"visitId":           v.ID,
		"brand":             m.brand,
	}
}
