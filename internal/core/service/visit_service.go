package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dentalcare/clinic-visits/internal/core/domain"
	"github.com/dentalcare/clinic-visits/internal/core/ports"
)

// VisitService owns the visit lifecycle: validation, relationship checks,
// conflict detection, persistence and notification.
type VisitService struct {
	users     ports.UserRepository
	visits    ports.VisitRepository
	conflicts *ConflictDetector
	locker    ports.ScheduleLocker
	notifier  ports.VisitNotifier
	logger    zerolog.Logger
	now       func() time.Time
}

func NewVisitService(
	users ports.UserRepository,
	visits ports.VisitRepository,
	locker ports.ScheduleLocker,
	notifier ports.VisitNotifier,
	logger zerolog.Logger,
) *VisitService {
	return &VisitService{
		users:     users,
		visits:    visits,
		conflicts: NewConflictDetector(visits),
		locker:    locker,
		notifier:  notifier,
		logger:    logger,
		now:       func() time.Time { return storeTime(time.Now()) },
	}
}

// storeTime drops precision below a millisecond, the finest both stores keep,
// so a returned visit compares equal to what a later read gives back.
func storeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// scheduleKey is the lock guarding one clinic's calendar.
func scheduleKey(clinicID int64) string {
	return fmt.Sprintf("schedule:clinic:%d", clinicID)
}

func (s *VisitService) Create(ctx context.Context, actor domain.Actor, in ports.CreateVisitInput) (*domain.Visit, error) {
	in, err := ScopeCreateVisit(actor, in)
	if err != nil {
		return nil, err
	}

	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, fmt.Errorf("%w: title is required", domain.ErrValidation)
	}
	if !in.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown visit type %q", domain.ErrValidation, in.Type)
	}
	if in.Status == "" {
		in.Status = domain.StatusProgramada
	}
	if !in.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown visit status %q", domain.ErrValidation, in.Status)
	}
	iv, err := domain.NewInterval(storeTime(in.StartTime), storeTime(in.EndTime))
	if err != nil {
		return nil, err
	}

	patient, clinic, err := s.resolveParties(ctx, in.PatientID, in.ClinicID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	visit := &domain.Visit{
		Title:     in.Title,
		StartTime: iv.Start,
		EndTime:   iv.End,
		Type:      in.Type,
		Status:    in.Status,
		Notes:     normalizeNotes(in.Notes),
		PatientID: patient.ID,
		ClinicID:  clinic.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.withSchedule(ctx, clinic.ID, func(ctx context.Context) error {
		if err := s.ensureFree(ctx, clinic.ID, iv, 0); err != nil {
			return err
		}
		return s.visits.Create(ctx, visit)
	})
	if err != nil {
		return nil, err
	}

	visit.Patient = patient.Party()
	visit.Clinic = clinic.Party()

	s.logger.Info().
		Int64("visit_id", visit.ID).
		Int64("clinic_id", visit.ClinicID).
		Int64("patient_id", visit.PatientID).
		Str("actor_role", string(actor.ActorRole())).
		Msg("visit scheduled")

	s.notifier.Notify(ctx, domain.EventVisitScheduled, visit)
	return visit, nil
}

// Update applies a partial edit. Only the fields present in the input are
// written, so concurrent edits of different fields do not undo each other.
// Moving the visit in time or to another clinic re-reads it under the
// destination clinic's schedule lock before checking for conflicts.
func (s *VisitService) Update(ctx context.Context, actor domain.Actor, id int64, in ports.UpdateVisitInput) (*domain.Visit, error) {
	in, err := ScopeUpdateVisit(actor, in)
	if err != nil {
		return nil, err
	}
	if in, err = validateUpdate(in); err != nil {
		return nil, err
	}

	existing, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	next, fields := applyUpdate(existing, in)
	rescheduled := in.StartTime != nil || in.EndTime != nil || next.ClinicID != existing.ClinicID

	if rescheduled {
		clinicID := next.ClinicID
		err = s.withSchedule(ctx, clinicID, func(ctx context.Context) error {
			current, err := s.visits.FindByID(ctx, id)
			if err != nil {
				return err
			}
			next, fields = applyUpdate(current, in)
			if next.ClinicID != clinicID {
				return fmt.Errorf("visit %d moved to clinic %d: %w", id, next.ClinicID, domain.ErrScheduleBusy)
			}
			return s.write(ctx, current, &next, fields, true)
		})
	} else {
		err = s.write(ctx, existing, &next, fields, false)
	}
	if err != nil {
		return nil, err
	}

	visit, err := s.visits.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("visit_id", id).
		Bool("rescheduled", rescheduled).
		Str("actor_role", string(actor.ActorRole())).
		Msg("visit updated")

	s.notifier.Notify(ctx, domain.EventVisitUpdated, visit)
	return visit, nil
}

// write persists fields of next over base. With checkSchedule the effective
// interval is validated and checked against the clinic's other visits; the
// caller must hold that clinic's schedule lock.
func (s *VisitService) write(ctx context.Context, base, next *domain.Visit, fields []ports.VisitField, checkSchedule bool) error {
	if next.PatientID != base.PatientID || next.ClinicID != base.ClinicID {
		if _, _, err := s.resolveParties(ctx, next.PatientID, next.ClinicID); err != nil {
			return err
		}
	}
	if checkSchedule {
		iv, err := domain.NewInterval(next.StartTime, next.EndTime)
		if err != nil {
			return err
		}
		if err := s.ensureFree(ctx, next.ClinicID, iv, next.ID); err != nil {
			return err
		}
	}
	next.UpdatedAt = s.now()
	return s.visits.Update(ctx, next, fields)
}

func validateUpdate(in ports.UpdateVisitInput) (ports.UpdateVisitInput, error) {
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return in, fmt.Errorf("%w: title cannot be empty", domain.ErrValidation)
		}
		in.Title = &title
	}
	if in.Type != nil && !in.Type.Valid() {
		return in, fmt.Errorf("%w: unknown visit type %q", domain.ErrValidation, *in.Type)
	}
	if in.Status != nil && !in.Status.Valid() {
		return in, fmt.Errorf("%w: unknown visit status %q", domain.ErrValidation, *in.Status)
	}
	return in, nil
}

// applyUpdate copies base with the input applied and lists the fields the
// input touched.
func applyUpdate(base *domain.Visit, in ports.UpdateVisitInput) (domain.Visit, []ports.VisitField) {
	next := *base
	next.Patient, next.Clinic = nil, nil
	var fields []ports.VisitField

	if in.Title != nil {
		next.Title = *in.Title
		fields = append(fields, ports.VisitFieldTitle)
	}
	if in.StartTime != nil || in.EndTime != nil {
		if in.StartTime != nil {
			next.StartTime = storeTime(*in.StartTime)
		}
		if in.EndTime != nil {
			next.EndTime = storeTime(*in.EndTime)
		}
		fields = append(fields, ports.VisitFieldSchedule)
	}
	if in.Type != nil {
		next.Type = *in.Type
		fields = append(fields, ports.VisitFieldType)
	}
	if in.Status != nil {
		next.Status = *in.Status
		fields = append(fields, ports.VisitFieldStatus)
	}
	if in.Notes != nil {
		next.Notes = normalizeNotes(in.Notes)
		fields = append(fields, ports.VisitFieldNotes)
	}
	if in.PatientID != nil {
		next.PatientID = *in.PatientID
		fields = append(fields, ports.VisitFieldPatient)
	}
	if in.ClinicID != nil {
		next.ClinicID = *in.ClinicID
		fields = append(fields, ports.VisitFieldClinic)
	}
	return next, fields
}

// UpdateStatus overwrites the status. Any status can follow any other and no
// notification is sent.
func (s *VisitService) UpdateStatus(ctx context.Context, actor domain.Actor, id int64, status domain.VisitStatus) (*domain.Visit, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown visit status %q", domain.ErrValidation, status)
	}
	if _, ok := actor.(domain.Patient); ok {
		return nil, domain.ErrForbidden
	}

	visit, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	visit.Status = status
	visit.UpdatedAt = s.now()
	if err := s.visits.Update(ctx, visit, []ports.VisitField{ports.VisitFieldStatus}); err != nil {
		return nil, err
	}
	if visit, err = s.visits.FindByID(ctx, id); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("visit_id", id).Str("status", string(status)).Msg("visit status changed")
	return visit, nil
}

// Delete removes the visit and notifies both parties using the snapshot taken
// before removal.
func (s *VisitService) Delete(ctx context.Context, actor domain.Actor, id int64) (*domain.Visit, error) {
	snapshot, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.visits.Delete(ctx, id); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("visit_id", id).Str("actor_role", string(actor.ActorRole())).Msg("visit canceled")

	s.notifier.Notify(ctx, domain.EventVisitCanceled, snapshot)
	return snapshot, nil
}

func (s *VisitService) Get(ctx context.Context, actor domain.Actor, id int64) (*domain.Visit, error) {
	return s.load(ctx, actor, id)
}

func (s *VisitService) List(ctx context.Context) ([]*domain.Visit, error) {
	return s.visits.List(ctx, ports.VisitFilter{})
}

func (s *VisitService) ListByClinic(ctx context.Context, actor domain.Actor, clinicID int64) ([]*domain.Visit, error) {
	clinicID = ScopeClinicID(actor, clinicID)
	if err := s.requireRole(ctx, clinicID, domain.RoleClinic); err != nil {
		return nil, err
	}
	return s.visits.List(ctx, ports.VisitFilter{ClinicID: &clinicID})
}

// ListByPatient lists a patient's visits. A clinic only sees the visits booked
// in its own schedule.
func (s *VisitService) ListByPatient(ctx context.Context, actor domain.Actor, patientID int64) ([]*domain.Visit, error) {
	patientID = ScopePatientID(actor, patientID)
	if err := s.requireRole(ctx, patientID, domain.RolePatient); err != nil {
		return nil, err
	}
	filter := ports.VisitFilter{PatientID: &patientID}
	if c, ok := actor.(domain.Clinic); ok {
		filter.ClinicID = &c.ID
	}
	return s.visits.List(ctx, filter)
}

// Occupied lists the clinic's visits lying entirely inside [from, to].
func (s *VisitService) Occupied(ctx context.Context, clinicID int64, from, to time.Time) ([]*domain.Visit, error) {
	if err := s.requireRole(ctx, clinicID, domain.RoleClinic); err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, fmt.Errorf("%w: date_from must not be after date_to", domain.ErrValidation)
	}
	from, to = from.UTC(), to.UTC()
	return s.visits.List(ctx, ports.VisitFilter{ClinicID: &clinicID, StartFrom: &from, EndTo: &to})
}

// load fetches a visit the actor takes part in. Visits outside the actor's
// reach are reported as missing.
func (s *VisitService) load(ctx context.Context, actor domain.Actor, id int64) (*domain.Visit, error) {
	visit, err := s.visits.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanAccessVisit(actor, visit) {
		return nil, fmt.Errorf("visit %d: %w", id, domain.ErrNotFound)
	}
	return visit, nil
}

// resolveParties loads the patient and clinic of a booking and checks the
// patient is assigned to that clinic.
func (s *VisitService) resolveParties(ctx context.Context, patientID, clinicID int64) (*domain.User, *domain.User, error) {
	patient, err := s.findRole(ctx, patientID, domain.RolePatient)
	if err != nil {
		return nil, nil, err
	}
	clinic, err := s.findRole(ctx, clinicID, domain.RoleClinic)
	if err != nil {
		return nil, nil, err
	}
	if patient.ClinicID == nil || *patient.ClinicID != clinic.ID {
		return nil, nil, fmt.Errorf("%w: patient %d does not belong to clinic %d", domain.ErrInvalidRelationship, patient.ID, clinic.ID)
	}
	return patient, clinic, nil
}

// findRole loads a user that must hold role. A user with another role is
// treated as missing.
func (s *VisitService) findRole(ctx context.Context, id int64, role domain.Role) (*domain.User, error) {
	label := strings.ToLower(string(role))
	if id <= 0 {
		return nil, fmt.Errorf("%w: %s id is required", domain.ErrValidation, label)
	}
	u, err := s.users.FindByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && u.Role != role) {
		return nil, fmt.Errorf("%s %d: %w", label, id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// requireRole validates a query filter id.
func (s *VisitService) requireRole(ctx context.Context, id int64, role domain.Role) error {
	_, err := s.findRole(ctx, id, role)
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrValidation) {
		return fmt.Errorf("%w: invalid %s id %d", domain.ErrInvalidRelationship, strings.ToLower(string(role)), id)
	}
	return err
}

func (s *VisitService) ensureFree(ctx context.Context, clinicID int64, iv domain.Interval, excludeID int64) error {
	busy, err := s.conflicts.HasConflict(ctx, clinicID, iv, excludeID)
	if err != nil {
		return err
	}
	if busy {
		s.logger.Debug().
			Int64("clinic_id", clinicID).
			Time("start", iv.Start).
			Time("end", iv.End).
			Msg("scheduling conflict")
		return domain.ErrSchedulingConflict
	}
	return nil
}

// withSchedule runs fn while holding the clinic's schedule lock so the
// conflict check and the write cannot interleave with another booking.
func (s *VisitService) withSchedule(ctx context.Context, clinicID int64, fn func(context.Context) error) error {
	release, err := s.locker.Acquire(ctx, scheduleKey(clinicID))
	if err != nil {
		return err
	}
	defer release(context.WithoutCancel(ctx))
	return fn(ctx)
}

func normalizeNotes(notes *string) *string {
	if notes == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*notes)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
