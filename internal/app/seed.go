package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dentalcare/clinic-visits/internal/core/domain"
	"github.com/dentalcare/clinic-visits/internal/core/ports"
	"github.com/dentalcare/clinic-visits/internal/core/service"
)

// SeedPassword is shared by every seeded account.
const SeedPassword = "123456"

type seedUser struct {
	name, email string
	role        domain.Role
}

type seedVisit struct {
	title     string
	patient   int // index into seedPatients
	dayOffset int
	hour      int
	duration  time.Duration
	typ       domain.VisitType
	notes     string
}

var (
	seedAdmin    = seedUser{"Admin User", "admin@tecnobrain-dental.com", domain.RoleAdmin}
	seedClinic   = seedUser{"Marcelo Mujica", "clinic@tecnobrain-dental.com", domain.RoleClinic}
	seedPatients = []seedUser{
		{"Anthony Altuna", "patient1@example.com", domain.RolePatient},
		{"Michael Brown", "patient2@example.com", domain.RolePatient},
		{"Emma Wilson", "patient3@example.com", domain.RolePatient},
	}
	seedVisits = []seedVisit{
		{"Anthony Altuna - Limpieza", 0, 1, 9, time.Hour, domain.VisitLimpieza, "Limpieza de rutina"},
		{"Michael Brown - Consulta", 1, 1, 11, time.Hour, domain.VisitConsulta, "Consulta inicial por dolor dental"},
		{"Emma Wilson - Empaste", 2, 7, 10, 90 * time.Minute, domain.VisitEmpaste, "Empaste por caries"},
	}
)

// Seeder loads the demo data set. Running it twice is harmless: existing
// accounts are reused and visits whose slot is taken are skipped.
type Seeder struct {
	users  ports.UserRepository
	visits ports.VisitRepository
	hasher ports.PasswordHasher
	log    zerolog.Logger
	now    func() time.Time
}

func NewSeeder(users ports.UserRepository, visits ports.VisitRepository, log zerolog.Logger) *Seeder {
	return &Seeder{
		users:  users,
		visits: visits,
		hasher: service.BcryptHasher{},
		log:    log,
		now:    time.Now,
	}
}

func (s *Seeder) Run(ctx context.Context) error {
	hash, err := s.hasher.Hash(SeedPassword)
	if err != nil {
		return err
	}

	if _, err := s.ensureUser(ctx, seedAdmin, hash, nil); err != nil {
		return err
	}
	clinic, err := s.ensureUser(ctx, seedClinic, hash, nil)
	if err != nil {
		return err
	}
	patients := make([]*domain.User, len(seedPatients))
	for i, p := range seedPatients {
		if patients[i], err = s.ensureUser(ctx, p, hash, &clinic.ID); err != nil {
			return err
		}
	}

	now := s.now()
	for _, sv := range seedVisits {
		day := now.AddDate(0, 0, sv.dayOffset)
		start := time.Date(day.Year(), day.Month(), day.Day(), sv.hour, 0, 0, 0, day.Location()).UTC()
		if err := s.ensureVisit(ctx, sv, start, patients[sv.patient], clinic); err != nil {
			return err
		}
	}

	s.log.Info().
		Str("admin", seedAdmin.email).
		Str("clinic", seedClinic.email).
		Int("patients", len(patients)).
		Str("password", SeedPassword).
		Msg("seed complete")
	return nil
}

func (s *Seeder) ensureUser(ctx context.Context, su seedUser, hash string, clinicID *int64) (*domain.User, error) {
	existing, err := s.users.FindByEmail(ctx, su.email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("seed %s: %w", su.email, err)
	}

	now := s.now().UTC()
	u := &domain.User{
		Name:         su.name,
		Email:        su.email,
		PasswordHash: hash,
		Role:         su.role,
		ClinicID:     clinicID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("seed %s: %w", su.email, err)
	}
	s.log.Info().Str("email", u.Email).Str("role", string(u.Role)).Msg("seeded user")
	return u, nil
}

func (s *Seeder) ensureVisit(ctx context.Context, sv seedVisit, start time.Time, patient, clinic *domain.User) error {
	iv, err := domain.NewInterval(start, start.Add(sv.duration))
	if err != nil {
		return err
	}
	taken, err := s.visits.FindOverlapping(ctx, clinic.ID, iv, 0)
	if err != nil {
		return fmt.Errorf("seed visit %q: %w", sv.title, err)
	}
	if len(taken) > 0 {
		s.log.Debug().Str("title", sv.title).Msg("slot taken, skipping seeded visit")
		return nil
	}

	now := s.now().UTC()
	notes := sv.notes
	v := &domain.Visit{
		Title:     sv.title,
		StartTime: iv.Start,
		EndTime:   iv.End,
		Type:      sv.typ,
		Status:    domain.StatusProgramada,
		Notes:     &notes,
		PatientID: patient.ID,
		ClinicID:  clinic.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.visits.Create(ctx, v); err != nil {
		if errors.Is(err, domain.ErrSchedulingConflict) {
			return nil
		}
		return fmt.Errorf("seed visit %q: %w", sv.title, err)
	}
	s.log.Info().Str("title", v.Title).Time("start", v.StartTime).Msg("seeded visit")
	return nil
}
