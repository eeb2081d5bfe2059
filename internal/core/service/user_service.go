package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dentalcare/clinic-visits/internal/core/domain"
	"github.com/dentalcare/clinic-visits/internal/core/ports"
)

const (
	minPasswordLength  = 6
	tempPasswordLength = 10
	welcomeTemplate    = "patient-welcome"
)

// UserService manages accounts and clinic membership.
type UserService struct {
	users  ports.UserRepository
	hasher ports.PasswordHasher
	mail   ports.MailQueue
	brand  string
	logger zerolog.Logger
	now    func() time.Time
}

func NewUserService(users ports.UserRepository, hasher ports.PasswordHasher, mail ports.MailQueue, brand string, logger zerolog.Logger) *UserService {
	if brand == "" {
		brand = DefaultBrand
	}
	return &UserService{
		users:  users,
		hasher: hasher,
		mail:   mail,
		brand:  brand,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *UserService) Create(ctx context.Context, actor domain.Actor, in ports.CreateUserInput) (*domain.User, error) {
	if !in.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrValidation, in.Role)
	}
	if in.Role == domain.RoleAdmin {
		if _, ok := actor.(domain.Admin); !ok {
			return nil, fmt.Errorf("%w: only administrators can create administrators", domain.ErrForbidden)
		}
	}

	name := strings.TrimSpace(in.Name)
	email := domain.NormalizeEmail(in.Email)
	if name == "" || email == "" {
		return nil, fmt.Errorf("%w: name and email are required", domain.ErrValidation)
	}
	if err := s.ensureEmailFree(ctx, email, 0); err != nil {
		return nil, err
	}

	var clinicID *int64
	if in.Role == domain.RolePatient && in.ClinicID != nil {
		if err := s.ensureClinic(ctx, *in.ClinicID); err != nil {
			return nil, err
		}
		clinicID = in.ClinicID
	}

	password, temporary := in.Password, false
	if password == "" {
		if in.Role != domain.RolePatient {
			return nil, fmt.Errorf("%w: password is required", domain.ErrValidation)
		}
		generated, err := generatePassword(tempPasswordLength)
		if err != nil {
			return nil, err
		}
		password, temporary = generated, true
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", domain.ErrValidation, minPasswordLength)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &domain.User{
		Name:               name,
		Email:              email,
		PasswordHash:       hash,
		Role:               in.Role,
		ClinicID:           clinicID,
		MustChangePassword: temporary,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("user_id", user.ID).Str("role", string(user.Role)).Msg("user created")

	if temporary {
		s.sendWelcome(ctx, user, password)
	}
	return user, nil
}

func (s *UserService) List(ctx context.Context, role domain.Role) ([]*domain.User, error) {
	if role != "" && !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrValidation, role)
	}
	return s.users.List(ctx, ports.UserFilter{Role: role})
}

func (s *UserService) Get(ctx context.Context, id int64) (*domain.User, error) {
	return s.users.FindByID(ctx, id)
}

// Update applies a partial profile change. Only administrators may change a
// role; everyone else may only edit their own account.
func (s *UserService) Update(ctx context.Context, actor domain.Actor, id int64, in ports.UpdateUserInput) (*domain.User, error) {
	_, isAdmin := actor.(domain.Admin)
	if !isAdmin && actor.ActorID() != id {
		return nil, domain.ErrForbidden
	}
	if in.Role != nil && !isAdmin {
		return nil, fmt.Errorf("%w: only administrators can change roles", domain.ErrForbidden)
	}

	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", domain.ErrValidation)
		}
		user.Name = name
	}
	if in.Email != nil {
		email := domain.NormalizeEmail(*in.Email)
		if email != user.Email {
			if err := s.ensureEmailFree(ctx, email, id); err != nil {
				return nil, err
			}
			user.Email = email
		}
	}
	if in.Password != nil {
		if len(*in.Password) < minPasswordLength {
			return nil, fmt.Errorf("%w: password must be at least %d characters", domain.ErrValidation, minPasswordLength)
		}
		hash, err := s.hasher.Hash(*in.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
		user.MustChangePassword = false
	}
	if in.Role != nil && *in.Role != user.Role {
		if !in.Role.Valid() {
			return nil, fmt.Errorf("%w: unknown role %q", domain.ErrValidation, *in.Role)
		}
		if user.Role == domain.RoleClinic {
			if err := s.ensureNoPatients(ctx, user.ID); err != nil {
				return nil, err
			}
		}
		user.Role = *in.Role
	}

	switch {
	case user.Role != domain.RolePatient:
		user.ClinicID = nil
	case in.ClinicID != nil:
		if !isAdmin && (user.ClinicID == nil || *user.ClinicID != *in.ClinicID) {
			return nil, fmt.Errorf("%w: clinic assignment is managed by administrators", domain.ErrForbidden)
		}
		if err := s.ensureClinic(ctx, *in.ClinicID); err != nil {
			return nil, err
		}
		user.ClinicID = in.ClinicID
	}

	user.UpdatedAt = s.now()
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Delete removes an account with its visits.
func (s *UserService) Delete(ctx context.Context, actor domain.Actor, id int64) error {
	if _, isAdmin := actor.(domain.Admin); !isAdmin && actor.ActorID() != id {
		return domain.ErrForbidden
	}
	if _, err := s.users.FindByID(ctx, id); err != nil {
		return err
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Int64("user_id", id).Msg("user deleted")
	return nil
}

func (s *UserService) ChangePassword(ctx context.Context, actor domain.Actor, current, next string) error {
	user, err := s.users.FindByID(ctx, actor.ActorID())
	if err != nil {
		return err
	}
	if err := s.hasher.Compare(user.PasswordHash, current); err != nil {
		return err
	}
	if len(next) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", domain.ErrValidation, minPasswordLength)
	}
	hash, err := s.hasher.Hash(next)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	user.MustChangePassword = false
	user.UpdatedAt = s.now()
	return s.users.Update(ctx, user)
}

// ClinicPatients lists the patients assigned to a clinic. Clinics are
// redirected to their own list.
func (s *UserService) ClinicPatients(ctx context.Context, actor domain.Actor, clinicID int64) ([]*domain.User, error) {
	clinicID = ScopeClinicID(actor, clinicID)
	if err := s.ensureClinic(ctx, clinicID); err != nil {
		return nil, err
	}
	return s.users.List(ctx, ports.UserFilter{Role: domain.RolePatient, ClinicID: &clinicID})
}

func (s *UserService) AssignClinic(ctx context.Context, patientID, clinicID int64) (*domain.User, error) {
	patient, err := s.findPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureClinic(ctx, clinicID); err != nil {
		return nil, err
	}
	patient.ClinicID = &clinicID
	patient.UpdatedAt = s.now()
	if err := s.users.Update(ctx, patient); err != nil {
		return nil, err
	}
	s.logger.Info().Int64("patient_id", patientID).Int64("clinic_id", clinicID).Msg("patient assigned to clinic")
	return patient, nil
}

func (s *UserService) RemoveClinic(ctx context.Context, patientID int64) (*domain.User, error) {
	patient, err := s.findPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	patient.ClinicID = nil
	patient.UpdatedAt = s.now()
	if err := s.users.Update(ctx, patient); err != nil {
		return nil, err
	}
	s.logger.Info().Int64("patient_id", patientID).Msg("patient removed from clinic")
	return patient, nil
}

func (s *UserService) findPatient(ctx context.Context, id int64) (*domain.User, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Role != domain.RolePatient {
		return nil, fmt.Errorf("patient %d: %w", id, domain.ErrNotFound)
	}
	return u, nil
}

func (s *UserService) ensureClinic(ctx context.Context, id int64) error {
	u, err := s.users.FindByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && u.Role != domain.RoleClinic) {
		return fmt.Errorf("%w: invalid clinic id %d", domain.ErrInvalidRelationship, id)
	}
	return err
}

func (s *UserService) ensureEmailFree(ctx context.Context, email string, selfID int64) error {
	existing, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.ID != selfID {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateEmail, email)
	}
	return nil
}

func (s *UserService) ensureNoPatients(ctx context.Context, clinicID int64) error {
	patients, err := s.users.List(ctx, ports.UserFilter{Role: domain.RolePatient, ClinicID: &clinicID})
	if err != nil {
		return err
	}
	if len(patients) > 0 {
		return fmt.Errorf("%w: clinic %d still has %d patients", domain.ErrInvalidRelationship, clinicID, len(patients))
	}
	return nil
}

func (s *UserService) sendWelcome(ctx context.Context, user *domain.User, password string) {
	msg := domain.MailMessage{
		Key:      fmt.Sprintf("%s:%d", welcomeTemplate, user.ID),
		To:       user.Email,
		Template: welcomeTemplate,
		Subject:  "Bienvenido a " + s.brand,
		Data: map[string]any{
			"patientName":  user.Name,
			"email":        user.Email,
			"tempPassword": password,
			"brand":        s.brand,
		},
	}
	if err := s.mail.Enqueue(ctx, msg); err != nil {
		s.logger.Warn().Err(err).Int64("user_id", user.ID).Msg("welcome mail not enqueued")
	}
}

const passwordAlphabet = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func generatePassword(n int) (string, error) {
	var b strings.Builder
	limit := big.NewInt(int64(len(passwordAlphabet)))
	for range n {
		i, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		b.WriteByte(passwordAlphabet[i.Int64()])
	}
	return b.String(), nil
}
