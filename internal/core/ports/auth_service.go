package ports

import (
	"context"

	"github.com/dentalcare/clinic-visits/internal/core/domain"
)

// PasswordHasher hides the hashing scheme from the services.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

type AuthService interface {
	Login(ctx context.Context, email, password string) (string, *domain.User, error)
	// Authenticate resolves the token subject into a fresh actor.
	Authenticate(ctx context.Context, userID int64) (domain.Actor, *domain.User, error)
}

// CreateUserInput carries a registration. Password may be empty for patients,
// in which case a temporary one is generated.
type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Role     domain.Role
	ClinicID *int64
}

// UpdateUserInput is a partial profile update; nil fields are left untouched.
type UpdateUserInput struct {
	Name     *string
	Email    *string
	Password *string
	Role     *domain.Role
	ClinicID *int64
}

type UserService interface {
	// Create registers an account. actor is nil for anonymous registration,
	// which cannot create administrators.
	Create(ctx context.Context, actor domain.Actor, in CreateUserInput) (*domain.User, error)
	List(ctx context.Context, role domain.Role) ([]*domain.User, error)
	Get(ctx context.Context, id int64) (*domain.User, error)
	Update(ctx context.Context, actor domain.Actor, id int64, in UpdateUserInput) (*domain.User, error)
	Delete(ctx context.Context, actor domain.Actor, id int64) error
	ChangePassword(ctx context.Context, actor domain.Actor, current, next string) error
	ClinicPatients(ctx context.Context, actor domain.Actor, clinicID int64) ([]*domain.User, error)
	AssignClinic(ctx context.Context, patientID, clinicID int64) (*domain.User, error)
	RemoveClinic(ctx context.Context, patientID int64) (*domain.User, error)
}
