package ports

import (
	"context"

	"github.com/dentalcare/clinic-visits/internal/core/domain"
)

// UserFilter narrows List. Zero values mean "no filter".
type UserFilter struct {
	Role     domain.Role
	ClinicID *int64
}

// UserRepository persists accounts. Lookups of missing records return an
// error wrapping domain.ErrNotFound; email collisions wrap domain.ErrDuplicateEmail.
type UserRepository interface {
	FindByID(ctx context.Context, id int64) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context, filter UserFilter) ([]*domain.User, error)
	// Create assigns ID on success. Callers set the timestamps.
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	// Delete removes the user and every visit it takes part in. Patients of a
	// deleted clinic become unassigned.
	Delete(ctx context.Context, id int64) error
}
