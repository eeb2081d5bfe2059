package handler

import (
	"time"

	"github.com/dentalcare/clinic-visits/internal/core/domain"
	"github.com/dentalcare/clinic-visits/internal/core/ports"
)

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

type createUserRequest struct {
	Name     string `json:"name"      validate:"required,max=120"`
	Email    string `json:"email"     validate:"required,email"`
	Password string `json:"password"  validate:"omitempty,min=6"`
	Role     string `json:"role"      validate:"required,role"`
	ClinicID *int64 `json:"clinic_id" validate:"omitempty,gt=0"`
}

func (r createUserRequest) toInput() ports.CreateUserInput {
	return ports.CreateUserInput{
		Name:     r.Name,
		Email:    r.Email,
		Password: r.Password,
		Role:     domain.Role(r.Role),
		ClinicID: r.ClinicID,
	}
}

type updateUserRequest struct {
	Name     *string `json:"name"      validate:"omitempty,min=1,max=120"`
	Email    *string `json:"email"     validate:"omitempty,email"`
	Password *string `json:"password"  validate:"omitempty,min=6"`
	Role     *string `json:"role"      validate:"omitempty,role"`
	ClinicID *int64  `json:"clinic_id" validate:"omitempty,gt=0"`
}

func (r updateUserRequest) toInput() ports.UpdateUserInput {
	in := ports.UpdateUserInput{
		Name:     r.Name,
		Email:    r.Email,
		Password: r.Password,
		ClinicID: r.ClinicID,
	}
	if r.Role != nil {
		role := domain.Role(*r.Role)
		in.Role = &role
	}
	return in
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password"     validate:"required,min=6"`
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        userResponse `json:"user"`
}

type userResponse struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Email              string    `json:"email"`
	Role               string    `json:"role"`
	ClinicID           *int64    `json:"clinic_id"`
	MustChangePassword bool      `json:"must_change_password"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// toUserResponse never exposes the password hash.
func toUserResponse(u *domain.User) userResponse {
	return userResponse{
		ID:                 u.ID,
		Name:               u.Name,
		Email:              u.Email,
		Role:               string(u.Role),
		ClinicID:           u.ClinicID,
		MustChangePassword: u.MustChangePassword,
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
	}
}

func toUserResponses(users []*domain.User) []userResponse {
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	return out
}
