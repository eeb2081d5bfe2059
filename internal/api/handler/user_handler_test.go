package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/dentalcare/clinic-visits/internal/core/domain"
	"github.com/dentalcare/clinic-visits/internal/core/ports"
)

type stubAuthService struct {
	loginFn func(ctx context.Context, email, password string) (string, *domain.User, error)
}

func (s *stubAuthService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	return s.loginFn(ctx, email, password)
}

func (s *stubAuthService) Authenticate(context.Context, int64) (domain.Actor, *domain.User, error) {
	return nil, nil, errors.New("not used")
}

type stubUserService struct {
	ports.UserService
	createFn func(ctx context.Context, actor domain.Actor, in ports.CreateUserInput) (*domain.User, error)
	getFn    func(ctx context.Context, id int64) (*domain.User, error)
	updateFn func(ctx context.Context, actor domain.Actor, id int64, in ports.UpdateUserInput) (*domain.User, error)
	deleteFn func(ctx context.Context, actor domain.Actor, id int64) error
	changeFn func(ctx context.Context, actor domain.Actor, current, next string) error
}

func (s *stubUserService) Create(ctx context.Context, a domain.Actor, in ports.CreateUserInput) (*domain.User, error) {
	return s.createFn(ctx, a, in)
}
func (s *stubUserService) Get(ctx context.Context, id int64) (*domain.User, error) {
	return s.getFn(ctx, id)
}
func (s *stubUserService) Update(ctx context.Context, a domain.Actor, id int64, in ports.UpdateUserInput) (*domain.User, error) {
	return s.updateFn(ctx, a, id, in)
}
func (s *stubUserService) Delete(ctx context.Context, a domain.Actor, id int64) error {
	return s.deleteFn(ctx, a, id)
}
func (s *stubUserService) ChangePassword(ctx context.Context, a domain.Actor, current, next string) error {
	return s.changeFn(ctx, a, current, next)
}

func samplePatient() *domain.User {
	clinic := int64(10)
	return &domain.User{
		ID:           20,
		Name:         "Ana",
		Email:        "ana@example.com",
		PasswordHash: "$2a$hash",
		Role:         domain.RolePatient,
		ClinicID:     &clinic,
		CreatedAt:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// ---------------------------------------------------------------------------
// Login
// ---------------------------------------------------------------------------

func TestAuthHandler_Login_Success(t *testing.T) {
	e := newEcho()
	h := NewAuthHandler(&stubAuthService{
		loginFn: func(_ context.Context, email, password string) (string, *domain.User, error) {
			if email != "ana@example.com" || password != "123456" {
				t.Fatalf("unexpected credentials %s/%s", email, password)
			}
			return "signed.jwt.token", samplePatient(), nil
		},
	})
	c, rec := newCtx(e, http.MethodPost, "/users/login", `{"email":"ana@example.com","password":"123456"}`, nil)

	if err := h.Login(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp map[string]any
	decode(t, rec, &resp)
	if resp["access_token"] != "signed.jwt.token" {
		t.Errorf("access_token = %v", resp["access_token"])
	}
	user, ok := resp["user"].(map[string]any)
	if !ok {
		t.Fatalf("user missing")
	}
	if _, leaked := user["password_hash"]; leaked {
		t.Error("password hash leaked")
	}
	if user["clinic_id"] != float64(10) {
		t.Errorf("clinic_id = %v", user["clinic_id"])
	}
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	e := newEcho()
	h := NewAuthHandler(&stubAuthService{
		loginFn: func(context.Context, string, string) (string, *domain.User, error) {
			return "", nil, domain.ErrInvalidCredentials
		},
	})
	c, _ := newCtx(e, http.MethodPost, "/users/login", `{"email":"ana@example.com","password":"nope"}`, nil)

	if err := h.Login(c); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthHandler_Login_MissingFields(t *testing.T) {
	e := newEcho()
	h := NewAuthHandler(&stubAuthService{})
	c, _ := newCtx(e, http.MethodPost, "/users/login", `{"email":"ana@example.com"}`, nil)

	if err := h.Login(c); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

func TestUserHandler_Register_Anonymous(t *testing.T) {
	e := newEcho()
	h := NewUserHandler(&stubUserService{
		createFn: func(_ context.Context, actor domain.Actor, in ports.CreateUserInput) (*domain.User, error) {
			if actor != nil {
				t.Fatalf("expected anonymous actor, got %v", actor)
			}
			if in.Role != domain.RolePatient || in.ClinicID == nil || *in.ClinicID != 10 {
				t.Fatalf("unexpected input %+v", in)
			}
			if in.Password != "" {
				t.Fatalf("password should be empty")
			}
			return samplePatient(), nil
		},
	})
	c, rec := newCtx(e, http.MethodPost, "/users", `{"name":"Ana","email":"ana@example.com","role":"PATIENT","clinic_id":10}`, nil)

	if err := h.Register(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
}

func TestUserHandler_Register_Validation(t *testing.T) {
	cases := map[string]string{
		"bad email":      `{"name":"Ana","email":"nope","role":"PATIENT"}`,
		"unknown role":   `{"name":"Ana","email":"ana@example.com","role":"ROOT"}`,
		"short password": `{"name":"Ana","email":"ana@example.com","role":"CLINIC","password":"123"}`,
		"missing name":   `{"email":"ana@example.com","role":"CLINIC","password":"123456"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			e := newEcho()
			h := NewUserHandler(&stubUserService{})
			c, _ := newCtx(e, http.MethodPost, "/users", body, nil)
			if err := h.Register(c); !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestUserHandler_Register_ValidationMessageUsesJSONNames(t *testing.T) {
	e := newEcho()
	h := NewUserHandler(&stubUserService{})
	c, _ := newCtx(e, http.MethodPost, "/users", `{"name":"Ana","email":"ana@example.com","role":"PATIENT","clinic_id":-1}`, nil)

	err := h.Register(c)
	if err == nil || err.Error() != "validation failed: clinic_id must be greater than 0" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUserHandler_Me(t *testing.T) {
	e := newEcho()
	h := NewUserHandler(&stubUserService{
		getFn: func(_ context.Context, id int64) (*domain.User, error) {
			if id != 20 {
				t.Fatalf("unexpected id %d", id)
			}
			return samplePatient(), nil
		},
	})
	c, rec := newCtx(e, http.MethodGet, "/users/me", "", domain.Patient{ID: 20})

	if err := h.Me(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var resp map[string]any
	decode(t, rec, &resp)
	if resp["email"] != "ana@example.com" {
		t.Errorf("email = %v", resp["email"])
	}
}

func TestUserHandler_Update_PassesRole(t *testing.T) {
	e := newEcho()
	h := NewUserHandler(&stubUserService{
		updateFn: func(_ context.Context, _ domain.Actor, id int64, in ports.UpdateUserInput) (*domain.User, error) {
			if in.Role == nil || *in.Role != domain.RoleClinic {
				t.Fatalf("role not passed: %+v", in)
			}
			if in.Name != nil {
				t.Fatalf("name should be untouched")
			}
			return samplePatient(), nil
		},
	})
	c, _ := newCtx(e, http.MethodPut, "/users/20", `{"role":"CLINIC"}`, domain.Admin{ID: 1})
	c.SetParamNames("id")
	c.SetParamValues("20")

	if err := h.Update(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
}

func TestUserHandler_Delete_Forbidden(t *testing.T) {
	e := newEcho()
	h := NewUserHandler(&stubUserService{
		deleteFn: func(context.Context, domain.Actor, int64) error { return domain.ErrForbidden },
	})
	c, _ := newCtx(e, http.MethodDelete, "/users/21", "", domain.Patient{ID: 20})
	c.SetParamNames("id")
	c.SetParamValues("21")

	if err := h.Delete(c); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestUserHandler_ChangePassword(t *testing.T) {
	e := newEcho()
	called := false
	h := NewUserHandler(&stubUserService{
		changeFn: func(_ context.Context, _ domain.Actor, current, next string) error {
			called = current == "123456" && next == "nueva-clave"
			return nil
		},
	})
	c, rec := newCtx(e, http.MethodPut, "/users/change-password", `{"current_password":"123456","new_password":"nueva-clave"}`, domain.Patient{ID: 20})

	if err := h.ChangePassword(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called {
		t.Fatal("service not called with the submitted passwords")
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}
