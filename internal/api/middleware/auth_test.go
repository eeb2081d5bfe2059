package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/dentalcare/clinic-visits/internal/core/domain"
)

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func runAuth(t *testing.T, mw echo.MiddlewareFunc, header string, next echo.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := mw(next)(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func mustNotReach(t *testing.T) echo.HandlerFunc {
	return func(c echo.Context) error {
		t.Fatalf("should not reach next")
		return nil
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	token := signToken(t, "secret", jwt.MapClaims{
		"sub":  "42",
		"role": "CLINIC",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	called := false
	rec := runAuth(t, Auth("secret"), "Bearer "+token, func(c echo.Context) error {
		called = true
		if c.Get(KeyUserID) != int64(42) {
			t.Fatalf("user_id not set: %v", c.Get(KeyUserID))
		}
		if c.Get(KeyRole) != "CLINIC" {
			t.Fatalf("role not set")
		}
		return c.NoContent(http.StatusOK)
	})

	if !called {
		t.Fatalf("next not called")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	rec := runAuth(t, Auth("secret"), "", mustNotReach(t))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthMiddleware_InvalidHeaderFormat(t *testing.T) {
	rec := runAuth(t, Auth("secret"), "Token abc", mustNotReach(t))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	rec := runAuth(t, Auth("secret"), "Bearer not-a-token", mustNotReach(t))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthMiddleware_WrongSecret(t *testing.T) {
	token := signToken(t, "other", jwt.MapClaims{"sub": "1", "role": "ADMIN"})
	rec := runAuth(t, Auth("secret"), "Bearer "+token, mustNotReach(t))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthMiddleware_ExpiredToken(t *testing.T) {
	token := signToken(t, "secret", jwt.MapClaims{
		"sub": "1",
		"exp": time.Now().Add(-time.Minute).Unix(),
	})
	rec := runAuth(t, Auth("secret"), "Bearer "+token, mustNotReach(t))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthMiddleware_MissingSubject(t *testing.T) {
	token := signToken(t, "secret", jwt.MapClaims{"role": "ADMIN"})
	rec := runAuth(t, Auth("secret"), "Bearer "+token, mustNotReach(t))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestOptionalAuth_AnonymousPassesThrough(t *testing.T) {
	called := false
	rec := runAuth(t, OptionalAuth("secret"), "", func(c echo.Context) error {
		called = true
		if c.Get(KeyUserID) != nil {
			t.Fatalf("unexpected user_id")
		}
		return c.NoContent(http.StatusOK)
	})
	if !called || rec.Code != http.StatusOK {
		t.Fatalf("expected anonymous request to pass, got %d", rec.Code)
	}
}

func TestOptionalAuth_BadTokenRejected(t *testing.T) {
	rec := runAuth(t, OptionalAuth("secret"), "Bearer junk", mustNotReach(t))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

// ---------------------------------------------------------------------------
// LoadActor
// ---------------------------------------------------------------------------

type stubAuth struct {
	user *domain.User
	err  error
}

func (s *stubAuth) Login(context.Context, string, string) (string, *domain.User, error) {
	return "", nil, nil
}

func (s *stubAuth) Authenticate(_ context.Context, id int64) (domain.Actor, *domain.User, error) {
	if s.err != nil {
		return nil, nil, s.err
	}
	actor, err := s.user.Actor()
	return actor, s.user, err
}

func TestLoadActor_RefreshesRole(t *testing.T) {
	clinic := int64(10)
	auth := &stubAuth{user: &domain.User{ID: 7, Role: domain.RolePatient, ClinicID: &clinic}}

	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.Set(KeyUserID, int64(7))
	c.Set(KeyRole, "CLINIC") // stale claim

	err := LoadActor(auth)(func(c echo.Context) error {
		actor, ok := c.Get(KeyActor).(domain.Patient)
		if !ok {
			t.Fatalf("expected patient actor, got %T", c.Get(KeyActor))
		}
		if actor.ClinicID == nil || *actor.ClinicID != 10 {
			t.Fatalf("clinic not loaded")
		}
		if c.Get(KeyRole) != "PATIENT" {
			t.Fatalf("role not refreshed: %v", c.Get(KeyRole))
		}
		return nil
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadActor_DeletedUserRejected(t *testing.T) {
	auth := &stubAuth{err: domain.ErrInvalidCredentials}

	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.Set(KeyUserID, int64(7))

	err := LoadActor(auth)(mustNotReach(t))(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 HTTPError, got %v", err)
	}
}

func TestLoadActor_AnonymousPassesThrough(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	called := false
	_ = LoadActor(&stubAuth{})(func(c echo.Context) error {
		called = true
		return nil
	})(c)
	if !called {
		t.Fatal("anonymous request should pass through")
	}
}
