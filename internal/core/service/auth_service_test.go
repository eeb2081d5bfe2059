package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/dentalcare/clinic-visits/internal/core/domain"
)

var fastHasher = BcryptHasher{Cost: bcrypt.MinCost}

func seedLoginUser(t *testing.T, repo *stubUserRepo) *domain.User {
	t.Helper()
	hash, err := fastHasher.Hash("pass123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return repo.put(&domain.User{ID: 7, Name: "Alice", Email: "alice@example.com", PasswordHash: hash, Role: domain.RoleClinic})
}

func TestBcryptHasher(t *testing.T) {
	hash, err := fastHasher.Hash("secret1")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "secret1" {
		t.Fatalf("expected password to be hashed")
	}
	if err := fastHasher.Compare(hash, "secret1"); err != nil {
		t.Fatalf("compare: %v", err)
	}
	if err := fastHasher.Compare(hash, "nope"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_Login_Success(t *testing.T) {
	repo := newStubUserRepo()
	seedLoginUser(t, repo)
	svc := NewAuthService(repo, fastHasher, "secret", time.Hour)

	token, user, err := svc.Login(context.Background(), " Alice@Example.com ", "pass123")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if user.ID != 7 {
		t.Fatalf("unexpected user %+v", user)
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte("secret"), nil
	})
	if err != nil || !parsed.Valid {
		t.Fatalf("token invalid: %v", err)
	}
	if claims["sub"] != "7" || claims["role"] != "CLINIC" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if _, ok := claims["exp"]; !ok {
		t.Fatalf("token must expire")
	}
}

func TestAuthService_Login_InvalidPassword(t *testing.T) {
	repo := newStubUserRepo()
	seedLoginUser(t, repo)
	svc := NewAuthService(repo, fastHasher, "secret", time.Hour)

	if _, _, err := svc.Login(context.Background(), "alice@example.com", "wrong"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_Login_UnknownEmail(t *testing.T) {
	svc := NewAuthService(newStubUserRepo(), fastHasher, "secret", time.Hour)

	if _, _, err := svc.Login(context.Background(), "ghost@example.com", "pass123"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := svc.Login(context.Background(), "", ""); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for empty input, got %v", err)
	}
}

func TestAuthService_Authenticate(t *testing.T) {
	repo := newStubUserRepo()
	repo.put(&domain.User{ID: 20, Role: domain.RolePatient, ClinicID: int64p(10)})
	svc := NewAuthService(repo, fastHasher, "secret", time.Hour)

	actor, _, err := svc.Authenticate(context.Background(), 20)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	p, ok := actor.(domain.Patient)
	if !ok || p.ClinicID == nil || *p.ClinicID != 10 {
		t.Fatalf("expected patient of clinic 10, got %#v", actor)
	}

	if _, _, err := svc.Authenticate(context.Background(), 99); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("deleted user must not authenticate, got %v", err)
	}
}
