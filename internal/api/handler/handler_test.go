package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dentalcare/clinic-visits/internal/api/middleware"
	"github.com/dentalcare/clinic-visits/internal/core/domain"
	"github.com/dentalcare/clinic-visits/internal/core/ports"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

func newCtx(e *echo.Echo, method, target, body string, actor domain.Actor) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if actor != nil {
		c.Set(middleware.KeyActor, actor)
	}
	return c, rec
}

func httpCode(t *testing.T, err error) int {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected *echo.HTTPError, got %v", err)
	}
	return he.Code
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("invalid json %q: %v", rec.Body.String(), err)
	}
}

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

type stubVisitService struct {
	createFn   func(ctx context.Context, actor domain.Actor, in ports.CreateVisitInput) (*domain.Visit, error)
	updateFn   func(ctx context.Context, actor domain.Actor, id int64, in ports.UpdateVisitInput) (*domain.Visit, error)
	statusFn   func(ctx context.Context, actor domain.Actor, id int64, s domain.VisitStatus) (*domain.Visit, error)
	deleteFn   func(ctx context.Context, actor domain.Actor, id int64) (*domain.Visit, error)
	getFn      func(ctx context.Context, actor domain.Actor, id int64) (*domain.Visit, error)
	byClinicFn func(ctx context.Context, actor domain.Actor, id int64) ([]*domain.Visit, error)
	occupiedFn func(ctx context.Context, clinicID int64, from, to time.Time) ([]*domain.Visit, error)
}

func (s *stubVisitService) Create(ctx context.Context, a domain.Actor, in ports.CreateVisitInput) (*domain.Visit, error) {
	return s.createFn(ctx, a, in)
}
func (s *stubVisitService) Update(ctx context.Context, a domain.Actor, id int64, in ports.UpdateVisitInput) (*domain.Visit, error) {
	return s.updateFn(ctx, a, id, in)
}
func (s *stubVisitService) UpdateStatus(ctx context.Context, a domain.Actor, id int64, st domain.VisitStatus) (*domain.Visit, error) {
	return s.statusFn(ctx, a, id, st)
}
func (s *stubVisitService) Delete(ctx context.Context, a domain.Actor, id int64) (*domain.Visit, error) {
	return s.deleteFn(ctx, a, id)
}
func (s *stubVisitService) Get(ctx context.Context, a domain.Actor, id int64) (*domain.Visit, error) {
	return s.getFn(ctx, a, id)
}
func (s *stubVisitService) List(context.Context) ([]*domain.Visit, error) {
	return []*domain.Visit{sampleVisit()}, nil
}
func (s *stubVisitService) ListByClinic(ctx context.Context, a domain.Actor, id int64) ([]*domain.Visit, error) {
	return s.byClinicFn(ctx, a, id)
}
func (s *stubVisitService) ListByPatient(context.Context, domain.Actor, int64) ([]*domain.Visit, error) {
	return nil, nil
}
func (s *stubVisitService) Occupied(ctx context.Context, clinicID int64, from, to time.Time) ([]*domain.Visit, error) {
	return s.occupiedFn(ctx, clinicID, from, to)
}

func sampleVisit() *domain.Visit {
	start := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	return &domain.Visit{
		ID:        5,
		Title:     "Revisión",
		StartTime: start,
		EndTime:   start.Add(time.Hour),
		Type:      domain.VisitConsulta,
		Status:    domain.StatusProgramada,
		PatientID: 20,
		ClinicID:  10,
		Patient:   &domain.Party{ID: 20, Name: "Ana", Email: "ana@example.com"},
		Clinic:    &domain.Party{ID: 10, Name: "Marcelo Mujica", Email: "clinica@example.com"},
	}
}
