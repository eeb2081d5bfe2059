package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dentalcare/clinic-visits/internal/api/metrics"
	"github.com/dentalcare/clinic-visits/internal/core/domain"
	"github.com/dentalcare/clinic-visits/internal/core/ports"
)

// VisitHandler handles HTTP requests for visit operations.
type VisitHandler struct {
	service ports.VisitService
}

func NewVisitHandler(service ports.VisitService) *VisitHandler {
	return &VisitHandler{service: service}
}

// Create schedules a new visit.
//
// @Summary      Schedule a visit
// @Description  Clinic callers always book on their own schedule; patient callers book for themselves at their assigned clinic with status PROGRAMADA.
// @Tags         visits
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createVisitRequest  true  "Visit details"
// @Success      201   {object}  visitResponse
// @Failure      400   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Failure      503   {object}  errorResponse
// @Router       /visits [post]
func (h *VisitHandler) Create(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	var req createVisitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	v, err := h.service.Create(c.Request().Context(), actor, req.toInput())
	observeMutation("create", err)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toVisitResponse(v))
}

// List returns every visit.
//
// @Summary      List all visits
// @Tags         visits
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   visitResponse
// @Failure      403  {object}  errorResponse
// @Router       /visits [get]
func (h *VisitHandler) List(c echo.Context) error {
	visits, err := h.service.List(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toVisitResponses(visits))
}

// Occupied returns the booked intervals of a clinic inside a date range.
//
// @Summary      Occupied slots
// @Tags         visits
// @Produce      json
// @Security     BearerAuth
// @Param        clinic_id  query     int     true  "Clinic ID"
// @Param        date_from  query     string  true  "Range start (RFC3339 or YYYY-MM-DD)"
// @Param        date_to    query     string  true  "Range end (RFC3339 or YYYY-MM-DD)"
// @Success      200        {array}   slotResponse
// @Failure      400        {object}  errorResponse
// @Router       /visits/occupied [get]
func (h *VisitHandler) Occupied(c echo.Context) error {
	var clinicID int64
	if err := echo.QueryParamsBinder(c).MustInt64("clinic_id", &clinicID).BindError(); err != nil || clinicID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "clinic_id must be a positive integer")
	}
	from, err := parseDateParam(c, "date_from")
	if err != nil {
		return err
	}
	to, err := parseDateParam(c, "date_to")
	if err != nil {
		return err
	}

	visits, err := h.service.Occupied(c.Request().Context(), clinicID, from, to)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toSlotResponses(visits))
}

// ListByClinic returns the visits of one clinic.
//
// @Summary      List clinic visits
// @Description  Clinic callers always receive their own visits.
// @Tags         visits
// @Produce      json
// @Security     BearerAuth
// @Param        clinicId  path      int  true  "Clinic ID"
// @Success      200       {array}   visitResponse
// @Failure      400       {object}  errorResponse
// @Router       /visits/clinic/{clinicId} [get]
func (h *VisitHandler) ListByClinic(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}
	clinicID, err := pathID(c, "clinicId")
	if err != nil {
		return err
	}

	visits, err := h.service.ListByClinic(c.Request().Context(), actor, clinicID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toVisitResponses(visits))
}

// ListByPatient returns the visits of one patient.
//
// @Summary      List patient visits
// @Description  Patient callers always receive their own visits; clinic callers only see visits at their clinic.
// @Tags         visits
// @Produce      json
// @Security     BearerAuth
// @Param        patientId  path      int  true  "Patient ID"
// @Success      200        {array}   visitResponse
// @Failure      400        {object}  errorResponse
// @Router       /visits/patient/{patientId} [get]
func (h *VisitHandler) ListByPatient(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}
	patientID, err := pathID(c, "patientId")
	if err != nil {
		return err
	}

	visits, err := h.service.ListByPatient(c.Request().Context(), actor, patientID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toVisitResponses(visits))
}

// Get returns a visit by id.
//
// @Summary      Get visit
// @Tags         visits
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Visit ID"
// @Success      200  {object}  visitResponse
// @Failure      404  {object}  errorResponse
// @Router       /visits/{id} [get]
func (h *VisitHandler) Get(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	v, err := h.service.Get(c.Request().Context(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toVisitResponse(v))
}

// Update applies a partial change to a visit.
//
// @Summary      Update visit
// @Description  Patient callers cannot change patient_id, clinic_id or status.
// @Tags         visits
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int                 true  "Visit ID"
// @Param        body  body      updateVisitRequest  true  "Fields to change"
// @Success      200   {object}  visitResponse
// @Failure      400   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /visits/{id} [put]
func (h *VisitHandler) Update(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var req updateVisitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	v, err := h.service.Update(c.Request().Context(), actor, id, req.toInput())
	observeMutation("update", err)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toVisitResponse(v))
}

// UpdateStatus sets the status of a visit.
//
// @Summary      Update visit status
// @Tags         visits
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int                  true  "Visit ID"
// @Param        body  body      updateStatusRequest  true  "New status"
// @Success      200   {object}  visitResponse
// @Failure      400   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /visits/{id}/status [put]
func (h *VisitHandler) UpdateStatus(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var req updateStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	v, err := h.service.UpdateStatus(c.Request().Context(), actor, id, domain.VisitStatus(req.Status))
	observeMutation("status", err)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toVisitResponse(v))
}

// Delete cancels a visit and returns its last state.
//
// @Summary      Delete visit
// @Tags         visits
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Visit ID"
// @Success      200  {object}  visitResponse
// @Failure      404  {object}  errorResponse
// @Router       /visits/{id} [delete]
func (h *VisitHandler) Delete(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	v, err := h.service.Delete(c.Request().Context(), actor, id)
	observeMutation("delete", err)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toVisitResponse(v))
}

func observeMutation(op string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrSchedulingConflict):
		result = "conflict"
		metrics.SchedulingConflictsTotal.Inc()
	case errors.Is(err, domain.ErrScheduleBusy):
		result = "busy"
	default:
		result = "error"
	}
	metrics.VisitMutationsTotal.WithLabelValues(op, result).Inc()
}

// parseDateParam accepts RFC3339 timestamps or plain dates (midnight UTC).
func parseDateParam(c echo.Context, name string) (time.Time, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, name+" is required")
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, name+" must be an RFC3339 timestamp or YYYY-MM-DD date")
}
