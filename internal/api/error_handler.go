package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/dentalcare/clinic-visits/internal/core/domain"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// domainErrors maps each domain sentinel to its status code and kind. Order
// matters: the first match wins.
var domainErrors = []struct {
	err  error
	code int
	kind string
}{
	{domain.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{domain.ErrInvalidRelationship, http.StatusBadRequest, "INVALID_RELATIONSHIP"},
	{domain.ErrSchedulingConflict, http.StatusConflict, "SCHEDULING_CONFLICT"},
	{domain.ErrPrecondition, http.StatusBadRequest, "PRECONDITION"},
	{domain.ErrDuplicateEmail, http.StatusConflict, "DUPLICATE_EMAIL"},
	{domain.ErrDeliveryUnavailable, http.StatusServiceUnavailable, "DELIVERY_UNAVAILABLE"},
	{domain.ErrInvalidInterval, http.StatusBadRequest, "INVALID_INTERVAL"},
	{domain.ErrValidation, http.StatusBadRequest, "VALIDATION"},
	{domain.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
	{domain.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
	{domain.ErrScheduleBusy, http.StatusServiceUnavailable, "SCHEDULE_BUSY"},
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their HTTP status codes and kinds.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"error": "<message>", "kind": "<KIND>"}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, resp := resolveError(err, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, resp)
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, errorResponse) {
	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, errorResponse{Error: fmt.Sprintf("%v", he.Message), Kind: httpKind(he.Code)}
	}

	if code, kind := classify(err); kind != "" {
		return code, errorResponse{Error: err.Error(), Kind: kind}
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, errorResponse{Error: "internal server error", Kind: "INTERNAL"}
}

func classify(err error) (int, string) {
	for _, m := range domainErrors {
		if errors.Is(err, m.err) {
			return m.code, m.kind
		}
	}
	return http.StatusInternalServerError, ""
}

func httpKind(code int) string {
	switch code {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	default:
		return "HTTP_ERROR"
	}
}
