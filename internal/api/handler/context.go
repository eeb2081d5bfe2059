package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/dentalcare/clinic-visits/internal/api/middleware"
	"github.com/dentalcare/clinic-visits/internal/core/domain"
)

// ctxActor extracts the actor loaded by the LoadActor middleware. Its absence
// means the route was mounted without authentication.
func ctxActor(c echo.Context) (domain.Actor, error) {
	actor, ok := c.Get(middleware.KeyActor).(domain.Actor)
	if !ok || actor == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return actor, nil
}

// optionalActor returns the caller on routes that also serve anonymous requests.
func optionalActor(c echo.Context) domain.Actor {
	actor, _ := c.Get(middleware.KeyActor).(domain.Actor)
	return actor
}

func pathID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+" must be a positive integer")
	}
	return id, nil
}
