package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dentalcare/clinic-visits/internal/core/domain"
)

var forbiddenBody = map[string]string{"error": "forbidden", "kind": "FORBIDDEN"}

// RBAC admits requests whose caller holds one of roles. The role of a loaded
// Actor wins over the token claim, so a demoted user loses access at once.
func RBAC(roles ...domain.Role) echo.MiddlewareFunc {
	allowed := make(map[domain.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !allowed[callerRole(c)] {
				return c.JSON(http.StatusForbidden, forbiddenBody)
			}
			return next(c)
		}
	}
}

func callerRole(c echo.Context) domain.Role {
	if actor, ok := c.Get(KeyActor).(domain.Actor); ok {
		return actor.ActorRole()
	}
	role, _ := c.Get(KeyRole).(string)
	return domain.Role(role)
}
