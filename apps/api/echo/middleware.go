package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/unicourses/core/session"
	"github.com/trezcool/unicourses/core/user"
)

// roleMiddleware guards a route group behind the role gate: anonymous
// requests get 401, authenticated ones lacking a required role get 403.
func roleMiddleware(roles ...user.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			switch session.Decide(getContextState(ctx), roles...) {
			case session.OutcomeAllow:
				return next(ctx)
			case session.OutcomeRedirectUnauthorized:
				return errHttpForbidden
			default:
				return errUnauthorized
			}
		}
	}
}

func adminMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(user.RoleAdmin)
}
