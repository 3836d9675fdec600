package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/academia/core/user"
)

// roleMiddleware gates a route to the given roles. It composes after the JWT
// middleware: authentication and authorization stay two independent checks so role
// policy can vary per route without duplicating token logic.
func roleMiddleware(roles ...user.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			for _, role := range roles {
				if claims.Role == role {
					return next(ctx)
				}
			}
			return errHTTPForbidden
		}
	}
}

func adminMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(user.RoleAdmin)
}
