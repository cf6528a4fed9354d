package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/auth-service/internal/apperror"
	"github.com/iliyamo/auth-service/internal/service"
)

// gate builds a middleware from a check on the authenticated principal. It
// assumes Authenticate ran earlier in the chain.
func gate(check func(service.Principal) error) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := PrincipalFrom(c)
			if !ok {
				return apperror.Unauthorized(apperror.ReasonInvalidToken, "not authenticated")
			}
			if err := check(p); err != nil {
				return err
			}
			return next(c)
		}
	}
}

// RequireActive rejects inactive accounts with 403.
func RequireActive() echo.MiddlewareFunc {
	return gate(service.Principal.RequireActive)
}

// RequireSuperuser rejects anyone but active superusers with 403.
func RequireSuperuser() echo.MiddlewareFunc {
	return gate(service.Principal.RequireSuperuser)
}

// RequirePermission admits active superusers and accounts whose role grants perm.
func RequirePermission(perm string) echo.MiddlewareFunc {
	return gate(func(p service.Principal) error { return p.RequirePermission(perm) })
}
