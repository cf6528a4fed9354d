package middleware

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/auth-service/internal/apperror"
	"github.com/iliyamo/auth-service/internal/service"
)

// AccessValidator resolves a bearer token to a principal.
type AccessValidator interface {
	ValidateAccess(ctx context.Context, raw string) (service.Principal, error)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(c echo.Context) (string, bool) {
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	scheme, raw, ok := strings.Cut(auth, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

// Authenticate validates the bearer access token on every request (blacklist,
// then signature and expiry, then the account) and stores the principal on
// the context. Failures surface as Unauthorized through the error handler.
func Authenticate(v AccessValidator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := BearerToken(c)
			if !ok {
				return apperror.Unauthorized(apperror.ReasonInvalidToken, "not authenticated")
			}
			p, err := v.ValidateAccess(c.Request().Context(), raw)
			if err != nil {
				return err
			}
			SetPrincipal(c, p, raw)
			return next(c)
		}
	}
}
