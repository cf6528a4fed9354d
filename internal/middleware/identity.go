package middleware

// identity.go holds the request-scoped identity shared by the auth gates,
// the rate limiter and the handlers.

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/auth-service/internal/service"
)

const (
	principalKey   = "principal"
	accessTokenKey = "access_token"
)

// SetPrincipal stores the authenticated principal and its raw token on c.
func SetPrincipal(c echo.Context, p service.Principal, raw string) {
	c.Set(principalKey, p)
	c.Set(accessTokenKey, raw)
}

// PrincipalFrom returns the principal stored by Authenticate.
func PrincipalFrom(c echo.Context) (service.Principal, bool) {
	p, ok := c.Get(principalKey).(service.Principal)
	return p, ok
}

// AccessTokenFrom returns the raw bearer token stored by Authenticate.
func AccessTokenFrom(c echo.Context) string {
	s, _ := c.Get(accessTokenKey).(string)
	return s
}

// currentUserID identifies the caller for rate-limit keys; "anon" when
// nobody is authenticated.
func currentUserID(c echo.Context) string {
	if p, ok := PrincipalFrom(c); ok && p.User.ID != 0 {
		return strconv.FormatUint(p.User.ID, 10)
	}
	return "anon"
}
