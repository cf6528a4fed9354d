// Package router wires handlers and middleware into an echo instance.
package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/auth-service/internal/config"
	"github.com/iliyamo/auth-service/internal/handler"
	"github.com/iliyamo/auth-service/internal/logger"
	"github.com/iliyamo/auth-service/internal/metrics"
	"github.com/iliyamo/auth-service/internal/middleware"
	"github.com/iliyamo/auth-service/internal/service"
)

// APIPrefix is the mount point of every versioned endpoint.
const APIPrefix = "/api/v1"

// Deps collects what the HTTP surface needs. Redis may be nil, which turns
// rate limiting and response caching into pass-throughs.
type Deps struct {
	Config   config.Config
	Log      *logger.Logger
	Auth     service.Auth
	Users    handler.UserAdmin
	Roles    handler.RoleAdmin
	Redis    redis.UniversalClient
	Metrics  *metrics.Collectors
	Gatherer prometheus.Gatherer
	Health   map[string]handler.Check
}

// New builds the echo instance with every route registered.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.HTTPErrorHandler(d.Log)
	e.Validator = handler.NewRequestValidator()

	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(d.Log))
	if d.Metrics != nil {
		e.Use(middleware.Metrics(d.Metrics))
	}
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     d.Config.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderAuthorization, echo.HeaderContentType, echo.HeaderXRequestID},
		AllowCredentials: true,
	}))
	e.Use(echomw.BodyLimit("1M"))

	RegisterRoutes(e, d)

	api := e.Group(APIPrefix)
	RegisterAuth(api, d)
	RegisterAdmin(api, d)
	return e
}

// RegisterRoutes registers the unversioned operational endpoints.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health(d.Health))
	if d.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}
}

// RegisterAuth registers /auth. Every route there is rate limited; /me and
// /change-password also need an active bearer and are limited after
// authentication, so user-keyed strategies see the caller.
func RegisterAuth(api *echo.Group, d Deps) {
	a := handler.NewAuthHandler(d.Auth, handler.AuthOptions{
		Timeout:          d.Config.RequestTimeout,
		ExposeResetToken: d.Config.ExposeResetToken,
	})
	limit := middleware.NewTokenBucket(d.Config.RateLimit, d.Redis, d.Log)

	g := api.Group("/auth")
	g.POST("/register", a.Register, limit)
	g.POST("/login", a.Login, limit)
	g.POST("/refresh", a.Refresh, limit)
	g.POST("/logout", a.Logout, limit)
	g.POST("/forgot-password", a.ForgotPassword, limit)
	g.POST("/reset-password", a.ResetPassword, limit)

	authed := []echo.MiddlewareFunc{middleware.Authenticate(d.Auth), middleware.RequireActive(), limit}
	g.GET("/me", a.Me, authed...)
	g.POST("/change-password", a.ChangePassword, authed...)
}
