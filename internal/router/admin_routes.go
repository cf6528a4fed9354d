package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/auth-service/internal/handler"
	"github.com/iliyamo/auth-service/internal/middleware"
)

// RegisterAdmin registers the /users and /roles administration endpoints.
// Reads of accounts need users:read; every write needs a superuser. The role
// listing is public and served from the response cache.
func RegisterAdmin(api *echo.Group, d Deps) {
	authn := middleware.Authenticate(d.Auth)
	superuser := []echo.MiddlewareFunc{authn, middleware.RequireSuperuser()}
	reader := []echo.MiddlewareFunc{authn, middleware.RequirePermission("users:read")}

	u := handler.NewUserHandler(d.Users, d.Config.RequestTimeout)
	users := api.Group("/users")
	users.GET("", u.List, reader...)
	users.GET("/:id", u.Get, reader...)
	users.PATCH("/:id", u.Update, superuser...)
	users.DELETE("/:id", u.Delete, superuser...)
	users.POST("/:id/role", u.AssignRole, superuser...)

	r := handler.NewRoleHandler(d.Roles, d.Config.RequestTimeout)
	cache := middleware.NewRedisCache(d.Config.Cache, d.Redis)
	invalidate := middleware.InvalidateCache(d.Config.Cache, d.Redis)
	writes := []echo.MiddlewareFunc{authn, middleware.RequireSuperuser(), invalidate}

	roles := api.Group("/roles")
	roles.GET("", r.List, cache)
	roles.GET("/:id", r.Get, cache)
	roles.POST("", r.Create, writes...)
	roles.PATCH("/:id", r.Update, writes...)
	roles.DELETE("/:id", r.Delete, writes...)
}
