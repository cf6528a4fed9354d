package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/auth-service/internal/model"
	"github.com/iliyamo/auth-service/internal/service"
)

// UserAdmin is the account administration the handler needs.
type UserAdmin interface {
	List(ctx context.Context, page, pageSize int) (service.UserPage, error)
	Get(ctx context.Context, id uint64) (model.User, error)
	Update(ctx context.Context, id uint64, in service.UserUpdate) (model.User, error)
	Delete(ctx context.Context, id uint64) error
	AssignRole(ctx context.Context, userID, roleID uint64) (model.User, error)
}

type UserHandler struct {
	users   UserAdmin
	timeout time.Duration
}

func NewUserHandler(users UserAdmin, timeout time.Duration) *UserHandler {
	return &UserHandler{users: users, timeout: timeout}
}

type updateUserReq struct {
	FirstName *string `json:"first_name" validate:"omitempty,max=100"`
	LastName  *string `json:"last_name" validate:"omitempty,max=100"`
	IsActive  *bool   `json:"is_active"`
}

type assignRoleReq struct {
	RoleID uint64 `json:"role_id" validate:"required"`
}

// queryInt reads a positive integer query parameter, falling back to def.
func queryInt(c echo.Context, name string, def int) int {
	n, err := strconv.Atoi(c.QueryParam(name))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// List handles GET /users?page=&page_size=.
func (h *UserHandler) List(c echo.Context) error {
	ctx, cancel := withTimeout(c, h.timeout)
	defer cancel()

	page, err := h.users.List(ctx, queryInt(c, "page", 1), queryInt(c, "page_size", 20))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

func (h *UserHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c, h.timeout)
	defer cancel()

	u, err := h.users.Get(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u.View())
}

func (h *UserHandler) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req updateUserReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c, h.timeout)
	defer cancel()

	u, err := h.users.Update(ctx, id, service.UserUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		IsActive:  req.IsActive,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u.View())
}

func (h *UserHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c, h.timeout)
	defer cancel()

	if err := h.users.Delete(ctx, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// AssignRole handles POST /users/:id/role.
func (h *UserHandler) AssignRole(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req assignRoleReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c, h.timeout)
	defer cancel()

	u, err := h.users.AssignRole(ctx, id, req.RoleID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u.View())
}
