package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/auth-service/internal/model"
	"github.com/iliyamo/auth-service/internal/service"
)

// RoleAdmin is the role management the handler needs.
type RoleAdmin interface {
	List(ctx context.Context) ([]model.Role, error)
	Get(ctx context.Context, id uint64) (model.Role, error)
	Create(ctx context.Context, in service.RoleInput) (model.Role, error)
	Update(ctx context.Context, id uint64, in service.RoleUpdate) (model.Role, error)
	Delete(ctx context.Context, id uint64) error
}

type RoleHandler struct {
	roles   RoleAdmin
	timeout time.Duration
}

func NewRoleHandler(roles RoleAdmin, timeout time.Duration) *RoleHandler {
	return &RoleHandler{roles: roles, timeout: timeout}
}

type createRoleReq struct {
	Name        string   `json:"name" validate:"required,max=50"`
	Description *string  `json:"description" validate:"omitempty,max=255"`
	Permissions []string `json:"permissions" validate:"dive,required,max=100"`
}

type updateRoleReq struct {
	Name        *string   `json:"name" validate:"omitempty,min=1,max=50"`
	Description *string   `json:"description" validate:"omitempty,max=255"`
	Permissions *[]string `json:"permissions" validate:"omitempty,dive,required,max=100"`
}

func (h *RoleHandler) List(c echo.Context) error {
	ctx, cancel := withTimeout(c, h.timeout)
	defer cancel()

	roles, err := h.roles.List(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, roles)
}

func (h *RoleHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c, h.timeout)
	defer cancel()

	r, err := h.roles.Get(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

func (h *RoleHandler) Create(c echo.Context) error {
	var req createRoleReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c, h.timeout)
	defer cancel()

	r, err := h.roles.Create(ctx, service.RoleInput{
		Name:        req.Name,
		Description: req.Description,
		Permissions: req.Permissions,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *RoleHandler) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req updateRoleReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c, h.timeout)
	defer cancel()

	r, err := h.roles.Update(ctx, id, service.RoleUpdate{
		Name:        req.Name,
		Description: req.Description,
		Permissions: req.Permissions,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

// Delete refuses with 409 while any account still holds the role.
func (h *RoleHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c, h.timeout)
	defer cancel()

	if err := h.roles.Delete(ctx, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
