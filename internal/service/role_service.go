package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/auth-service/internal/apperror"
	"github.com/iliyamo/auth-service/internal/logger"
	"github.com/iliyamo/auth-service/internal/model"
	"github.com/iliyamo/auth-service/internal/repository"
)

// RoleInput creates a role.
type RoleInput struct {
	Name        string
	Description *string
	Permissions []string
}

// RoleUpdate carries the optional fields of a role update.
type RoleUpdate struct {
	Name        *string
	Description *string
	Permissions *[]string
}

// RoleService is the admin CRUD over roles.
type RoleService struct {
	roles RoleStore
	now   func() time.Time
	log   *logger.Logger
}

func NewRoleService(roles RoleStore, log *logger.Logger) *RoleService {
	if log == nil {
		log = logger.NewNop()
	}
	return &RoleService{roles: roles, now: time.Now, log: log.Named("roles")}
}

func mapRoleErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperror.NotFound("role not found")
	case errors.Is(err, repository.ErrRoleExists):
		return apperror.Conflict(apperror.ReasonDuplicateRole, "role name already exists")
	case errors.Is(err, repository.ErrRoleInUse):
		return apperror.Conflict(apperror.ReasonRoleInUse, "role is assigned to users")
	}
	return err
}

// dedupe drops blanks and repeats; permission order carries no meaning.
func dedupe(perms []string) model.Permissions {
	out := model.Permissions{}
	seen := map[string]bool{}
	for _, p := range perms {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func (s *RoleService) List(ctx context.Context) ([]model.Role, error) {
	return s.roles.List(ctx)
}

func (s *RoleService) Get(ctx context.Context, id uint64) (model.Role, error) {
	role, err := s.roles.GetByID(ctx, id)
	if err != nil {
		return model.Role{}, mapRoleErr(err)
	}
	return role, nil
}

func (s *RoleService) Create(ctx context.Context, in RoleInput) (model.Role, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.Role{}, apperror.BadRequest("role name is required")
	}
	role := model.Role{
		Name:        name,
		Description: in.Description,
		Permissions: dedupe(in.Permissions),
		CreatedAt:   s.now().UTC(),
	}
	if err := s.roles.Create(ctx, &role); err != nil {
		return model.Role{}, mapRoleErr(err)
	}
	s.log.WithContext(ctx).Info("role created", zap.Uint64("role_id", role.ID), zap.String("name", role.Name))
	return role, nil
}

func (s *RoleService) Update(ctx context.Context, id uint64, in RoleUpdate) (model.Role, error) {
	role, err := s.Get(ctx, id)
	if err != nil {
		return model.Role{}, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return model.Role{}, apperror.BadRequest("role name is required")
		}
		role.Name = name
	}
	if in.Description != nil {
		role.Description = in.Description
	}
	if in.Permissions != nil {
		role.Permissions = dedupe(*in.Permissions)
	}
	if err := s.roles.Update(ctx, role); err != nil {
		return model.Role{}, mapRoleErr(err)
	}
	return role, nil
}

// Delete removes a role. Roles still assigned to accounts are refused with
// Conflict rather than orphaning the reference.
func (s *RoleService) Delete(ctx context.Context, id uint64) error {
	if err := s.roles.Delete(ctx, id); err != nil {
		return mapRoleErr(err)
	}
	s.log.WithContext(ctx).Info("role deleted", zap.Uint64("role_id", id))
	return nil
}
