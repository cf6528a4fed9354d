package service

import (
	"github.com/iliyamo/auth-service/internal/apperror"
	"github.com/iliyamo/auth-service/internal/model"
)

// Principal is the account behind a validated access token, with its role
// when it has one.
type Principal struct {
	User model.User
	Role *model.Role
}

// RoleName returns the role name or "".
func (p Principal) RoleName() string {
	if p.Role == nil {
		return ""
	}
	return p.Role.Name
}

// RequireActive rejects inactive accounts.
func (p Principal) RequireActive() error {
	if !p.User.IsActive {
		return apperror.Forbidden(apperror.ReasonInactive, "inactive user")
	}
	return nil
}

// RequireSuperuser rejects anyone who is not an active superuser.
func (p Principal) RequireSuperuser() error {
	if err := p.RequireActive(); err != nil {
		return err
	}
	if !p.User.IsSuperuser {
		return apperror.Forbidden(apperror.ReasonNotSuperuser, "not enough permissions")
	}
	return nil
}

// RequirePermission passes active superusers and active accounts whose role
// grants perm.
func (p Principal) RequirePermission(perm string) error {
	if err := p.RequireActive(); err != nil {
		return err
	}
	if p.User.IsSuperuser {
		return nil
	}
	if p.Role != nil && p.Role.Permissions.Has(perm) {
		return nil
	}
	return apperror.Forbidden(apperror.ReasonNoPermission, "not enough permissions")
}
