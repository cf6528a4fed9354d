package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/auth-service/internal/model"
)

const roleColumns = "id, name, description, permissions, created_at"

// RoleRepo persists permission bundles in the 'roles' table.
type RoleRepo struct{ db *sqlx.DB }

func NewRoleRepo(db *sqlx.DB) *RoleRepo { return &RoleRepo{db: db} }

// Create inserts role and fills in its ID.
func (r *RoleRepo) Create(ctx context.Context, role *model.Role) error {
	role.Name = strings.TrimSpace(role.Name)
	role.CreatedAt = dbTime(role.CreatedAt)
	if role.Permissions == nil {
		role.Permissions = model.Permissions{}
	}
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO roles (name, description, permissions, created_at) VALUES (?,?,?,?)",
		role.Name, role.Description, role.Permissions, role.CreatedAt)
	if err != nil {
		if isDuplicate(err) {
			return ErrRoleExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	role.ID = uint64(id)
	return nil
}

func (r *RoleRepo) get(ctx context.Context, where string, arg any) (model.Role, error) {
	var role model.Role
	err := r.db.GetContext(ctx, &role, "SELECT "+roleColumns+" FROM roles WHERE "+where+" LIMIT 1", arg)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Role{}, ErrNotFound
	}
	return role, err
}

// GetByID fetches a role by id.
func (r *RoleRepo) GetByID(ctx context.Context, id uint64) (model.Role, error) {
	return r.get(ctx, "id = ?", id)
}

// GetByName fetches a role by its unique name.
func (r *RoleRepo) GetByName(ctx context.Context, name string) (model.Role, error) {
	return r.get(ctx, "name = ?", name)
}

// List returns every role ordered by name.
func (r *RoleRepo) List(ctx context.Context) ([]model.Role, error) {
	roles := []model.Role{}
	err := r.db.SelectContext(ctx, &roles, "SELECT "+roleColumns+" FROM roles ORDER BY name")
	return roles, err
}

// Update writes name, description and permissions.
func (r *RoleRepo) Update(ctx context.Context, role model.Role) error {
	if role.Permissions == nil {
		role.Permissions = model.Permissions{}
	}
	_, err := r.db.ExecContext(ctx,
		"UPDATE roles SET name=?, description=?, permissions=? WHERE id=?",
		strings.TrimSpace(role.Name), role.Description, role.Permissions, role.ID)
	if isDuplicate(err) {
		return ErrRoleExists
	}
	return err
}

// Delete removes a role nobody references. The reference check and the
// delete share one transaction; the foreign key catches any account that
// gains the role concurrently.
func (r *RoleRepo) Delete(ctx context.Context, id uint64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	var refs int
	if err := tx.GetContext(ctx, &refs, "SELECT COUNT(*) FROM users WHERE role_id=?", id); err != nil {
		return err
	}
	if refs > 0 {
		return ErrRoleInUse
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM roles WHERE id=?", id)
	if err != nil {
		if isReferenced(err) {
			return ErrRoleInUse
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}
