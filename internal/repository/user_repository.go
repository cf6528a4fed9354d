package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/auth-service/internal/model"
)

const userColumns = `id, email, password_hash, first_name, last_name, is_active, is_superuser,
	role_id, created_at, updated_at, last_login`

// UserRepo persists accounts in the 'users' table.
type UserRepo struct{ db *sqlx.DB }

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

// Create inserts u and fills in its ID. Email is stored as given, minus
// surrounding whitespace.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.Email = strings.TrimSpace(u.Email)
	u.CreatedAt = dbTime(u.CreatedAt)
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (email, password_hash, first_name, last_name, is_active, is_superuser, role_id, created_at)
		 VALUES (?,?,?,?,?,?,?,?)`,
		u.Email, u.PasswordHash, u.FirstName, u.LastName, u.IsActive, u.IsSuperuser, u.RoleID, u.CreatedAt)
	if err != nil {
		if isDuplicate(err) {
			return ErrEmailExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	return nil
}

func (r *UserRepo) get(ctx context.Context, where string, arg any) (model.User, error) {
	var u model.User
	err := r.db.GetContext(ctx, &u, "SELECT "+userColumns+" FROM users WHERE "+where+" LIMIT 1", arg)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	return u, err
}

// GetByEmail fetches an account by exact email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	return r.get(ctx, "email = ?", strings.TrimSpace(email))
}

// GetByID fetches an account by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.get(ctx, "id = ?", id)
}

// List returns one page of accounts ordered by id.
func (r *UserRepo) List(ctx context.Context, limit, offset int) ([]model.User, error) {
	users := []model.User{}
	err := r.db.SelectContext(ctx, &users,
		"SELECT "+userColumns+" FROM users ORDER BY id LIMIT ? OFFSET ?", limit, offset)
	return users, err
}

// Count returns the total number of accounts.
func (r *UserRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM users")
	return n, err
}

// Update writes the mutable profile fields of u.
func (r *UserRepo) Update(ctx context.Context, u model.User, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET first_name=?, last_name=?, is_active=?, is_superuser=?, updated_at=? WHERE id=?`,
		u.FirstName, u.LastName, u.IsActive, u.IsSuperuser, dbTime(at), u.ID)
	return err
}

// TouchLogin stamps last_login.
func (r *UserRepo) TouchLogin(ctx context.Context, id uint64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, "UPDATE users SET last_login=? WHERE id=?", dbTime(at), id)
	return err
}

// UpdatePassword overwrites the password hash and stamps updated_at.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uint64, hash string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE users SET password_hash=?, updated_at=? WHERE id=?", hash, dbTime(at), id)
	return err
}

// SetRole points the account at roleID, or clears it when roleID is nil.
func (r *UserRepo) SetRole(ctx context.Context, id uint64, roleID *uint64, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE users SET role_id=?, updated_at=? WHERE id=?", roleID, dbTime(at), id)
	return err
}

// Delete removes the account; its refresh tokens go with it (ON DELETE CASCADE).
func (r *UserRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM users WHERE id=?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
