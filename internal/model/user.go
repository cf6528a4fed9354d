package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// User represents an account row in the `users` table. PasswordHash never
// leaves the service layer; handlers render UserView instead.
type User struct {
	ID           uint64     `db:"id"`
	Email        string     `db:"email"`
	PasswordHash string     `db:"password_hash"`
	FirstName    *string    `db:"first_name"`
	LastName     *string    `db:"last_name"`
	IsActive     bool       `db:"is_active"`
	IsSuperuser  bool       `db:"is_superuser"`
	RoleID       *uint64    `db:"role_id"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    *time.Time `db:"updated_at"`
	LastLogin    *time.Time `db:"last_login"`
}

// UserView is the public representation of a User.
type UserView struct {
	ID          uint64     `json:"id"`
	Email       string     `json:"email"`
	FirstName   *string    `json:"first_name"`
	LastName    *string    `json:"last_name"`
	IsActive    bool       `json:"is_active"`
	IsSuperuser bool       `json:"is_superuser"`
	RoleID      *uint64    `json:"role_id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
	LastLogin   *time.Time `json:"last_login"`
}

// View strips credentials from u.
func (u User) View() UserView {
	return UserView{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		IsActive:    u.IsActive,
		IsSuperuser: u.IsSuperuser,
		RoleID:      u.RoleID,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
		LastLogin:   u.LastLogin,
	}
}

// Role represents a row in the `roles` table: a named bundle of permissions.
type Role struct {
	ID          uint64      `db:"id" json:"id"`
	Name        string      `db:"name" json:"name"`
	Description *string     `db:"description" json:"description"`
	Permissions Permissions `db:"permissions" json:"permissions"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
}

// Permissions is a flat list of permission strings stored as a JSON array.
type Permissions []string

// Has reports whether p grants perm.
func (p Permissions) Has(perm string) bool {
	for _, v := range p {
		if v == perm {
			return true
		}
	}
	return false
}

// Value implements driver.Valuer.
func (p Permissions) Value() (driver.Value, error) {
	if p == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(p))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (p *Permissions) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*p = Permissions{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("permissions: unsupported column type")
	}
	if len(raw) == 0 {
		*p = Permissions{}
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*p = out
	return nil
}

// RefreshToken models an entry in the `refresh_tokens` ledger. The plain
// token is not stored; only its SHA-256 hash. A record is usable only while
// Revoked is false and the current time is before ExpiresAt.
type RefreshToken struct {
	ID        uint64    `db:"id"`
	UserID    uint64    `db:"user_id"`
	TokenHash string    `db:"token_hash"`
	ExpiresAt time.Time `db:"expires_at"`
	Revoked   bool      `db:"revoked"`
	CreatedAt time.Time `db:"created_at"`
}

// Usable reports whether the record can still be rotated at now.
func (t RefreshToken) Usable(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}
