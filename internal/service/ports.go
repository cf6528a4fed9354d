// Package service implements the authentication core and the admin
// operations on accounts and roles. Dependencies are injected as the narrow
// interfaces below; the repository, kvstore and queue packages provide the
// production implementations.
package service

import (
	"context"
	"time"

	"github.com/iliyamo/auth-service/internal/model"
	"github.com/iliyamo/auth-service/internal/queue"
)

// UserStore is the account persistence the auth core needs.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	TouchLogin(ctx context.Context, id uint64, at time.Time) error
	UpdatePassword(ctx context.Context, id uint64, hash string, at time.Time) error
}

// UserAdminStore adds the plain CRUD used by the admin API.
type UserAdminStore interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
	List(ctx context.Context, limit, offset int) ([]model.User, error)
	Count(ctx context.Context) (int, error)
	Update(ctx context.Context, u model.User, at time.Time) error
	SetRole(ctx context.Context, id uint64, roleID *uint64, at time.Time) error
	Delete(ctx context.Context, id uint64) error
}

// RoleReader resolves roles for token claims and permission checks.
type RoleReader interface {
	GetByID(ctx context.Context, id uint64) (model.Role, error)
	GetByName(ctx context.Context, name string) (model.Role, error)
}

// RoleStore is the full role persistence used by the admin API.
type RoleStore interface {
	RoleReader
	Create(ctx context.Context, role *model.Role) error
	List(ctx context.Context) ([]model.Role, error)
	Update(ctx context.Context, role model.Role) error
	Delete(ctx context.Context, id uint64) error
}

// Ledger records issued refresh tokens by hash.
type Ledger interface {
	Insert(ctx context.Context, t *model.RefreshToken) error
	FindActive(ctx context.Context, hash string, now time.Time) (model.RefreshToken, error)
	Rotate(ctx context.Context, oldID uint64, now time.Time, next *model.RefreshToken) error
	RevokeAllForUser(ctx context.Context, userID uint64) (int64, error)
}

// Blacklist holds logged-out access tokens until they expire.
type Blacklist interface {
	Add(ctx context.Context, raw string, ttl time.Duration) error
	Contains(ctx context.Context, raw string) (bool, error)
}

// ResetTickets holds the single outstanding reset token per account.
type ResetTickets interface {
	Put(ctx context.Context, userID uint64, raw string, ttl time.Duration) error
	Consume(ctx context.Context, userID uint64, raw string) (bool, error)
}

// EventPublisher delivers auth events. Failures never fail the caller.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.Event) error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, queue.Event) error { return nil }
