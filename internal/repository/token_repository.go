package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/auth-service/internal/model"
)

const tokenColumns = "id, user_id, token_hash, expires_at, revoked, created_at"

// TokenRepo is the refresh token ledger. Only SHA-256 hashes of tokens are
// stored, never the tokens themselves.
type TokenRepo struct{ db *sqlx.DB }

func NewTokenRepo(db *sqlx.DB) *TokenRepo { return &TokenRepo{db: db} }

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertToken(ctx context.Context, db execer, t *model.RefreshToken) error {
	t.ExpiresAt = dbTime(t.ExpiresAt)
	t.CreatedAt = dbTime(t.CreatedAt)
	res, err := db.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token_hash, expires_at, revoked, created_at) VALUES (?,?,?,?,?)",
		t.UserID, t.TokenHash, t.ExpiresAt, t.Revoked, t.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return nil
}

// Insert records a freshly issued refresh token.
func (r *TokenRepo) Insert(ctx context.Context, t *model.RefreshToken) error {
	return insertToken(ctx, r.db, t)
}

// FindActive returns the record for hash if it is unrevoked and unexpired at now.
func (r *TokenRepo) FindActive(ctx context.Context, hash string, now time.Time) (model.RefreshToken, error) {
	var t model.RefreshToken
	err := r.db.GetContext(ctx, &t,
		"SELECT "+tokenColumns+" FROM refresh_tokens WHERE token_hash=? AND revoked=0 AND expires_at>? LIMIT 1",
		hash, dbTime(now))
	if errors.Is(err, sql.ErrNoRows) {
		return model.RefreshToken{}, ErrNotFound
	}
	return t, err
}

// Rotate revokes record oldID and inserts next in one transaction. The
// revoke is conditional on the record still being usable, so of several
// concurrent rotations of the same record exactly one commits; the others
// get ErrStaleToken and insert nothing.
func (r *TokenRepo) Rotate(ctx context.Context, oldID uint64, now time.Time, next *model.RefreshToken) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked=1 WHERE id=? AND revoked=0 AND expires_at>?",
		oldID, dbTime(now))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStaleToken
	}
	if err := insertToken(ctx, tx, next); err != nil {
		return err
	}
	return tx.Commit()
}

// RevokeAllForUser revokes every live token of the account and reports how many.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked=1 WHERE user_id=? AND revoked=0", userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
