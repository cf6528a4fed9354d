//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/iliyamo/auth-service/internal/database"
	"github.com/iliyamo/auth-service/internal/model"
)

func newMySQL(t *testing.T) *sqlx.DB {
	t.Helper()
	ctx := context.Background()

	ctr, err := tcmysql.Run(ctx, "mysql:8.0.36",
		tcmysql.WithDatabase("auth_service"),
		tcmysql.WithUsername("auth"),
		tcmysql.WithPassword("auth"),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "parseTime=true", "loc=UTC", "multiStatements=true")
	require.NoError(t, err)

	db, err := sqlx.Open("mysql", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.MigrateUp(db.DB))
	return db
}

func TestMySQLLedgerRotation(t *testing.T) {
	ctx := context.Background()
	db := newMySQL(t)
	users, tokens, roles := NewUserRepo(db), NewTokenRepo(db), NewRoleRepo(db)

	role, err := roles.GetByName(ctx, "user")
	require.NoError(t, err, "default roles are seeded by the migrations")

	u := newUser("alice@example.com")
	u.RoleID = &role.ID
	require.NoError(t, users.Create(ctx, u))
	assert.ErrorIs(t, users.Create(ctx, newUser("alice@example.com")), ErrEmailExists)

	old := &model.RefreshToken{UserID: u.ID, TokenHash: "old", ExpiresAt: testEpoch.Add(time.Hour), CreatedAt: testEpoch}
	require.NoError(t, tokens.Insert(ctx, old))

	next := &model.RefreshToken{UserID: u.ID, TokenHash: "new", ExpiresAt: testEpoch.Add(time.Hour), CreatedAt: testEpoch}
	require.NoError(t, tokens.Rotate(ctx, old.ID, testEpoch, next))
	assert.ErrorIs(t, tokens.Rotate(ctx, old.ID, testEpoch, &model.RefreshToken{UserID: u.ID, TokenHash: "x", ExpiresAt: testEpoch, CreatedAt: testEpoch}), ErrStaleToken)

	assert.ErrorIs(t, roles.Delete(ctx, role.ID), ErrRoleInUse)

	require.NoError(t, users.Delete(ctx, u.ID))
	_, err = tokens.FindActive(ctx, "new", testEpoch)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMySQLMigrationsRoundTrip(t *testing.T) {
	db := newMySQL(t)

	version, dirty, err := database.MigrateVersion(db.DB)
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.EqualValues(t, 4, version)

	require.NoError(t, database.MigrateDown(db.DB, 0))
	version, _, err = database.MigrateVersion(db.DB)
	require.NoError(t, err)
	assert.Zero(t, version)

	require.NoError(t, database.MigrateUp(db.DB))
	n, err := NewRoleRepo(db).List(context.Background())
	require.NoError(t, err)
	assert.Len(t, n, 2)
}
