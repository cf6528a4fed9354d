package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/auth-service/internal/model"
)

func seedTokenOwner(t *testing.T, ctx context.Context, users *UserRepo) uint64 {
	t.Helper()
	u := newUser("owner@example.com")
	require.NoError(t, users.Create(ctx, u))
	return u.ID
}

func TestTokenRepoFindActive(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewTokenRepo(db)
	uid := seedTokenOwner(t, ctx, NewUserRepo(db))

	rec := &model.RefreshToken{UserID: uid, TokenHash: "abc", ExpiresAt: testEpoch.Add(time.Hour), CreatedAt: testEpoch}
	require.NoError(t, repo.Insert(ctx, rec))
	assert.NotZero(t, rec.ID)

	got, err := repo.FindActive(ctx, "abc", testEpoch)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, uid, got.UserID)
	assert.False(t, got.Revoked)

	_, err = repo.FindActive(ctx, "abc", testEpoch.Add(time.Hour))
	assert.ErrorIs(t, err, ErrNotFound, "expires_at is exclusive")

	_, err = repo.FindActive(ctx, "nope", testEpoch)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTokenRepoDuplicateHashRejected(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewTokenRepo(db)
	uid := seedTokenOwner(t, ctx, NewUserRepo(db))

	require.NoError(t, repo.Insert(ctx, &model.RefreshToken{UserID: uid, TokenHash: "dup", ExpiresAt: testEpoch, CreatedAt: testEpoch}))
	err := repo.Insert(ctx, &model.RefreshToken{UserID: uid, TokenHash: "dup", ExpiresAt: testEpoch, CreatedAt: testEpoch})
	assert.True(t, isDuplicate(err))
}

func TestTokenRepoRotate(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewTokenRepo(db)
	uid := seedTokenOwner(t, ctx, NewUserRepo(db))

	old := &model.RefreshToken{UserID: uid, TokenHash: "old", ExpiresAt: testEpoch.Add(time.Hour), CreatedAt: testEpoch}
	require.NoError(t, repo.Insert(ctx, old))

	next := &model.RefreshToken{UserID: uid, TokenHash: "new", ExpiresAt: testEpoch.Add(2 * time.Hour), CreatedAt: testEpoch}
	require.NoError(t, repo.Rotate(ctx, old.ID, testEpoch, next))
	assert.NotZero(t, next.ID)

	_, err := repo.FindActive(ctx, "old", testEpoch)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.FindActive(ctx, "new", testEpoch)
	assert.NoError(t, err)

	again := &model.RefreshToken{UserID: uid, TokenHash: "again", ExpiresAt: testEpoch.Add(2 * time.Hour), CreatedAt: testEpoch}
	assert.ErrorIs(t, repo.Rotate(ctx, old.ID, testEpoch, again), ErrStaleToken)
	_, err = repo.FindActive(ctx, "again", testEpoch)
	assert.ErrorIs(t, err, ErrNotFound, "a stale rotation inserts nothing")
}

func TestTokenRepoRotateExpired(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewTokenRepo(db)
	uid := seedTokenOwner(t, ctx, NewUserRepo(db))

	old := &model.RefreshToken{UserID: uid, TokenHash: "old", ExpiresAt: testEpoch, CreatedAt: testEpoch}
	require.NoError(t, repo.Insert(ctx, old))

	next := &model.RefreshToken{UserID: uid, TokenHash: "new", ExpiresAt: testEpoch.Add(time.Hour), CreatedAt: testEpoch}
	assert.ErrorIs(t, repo.Rotate(ctx, old.ID, testEpoch, next), ErrStaleToken)
}

func TestTokenRepoConcurrentRotateSingleWinner(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewTokenRepo(db)
	uid := seedTokenOwner(t, ctx, NewUserRepo(db))

	old := &model.RefreshToken{UserID: uid, TokenHash: "old", ExpiresAt: testEpoch.Add(time.Hour), CreatedAt: testEpoch}
	require.NoError(t, repo.Insert(ctx, old))

	const workers = 8
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		wins  int
		stale int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			next := &model.RefreshToken{UserID: uid, TokenHash: fmt.Sprintf("next-%d", i), ExpiresAt: testEpoch.Add(time.Hour), CreatedAt: testEpoch}
			err := repo.Rotate(ctx, old.ID, testEpoch, next)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case assert.ErrorIs(t, err, ErrStaleToken):
				stale++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, workers-1, stale)
}

func TestTokenRepoRevokeAllForUser(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewTokenRepo(db)
	uid := seedTokenOwner(t, ctx, NewUserRepo(db))

	for _, h := range []string{"t1", "t2"} {
		require.NoError(t, repo.Insert(ctx, &model.RefreshToken{UserID: uid, TokenHash: h, ExpiresAt: testEpoch.Add(time.Hour), CreatedAt: testEpoch}))
	}

	n, err := repo.RevokeAllForUser(ctx, uid)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	_, err = repo.FindActive(ctx, "t1", testEpoch)
	assert.ErrorIs(t, err, ErrNotFound)
}
