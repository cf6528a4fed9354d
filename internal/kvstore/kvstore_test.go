package kvstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestBlacklistAddContains(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)
	bl := NewBlacklist(rdb)

	ok, err := bl.Contains(ctx, "tok")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, bl.Add(ctx, "tok", time.Minute))
	ok, err = bl.Contains(ctx, "tok")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = bl.Contains(ctx, "other")
	require.NoError(t, err)
	assert.False(t, ok)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.NotContains(t, keys[0], "tok", "raw token never used as key")
	assert.Equal(t, time.Minute, mr.TTL(keys[0]))

	mr.FastForward(time.Minute)
	ok, err = bl.Contains(ctx, "tok")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBlacklistIgnoresNonPositiveTTL(t *testing.T) {
	mr, rdb := newRedis(t)
	bl := NewBlacklist(rdb)

	require.NoError(t, bl.Add(context.Background(), "tok", 0))
	require.NoError(t, bl.Add(context.Background(), "tok", -time.Second))
	assert.Empty(t, mr.Keys())
}

func TestResetTicketsConsumeOnce(t *testing.T) {
	ctx := context.Background()
	_, rdb := newRedis(t)
	rt := NewResetTickets(rdb)

	require.NoError(t, rt.Put(ctx, 7, "reset-token", time.Hour))

	ok, err := rt.Consume(ctx, 7, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = rt.Consume(ctx, 8, "reset-token")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = rt.Consume(ctx, 7, "reset-token")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = rt.Consume(ctx, 7, "reset-token")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResetTicketsReplacedAndExpire(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)
	rt := NewResetTickets(rdb)

	require.NoError(t, rt.Put(ctx, 1, "first", time.Hour))
	require.NoError(t, rt.Put(ctx, 1, "second", time.Hour))

	ok, err := rt.Consume(ctx, 1, "first")
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(time.Hour)
	ok, err = rt.Consume(ctx, 1, "second")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResetTicketsConcurrentConsume(t *testing.T) {
	ctx := context.Background()
	_, rdb := newRedis(t)
	rt := NewResetTickets(rdb)
	require.NoError(t, rt.Put(ctx, 3, "tok", time.Hour))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := rt.Consume(ctx, 3, "tok")
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}
