package kvstore

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/auth-service/internal/token"
)

const resetPrefix = "password_reset:"

// consumeScript deletes the ticket only when it holds the expected value,
// so two concurrent resets with the same token cannot both succeed.
var consumeScript = redis.NewScript(`
	local current = redis.call('GET', KEYS[1])
	if current == ARGV[1] then
		redis.call('DEL', KEYS[1])
		return 1
	end
	return 0
`)

// ResetTickets stores one outstanding password reset ticket per account.
// A newer ticket replaces the previous one.
type ResetTickets struct {
	rdb redis.UniversalClient
}

func NewResetTickets(rdb redis.UniversalClient) *ResetTickets { return &ResetTickets{rdb: rdb} }

func resetKey(userID uint64) string { return resetPrefix + strconv.FormatUint(userID, 10) }

// Put records raw as the account's current reset token for ttl.
func (s *ResetTickets) Put(ctx context.Context, userID uint64, raw string, ttl time.Duration) error {
	return s.rdb.Set(ctx, resetKey(userID), token.Fingerprint(raw), ttl).Err()
}

// Consume atomically checks that raw is the account's current ticket and
// deletes it. It reports false when there is no ticket or it does not match.
func (s *ResetTickets) Consume(ctx context.Context, userID uint64, raw string) (bool, error) {
	n, err := consumeScript.Run(ctx, s.rdb, []string{resetKey(userID)}, token.Fingerprint(raw)).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
