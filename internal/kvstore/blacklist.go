// Package kvstore keeps the short-lived auth state in Redis: the access token
// blacklist and the single-use password reset tickets. Both rely on Redis key
// expiry; nothing here ever sweeps stale entries.
package kvstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/auth-service/internal/token"
)

const blacklistPrefix = "blacklist:"

// Blacklist marks access tokens as revoked until their natural expiry.
type Blacklist struct {
	rdb redis.UniversalClient
}

func NewBlacklist(rdb redis.UniversalClient) *Blacklist { return &Blacklist{rdb: rdb} }

func blacklistKey(raw string) string { return blacklistPrefix + token.Fingerprint(raw) }

// Add blacklists raw for ttl. A non-positive ttl is a no-op: the token has
// already expired and the codec rejects it on its own.
func (b *Blacklist) Add(ctx context.Context, raw string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return b.rdb.Set(ctx, blacklistKey(raw), "1", ttl).Err()
}

// Contains reports whether raw is currently blacklisted.
func (b *Blacklist) Contains(ctx context.Context, raw string) (bool, error) {
	n, err := b.rdb.Exists(ctx, blacklistKey(raw)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
