package sessions

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gracefellowship/churchsite/backend/go-services/internal/digest"
)

// BlacklistPrefix namespaces revoked access tokens in Redis. Entries are
// keyed by the token's SHA-256.
const BlacklistPrefix = "blacklist:access:"

// Without Redis, logout only ends the refresh session and access tokens
// stay valid until they expire.
var blacklistClient *redis.Client

// SetBlacklistClient configures the Redis client used for revocation; nil
// disables it.
func SetBlacklistClient(c *redis.Client) {
	blacklistClient = c
}

func blacklistKey(token string) string {
	return BlacklistPrefix + digest.SumBytes([]byte(token))
}

// BlacklistAccessToken revokes token for ttl, normally the rest of its
// lifetime. Non-positive ttls are a no-op.
func BlacklistAccessToken(ctx context.Context, token string, ttl time.Duration) error {
	if blacklistClient == nil || ttl <= 0 {
		return nil
	}
	if ttl < time.Second {
		ttl = time.Second
	}
	return blacklistClient.Set(ctx, blacklistKey(token), time.Now().UTC().Format(time.RFC3339), ttl).Err()
}

// IsAccessTokenBlacklisted reports whether token was revoked at logout.
func IsAccessTokenBlacklisted(ctx context.Context, token string) (bool, error) {
	if blacklistClient == nil {
		return false, nil
	}
	n, err := blacklistClient.Exists(ctx, blacklistKey(token)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
