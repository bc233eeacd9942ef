package assets

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gracefellowship/churchsite/backend/go-services/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// RedisCache is a read-through cache in front of a Repository. Only the
// earliest record per hash is cached; records never change once written so
// entries are safe to keep until the TTL lapses.
type RedisCache struct {
	inner  Repository
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisCache(inner Repository, client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = "filehash:"
	}
	return &RedisCache{inner: inner, client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) key(hash string) string { return c.prefix + hash }

func (c *RedisCache) FindByHash(ctx context.Context, hash string) ([]HashRecord, error) {
	b, err := c.client.Get(ctx, c.key(hash)).Bytes()
	if err == nil {
		var rec HashRecord
		if jerr := json.Unmarshal(b, &rec); jerr == nil {
			return []HashRecord{rec}, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		logger.Warnf("hash cache get %s: %v", hash, err)
	}

	recs, err := c.inner.FindByHash(ctx, hash)
	if err != nil || len(recs) == 0 {
		return recs, err
	}
	c.store(ctx, recs[0])
	return recs, nil
}

func (c *RedisCache) Insert(ctx context.Context, rec HashRecord) error {
	if err := c.inner.Insert(ctx, rec); err != nil {
		return err
	}
	// SETNX keeps the first record cached when two uploads race
	if b, err := json.Marshal(rec); err == nil {
		if err := c.client.SetNX(ctx, c.key(rec.Hash), b, c.ttl).Err(); err != nil {
			logger.Warnf("hash cache set %s: %v", rec.Hash, err)
		}
	}
	return nil
}

func (c *RedisCache) store(ctx context.Context, rec HashRecord) {
	b, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.key(rec.Hash), b, c.ttl).Err(); err != nil {
		logger.Warnf("hash cache set %s: %v", rec.Hash, err)
	}
}
