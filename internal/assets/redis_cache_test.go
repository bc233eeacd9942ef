package assets

import (
	"context"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type countingRepo struct {
	*MemoryRepo
	finds int
}

func (c *countingRepo) FindByHash(ctx context.Context, hash string) ([]HashRecord, error) {
	c.finds++
	return c.MemoryRepo.FindByHash(ctx, hash)
}

func TestRedisCache_ReadThrough(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})

	inner := &countingRepo{MemoryRepo: NewMemoryRepo()}
	ctx := context.Background()
	require.NoError(t, inner.MemoryRepo.Insert(ctx, HashRecord{Hash: "h", URL: "u1", UploadedAt: time.Now()}))

	cache := NewRedisCache(inner, client, "test:hash:", time.Hour)
	recs, err := cache.FindByHash(ctx, "h")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, 1, inner.finds)
	require.True(t, m.Exists("test:hash:h"))

	recs, err = cache.FindByHash(ctx, "h")
	require.NoError(t, err)
	require.Equal(t, "u1", recs[0].URL)
	require.Equal(t, 1, inner.finds, "second lookup should be served from redis")

	// misses are not cached
	recs, err = cache.FindByHash(ctx, "other")
	require.NoError(t, err)
	require.Empty(t, recs)
	require.False(t, m.Exists("test:hash:other"))
}

func TestRedisCache_InsertKeepsFirstRecord(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})

	inner := NewMemoryRepo()
	cache := NewRedisCache(inner, client, "", time.Hour)
	ctx := context.Background()
	require.NoError(t, cache.Insert(ctx, HashRecord{Hash: "h", URL: "first"}))
	require.NoError(t, cache.Insert(ctx, HashRecord{Hash: "h", URL: "second"}))

	url, ok := NewRegistry(cache).FindByHash(ctx, "h")
	require.True(t, ok)
	require.Equal(t, "first", url)
	require.Equal(t, 2, inner.Count("h"))

	m.FastForward(2 * time.Hour)
	require.False(t, m.Exists("filehash:h"))
}

func TestRedisCache_RedisDownFallsBack(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	m.Close()

	inner := NewMemoryRepo()
	ctx := context.Background()
	require.NoError(t, inner.Insert(ctx, HashRecord{Hash: "h", URL: "u"}))
	recs, err := NewRedisCache(inner, client, "", time.Minute).FindByHash(ctx, "h")
	require.NoError(t, err)
	require.Len(t, recs, 1)
}
