package sessions

import (
	"context"
	"strings"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRedisRepo(t *testing.T) (*RedisRepository, *mr.Miniredis) {
	t.Helper()
	m := mr.RunT(t)
	return NewRedisRepository(redis.NewClient(&redis.Options{Addr: m.Addr()}), "churchsite:session:"), m
}

func TestRedisRepositoryKeepsOwner(t *testing.T) {
	repo, m := newRedisRepo(t)
	ctx := context.Background()
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	s := &Session{
		RefreshToken: "refresh-admin",
		Owner:        Owner{Sub: "kc-pastor", Name: "Pastor Jo", Email: "jo@example.org"},
		CreatedAt:    created,
		ExpiresAt:    time.Now().Add(time.Hour).UTC(),
	}
	require.NoError(t, repo.Create(ctx, s))

	got, err := repo.GetByRefresh(ctx, "refresh-admin")
	require.NoError(t, err)
	require.Equal(t, s.Owner, got.Owner)
	require.Equal(t, "refresh-admin", got.RefreshToken)
	require.True(t, created.Equal(got.CreatedAt))
	require.True(t, s.ExpiresAt.Equal(got.ExpiresAt))

	for _, k := range m.Keys() {
		require.False(t, strings.Contains(k, "refresh-admin"), "raw token stored in key %s", k)
	}

	require.NoError(t, repo.DeleteByRefresh(ctx, "refresh-admin"))
	got, err = repo.GetByRefresh(ctx, "refresh-admin")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestRedisRepositoryAnonymousVisitorExpires(t *testing.T) {
	repo, m := newRedisRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &Session{
		RefreshToken: "refresh-anon",
		Owner:        Owner{Sub: "anon-1", Anonymous: true},
		ExpiresAt:    time.Now().Add(2 * time.Second),
	}))

	got, err := repo.GetByRefresh(ctx, "refresh-anon")
	require.NoError(t, err)
	require.True(t, got.Anonymous)

	m.FastForward(3 * time.Second)
	got, err = repo.GetByRefresh(ctx, "refresh-anon")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestRedisRepositoryRejectsExpiredSession(t *testing.T) {
	repo, m := newRedisRepo(t)
	err := repo.Create(context.Background(), &Session{
		RefreshToken: "late",
		Owner:        Owner{Sub: "kc-1"},
		ExpiresAt:    time.Now().Add(-time.Minute),
	})
	require.Error(t, err)
	require.Empty(t, m.Keys())
}
