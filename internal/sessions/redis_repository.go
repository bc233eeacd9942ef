package sessions

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gracefellowship/churchsite/backend/go-services/internal/digest"
)

// RedisRepository keeps refresh sessions as Redis hashes that expire with
// the session. Keys carry the SHA-256 of the refresh token, never the token.
type RedisRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisRepository(client *redis.Client, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = "session:"
	}
	return &RedisRepository{client: client, prefix: prefix}
}

func (r *RedisRepository) key(refresh string) string {
	return r.prefix + digest.SumBytes([]byte(refresh))
}

func (r *RedisRepository) Create(ctx context.Context, s *Session) error {
	if !s.ExpiresAt.After(time.Now()) {
		return fmt.Errorf("session for %s already expired", s.Sub)
	}
	key := r.key(s.RefreshToken)
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key,
			"sub", s.Sub,
			"name", s.Name,
			"email", s.Email,
			"anonymous", strconv.FormatBool(s.Anonymous),
			"createdAt", s.CreatedAt.UTC().Format(time.RFC3339Nano),
			"expiresAt", s.ExpiresAt.UTC().Format(time.RFC3339Nano),
		)
		p.ExpireAt(ctx, key, s.ExpiresAt)
		return nil
	})
	return err
}

// GetByRefresh returns nil for unknown or expired tokens.
func (r *RedisRepository) GetByRefresh(ctx context.Context, refresh string) (*Session, error) {
	h, err := r.client.HGetAll(ctx, r.key(refresh)).Result()
	if err != nil {
		return nil, err
	}
	if len(h) == 0 {
		return nil, nil
	}
	s := &Session{
		RefreshToken: refresh,
		Owner:        Owner{Sub: h["sub"], Name: h["name"], Email: h["email"], Anonymous: h["anonymous"] == "true"},
	}
	if s.CreatedAt, err = time.Parse(time.RFC3339Nano, h["createdAt"]); err != nil {
		return nil, fmt.Errorf("session createdAt: %w", err)
	}
	if s.ExpiresAt, err = time.Parse(time.RFC3339Nano, h["expiresAt"]); err != nil {
		return nil, fmt.Errorf("session expiresAt: %w", err)
	}
	return s, nil
}

func (r *RedisRepository) DeleteByRefresh(ctx context.Context, refresh string) error {
	return r.client.Del(ctx, r.key(refresh)).Err()
}
