package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	gsessions "github.com/gorilla/sessions"
	"github.com/redis/go-redis/v9"
)

// RedisStore is a gorilla session store that keeps session values in Redis. The values expire in
// Redis after the configured lifetime.
type RedisStore struct {
	*idStore

	client redis.UniversalClient
	prefix string
}

var _ gsessions.Store = (*RedisStore)(nil)

func NewRedisStore(client redis.UniversalClient, prefix string, options *gsessions.Options, lifetime time.Duration, keyPairs ...[]byte) *RedisStore {
	s := &RedisStore{client: client, prefix: prefix}
	s.idStore = newIDStore("RedisStore", s, options, lifetime, keyPairs...)
	return s
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

func (s *RedisStore) load(ctx context.Context, id string) (string, bool, error) {
	data, err := s.client.Get(ctx, s.key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("[RedisStore load] get: %w", err)
	}
	return data, true, nil
}

func (s *RedisStore) save(ctx context.Context, id, data string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(id), data, ttl).Err(); err != nil {
		return fmt.Errorf("set: %w", err)
	}
	return nil
}

func (s *RedisStore) erase(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.key(id)).Err()
}
