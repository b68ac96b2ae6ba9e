package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tajious/medsync/internal/models"
)

const keyNamespace = "medsync:session"

type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) key(id, name string) string {
	return fmt.Sprintf("%s:%s:%s", keyNamespace, id, name)
}

func (s *RedisStore) keys(id string) []string {
	out := make([]string, len(allKeys))
	for i, name := range allKeys {
		out[i] = s.key(id, name)
	}
	return out
}

func (s *RedisStore) Get(ctx context.Context, id string) (*models.Session, error) {
	vals, err := s.client.MGet(ctx, s.keys(id)...).Result()
	if err != nil {
		return nil, err
	}

	values := make(map[string]string, len(allKeys))
	for i, v := range vals {
		if str, ok := v.(string); ok && str != "" {
			values[allKeys[i]] = str
		}
	}
	return decode(values)
}

// Set writes all keys in one MULTI/EXEC so readers never observe a partial
// session.
func (s *RedisStore) Set(ctx context.Context, id string, sess *models.Session) error {
	values, err := encode(sess)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.keys(id)...)
		for name, v := range values {
			pipe.Set(ctx, s.key(id, name), v, s.ttl)
		}
		return nil
	})
	return err
}

func (s *RedisStore) Clear(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.keys(id)...).Err()
}
