package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultRedisPrefix namespaces every key written by RedisStore.
const DefaultRedisPrefix = "edt:"

// RedisStore keeps blobs as plain redis strings without expiry.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisStore constructs a store; an empty prefix falls back to DefaultRedisPrefix.
func NewRedisStore(client *redis.Client, prefix string, logger *zap.Logger) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{client: client, prefix: prefix, logger: logger}
}

// Key returns the namespaced redis key.
func (s *RedisStore) Key(key string) string {
	return s.prefix + key
}

// Load reads the value; a missing key or client yields nil.
func (s *RedisStore) Load(ctx context.Context, key string) ([]byte, error) {
	if s.client == nil {
		return nil, nil
	}
	raw, err := s.client.Get(ctx, s.Key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get %s: %w", s.Key(key), err)
	}
	return raw, nil
}

// Save writes the value.
func (s *RedisStore) Save(ctx context.Context, key string, value []byte) error {
	if s.client == nil {
		return errors.New("redis store: no client")
	}
	if err := s.client.Set(ctx, s.Key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.Key(key), err)
	}
	return nil
}

// Clear deletes the key.
func (s *RedisStore) Clear(ctx context.Context, key string) error {
	if s.client == nil {
		return nil
	}
	if err := s.client.Del(ctx, s.Key(key)).Err(); err != nil {
		return fmt.Errorf("redis delete %s: %w", s.Key(key), err)
	}
	return nil
}

// ClearAll deletes every key under the store prefix.
func (s *RedisStore) ClearAll(ctx context.Context) error {
	keys, err := s.Keys(ctx, "")
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	namespaced := make([]string, len(keys))
	for i, key := range keys {
		namespaced[i] = s.Key(key)
	}
	if err := s.client.Del(ctx, namespaced...).Err(); err != nil {
		return fmt.Errorf("redis clear %s*: %w", s.prefix, err)
	}
	return nil
}

// IsAuthenticated reports whether a client is attached.
func (s *RedisStore) IsAuthenticated() bool {
	return s != nil && s.client != nil
}

// Keys scans for stored keys sharing prefix and returns them without the namespace.
func (s *RedisStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	if s.client == nil {
		return nil, nil
	}
	var keys []string
	iter := s.client.Scan(ctx, 0, s.Key(prefix)+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val()[len(s.prefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan %s: %w", s.Key(prefix), err)
	}
	s.logger.Debug("redis keys scanned", zap.String("prefix", prefix), zap.Int("count", len(keys)))
	return keys, nil
}

// Close releases the client.
func (s *RedisStore) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
