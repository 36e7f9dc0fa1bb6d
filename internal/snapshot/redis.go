package snapshot

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sbenjam1n/autopilot/internal/automation"
)

// DefaultRedisKey holds the engine snapshot.
const DefaultRedisKey = "autopilot:snapshot"

// RedisStore keeps the snapshot as JSON under one Redis key.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore creates a store on client. An empty key selects
// DefaultRedisKey.
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key}
}

// Load fetches and decodes the snapshot.
func (s *RedisStore) Load(ctx context.Context) (*automation.Snapshot, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot %s: %w", s.key, err)
	}
	return decode(data)
}

// Save overwrites the snapshot.
func (s *RedisStore) Save(ctx context.Context, snap *automation.Snapshot) error {
	data, err := encode(snap)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("set snapshot %s: %w", s.key, err)
	}
	return nil
}
