package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis key holding the pending queue, oldest entry at the head.
const pendingKey = "queue.pending"

// RedisStore persists queue entries in a Redis list so they survive process
// restarts. This is the production-recommended store.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore constructs a Redis-backed queue store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Append(ctx context.Context, e Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode queue entry: %w", err)
	}
	return s.client.RPush(ctx, pendingKey, raw).Err()
}

func (s *RedisStore) Front(ctx context.Context) (Entry, bool, error) {
	raw, err := s.client.LIndex(ctx, pendingKey, 0).Result()
	if err == redis.Nil {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	var e Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return Entry{}, false, fmt.Errorf("decode queue entry: %w", err)
	}
	return e, true, nil
}

func (s *RedisStore) PopFront(ctx context.Context) error {
	err := s.client.LPop(ctx, pendingKey).Err()
	if err == redis.Nil {
		return nil
	}
	return err
}

func (s *RedisStore) Len(ctx context.Context) (int, error) {
	n, err := s.client.LLen(ctx, pendingKey).Result()
	return int(n), err
}

func (s *RedisStore) Entries(ctx context.Context) ([]Entry, error) {
	raws, err := s.client.LRange(ctx, pendingKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(raws))
	for _, raw := range raws {
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("decode queue entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
