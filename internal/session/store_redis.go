package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"stocktake/pkg/sentinel"
)

// Redis keys for the persisted session state.
const (
	activeKey       = "session.active"
	historyKey      = "session.history"
	lastOperatorKey = "config.lastOperator"
)

// RedisStore persists session state in Redis so the active session and
// history survive process restarts.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) SaveActive(ctx context.Context, sess Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return s.client.Set(ctx, activeKey, raw, 0).Err()
}

func (s *RedisStore) LoadActive(ctx context.Context) (Session, error) {
	raw, err := s.client.Get(ctx, activeKey).Result()
	if err == redis.Nil {
		return Session{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Session{}, err
	}
	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	return sess, nil
}

func (s *RedisStore) ClearActive(ctx context.Context) error {
	return s.client.Del(ctx, activeKey).Err()
}

func (s *RedisStore) AppendHistory(ctx context.Context, sess Session, limit int) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	pipe := s.client.Pipeline()
	pipe.LPush(ctx, historyKey, raw)
	if limit > 0 {
		pipe.LTrim(ctx, historyKey, 0, int64(limit-1))
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) History(ctx context.Context) ([]Session, error) {
	raws, err := s.client.LRange(ctx, historyKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	history := make([]Session, 0, len(raws))
	for _, raw := range raws {
		var sess Session
		if err := json.Unmarshal([]byte(raw), &sess); err != nil {
			return nil, fmt.Errorf("decode session: %w", err)
		}
		history = append(history, sess)
	}
	return history, nil
}

func (s *RedisStore) SaveLastOperator(ctx context.Context, op Operator) error {
	raw, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("encode operator: %w", err)
	}
	return s.client.Set(ctx, lastOperatorKey, raw, 0).Err()
}

func (s *RedisStore) LastOperator(ctx context.Context) (Operator, error) {
	raw, err := s.client.Get(ctx, lastOperatorKey).Result()
	if err == redis.Nil {
		return Operator{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Operator{}, err
	}
	var op Operator
	if err := json.Unmarshal([]byte(raw), &op); err != nil {
		return Operator{}, fmt.Errorf("decode operator: %w", err)
	}
	return op, nil
}
