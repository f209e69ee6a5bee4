package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisStore persists sessions in Redis with a TTL, for deployments where
// webhook traffic for one call may land on different processes.
type redisStore struct {
	client    *redis.Client
	ttl       time.Duration
	keyPrefix string
}

func (s *redisStore) key(callID string) string {
	return s.keyPrefix + callID
}

func (s *redisStore) Create(ctx context.Context, sess *Session) error {
	if sess == nil {
		return ErrNilSession
	}
	if err := sess.Validate(); err != nil {
		return err
	}
	return s.write(ctx, sess)
}

func (s *redisStore) Get(ctx context.Context, callID string) (*Session, error) {
	if callID == "" {
		return nil, ErrInvalidCallID
	}

	val, err := s.client.Get(ctx, s.key(callID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal([]byte(val), &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	if err := sess.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session loaded from redis: %w", err)
	}

	// Refresh TTL on read so an active call never expires mid-conversation.
	_ = s.client.Expire(ctx, s.key(callID), s.ttl).Err()

	return &sess, nil
}

func (s *redisStore) Save(ctx context.Context, sess *Session) error {
	if sess == nil {
		return ErrNilSession
	}
	if err := sess.Validate(); err != nil {
		return err
	}
	return s.write(ctx, sess)
}

func (s *redisStore) Delete(ctx context.Context, callID string) error {
	if callID == "" {
		return ErrInvalidCallID
	}
	return s.client.Del(ctx, s.key(callID)).Err()
}

func (s *redisStore) Count(ctx context.Context) (int, error) {
	keys, err := s.client.Keys(ctx, s.keyPrefix+"*").Result()
	if err != nil {
		return 0, fmt.Errorf("redis count sessions: %w", err)
	}
	return len(keys), nil
}

func (s *redisStore) Close() error {
	return s.client.Close()
}

func (s *redisStore) write(ctx context.Context, sess *Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return s.client.Set(ctx, s.key(sess.CallID), payload, s.ttl).Err()
}
