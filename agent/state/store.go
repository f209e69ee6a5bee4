// Package state holds per-call session records and the stores that keep them
// alive for the duration of a phone call.
//
// Webhook deliveries for a single call are serialized by the telephony
// provider, so stores assume a single writer per call id. Two concurrent
// calls never touch the same session.
package state

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrSessionNotFound  = errors.New("call session not found")
	ErrNilSession       = errors.New("call session is nil")
	ErrInvalidCallID    = errors.New("call id is empty")
	ErrInvalidStoreType = errors.New("unknown session store type")
	ErrInvalidConfig    = errors.New("invalid session store config")
)

// Store is the persistence contract used by the turn orchestrator.
//
// Get on an unknown or expired call id returns ErrSessionNotFound, never a
// zero-value session. Create is last-write-wins by design: callers must only
// create on the call's opening webhook.
type Store interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, callID string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, callID string) error
	Count(ctx context.Context) (int, error)
	Close() error
}

// StoreType selects a session store driver.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeRedis  StoreType = "redis"
)

const (
	defaultTTL           = time.Hour
	defaultKeyPrefix     = "call:"
	defaultSweepInterval = time.Minute
)

// StoreOption customizes a store built by NewStore.
type StoreOption func(*storeConfig)

type storeConfig struct {
	redisClient   *redis.Client
	ttl           time.Duration
	keyPrefix     string
	sweepInterval time.Duration
}

// WithRedisClient sets the client for the redis driver. Required for
// StoreTypeRedis.
func WithRedisClient(client *redis.Client) StoreOption {
	return func(c *storeConfig) {
		c.redisClient = client
	}
}

// WithTTL bounds how long an idle session survives. Defaults to one hour.
func WithTTL(ttl time.Duration) StoreOption {
	return func(c *storeConfig) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithKeyPrefix sets the redis key prefix. Defaults to "call:".
func WithKeyPrefix(prefix string) StoreOption {
	return func(c *storeConfig) {
		if prefix != "" {
			c.keyPrefix = prefix
		}
	}
}

// WithSweepInterval sets how often the memory driver evicts expired
// sessions. Defaults to one minute. Expired entries are also rejected lazily
// on Get, so the sweep only bounds memory.
func WithSweepInterval(d time.Duration) StoreOption {
	return func(c *storeConfig) {
		if d > 0 {
			c.sweepInterval = d
		}
	}
}

// NewStore builds a session store. The memory driver is the degraded-mode
// default when no external store is configured; it is process-local with no
// cross-process visibility.
func NewStore(storeType StoreType, opts ...StoreOption) (Store, error) {
	cfg := &storeConfig{
		ttl:           defaultTTL,
		keyPrefix:     defaultKeyPrefix,
		sweepInterval: defaultSweepInterval,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	switch storeType {
	case StoreTypeMemory:
		return newMemoryStore(cfg.ttl, cfg.sweepInterval), nil
	case StoreTypeRedis:
		if cfg.redisClient == nil {
			return nil, ErrInvalidConfig
		}
		return &redisStore{
			client:    cfg.redisClient,
			ttl:       cfg.ttl,
			keyPrefix: cfg.keyPrefix,
		}, nil
	default:
		return nil, ErrInvalidStoreType
	}
}

type memoryEntry struct {
	session  *Session
	deadline time.Time
}

type memoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	stop    chan struct{}
	once    sync.Once
}

func newMemoryStore(ttl, sweepInterval time.Duration) *memoryStore {
	s := &memoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		stop:    make(chan struct{}),
	}
	go s.sweep(sweepInterval)
	return s
}

func (s *memoryStore) Create(ctx context.Context, sess *Session) error {
	if sess == nil {
		return ErrNilSession
	}
	if err := sess.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[sess.CallID] = memoryEntry{
		session:  sess,
		deadline: time.Now().Add(s.ttl),
	}
	return nil
}

func (s *memoryStore) Get(ctx context.Context, callID string) (*Session, error) {
	if callID == "" {
		return nil, ErrInvalidCallID
	}

	s.mu.RLock()
	entry, ok := s.entries[callID]
	s.mu.RUnlock()

	if !ok || time.Now().After(entry.deadline) {
		return nil, ErrSessionNotFound
	}
	return entry.session, nil
}

func (s *memoryStore) Save(ctx context.Context, sess *Session) error {
	if sess == nil {
		return ErrNilSession
	}
	if err := sess.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[sess.CallID]; !ok {
		return ErrSessionNotFound
	}
	s.entries[sess.CallID] = memoryEntry{
		session:  sess,
		deadline: time.Now().Add(s.ttl),
	}
	return nil
}

func (s *memoryStore) Delete(ctx context.Context, callID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, callID)
	return nil
}

func (s *memoryStore) Count(ctx context.Context) (int, error) {
	now := time.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, entry := range s.entries {
		if now.Before(entry.deadline) {
			n++
		}
	}
	return n, nil
}

func (s *memoryStore) Close() error {
	s.once.Do(func() {
		close(s.stop)
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]memoryEntry)
	return nil
}

func (s *memoryStore) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for id, entry := range s.entries {
				if now.After(entry.deadline) {
					delete(s.entries, id)
				}
			}
			s.mu.Unlock()
		}
	}
}
