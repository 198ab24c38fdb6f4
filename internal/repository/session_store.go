package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"merchant-panel-service/internal/models"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrVersionConflict = errors.New("version conflict - session was modified by another request")
	ErrAlreadyExists   = errors.New("session already exists")
)

const sessionKeyPrefix = "merchant-panel:inventory-session:"

// SessionStore holds inventory edit sessions between merchant requests.
// Update is a compare-and-swap on Version: it fails with ErrVersionConflict
// when the stored session moved on since s was read, and on success bumps
// s.Version.
type SessionStore interface {
	Create(ctx context.Context, s *models.InventorySession) error
	Get(ctx context.Context, id uuid.UUID) (*models.InventorySession, error)
	Update(ctx context.Context, s *models.InventorySession) error
	Delete(ctx context.Context, id uuid.UUID) error
	Ping(ctx context.Context) error
}

// ============================================================================
// In-memory store
// ============================================================================

// MemorySessionStore keeps sessions in process memory. Used when Redis is
// not configured.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*models.InventorySession
	now      func() time.Time
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[uuid.UUID]*models.InventorySession),
		now:      time.Now,
	}
}

func (m *MemorySessionStore) Create(ctx context.Context, s *models.InventorySession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[s.ID]; ok {
		return ErrAlreadyExists
	}
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *MemorySessionStore) Get(ctx context.Context, id uuid.UUID) (*models.InventorySession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok || m.expired(s) {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemorySessionStore) Update(ctx context.Context, s *models.InventorySession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.sessions[s.ID]
	if !ok || m.expired(current) {
		return ErrNotFound
	}
	if current.Version != s.Version {
		return ErrVersionConflict
	}

	s.Version++
	s.UpdatedAt = m.now()
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *MemorySessionStore) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *MemorySessionStore) Ping(ctx context.Context) error {
	return nil
}

// SweepExpired drops expired sessions and returns how many were removed
func (m *MemorySessionStore) SweepExpired(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, s := range m.sessions {
		if m.expired(s) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored sessions, expired or not
func (m *MemorySessionStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *MemorySessionStore) expired(s *models.InventorySession) bool {
	return !s.ExpiresAt.IsZero() && !m.now().Before(s.ExpiresAt)
}

// ============================================================================
// Redis store
// ============================================================================

// RedisSessionStore keeps sessions in Redis as JSON with a TTL matching the
// session expiry. Updates use WATCH/MULTI for the version check.
type RedisSessionStore struct {
	redis *redis.Client
}

func NewRedisSessionStore(redisClient *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{redis: redisClient}
}

func sessionKey(id uuid.UUID) string {
	return sessionKeyPrefix + id.String()
}

func ttlFor(s *models.InventorySession) time.Duration {
	if s.ExpiresAt.IsZero() {
		return 0
	}
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return time.Second
	}
	return ttl
}

func (r *RedisSessionStore) Create(ctx context.Context, s *models.InventorySession) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	ok, err := r.redis.SetNX(ctx, sessionKey(s.ID), data, ttlFor(s)).Result()
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	if !ok {
		return ErrAlreadyExists
	}
	return nil
}

func (r *RedisSessionStore) Get(ctx context.Context, id uuid.UUID) (*models.InventorySession, error) {
	return getSession(ctx, r.redis, id)
}

type redisGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func getSession(ctx context.Context, c redisGetter, id uuid.UUID) (*models.InventorySession, error) {
	val, err := c.Get(ctx, sessionKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var s models.InventorySession
	if err := json.Unmarshal([]byte(val), &s); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &s, nil
}

func (r *RedisSessionStore) Update(ctx context.Context, s *models.InventorySession) error {
	key := sessionKey(s.ID)

	err := r.redis.Watch(ctx, func(tx *redis.Tx) error {
		current, err := getSession(ctx, tx, s.ID)
		if err != nil {
			return err
		}
		if current.Version != s.Version {
			return ErrVersionConflict
		}

		next := s.Clone()
		next.Version++
		next.UpdatedAt = time.Now()
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to encode session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, ttlFor(next))
			return nil
		})
		if err != nil {
			return err
		}

		s.Version = next.Version
		s.UpdatedAt = next.UpdatedAt
		return nil
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return ErrVersionConflict
	}
	return err
}

func (r *RedisSessionStore) Delete(ctx context.Context, id uuid.UUID) error {
	n, err := r.redis.Del(ctx, sessionKey(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *RedisSessionStore) Ping(ctx context.Context) error {
	if r.redis == nil {
		return fmt.Errorf("redis not configured")
	}
	return r.redis.Ping(ctx).Err()
}
