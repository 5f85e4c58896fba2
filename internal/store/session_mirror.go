/**
 * @description
 * A SessionMirror keeps a JSON snapshot of the signed-in user so that a profile
 * survives a reload without going back to the user store. One blob per user, no
 * schema version.
 *
 * @dependencies
 * - github.com/redis/go-redis/v9: backing store when REDIS_URL is configured.
 */

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/transfa/fund-service/internal/domain"
)

// ErrSessionNotFound is returned when no snapshot exists for the user.
var ErrSessionNotFound = errors.New("session snapshot not found")

// SessionMirror persists the signed-in user snapshot.
type SessionMirror interface {
	Save(ctx context.Context, user domain.User) error
	Load(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	Delete(ctx context.Context, userID uuid.UUID) error
}

// MemorySessionMirror is the process-local mirror.
type MemorySessionMirror struct {
	mu    sync.RWMutex
	blobs map[uuid.UUID][]byte
}

func NewMemorySessionMirror() *MemorySessionMirror {
	return &MemorySessionMirror{blobs: make(map[uuid.UUID][]byte)}
}

func (m *MemorySessionMirror) Save(ctx context.Context, user domain.User) error {
	blob, err := json.Marshal(user)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[user.ID] = blob
	return nil
}

func (m *MemorySessionMirror) Load(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	m.mu.RLock()
	blob, ok := m.blobs[userID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	var user domain.User
	if err := json.Unmarshal(blob, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (m *MemorySessionMirror) Delete(ctx context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, userID)
	return nil
}

// RedisSessionMirror stores the snapshot under <prefix>:session:user:<id>.
type RedisSessionMirror struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisSessionMirror(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisSessionMirror {
	trimmed := strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if trimmed == "" {
		trimmed = "fund"
	}
	return &RedisSessionMirror{client: client, prefix: trimmed, ttl: ttl}
}

func (m *RedisSessionMirror) key(userID uuid.UUID) string {
	return fmt.Sprintf("%s:session:user:%s", m.prefix, userID)
}

func (m *RedisSessionMirror) Save(ctx context.Context, user domain.User) error {
	blob, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return m.client.Set(ctx, m.key(user.ID), blob, m.ttl).Err()
}

func (m *RedisSessionMirror) Load(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	blob, err := m.client.Get(ctx, m.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	var user domain.User
	if err := json.Unmarshal(blob, &user); err != nil {
		return nil, fmt.Errorf("decode session snapshot: %w", err)
	}
	return &user, nil
}

func (m *RedisSessionMirror) Delete(ctx context.Context, userID uuid.UUID) error {
	return m.client.Del(ctx, m.key(userID)).Err()
}
