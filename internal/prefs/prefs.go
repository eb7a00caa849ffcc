// Package prefs persists per-rep UI preferences. Only the selected table is
// kept; cart contents always come from the order store.
package prefs

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Store reads and writes a rep's selected table. An empty table means none.
type Store interface {
	SelectedTable(ctx context.Context, repID uuid.UUID) (string, error)
	SetSelectedTable(ctx context.Context, repID uuid.UUID, table string) error
}

const keyPrefix = "pos:selected_table:"

func selectedTableKey(repID uuid.UUID) string {
	return keyPrefix + repID.String()
}

// RedisStore keeps selections in Redis, so they survive restarts and are
// shared between API instances.
type RedisStore struct {
	client redis.Cmdable
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

// Dial connects to the Redis server at url and pings it.
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (s *RedisStore) SelectedTable(ctx context.Context, repID uuid.UUID) (string, error) {
	table, err := s.client.Get(ctx, selectedTableKey(repID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get selected table: %w", err)
	}
	return table, nil
}

func (s *RedisStore) SetSelectedTable(ctx context.Context, repID uuid.UUID, table string) error {
	var err error
	if table == "" {
		err = s.client.Del(ctx, selectedTableKey(repID)).Err()
	} else {
		err = s.client.Set(ctx, selectedTableKey(repID), table, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("set selected table: %w", err)
	}
	return nil
}

// MemoryStore keeps selections in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	selected map[uuid.UUID]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{selected: make(map[uuid.UUID]string)}
}

func (s *MemoryStore) SelectedTable(ctx context.Context, repID uuid.UUID) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected[repID], nil
}

func (s *MemoryStore) SetSelectedTable(ctx context.Context, repID uuid.UUID, table string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if table == "" {
		delete(s.selected, repID)
		return nil
	}
	s.selected[repID] = table
	return nil
}
