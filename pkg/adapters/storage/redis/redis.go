package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aescanero/chatrelay/pkg/domain"
	"github.com/aescanero/chatrelay/pkg/ports"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "chatrelay:thread:"

// ThreadStorage implements ports.ThreadStore using Redis
type ThreadStorage struct {
	client redis.UniversalClient
	logger *zap.Logger
	ttl    time.Duration
}

// NewThreadStorage creates a new Redis thread storage. A zero ttl keeps
// threads forever.
func NewThreadStorage(client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *ThreadStorage {
	return &ThreadStorage{
		client: client,
		logger: logger,
		ttl:    ttl,
	}
}

// Save persists a thread, refreshing its TTL
func (s *ThreadStorage) Save(ctx context.Context, thread *domain.Thread) error {
	data, err := json.Marshal(thread)
	if err != nil {
		return fmt.Errorf("failed to marshal thread: %w", err)
	}

	if err := s.client.Set(ctx, threadKey(thread.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save thread: %w", err)
	}

	s.logger.Debug("thread saved",
		zap.String("thread_id", thread.ID),
		zap.Int("items", len(thread.Items)))

	return nil
}

// Load retrieves a thread
func (s *ThreadStorage) Load(ctx context.Context, threadID string) (*domain.Thread, error) {
	data, err := s.client.Get(ctx, threadKey(threadID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("thread %s: %w", threadID, ports.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get thread: %w", err)
	}

	var thread domain.Thread
	if err := json.Unmarshal(data, &thread); err != nil {
		return nil, fmt.Errorf("failed to unmarshal thread: %w", err)
	}

	return &thread, nil
}

// Delete removes a thread
func (s *ThreadStorage) Delete(ctx context.Context, threadID string) error {
	if err := s.client.Del(ctx, threadKey(threadID)).Err(); err != nil {
		return fmt.Errorf("failed to delete thread: %w", err)
	}

	s.logger.Debug("thread deleted", zap.String("thread_id", threadID))
	return nil
}

// Exists checks if a thread is stored
func (s *ThreadStorage) Exists(ctx context.Context, threadID string) (bool, error) {
	n, err := s.client.Exists(ctx, threadKey(threadID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check existence: %w", err)
	}

	return n > 0, nil
}

// List returns the IDs of all stored threads
func (s *ThreadStorage) List(ctx context.Context) ([]string, error) {
	var (
		cursor uint64
		ids    []string
	)

	for {
		batch, next, err := s.client.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan keys: %w", err)
		}

		for _, key := range batch {
			if id := strings.TrimPrefix(key, keyPrefix); id != "" && id != key {
				ids = append(ids, id)
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return ids, nil
}

// threadKey returns the Redis key for a thread
func threadKey(threadID string) string {
	return keyPrefix + threadID
}
