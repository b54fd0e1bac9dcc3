package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aescanero/chatrelay/pkg/domain"
	"github.com/aescanero/chatrelay/pkg/ports"
)

// ThreadStorage implements ports.ThreadStore with an in-memory map
type ThreadStorage struct {
	threads map[string]*domain.Thread
	mu      sync.RWMutex
}

// NewThreadStorage creates a new in-memory thread storage
func NewThreadStorage() *ThreadStorage {
	return &ThreadStorage{
		threads: make(map[string]*domain.Thread),
	}
}

// Save stores a copy of the thread
func (s *ThreadStorage) Save(ctx context.Context, thread *domain.Thread) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.threads[thread.ID] = thread.Clone()
	return nil
}

// Load returns a copy of the stored thread
func (s *ThreadStorage) Load(ctx context.Context, threadID string) (*domain.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	thread, ok := s.threads[threadID]
	if !ok {
		return nil, fmt.Errorf("thread %s: %w", threadID, ports.ErrNotFound)
	}
	return thread.Clone(), nil
}

// Delete removes a thread
func (s *ThreadStorage) Delete(ctx context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.threads, threadID)
	return nil
}

// Exists checks if a thread is stored
func (s *ThreadStorage) Exists(ctx context.Context, threadID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.threads[threadID]
	return ok, nil
}

// List returns all thread IDs, sorted
func (s *ThreadStorage) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.threads))
	for id := range s.threads {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids, nil
}
