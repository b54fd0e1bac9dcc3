package airline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aescanero/chatrelay/internal/application/workers"
	"github.com/aescanero/chatrelay/pkg/chatkit"
	"github.com/aescanero/chatrelay/pkg/domain"
	"github.com/aescanero/chatrelay/pkg/ports"
	"go.uber.org/zap"
)

// Server implements chatkit.Server for the airline agents
type Server struct {
	store     ports.ThreadStore
	bus       ports.UpdateBus
	llm       ports.LLMClient
	pool      *workers.Pool
	metrics   ports.MetricsCollector
	validator *Validator
	listeners *chatkit.Listeners
	logger    *zap.Logger

	// Serializes turns and get-or-create per thread
	locks sync.Map // map[string]*sync.Mutex

	cancel context.CancelFunc
}

var _ chatkit.Server = (*Server)(nil)

// NewServer creates a new airline server
func NewServer(
	store ports.ThreadStore,
	bus ports.UpdateBus,
	llm ports.LLMClient,
	pool *workers.Pool,
	metrics ports.MetricsCollector,
	validator *Validator,
	logger *zap.Logger,
) *Server {
	return &Server{
		store:     store,
		bus:       bus,
		llm:       llm,
		pool:      pool,
		metrics:   metrics,
		validator: validator,
		listeners: chatkit.NewListeners(),
		logger:    logger,
	}
}

// Start subscribes the listener registry to the update bus
func (s *Server) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	err := s.bus.Subscribe(ctx, func(_ context.Context, u ports.Update) error {
		n := s.listeners.Broadcast(u.ThreadID, u.Data)
		s.logger.Debug("update delivered",
			zap.String("thread_id", u.ThreadID),
			zap.Int("listeners", n))
		return nil
	})
	if err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe to updates: %w", err)
	}

	return nil
}

// Shutdown stops delivering updates
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down airline server")

	if s.cancel != nil {
		s.cancel()
	}

	s.logger.Info("airline server shut down complete")
	return nil
}

// Process handles one protocol message
func (s *Server) Process(ctx context.Context, payload []byte, rc chatkit.RequestContext) (chatkit.Result, error) {
	req, err := s.validator.Parse(payload)
	if err != nil {
		return nil, err
	}

	fields := []zap.Field{zap.String("type", req.Type)}
	if rc.Request != nil {
		fields = append(fields, zap.String("remote_addr", rc.Request.RemoteAddr))
	}
	s.logger.Debug("processing request", fields...)

	switch req.Type {
	case RequestCreateThread:
		p, err := s.validator.CreateThread(req)
		if err != nil {
			return nil, err
		}
		thread := domain.NewThread("")
		if err := s.store.Save(ctx, thread); err != nil {
			return nil, fmt.Errorf("failed to save thread: %w", err)
		}
		s.logger.Info("thread created", zap.String("thread_id", thread.ID))
		return s.streamTurn(ctx, thread.ID, p.Input.Text(), true), nil

	case RequestAddUserMessage:
		p, err := s.validator.AddUserMessage(req)
		if err != nil {
			return nil, err
		}
		if _, err := s.load(ctx, p.ThreadID); err != nil {
			return nil, err
		}
		return s.streamTurn(ctx, p.ThreadID, p.Input.Text(), false), nil

	case RequestGetThread:
		p, err := s.validator.Thread(req)
		if err != nil {
			return nil, err
		}
		thread, err := s.load(ctx, p.ThreadID)
		if err != nil {
			return nil, err
		}
		return jsonResult(thread)

	case RequestListThreads:
		p, err := s.validator.ListThreads(req)
		if err != nil {
			return nil, err
		}
		return s.listThreads(ctx, p)

	case RequestDeleteThread:
		p, err := s.validator.Thread(req)
		if err != nil {
			return nil, err
		}
		if _, err := s.load(ctx, p.ThreadID); err != nil {
			return nil, err
		}
		if err := s.store.Delete(ctx, p.ThreadID); err != nil {
			return nil, fmt.Errorf("failed to delete thread: %w", err)
		}
		s.locks.Delete(p.ThreadID)
		s.logger.Info("thread deleted", zap.String("thread_id", p.ThreadID))
		return jsonResult(map[string]any{"thread_id": p.ThreadID, "deleted": true})
	}

	return nil, fmt.Errorf("%w: unsupported request type: %s", chatkit.ErrInvalidRequest, req.Type)
}

// Snapshot returns the public state of a thread, or the bootstrap state
// when threadID is empty
func (s *Server) Snapshot(ctx context.Context, threadID string, _ chatkit.RequestContext) (map[string]any, error) {
	if threadID == "" {
		return bootstrapSnapshot(), nil
	}

	thread, err := s.load(ctx, threadID)
	if err != nil {
		return nil, err
	}
	return threadSnapshot(thread), nil
}

// EnsureThread returns the thread, creating it under threadID when missing
func (s *Server) EnsureThread(ctx context.Context, threadID string, _ chatkit.RequestContext) (*chatkit.Thread, error) {
	if threadID == "" {
		return nil, fmt.Errorf("%w: thread_id is required", chatkit.ErrInvalidRequest)
	}

	// Existing threads may be mid-turn; only creation needs the lock
	exists, err := s.store.Exists(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to check thread: %w", err)
	}
	if exists {
		return &chatkit.Thread{ID: threadID}, nil
	}

	unlock := s.lock(threadID)
	defer unlock()

	exists, err = s.store.Exists(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to check thread: %w", err)
	}
	if !exists {
		if err := s.store.Save(ctx, domain.NewThread(threadID)); err != nil {
			return nil, fmt.Errorf("failed to save thread: %w", err)
		}
		s.logger.Info("thread created for listener", zap.String("thread_id", threadID))
	}

	return &chatkit.Thread{ID: threadID}, nil
}

// RegisterListener subscribes a new queue to the thread's updates
func (s *Server) RegisterListener(threadID string) *chatkit.Queue {
	q := s.listeners.Register(threadID)
	s.metrics.SetActiveListeners(s.listeners.Count())

	s.logger.Debug("listener registered", zap.String("thread_id", threadID))
	return q
}

// UnregisterListener removes a queue returned by RegisterListener
func (s *Server) UnregisterListener(threadID string, q *chatkit.Queue) {
	if !s.listeners.Unregister(threadID, q) {
		return
	}
	s.metrics.SetActiveListeners(s.listeners.Count())

	s.logger.Debug("listener unregistered", zap.String("thread_id", threadID))
}

// ListenerCount returns the number of registered listeners
func (s *Server) ListenerCount() int {
	return s.listeners.Count()
}

// listThreads returns thread summaries ordered by creation time
func (s *Server) listThreads(ctx context.Context, p *ListThreadsParams) (chatkit.Result, error) {
	ids, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}

	type summary struct {
		ID           string    `json:"id"`
		Title        string    `json:"title"`
		CurrentAgent string    `json:"current_agent"`
		CreatedAt    time.Time `json:"created_at"`
		UpdatedAt    time.Time `json:"updated_at"`
	}

	summaries := make([]summary, 0, len(ids))
	for _, id := range ids {
		thread, err := s.store.Load(ctx, id)
		if err != nil {
			// expired or deleted between List and Load
			continue
		}
		summaries = append(summaries, summary{
			ID:           thread.ID,
			Title:        thread.Title,
			CurrentAgent: thread.CurrentAgent,
			CreatedAt:    thread.CreatedAt,
			UpdatedAt:    thread.UpdatedAt,
		})
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		if p.Order == "asc" {
			return summaries[i].CreatedAt.Before(summaries[j].CreatedAt)
		}
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})

	hasMore := len(summaries) > p.Limit
	if hasMore {
		summaries = summaries[:p.Limit]
	}

	return jsonResult(map[string]any{"data": summaries, "has_more": hasMore})
}

// load fetches a thread, mapping a missing one to chatkit.ErrThreadNotFound
func (s *Server) load(ctx context.Context, threadID string) (*domain.Thread, error) {
	thread, err := s.store.Load(ctx, threadID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", chatkit.ErrThreadNotFound, threadID)
		}
		return nil, fmt.Errorf("failed to load thread: %w", err)
	}
	return thread, nil
}

// lock acquires the thread's mutex and returns its release
func (s *Server) lock(threadID string) func() {
	v, _ := s.locks.LoadOrStore(threadID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// publish sends the thread's snapshot to its listeners
func (s *Server) publish(ctx context.Context, thread *domain.Thread) {
	update := ports.Update{
		ThreadID: thread.ID,
		Data:     string(chatkit.EncodeSnapshot(threadSnapshot(thread))),
		Time:     time.Now().UTC(),
	}

	if err := s.bus.Publish(ctx, update); err != nil {
		s.logger.Error("failed to publish update",
			zap.String("thread_id", thread.ID),
			zap.Error(err))
		return
	}
	s.metrics.RecordUpdatePublished()
}

func jsonResult(v any) (chatkit.Result, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return chatkit.JSONResult{Body: data}, nil
}
