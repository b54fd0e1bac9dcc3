// Package ports declares the adapter interfaces the reference delegate
// depends on. Implementations live under pkg/adapters.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/aescanero/chatrelay/pkg/domain"
)

// ErrNotFound is returned by ThreadStore when a thread does not exist
var ErrNotFound = errors.New("not found")

// ThreadStore persists threads
type ThreadStore interface {
	Save(ctx context.Context, thread *domain.Thread) error
	Load(ctx context.Context, threadID string) (*domain.Thread, error)
	Delete(ctx context.Context, threadID string) error
	Exists(ctx context.Context, threadID string) (bool, error)
	List(ctx context.Context) ([]string, error)
}

// Update is a serialized thread state change
type Update struct {
	ThreadID string    `json:"thread_id"`
	Data     string    `json:"data"`
	Time     time.Time `json:"time"`
}

// UpdateHandler receives updates from an UpdateBus
type UpdateHandler func(ctx context.Context, update Update) error

// UpdateBus fans thread updates out to every subscriber, possibly across
// processes
type UpdateBus interface {
	Publish(ctx context.Context, update Update) error
	Subscribe(ctx context.Context, handler UpdateHandler) error
	Close() error
}

// ChatMessage is one turn of history sent to the LLM
type ChatMessage struct {
	Role    domain.Role
	Content string
}

// CompletionRequest asks the LLM for the next assistant turn
type CompletionRequest struct {
	System   string
	Messages []ChatMessage
}

// LLMClient streams assistant replies. onDelta is called for every text
// fragment in order; the full text is returned at the end.
type LLMClient interface {
	Stream(ctx context.Context, req CompletionRequest, onDelta func(string) error) (string, error)
}

// MetricsCollector records relay and delegate metrics
type MetricsCollector interface {
	RecordRelayRequest(endpoint, resultKind string)
	RecordStreamRelayed(chunks, parseErrors int, duration time.Duration)
	SetActiveListeners(count int)
	RecordTurn(agent, status string, duration time.Duration)
	RecordHandoff(from, to string)
	RecordUpdatePublished()
	RecordWorkerPoolStatus(idle, busy, stopped int)
}

// NopMetrics discards every measurement
type NopMetrics struct{}

func (NopMetrics) RecordRelayRequest(string, string)           {}
func (NopMetrics) RecordStreamRelayed(int, int, time.Duration) {}
func (NopMetrics) SetActiveListeners(int)                      {}
func (NopMetrics) RecordTurn(string, string, time.Duration)    {}
func (NopMetrics) RecordHandoff(string, string)                {}
func (NopMetrics) RecordUpdatePublished()                      {}
func (NopMetrics) RecordWorkerPoolStatus(int, int, int)        {}
