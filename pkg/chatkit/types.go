package chatkit

import (
	"context"
	"errors"
	"iter"
	"net/http"
)

var (
	// ErrInvalidRequest is returned for payloads the server cannot interpret
	ErrInvalidRequest = errors.New("invalid request")

	// ErrThreadNotFound is returned when a thread id does not resolve
	ErrThreadNotFound = errors.New("thread not found")
)

// Server is the delegate the relay forwards to. Implementations must be
// safe for concurrent use.
type Server interface {
	// Process handles one raw protocol message
	Process(ctx context.Context, payload []byte, rc RequestContext) (Result, error)

	// Snapshot returns the state of a thread, or the bootstrap state when
	// threadID is empty
	Snapshot(ctx context.Context, threadID string, rc RequestContext) (map[string]any, error)

	// EnsureThread returns the thread, creating it when missing
	EnsureThread(ctx context.Context, threadID string, rc RequestContext) (*Thread, error)

	// RegisterListener subscribes a new queue to the thread's updates
	RegisterListener(threadID string) *Queue

	// UnregisterListener removes a queue returned by RegisterListener
	UnregisterListener(threadID string, q *Queue)
}

// RequestContext carries ambient metadata for a delegate call.
// Request is nil when the call does not originate from a client message.
type RequestContext struct {
	Request *http.Request
}

// Thread is the handle returned by EnsureThread
type Thread struct {
	ID string `json:"id"`
}

// Result is one of JSONResult, StreamingResult or RawResult
type Result interface {
	result()
}

// JSONResult is a buffered JSON response body
type JSONResult struct {
	Body []byte
}

// StreamingResult is a live sequence of SSE-framed byte chunks.
// Breaking out of the iteration stops the producer.
type StreamingResult struct {
	Chunks iter.Seq2[[]byte, error]
}

// RawResult is an opaque response body
type RawResult struct {
	Body []byte
}

func (JSONResult) result()      {}
func (StreamingResult) result() {}
func (RawResult) result()       {}
