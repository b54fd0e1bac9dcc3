package airline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aescanero/chatrelay/internal/application/workers"
	eventsmemory "github.com/aescanero/chatrelay/pkg/adapters/events/memory"
	storagememory "github.com/aescanero/chatrelay/pkg/adapters/storage/memory"
	"github.com/aescanero/chatrelay/pkg/chatkit"
	"github.com/aescanero/chatrelay/pkg/ports"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// scriptedLLM replies with fixed deltas and records requests
type scriptedLLM struct {
	mu       sync.Mutex
	deltas   []string
	err      error
	requests []ports.CompletionRequest

	// gate, when set, holds the reply after its first delta until closed
	gate chan struct{}
}

func (l *scriptedLLM) Stream(ctx context.Context, req ports.CompletionRequest, onDelta func(string) error) (string, error) {
	l.mu.Lock()
	l.requests = append(l.requests, req)
	l.mu.Unlock()

	var text strings.Builder
	for i, d := range l.deltas {
		if err := onDelta(d); err != nil {
			return text.String(), err
		}
		text.WriteString(d)

		if i == 0 && l.gate != nil {
			select {
			case <-l.gate:
			case <-ctx.Done():
				return text.String(), ctx.Err()
			}
		}
	}
	return text.String(), l.err
}

func (l *scriptedLLM) lastRequest() ports.CompletionRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.requests[len(l.requests)-1]
}

type testEnv struct {
	server *Server
	store  *storagememory.ThreadStorage
	llm    *scriptedLLM
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := zap.NewNop()
	pool := workers.NewPool(2, ports.NopMetrics{}, logger, 0)
	require.NoError(t, pool.Start())

	store := storagememory.NewThreadStorage()
	llm := &scriptedLLM{deltas: []string{"Hello", " there"}}
	s := NewServer(store, eventsmemory.NewUpdateBus(logger), llm, pool, ports.NopMetrics{}, NewValidator(1000), logger)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))

	t.Cleanup(func() {
		cancel()
		_ = s.Shutdown(context.Background())
		sctx, scancel := context.WithTimeout(context.Background(), time.Second)
		defer scancel()
		_ = pool.Shutdown(sctx)
	})

	return &testEnv{server: s, store: store, llm: llm}
}

func message(typ, threadID, text string) []byte {
	params := map[string]any{
		"input": map[string]any{
			"content": []map[string]string{{"type": "input_text", "text": text}},
		},
	}
	if threadID != "" {
		params["thread_id"] = threadID
	}
	data, _ := json.Marshal(map[string]any{"type": typ, "params": params})
	return data
}

// drain collects every chunk of a streaming result
func drain(t *testing.T, res chatkit.Result) []string {
	t.Helper()
	stream, ok := res.(chatkit.StreamingResult)
	require.True(t, ok, "expected a streaming result, got %T", res)

	var chunks []string
	for chunk, err := range stream.Chunks {
		require.NoError(t, err)
		chunks = append(chunks, string(chunk))
	}
	return chunks
}

// frames decodes the JSON payloads of SSE chunks, skipping [DONE]
func frames(t *testing.T, chunks []string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, c := range chunks {
		payload := strings.TrimSuffix(strings.TrimPrefix(c, "data: "), "\n\n")
		if payload == "[DONE]" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(payload), &m))
		out = append(out, m)
	}
	return out
}

var errLLM = errors.New("llm unavailable")
