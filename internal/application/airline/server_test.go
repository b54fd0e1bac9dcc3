package airline

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/aescanero/chatrelay/pkg/chatkit"
	"github.com/aescanero/chatrelay/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateThreadStreamsTurn(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.server.Process(ctx, message(RequestCreateThread, "", "hi"), chatkit.RequestContext{})
	require.NoError(t, err)

	chunks := drain(t, res)
	require.NotEmpty(t, chunks)
	assert.Equal(t, "data: [DONE]\n\n", chunks[len(chunks)-1])

	fs := frames(t, chunks)
	require.Len(t, fs, 5)
	assert.Equal(t, "thread.created", fs[0]["type"])
	assert.Equal(t, "thread.item.done", fs[1]["type"])
	assert.Equal(t, "runner_event_delta", fs[2]["name"])
	assert.Equal(t, "runner_event_delta", fs[3]["name"])
	assert.Equal(t, "thread.item.done", fs[4]["type"])

	events := fs[2]["data"].(map[string]any)["events"].([]any)
	first := events[0].(map[string]any)
	assert.Equal(t, "message", first["type"])
	assert.Equal(t, "Hello", first["content"])
	assert.Equal(t, domain.TriageAgent, first["agent"])

	threadID := fs[0]["thread"].(map[string]any)["id"].(string)
	thread, err := env.store.Load(ctx, threadID)
	require.NoError(t, err)
	require.Len(t, thread.Items, 2)
	assert.Equal(t, "Hello there", thread.Items[1].Content)
	assert.Equal(t, "hi", thread.Title)
}

func TestAddUserMessageHandsOff(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	thread := domain.NewThread("t1")
	require.NoError(t, env.store.Save(ctx, thread))

	res, err := env.server.Process(ctx, message(RequestAddUserMessage, "t1", "I need to change my seat"), chatkit.RequestContext{})
	require.NoError(t, err)
	fs := frames(t, drain(t, res))

	var handoff map[string]any
	for _, f := range fs {
		if f["name"] != "runner_event_delta" {
			continue
		}
		ev := f["data"].(map[string]any)["events"].([]any)[0].(map[string]any)
		if ev["type"] == "handoff" {
			handoff = ev
		}
	}
	require.NotNil(t, handoff)
	assert.Equal(t, domain.SeatSpecialServicesAgent, handoff["agent"])

	stored, err := env.store.Load(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.SeatSpecialServicesAgent, stored.CurrentAgent)
	assert.Equal(t, domain.SeatSpecialServicesAgent, stored.Items[1].Agent)
	assert.Contains(t, env.llm.lastRequest().System, "You are the Seat and Special Services Agent.")
}

func TestAddUserMessageUnknownThread(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.server.Process(context.Background(), message(RequestAddUserMessage, "nope", "hi"), chatkit.RequestContext{})
	assert.ErrorIs(t, err, chatkit.ErrThreadNotFound)
}

func TestProcessRejectsInvalidPayloads(t *testing.T) {
	env := newTestEnv(t)

	for _, payload := range []string{`{`, `{"type":"threads.unknown"}`, `{"type":"threads.create","params":{"input":{"content":[]}}}`} {
		_, err := env.server.Process(context.Background(), []byte(payload), chatkit.RequestContext{})
		assert.ErrorIs(t, err, chatkit.ErrInvalidRequest, payload)
	}
}

func TestLLMFailureEndsStreamWithErrorFrame(t *testing.T) {
	env := newTestEnv(t)
	env.llm.deltas = []string{"partial"}
	env.llm.err = errLLM

	res, err := env.server.Process(context.Background(), message(RequestCreateThread, "", "hi"), chatkit.RequestContext{})
	require.NoError(t, err)

	chunks := drain(t, res)
	fs := frames(t, chunks)
	assert.Equal(t, "error", fs[len(fs)-1]["type"])
	assert.Equal(t, "data: [DONE]\n\n", chunks[len(chunks)-1])
}

func TestStreamConsumerCanStopEarly(t *testing.T) {
	env := newTestEnv(t)
	env.llm.deltas = []string{"a", "b", "c", "d", "e", "f"}

	res, err := env.server.Process(context.Background(), message(RequestCreateThread, "", "hi"), chatkit.RequestContext{})
	require.NoError(t, err)

	n := 0
	for _, err := range res.(chatkit.StreamingResult).Chunks {
		require.NoError(t, err)
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)

	// the pool must be free again for the next turn
	res, err = env.server.Process(context.Background(), message(RequestCreateThread, "", "again"), chatkit.RequestContext{})
	require.NoError(t, err)
	assert.NotEmpty(t, drain(t, res))
}

func TestJSONRequests(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	older := domain.NewThread("old")
	older.CreatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, env.store.Save(ctx, older))
	require.NoError(t, env.store.Save(ctx, domain.NewThread("new")))

	t.Run("get", func(t *testing.T) {
		res, err := env.server.Process(ctx, []byte(`{"type":"threads.get_by_id","params":{"thread_id":"old"}}`), chatkit.RequestContext{})
		require.NoError(t, err)
		body := res.(chatkit.JSONResult).Body

		var got domain.Thread
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, "old", got.ID)
	})

	t.Run("list", func(t *testing.T) {
		res, err := env.server.Process(ctx, []byte(`{"type":"threads.list","params":{"limit":1}}`), chatkit.RequestContext{})
		require.NoError(t, err)

		var got struct {
			Data []struct {
				ID string `json:"id"`
			} `json:"data"`
			HasMore bool `json:"has_more"`
		}
		require.NoError(t, json.Unmarshal(res.(chatkit.JSONResult).Body, &got))
		require.Len(t, got.Data, 1)
		assert.Equal(t, "new", got.Data[0].ID)
		assert.True(t, got.HasMore)
	})

	t.Run("delete", func(t *testing.T) {
		res, err := env.server.Process(ctx, []byte(`{"type":"threads.delete","params":{"thread_id":"old"}}`), chatkit.RequestContext{})
		require.NoError(t, err)
		assert.JSONEq(t, `{"thread_id":"old","deleted":true}`, string(res.(chatkit.JSONResult).Body))

		_, err = env.server.Process(ctx, []byte(`{"type":"threads.get_by_id","params":{"thread_id":"old"}}`), chatkit.RequestContext{})
		assert.ErrorIs(t, err, chatkit.ErrThreadNotFound)
	})
}

func TestSnapshot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("bootstrap", func(t *testing.T) {
		snap, err := env.server.Snapshot(ctx, "", chatkit.RequestContext{})
		require.NoError(t, err)
		assert.Nil(t, snap["thread_id"])
		assert.Equal(t, domain.TriageAgent, snap["current_agent"])
		assert.Len(t, snap["agents"], len(domain.Agents))
	})

	t.Run("thread", func(t *testing.T) {
		require.NoError(t, env.store.Save(ctx, domain.NewThread("t1")))
		snap, err := env.server.Snapshot(ctx, "t1", chatkit.RequestContext{})
		require.NoError(t, err)
		assert.Equal(t, "t1", snap["thread_id"])
		assert.NotEmpty(t, chatkit.EncodeSnapshot(snap))
	})

	t.Run("missing thread", func(t *testing.T) {
		_, err := env.server.Snapshot(ctx, "missing", chatkit.RequestContext{})
		assert.ErrorIs(t, err, chatkit.ErrThreadNotFound)
	})
}

func TestEnsureThreadIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a, err := env.server.EnsureThread(ctx, "t1", chatkit.RequestContext{})
	require.NoError(t, err)
	assert.Equal(t, "t1", a.ID)

	first, err := env.store.Load(ctx, "t1")
	require.NoError(t, err)

	_, err = env.server.EnsureThread(ctx, "t1", chatkit.RequestContext{})
	require.NoError(t, err)
	second, err := env.store.Load(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)

	_, err = env.server.EnsureThread(ctx, "", chatkit.RequestContext{})
	assert.ErrorIs(t, err, chatkit.ErrInvalidRequest)
}

func TestListenersReceiveUpdates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.server.EnsureThread(ctx, "t1", chatkit.RequestContext{})
	require.NoError(t, err)

	q := env.server.RegisterListener("t1")
	other := env.server.RegisterListener("t2")
	assert.Equal(t, 2, env.server.ListenerCount())

	res, err := env.server.Process(ctx, message(RequestAddUserMessage, "t1", "hello"), chatkit.RequestContext{})
	require.NoError(t, err)
	drain(t, res)

	// one update after the user message, one after the reply
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, 0, other.Len())

	msg, err := q.Get(ctx)
	require.NoError(t, err)
	var snap map[string]any
	require.NoError(t, json.Unmarshal([]byte(msg), &snap))
	assert.Equal(t, "t1", snap["thread_id"])

	env.server.UnregisterListener("t1", q)
	env.server.UnregisterListener("t1", q)
	env.server.UnregisterListener("t2", other)
	assert.Equal(t, 0, env.server.ListenerCount())
}

func TestEnsureThreadDoesNotWaitForRunningTurn(t *testing.T) {
	env := newTestEnv(t)
	env.llm.gate = make(chan struct{})
	ctx := context.Background()

	_, err := env.server.EnsureThread(ctx, "t1", chatkit.RequestContext{})
	require.NoError(t, err)
	q := env.server.RegisterListener("t1")
	defer env.server.UnregisterListener("t1", q)

	res, err := env.server.Process(ctx, message(RequestAddUserMessage, "t1", "hello"), chatkit.RequestContext{})
	require.NoError(t, err)

	firstDelta := make(chan struct{})
	turnDone := make(chan struct{})
	go func() {
		defer close(turnDone)
		for chunk, err := range res.(chatkit.StreamingResult).Chunks {
			if err != nil {
				return
			}
			if strings.Contains(string(chunk), `"content":"Hello"`) {
				close(firstDelta)
			}
		}
	}()

	select {
	case <-firstDelta:
	case <-time.After(2 * time.Second):
		t.Fatal("turn did not start streaming")
	}

	// the turn holds the thread now; a new listener must not wait for it
	ensured := make(chan error, 1)
	go func() {
		_, err := env.server.EnsureThread(ctx, "t1", chatkit.RequestContext{})
		ensured <- err
	}()
	select {
	case err := <-ensured:
		require.NoError(t, err)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("EnsureThread blocked behind a running turn")
	}

	snap, err := env.server.Snapshot(ctx, "t1", chatkit.RequestContext{})
	require.NoError(t, err)
	assert.Equal(t, "t1", snap["thread_id"])

	// the user message was published while the turn was still running
	assert.Equal(t, 1, q.Len())

	close(env.llm.gate)
	select {
	case <-turnDone:
	case <-time.After(2 * time.Second):
		t.Fatal("turn did not finish")
	}
	assert.Equal(t, 2, q.Len())
}
