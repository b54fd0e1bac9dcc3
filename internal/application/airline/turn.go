package airline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aescanero/chatrelay/pkg/chatkit"
	"github.com/aescanero/chatrelay/pkg/domain"
	"github.com/aescanero/chatrelay/pkg/ports"
	"github.com/aescanero/chatrelay/pkg/sse"
	"go.uber.org/zap"
)

// errClientGone stops a turn whose stream consumer went away
var errClientGone = errors.New("stream consumer gone")

// emitFunc hands one SSE chunk to the stream consumer. It reports false
// once the consumer is gone.
type emitFunc func(chunk []byte) bool

// streamTurn returns a streaming result running the turn on the worker
// pool. The turn starts when the result is iterated.
func (s *Server) streamTurn(ctx context.Context, threadID, text string, created bool) chatkit.StreamingResult {
	return chatkit.StreamingResult{Chunks: func(yield func([]byte, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		out := make(chan []byte, 16)
		var turnErr error

		err := s.pool.Submit(ctx, func(jobCtx context.Context) {
			defer close(out)
			turnErr = s.runTurn(jobCtx, threadID, text, created, func(chunk []byte) bool {
				select {
				case out <- chunk:
					return true
				case <-jobCtx.Done():
					return false
				}
			})
		})
		if err != nil {
			yield(nil, fmt.Errorf("failed to schedule turn: %w", err))
			return
		}

		for chunk := range out {
			if !yield(chunk, nil) {
				cancel()
				for range out {
				}
				return
			}
		}

		// out is closed, so turnErr is settled
		if turnErr != nil && !errors.Is(turnErr, errClientGone) {
			yield(nil, turnErr)
		}
	}}
}

// runTurn appends the user's message, routes it, streams the agent reply
// and persists the result
func (s *Server) runTurn(ctx context.Context, threadID, text string, created bool, emit emitFunc) error {
	unlock := s.lock(threadID)
	defer unlock()

	thread, err := s.load(ctx, threadID)
	if err != nil {
		return err
	}

	if created && !emit(frame(map[string]any{"type": "thread.created", "thread": threadHeader(thread)})) {
		return errClientGone
	}

	userItem := thread.AddItem(domain.RoleUser, "", text)

	from := thread.CurrentAgent
	target := domain.Route(text)
	handoff := thread.Handoff(target)
	if handoff {
		s.metrics.RecordHandoff(from, target)
		s.logger.Info("agent handoff",
			zap.String("thread_id", threadID),
			zap.String("from", from),
			zap.String("to", target))
	}

	s.persist(ctx, thread)

	if !emit(frame(map[string]any{"type": "thread.item.done", "item": userItem})) {
		return errClientGone
	}
	if handoff {
		ev := thread.Events[len(thread.Events)-1]
		if !emit(deltaFrame(sse.RunnerEvent{Type: string(domain.AgentEventHandoff), Agent: target, Content: ev.Content})) {
			return errClientGone
		}
	}

	agent, ok := domain.LookupAgent(thread.CurrentAgent)
	if !ok {
		agent, _ = domain.LookupAgent(domain.TriageAgent)
	}

	start := time.Now()
	reply, err := s.llm.Stream(ctx, completionRequest(agent, thread), func(delta string) error {
		if !emit(deltaFrame(sse.RunnerEvent{Type: sse.EventTypeMessage, Agent: agent.Name, Content: delta})) {
			return errClientGone
		}
		return nil
	})
	duration := time.Since(start)

	if err != nil {
		if errors.Is(err, errClientGone) || ctx.Err() != nil {
			s.metrics.RecordTurn(agent.Name, "cancelled", duration)
			return errClientGone
		}

		s.metrics.RecordTurn(agent.Name, "failed", duration)
		s.logger.Error("agent turn failed",
			zap.String("thread_id", threadID),
			zap.String("agent", agent.Name),
			zap.Error(err))

		emit(frame(map[string]any{
			"type":    "error",
			"code":    "stream.error",
			"message": "The agent could not complete the response.",
		}))
		emit(sse.DoneFrame())
		return nil
	}

	assistantItem := thread.AddItem(domain.RoleAssistant, agent.Name, reply)
	thread.AddEvent(domain.AgentEventMessage, agent.Name, reply)
	s.persist(ctx, thread)
	s.metrics.RecordTurn(agent.Name, "completed", duration)

	s.logger.Info("agent turn completed",
		zap.String("thread_id", threadID),
		zap.String("agent", agent.Name),
		zap.Int("reply_chars", len(reply)),
		zap.Duration("duration", duration))

	if !emit(frame(map[string]any{"type": "thread.item.done", "item": assistantItem})) {
		return errClientGone
	}
	emit(sse.DoneFrame())
	return nil
}

// persist saves the thread and publishes its snapshot. It runs even when
// the stream consumer has gone away.
func (s *Server) persist(ctx context.Context, thread *domain.Thread) {
	ctx = context.WithoutCancel(ctx)

	if err := s.store.Save(ctx, thread); err != nil {
		s.logger.Error("failed to save thread",
			zap.String("thread_id", thread.ID),
			zap.Error(err))
		return
	}
	s.publish(ctx, thread)
}

func completionRequest(agent domain.Agent, thread *domain.Thread) ports.CompletionRequest {
	history := make([]ports.ChatMessage, 0, len(thread.Items))
	for _, item := range thread.Items {
		history = append(history, ports.ChatMessage{Role: item.Role, Content: item.Content})
	}

	customer, _ := json.Marshal(thread.Context.Public())
	system := fmt.Sprintf("%s\n\nYou are the %s.\nCustomer context: %s", agent.Instructions, agent.Name, customer)

	return ports.CompletionRequest{System: system, Messages: history}
}

func threadHeader(thread *domain.Thread) map[string]any {
	return map[string]any{
		"id":            thread.ID,
		"title":         thread.Title,
		"current_agent": thread.CurrentAgent,
		"created_at":    thread.CreatedAt,
	}
}

func deltaFrame(events ...sse.RunnerEvent) []byte {
	return frame(sse.Envelope{
		Name: sse.RunnerEventDelta,
		Data: sse.EnvelopeData{Events: events},
	})
}

func frame(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		data, _ = json.Marshal(map[string]string{"type": "error", "message": err.Error()})
	}
	return sse.Frame(data)
}
