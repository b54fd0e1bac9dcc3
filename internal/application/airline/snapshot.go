package airline

import "github.com/aescanero/chatrelay/pkg/domain"

func agentList() []domain.Agent {
	return append([]domain.Agent(nil), domain.Agents...)
}

// threadSnapshot is the state pushed to listeners and served by /chatkit/state
func threadSnapshot(thread *domain.Thread) map[string]any {
	return map[string]any{
		"thread_id":     thread.ID,
		"current_agent": thread.CurrentAgent,
		"context":       thread.Context.Public(),
		"agents":        agentList(),
		"events":        thread.Events,
		"messages":      thread.Items,
		"updated_at":    thread.UpdatedAt,
	}
}

// bootstrapSnapshot is the state shown before any thread exists
func bootstrapSnapshot() map[string]any {
	return map[string]any{
		"thread_id":     nil,
		"current_agent": domain.TriageAgent,
		"context":       domain.NewAgentContext().Public(),
		"agents":        agentList(),
		"events":        []domain.AgentEvent{},
		"messages":      []domain.Item{},
	}
}
