package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a thread item
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// AgentEventType classifies agent activity recorded on a thread
type AgentEventType string

const (
	AgentEventHandoff AgentEventType = "handoff"
	AgentEventMessage AgentEventType = "message"
)

// Thread is one customer conversation
type Thread struct {
	ID           string       `json:"id"`
	Title        string       `json:"title,omitempty"`
	CurrentAgent string       `json:"current_agent"`
	Context      AgentContext `json:"context"`
	Items        []Item       `json:"items"`
	Events       []AgentEvent `json:"events"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Item is a message in a thread
type Item struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Agent     string    `json:"agent,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// AgentEvent records a handoff or an agent message
type AgentEvent struct {
	ID        string         `json:"id"`
	Type      AgentEventType `json:"type"`
	Agent     string         `json:"agent"`
	Content   string         `json:"content"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewThread creates a thread owned by the triage agent. An empty id is
// replaced by a generated one.
func NewThread(id string) *Thread {
	if id == "" {
		id = "thr_" + uuid.New().String()
	}
	now := time.Now().UTC()
	return &Thread{
		ID:           id,
		CurrentAgent: TriageAgent,
		Context:      NewAgentContext(),
		Items:        []Item{},
		Events:       []AgentEvent{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// AddItem appends a message and returns it
func (t *Thread) AddItem(role Role, agent, content string) Item {
	item := Item{
		ID:        "msg_" + uuid.New().String(),
		Role:      role,
		Agent:     agent,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	t.Items = append(t.Items, item)
	t.UpdatedAt = item.CreatedAt
	if t.Title == "" && role == RoleUser {
		t.Title = truncate(content, 60)
	}
	return item
}

// AddEvent appends an agent event and returns it
func (t *Thread) AddEvent(typ AgentEventType, agent, content string) AgentEvent {
	ev := AgentEvent{
		ID:        "evt_" + uuid.New().String(),
		Type:      typ,
		Agent:     agent,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	t.Events = append(t.Events, ev)
	t.UpdatedAt = ev.CreatedAt
	return ev
}

// Handoff moves the thread to another agent, recording the transfer.
// It reports false when to already owns the thread.
func (t *Thread) Handoff(to string) bool {
	if to == "" || to == t.CurrentAgent {
		return false
	}
	from := t.CurrentAgent
	t.CurrentAgent = to
	t.AddEvent(AgentEventHandoff, to, from+" -> "+to)
	return true
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Clone returns a copy that shares no slices with t
func (t *Thread) Clone() *Thread {
	c := *t
	c.Items = append([]Item(nil), t.Items...)
	c.Events = append([]AgentEvent(nil), t.Events...)
	if c.Items == nil {
		c.Items = []Item{}
	}
	if c.Events == nil {
		c.Events = []AgentEvent{}
	}
	return &c
}
