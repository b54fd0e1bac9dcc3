package sse

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// DoneSentinel terminates a chatkit event stream
	DoneSentinel = "[DONE]"

	// RunnerEventDelta names the envelope carrying agent sub-events
	RunnerEventDelta = "runner_event_delta"

	// EventTypeMessage is the sub-event type carrying message text
	EventTypeMessage = "message"

	dataPrefix = "data:"
)

// Envelope is the shape of a runner event delta frame
type Envelope struct {
	Name string       `json:"name"`
	Data EnvelopeData `json:"data"`
}

// EnvelopeData holds the sub-events of a delta
type EnvelopeData struct {
	Events []RunnerEvent `json:"events"`
}

// RunnerEvent is one sub-event of a runner event delta
type RunnerEvent struct {
	Type    string `json:"type"`
	Agent   string `json:"agent,omitempty"`
	Content string `json:"content,omitempty"`
}

// Frame encodes payload as a single SSE data frame
func Frame(payload []byte) []byte {
	return []byte(fmt.Sprintf("data: %s\n\n", payload))
}

// DoneFrame returns the terminating frame
func DoneFrame() []byte {
	return Frame([]byte(DoneSentinel))
}

// DataPayload returns the payload of a "data:" line. It reports false for
// other lines, empty payloads and the done sentinel.
func DataPayload(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, dataPrefix) {
		return "", false
	}

	payload := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
	if payload == "" || payload == DoneSentinel {
		return "", false
	}
	return payload, true
}

// ParseEnvelope decodes a data payload. A nil envelope with a nil error
// means the payload is valid JSON but not a runner event delta. Sub-events
// are read field by field, so a sibling event with an unexpected shape
// does not hide the message events next to it.
func ParseEnvelope(payload string) (*Envelope, error) {
	var raw struct {
		Name json.RawMessage `json:"name"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, err
	}
	if stringField(raw.Name) != RunnerEventDelta {
		return nil, nil
	}

	env := &Envelope{Name: RunnerEventDelta}
	if len(raw.Data) == 0 || string(raw.Data) == "null" {
		return env, nil
	}

	var data struct {
		Events []json.RawMessage `json:"events"`
	}
	if err := json.Unmarshal(raw.Data, &data); err != nil {
		return nil, fmt.Errorf("malformed %s data: %w", RunnerEventDelta, err)
	}

	for _, item := range data.Events {
		var ev map[string]json.RawMessage
		if json.Unmarshal(item, &ev) != nil {
			continue
		}
		env.Data.Events = append(env.Data.Events, RunnerEvent{
			Type:    stringField(ev["type"]),
			Agent:   stringField(ev["agent"]),
			Content: stringField(ev["content"]),
		})
	}
	return env, nil
}

// stringField returns the JSON string in v, or "" for any other value
func stringField(v json.RawMessage) string {
	var s string
	if len(v) == 0 || json.Unmarshal(v, &s) != nil {
		return ""
	}
	return s
}

// MessageText concatenates the non-empty message contents of env
func (env *Envelope) MessageText() string {
	var b strings.Builder
	for _, ev := range env.Data.Events {
		if ev.Type == EventTypeMessage && ev.Content != "" {
			b.WriteString(ev.Content)
		}
	}
	return b.String()
}
