package airline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aescanero/chatrelay/pkg/chatkit"
)

// Request types
const (
	RequestCreateThread   = "threads.create"
	RequestAddUserMessage = "threads.add_user_message"
	RequestGetThread      = "threads.get_by_id"
	RequestListThreads    = "threads.list"
	RequestDeleteThread   = "threads.delete"
)

// Request is a chatkit protocol message
type Request struct {
	Type     string          `json:"type"`
	Params   json.RawMessage `json:"params,omitempty"`
	Metadata map[string]any  `json:"metadata,omitempty"`
}

// UserInput is the user's message content
type UserInput struct {
	Content []ContentPart `json:"content"`
}

// ContentPart is one piece of user content
type ContentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Text joins the text parts of the input
func (u UserInput) Text() string {
	parts := make([]string, 0, len(u.Content))
	for _, p := range u.Content {
		if p.Type == "input_text" || p.Type == "text" {
			if t := strings.TrimSpace(p.Text); t != "" {
				parts = append(parts, t)
			}
		}
	}
	return strings.Join(parts, "\n")
}

// CreateThreadParams are the params of threads.create
type CreateThreadParams struct {
	Input UserInput `json:"input"`
}

// AddUserMessageParams are the params of threads.add_user_message
type AddUserMessageParams struct {
	ThreadID string    `json:"thread_id"`
	Input    UserInput `json:"input"`
}

// ThreadParams are the params of requests addressing one thread
type ThreadParams struct {
	ThreadID string `json:"thread_id"`
}

// ListThreadsParams are the params of threads.list
type ListThreadsParams struct {
	Limit int    `json:"limit"`
	Order string `json:"order"`
}

// Validator validates protocol messages
type Validator struct {
	maxInputChars int
}

// NewValidator creates a validator limiting user input to maxInputChars
// runes. Zero means unlimited.
func NewValidator(maxInputChars int) *Validator {
	return &Validator{maxInputChars: maxInputChars}
}

// Parse decodes payload and checks its type
func (v *Validator) Parse(payload []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, invalid("malformed payload: %v", err)
	}

	switch req.Type {
	case RequestCreateThread, RequestAddUserMessage, RequestGetThread,
		RequestListThreads, RequestDeleteThread:
	case "":
		return nil, invalid("request type is required")
	default:
		return nil, invalid("unsupported request type: %s", req.Type)
	}

	return &req, nil
}

// CreateThread decodes and validates threads.create params
func (v *Validator) CreateThread(req *Request) (*CreateThreadParams, error) {
	var p CreateThreadParams
	if err := decodeParams(req, &p); err != nil {
		return nil, err
	}
	if err := v.validateInput(p.Input); err != nil {
		return nil, err
	}
	return &p, nil
}

// AddUserMessage decodes and validates threads.add_user_message params
func (v *Validator) AddUserMessage(req *Request) (*AddUserMessageParams, error) {
	var p AddUserMessageParams
	if err := decodeParams(req, &p); err != nil {
		return nil, err
	}
	if p.ThreadID == "" {
		return nil, invalid("thread_id is required")
	}
	if err := v.validateInput(p.Input); err != nil {
		return nil, err
	}
	return &p, nil
}

// Thread decodes params addressing one thread
func (v *Validator) Thread(req *Request) (*ThreadParams, error) {
	var p ThreadParams
	if err := decodeParams(req, &p); err != nil {
		return nil, err
	}
	if p.ThreadID == "" {
		return nil, invalid("thread_id is required")
	}
	return &p, nil
}

// ListThreads decodes threads.list params, applying defaults
func (v *Validator) ListThreads(req *Request) (*ListThreadsParams, error) {
	p := ListThreadsParams{Limit: 20, Order: "desc"}
	if err := decodeParams(req, &p); err != nil {
		return nil, err
	}
	if p.Limit <= 0 {
		p.Limit = 20
	}
	if p.Order != "asc" && p.Order != "desc" {
		return nil, invalid("order must be asc or desc")
	}
	return &p, nil
}

func (v *Validator) validateInput(in UserInput) error {
	text := in.Text()
	if text == "" {
		return invalid("input text is required")
	}
	if v.maxInputChars > 0 && len([]rune(text)) > v.maxInputChars {
		return invalid("input exceeds %d characters", v.maxInputChars)
	}
	return nil
}

func decodeParams(req *Request, dst any) error {
	if len(req.Params) == 0 || string(req.Params) == "null" {
		return nil
	}
	if err := json.Unmarshal(req.Params, dst); err != nil {
		return invalid("malformed params for %s: %v", req.Type, err)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", chatkit.ErrInvalidRequest, fmt.Sprintf(format, args...))
}
