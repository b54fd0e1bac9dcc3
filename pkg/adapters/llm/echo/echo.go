package echo

import (
	"context"
	"fmt"
	"strings"

	"github.com/aescanero/chatrelay/pkg/domain"
	"github.com/aescanero/chatrelay/pkg/ports"
)

// Client answers by restating the last user message, word by word.
// It needs no credentials.
type Client struct{}

// NewClient creates an echo client
func NewClient() *Client {
	return &Client{}
}

// Stream emits the reply one word at a time
func (c *Client) Stream(ctx context.Context, req ports.CompletionRequest, onDelta func(string) error) (string, error) {
	reply := "How can I help you today?"
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == domain.RoleUser {
			reply = fmt.Sprintf("You said: %s", req.Messages[i].Content)
			break
		}
	}

	var text strings.Builder
	for i, word := range strings.Fields(reply) {
		if err := ctx.Err(); err != nil {
			return text.String(), err
		}
		if i > 0 {
			word = " " + word
		}
		text.WriteString(word)
		if err := onDelta(word); err != nil {
			return text.String(), err
		}
	}

	return text.String(), nil
}
