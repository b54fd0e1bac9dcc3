package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aescanero/chatrelay/pkg/domain"
	"github.com/aescanero/chatrelay/pkg/ports"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
)

// Config holds Anthropic client settings
type Config struct {
	APIKey      string
	Model       string
	MaxTokens   int64
	Temperature float64
}

// Client implements ports.LLMClient with the Anthropic Messages API
type Client struct {
	client anthropic.Client
	cfg    Config
	logger *zap.Logger
}

// NewClient creates a new Anthropic client
func NewClient(cfg *Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic API key is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		client: anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		cfg:    *cfg,
		logger: logger,
	}, nil
}

// Stream requests a completion and forwards text deltas to onDelta
func (c *Client) Stream(ctx context.Context, req ports.CompletionRequest, onDelta func(string) error) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.cfg.Model),
		MaxTokens: c.cfg.MaxTokens,
		Messages:  toMessageParams(req.Messages),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if c.cfg.Temperature > 0 {
		params.Temperature = anthropic.Float(c.cfg.Temperature)
	}

	stream := c.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	var text strings.Builder
	for stream.Next() {
		event := stream.Current()

		delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
		if !ok {
			continue
		}
		textDelta, ok := delta.Delta.AsAny().(anthropic.TextDelta)
		if !ok || textDelta.Text == "" {
			continue
		}

		text.WriteString(textDelta.Text)
		if err := onDelta(textDelta.Text); err != nil {
			return text.String(), err
		}
	}

	if err := stream.Err(); err != nil {
		c.logger.Error("anthropic stream failed",
			zap.String("model", c.cfg.Model),
			zap.Error(err))
		return text.String(), fmt.Errorf("anthropic stream: %w", err)
	}

	return text.String(), nil
}

// toMessageParams converts thread history, merging consecutive turns of
// the same role as the API requires alternating roles
func toMessageParams(history []ports.ChatMessage) []anthropic.MessageParam {
	var (
		out      []anthropic.MessageParam
		lastRole domain.Role
		pending  []string
	)

	flush := func() {
		if len(pending) == 0 {
			return
		}
		block := anthropic.NewTextBlock(strings.Join(pending, "\n\n"))
		if lastRole == domain.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(block))
		} else {
			out = append(out, anthropic.NewUserMessage(block))
		}
		pending = nil
	}

	for _, m := range history {
		if m.Content == "" {
			continue
		}
		if m.Role != lastRole {
			flush()
			lastRole = m.Role
		}
		pending = append(pending, m.Content)
	}
	flush()

	return out
}
