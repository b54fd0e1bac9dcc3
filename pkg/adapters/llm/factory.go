package llm

import (
	"fmt"

	"github.com/aescanero/chatrelay/pkg/adapters/llm/anthropic"
	"github.com/aescanero/chatrelay/pkg/adapters/llm/echo"
	"github.com/aescanero/chatrelay/pkg/ports"
	"go.uber.org/zap"
)

// Config holds LLM client configuration
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	MaxTokens   int64
	Temperature float64
	Logger      *zap.Logger
}

// NewClient creates a new LLM client based on provider
func NewClient(cfg *Config) (ports.LLMClient, error) {
	switch cfg.Provider {
	case "anthropic":
		return anthropic.NewClient(&anthropic.Config{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
		}, cfg.Logger)
	case "echo":
		return echo.NewClient(), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
