package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewClient(t *testing.T) {
	t.Run("echo", func(t *testing.T) {
		c, err := NewClient(&Config{Provider: "echo", Logger: zap.NewNop()})
		require.NoError(t, err)
		assert.NotNil(t, c)
	})

	t.Run("anthropic requires a key", func(t *testing.T) {
		_, err := NewClient(&Config{Provider: "anthropic", Logger: zap.NewNop()})
		assert.Error(t, err)
	})

	t.Run("anthropic", func(t *testing.T) {
		c, err := NewClient(&Config{Provider: "anthropic", APIKey: "k", Model: "m", MaxTokens: 10, Logger: zap.NewNop()})
		require.NoError(t, err)
		assert.NotNil(t, c)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := NewClient(&Config{Provider: "other"})
		assert.Error(t, err)
	})
}
