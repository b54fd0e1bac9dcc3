package echo

import (
	"context"
	"errors"
	"testing"

	"github.com/aescanero/chatrelay/pkg/domain"
	"github.com/aescanero/chatrelay/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStream(t *testing.T) {
	var deltas []string
	text, err := NewClient().Stream(context.Background(), ports.CompletionRequest{
		Messages: []ports.ChatMessage{
			{Role: domain.RoleUser, Content: "first"},
			{Role: domain.RoleAssistant, Content: "ok"},
			{Role: domain.RoleUser, Content: "change my seat"},
		},
	}, func(d string) error {
		deltas = append(deltas, d)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, "You said: change my seat", text)
	assert.Equal(t, []string{"You", " said:", " change", " my", " seat"}, deltas)
}

func TestStreamStopsOnCallbackError(t *testing.T) {
	stop := errors.New("stop")
	text, err := NewClient().Stream(context.Background(), ports.CompletionRequest{}, func(string) error {
		return stop
	})

	assert.ErrorIs(t, err, stop)
	assert.Equal(t, "How", text)
}
