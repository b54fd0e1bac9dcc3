package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aescanero/chatrelay/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateBusDeliversInOrder(t *testing.T) {
	bus := NewUpdateBus(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got []string
	require.NoError(t, bus.Subscribe(ctx, func(_ context.Context, u ports.Update) error {
		got = append(got, u.Data)
		return nil
	}))

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(ctx, ports.Update{ThreadID: "t", Data: fmt.Sprint(i)}))
	}
	assert.Equal(t, []string{"0", "1", "2", "3", "4"}, got)
}

func TestUpdateBusHandlerErrorsDoNotStopDelivery(t *testing.T) {
	bus := NewUpdateBus(nil)
	ctx := context.Background()

	calls := 0
	require.NoError(t, bus.Subscribe(ctx, func(context.Context, ports.Update) error {
		calls++
		return errors.New("nope")
	}))
	require.NoError(t, bus.Subscribe(ctx, func(context.Context, ports.Update) error {
		calls++
		return nil
	}))

	require.NoError(t, bus.Publish(ctx, ports.Update{ThreadID: "t"}))
	assert.Equal(t, 2, calls)
}

func TestUpdateBusUnsubscribesOnCancel(t *testing.T) {
	bus := NewUpdateBus(nil)
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	require.NoError(t, bus.Subscribe(ctx, func(context.Context, ports.Update) error {
		calls++
		return nil
	}))
	cancel()

	assert.Eventually(t, func() bool {
		bus.mu.RLock()
		defer bus.mu.RUnlock()
		return len(bus.subscribers) == 0
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, bus.Publish(context.Background(), ports.Update{ThreadID: "t"}))
	assert.Equal(t, 0, calls)
}
