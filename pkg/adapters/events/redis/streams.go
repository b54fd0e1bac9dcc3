package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aescanero/chatrelay/pkg/ports"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const streamKey = "chatrelay:updates"

// StreamsUpdateBus implements ports.UpdateBus using a Redis Stream.
// Subscribers read with XREAD rather than a consumer group so that every
// instance receives every update.
type StreamsUpdateBus struct {
	client redis.UniversalClient
	logger *zap.Logger
	maxLen int64
	block  time.Duration
}

// NewStreamsUpdateBus creates a new Redis Streams update bus. The stream
// is trimmed to roughly maxLen entries.
func NewStreamsUpdateBus(client redis.UniversalClient, maxLen int64, logger *zap.Logger) *StreamsUpdateBus {
	return &StreamsUpdateBus{
		client: client,
		logger: logger,
		maxLen: maxLen,
		block:  time.Second,
	}
}

// Publish appends an update to the stream
func (b *StreamsUpdateBus) Publish(ctx context.Context, update ports.Update) error {
	data, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("failed to marshal update: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: streamKey,
		MaxLen: b.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}

	id, err := b.client.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("failed to add to stream: %w", err)
	}

	b.logger.Debug("update published",
		zap.String("thread_id", update.ThreadID),
		zap.String("stream", streamKey),
		zap.String("message_id", id))

	return nil
}

// Subscribe delivers updates appended after the call until ctx is done
func (b *StreamsUpdateBus) Subscribe(ctx context.Context, handler ports.UpdateHandler) error {
	// Anchor at the current tail so that updates published between
	// Subscribe returning and the first XREAD are not lost.
	lastID := "0-0"
	last, err := b.client.XRevRangeN(ctx, streamKey, "+", "-", 1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to read stream tail: %w", err)
	}
	if len(last) > 0 {
		lastID = last[0].ID
	}

	b.logger.Info("subscribed to update stream",
		zap.String("stream", streamKey),
		zap.String("from", lastID))

	go b.readStream(ctx, lastID, handler)

	return nil
}

// readStream reads updates from the stream
func (b *StreamsUpdateBus) readStream(ctx context.Context, lastID string, handler ports.UpdateHandler) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		streams, err := b.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{streamKey, lastID},
			Count:   100,
			Block:   b.block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			b.logger.Error("failed to read from stream",
				zap.String("stream", streamKey),
				zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		for _, stream := range streams {
			for _, message := range stream.Messages {
				lastID = message.ID
				b.processMessage(ctx, message, handler)
			}
		}
	}
}

// processMessage decodes one stream entry and hands it to handler
func (b *StreamsUpdateBus) processMessage(ctx context.Context, message redis.XMessage, handler ports.UpdateHandler) {
	update, err := decodeMessage(message)
	if err != nil {
		b.logger.Error("invalid update message",
			zap.String("message_id", message.ID),
			zap.Error(err))
		return
	}

	if err := handler(ctx, update); err != nil {
		b.logger.Error("handler error",
			zap.String("message_id", message.ID),
			zap.Error(err))
	}
}

// Close is a no-op; the Redis client is closed by its owner
func (b *StreamsUpdateBus) Close() error {
	return nil
}

func decodeMessage(message redis.XMessage) (ports.Update, error) {
	var update ports.Update

	data, ok := message.Values["data"].(string)
	if !ok {
		return update, errors.New("missing data field")
	}
	if err := json.Unmarshal([]byte(data), &update); err != nil {
		return update, fmt.Errorf("failed to unmarshal update: %w", err)
	}

	return update, nil
}
