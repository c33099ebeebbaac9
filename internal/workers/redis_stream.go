package workers

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	go_redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/open-builders/exmatrikulator-bot/internal/domain/chat"
	"github.com/open-builders/exmatrikulator-bot/internal/platform/redis"
	"github.com/open-builders/exmatrikulator-bot/internal/platform/telegram"
)

const (
	UpdateStreamKey = "bot:updates"
	UpdateField     = "update"
	consumerGroup   = "exmatrikulator_consumers"
)

// UpdateStreamWorker reads raw Bot API updates that a gateway appends to a
// Redis stream and feeds them into the event channel.
type UpdateStreamWorker struct {
	rdb      *redis.Client
	consumer string
	block    time.Duration
}

func NewUpdateStreamWorker(rdb *redis.Client, consumer string) *UpdateStreamWorker {
	if consumer == "" {
		consumer = "exmatrikulator_worker_1"
	}
	return &UpdateStreamWorker{rdb: rdb, consumer: consumer, block: 5 * time.Second}
}

// Run consumes the stream until ctx is cancelled. Entries are acknowledged once
// handed to out, malformed ones right away.
func (w *UpdateStreamWorker) Run(ctx context.Context, out chan<- chat.Event) error {
	logger := zerolog.Ctx(ctx).With().Str("component", "update_stream").Logger()

	err := w.rdb.XGroupCreateMkStream(ctx, UpdateStreamKey, consumerGroup, "$").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		logger.Error().Err(err).Msg("Error creating consumer group")
	}

	logger.Info().Str("stream", UpdateStreamKey).Str("consumer", w.consumer).Msg("Starting Redis stream worker")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Stopping Redis stream worker")
			return ctx.Err()
		default:
		}

		entries, err := w.rdb.XReadGroup(ctx, &go_redis.XReadGroupArgs{
			Group:    consumerGroup,
			Consumer: w.consumer,
			Streams:  []string{UpdateStreamKey, ">"},
			Count:    10,
			Block:    w.block,
		}).Result()
		if err != nil {
			if errors.Is(err, go_redis.Nil) || ctx.Err() != nil {
				continue
			}
			logger.Error().Err(err).Msg("Error reading from stream")
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}

		for _, stream := range entries {
			for _, msg := range stream.Messages {
				ev, err := decodeStreamUpdate(msg.Values)
				if err != nil {
					logger.Warn().Err(err).Str("entry", msg.ID).Msg("Dropping malformed stream entry")
				} else {
					select {
					case out <- ev:
					case <-ctx.Done():
						return ctx.Err()
					}
				}
				if err := w.rdb.XAck(ctx, UpdateStreamKey, consumerGroup, msg.ID).Err(); err != nil {
					logger.Error().Err(err).Str("entry", msg.ID).Msg("Error acknowledging stream entry")
				}
			}
		}
	}
}

func decodeStreamUpdate(values map[string]interface{}) (chat.Event, error) {
	raw, ok := values[UpdateField].(string)
	if !ok {
		return nil, errors.New("entry has no update field")
	}
	var u telegram.Update
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, err
	}
	return u.Event(), nil
}
