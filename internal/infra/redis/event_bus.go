package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"medy-coop-service/internal/realtime"
)

// DefaultEventChannel is the pub/sub channel shared by every instance.
const DefaultEventChannel = "coop:events"

// EventBus implements realtime.Bus over Redis pub/sub.
type EventBus struct {
	client  *redis.Client
	channel string
	log     zerolog.Logger
}

func NewEventBus(client *redis.Client, channel string, log zerolog.Logger) *EventBus {
	if channel == "" {
		channel = DefaultEventChannel
	}
	return &EventBus{
		client:  client,
		channel: channel,
		log:     log.With().Str("component", "event_bus").Logger(),
	}
}

func (b *EventBus) Publish(ctx context.Context, msg realtime.BusMessage) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, raw).Err()
}

func (b *EventBus) StartForwarder(ctx context.Context, onMsg func(realtime.BusMessage)) error {
	if onMsg == nil {
		return fmt.Errorf("onMsg callback required")
	}
	sub := b.client.Subscribe(ctx, b.channel)

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				var msg realtime.BusMessage
				if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
					b.log.Warn().Err(err).Msg("bad event payload")
					continue
				}
				onMsg(msg)
			}
		}
	}()
	return nil
}

// Close is a no-op; the client is owned by the caller and subscriptions stop with their context.
func (b *EventBus) Close() error {
	return nil
}
