package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	platformredis "talenttrack/internal/platform/redis"
	"talenttrack/pkg/stream"
)

// envelope wraps a notification for the Redis channel. Origin lets every
// instance skip the messages it published itself.
type envelope struct {
	Origin       string              `json:"origin"`
	Notification stream.Notification `json:"notification"`
}

// RedisBridge mirrors notifications across instances through a Redis pub/sub
// channel. Publish delivers locally through the hub and then to the channel;
// Run pumps remote messages back into the hub.
type RedisBridge struct {
	hub     *Hub
	client  *platformredis.Client
	channel string
	origin  string
	logger  *slog.Logger
}

// NewRedisBridge wires a hub to a Redis channel.
func NewRedisBridge(client *platformredis.Client, channel string, hub *Hub, logger *slog.Logger) *RedisBridge {
	return &RedisBridge{
		hub:     hub,
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		logger:  logger,
	}
}

// Publish fans out locally, then mirrors to siblings. A Redis failure is
// logged and swallowed: local subscribers already have the notification and
// delivery is at-most-once everywhere.
func (b *RedisBridge) Publish(ctx context.Context, n stream.Notification) {
	b.hub.Publish(ctx, n)

	payload, err := json.Marshal(envelope{Origin: b.origin, Notification: n})
	if err != nil {
		b.logger.Error("marshal notification envelope", "error", err)
		return
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		b.logger.Warn("mirror notification to redis", "error", err, "kind", n.Kind)
	}
}

// Run subscribes to the channel and replays sibling notifications into the
// local hub until the context is cancelled.
func (b *RedisBridge) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.logger.Warn("discard malformed notification envelope", "error", err)
				continue
			}
			if env.Origin == b.origin {
				continue
			}
			b.hub.Publish(ctx, env.Notification)
		}
	}
}
