// Package events fans committed-write notifications out to subscribers: SSE
// connections on this instance, sibling instances over Redis pub/sub, and an
// optional Kafka topic for downstream consumers. Delivery is best-effort and
// at-most-once; subscribers that need a consistent view refetch on connect.
package events

import (
	"context"

	"talenttrack/pkg/stream"
)

// Publisher accepts a notification for fan-out. Implementations must not
// block the caller; the recorder publishes after commit, outside its locks,
// and a slow subscriber must never stall a write.
type Publisher interface {
	Publish(ctx context.Context, n stream.Notification)
}

// Fanout forwards each notification to every publisher in order.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, n stream.Notification) {
	for _, p := range f {
		p.Publish(ctx, n)
	}
}

// Nop discards every notification.
type Nop struct{}

func (Nop) Publish(context.Context, stream.Notification) {}
