package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	id "talenttrack/pkg/domain"
	"talenttrack/pkg/stream"
)

// KafkaSink produces lifecycle notifications to a Kafka topic for downstream
// consumers. Records are keyed by employee ID so a partition preserves each
// employee's order; bulk notifications have no single employee and go
// unkeyed.
type KafkaSink struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewKafkaSink connects a producer to the brokers.
func NewKafkaSink(brokers []string, topic string, logger *slog.Logger) (*KafkaSink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaSink{client: client, topic: topic, logger: logger}, nil
}

// Publish produces asynchronously. A failed produce is logged and dropped;
// the write it describes has already committed.
func (k *KafkaSink) Publish(ctx context.Context, n stream.Notification) {
	value, err := json.Marshal(n)
	if err != nil {
		k.logger.Error("marshal notification for kafka", "error", err)
		return
	}

	record := &kgo.Record{Topic: k.topic, Value: value}
	if employeeID := notificationEmployeeID(n); !employeeID.IsNil() {
		record.Key = []byte(employeeID.String())
	}

	k.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			k.logger.Warn("produce notification to kafka", "error", err, "kind", n.Kind)
		}
	})
}

// Close flushes buffered records and releases the client.
func (k *KafkaSink) Close(ctx context.Context) error {
	defer k.client.Close()
	if err := k.client.Flush(ctx); err != nil {
		return fmt.Errorf("flush kafka producer: %w", err)
	}
	return nil
}

func notificationEmployeeID(n stream.Notification) id.EmployeeID {
	switch {
	case n.Employee != nil:
		return n.Employee.ID
	case !n.EmployeeID.IsNil():
		return n.EmployeeID
	default:
		return id.EmployeeID{}
	}
}
