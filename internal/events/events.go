// Package events relays outbox records written by checkout to Kafka.
package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// Record is a stored outbox event.
type Record struct {
	ID        int64
	EventID   string
	Topic     string
	Key       string
	Payload   json.RawMessage
	CreatedAt time.Time
}

// Outbox provides access to unsent events.
type Outbox interface {
	FetchPending(ctx context.Context, limit int) ([]Record, error)
	MarkSent(ctx context.Context, ids []int64) error
}

// Writer publishes messages. *kafka.Writer satisfies it.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// ParseBrokers splits a comma-separated broker list, dropping blanks.
func ParseBrokers(csv string) []string {
	var brokers []string
	for _, b := range strings.Split(csv, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// NewKafkaWriter returns a writer that routes each message to its own topic
// and partitions by key, so events of one user stay ordered.
func NewKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}
