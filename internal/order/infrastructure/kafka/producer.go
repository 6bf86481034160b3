package kafka

import (
	"time"

	"github.com/segmentio/kafka-go"
)

// Writer publishes order events to a single topic. Messages are hashed on
// their key, the order id, so one order's events keep their order.
type Writer struct {
	*kafka.Writer
}

// NewWriter flushes each write almost immediately; the outbox relay writes
// one event at a time and waits for every replica.
func NewWriter(brokers []string, topic string) *Writer {
	return &Writer{
		Writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			BatchTimeout:           10 * time.Millisecond,
			WriteTimeout:           10 * time.Second,
		},
	}
}
