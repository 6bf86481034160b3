package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/storefront/internal/payment/application"
	"github.com/dmehra2102/storefront/internal/payment/domain"
	"github.com/dmehra2102/storefront/pkg/idempotency"
	"github.com/dmehra2102/storefront/pkg/tracing"
)

// Reader is the part of *kafka.Reader the consumer uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func NewReader(brokers []string, topic, group string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
}

type Consumer struct {
	log    *slog.Logger
	reader Reader
	svc    *application.Service
	idem   *idempotency.Store
	tracer trace.Tracer
}

// NewConsumer builds a consumer. A nil idem disables offset dedupe.
func NewConsumer(log *slog.Logger, reader Reader, svc *application.Service, idem *idempotency.Store) *Consumer {
	return &Consumer{
		log:    log,
		reader: reader,
		svc:    svc,
		idem:   idem,
		tracer: otel.Tracer("payment-consumer"),
	}
}

// Run consumes until ctx is cancelled. Every fetched message is committed,
// including ones that fail to apply; failures are logged.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		c.handle(ctx, msg)
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.log.Error("commit failed", "topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "err", err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	if c.idem != nil {
		key := c.idem.Key(msg.Topic, msg.Partition, msg.Offset)
		seen, err := c.idem.Seen(ctx, key)
		if err != nil {
			c.log.Error("idempotency check failed", "key", key, "err", err)
		}
		if seen {
			c.log.Info("duplicate message skipped", "key", key)
			return
		}
	}

	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "ConsumePaymentNotification")
	defer span.End()

	var n domain.Notification
	if err := json.Unmarshal(msg.Value, &n); err != nil {
		c.log.Error("unmarshal failed", "offset", msg.Offset, "err", err)
		span.SetStatus(codes.Error, "malformed message")
		return
	}
	span.SetAttributes(attribute.String("order.id", n.OrderID))

	if err := c.svc.Apply(msgCtx, n); err != nil {
		c.log.Error("payment notification failed", "order_id", n.OrderID, "err", err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
}
