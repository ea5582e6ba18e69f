package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	catalog "github.com/dmehra2102/pos-order-engine/internal/catalog/domain"
	inventory "github.com/dmehra2102/pos-order-engine/internal/inventory/domain"
	"github.com/dmehra2102/pos-order-engine/pkg/outbox"
	"github.com/dmehra2102/pos-order-engine/pkg/tracing"
)

// Refresher is the catalog service seen from the consumer.
type Refresher interface {
	Refresh(ctx context.Context, ids ...catalog.ProductID)
	LowStock(ctx context.Context, id catalog.ProductID)
}

// Deduper reports whether a record was already handled.
type Deduper interface {
	Key(topic string, partition int, offset int64) string
	Seen(ctx context.Context, key string) (bool, error)
}

type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer turns stock events from any service instance into catalog cache
// invalidation and station refresh notices.
type Consumer struct {
	log     *slog.Logger
	reader  Reader
	catalog Refresher
	idem    Deduper
	tracer  trace.Tracer
}

func NewReader(brokers []string, topic, group string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
}

func NewConsumer(log *slog.Logger, reader Reader, refresher Refresher, idem Deduper) *Consumer {
	return &Consumer{
		log:     log,
		reader:  reader,
		catalog: refresher,
		idem:    idem,
		tracer:  otel.Tracer("catalog-consumer"),
	}
}

func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		c.handle(ctx, msg)
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.log.Error("commit offset failed", "offset", msg.Offset, "err", err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	if c.idem != nil {
		key := c.idem.Key(msg.Topic, msg.Partition, msg.Offset)
		seen, err := c.idem.Seen(ctx, key)
		if err != nil {
			// refreshes are idempotent, so handle it anyway
			c.log.Warn("idempotency check failed", "key", key, "err", err)
		} else if seen {
			c.log.Debug("duplicate message skipped", "key", key)
			return
		}
	}

	eventType := headerValue(msg.Headers, outbox.EventTypeHeader)
	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "Consume"+eventType, trace.WithAttributes(attribute.String("event_type", eventType)))
	defer span.End()

	switch eventType {
	case inventory.EventStockCommitted:
		var ev inventory.StockCommitted
		if !c.decode(msg, &ev) {
			return
		}
		ids := make([]catalog.ProductID, 0, len(ev.Remaining))
		for id := range ev.Remaining {
			ids = append(ids, id)
		}
		c.catalog.Refresh(msgCtx, ids...)
	case inventory.EventStockAdjusted:
		var ev inventory.StockAdjusted
		if !c.decode(msg, &ev) {
			return
		}
		c.catalog.Refresh(msgCtx, ev.ProductID)
	case inventory.EventLowStock:
		var ev inventory.LowStock
		if !c.decode(msg, &ev) {
			return
		}
		c.log.Warn("product stock low", "product_id", ev.ProductID, "available", ev.Available, "threshold", ev.Threshold)
		c.catalog.LowStock(msgCtx, ev.ProductID)
	}
}

func (c *Consumer) decode(msg kafka.Message, v any) bool {
	if err := json.Unmarshal(msg.Value, v); err != nil {
		c.log.Error("unmarshal failed", "offset", msg.Offset, "err", err)
		return false
	}
	return true
}

func headerValue(h []kafka.Header, key string) string {
	for _, hh := range h {
		if hh.Key == key {
			return string(hh.Value)
		}
	}
	return ""
}
