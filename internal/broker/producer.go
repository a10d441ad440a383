package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Sree5835/dynamic-pricing/config"
	"github.com/Sree5835/dynamic-pricing/internal/entity"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer relays webhook events to the orders topic. Messages are keyed by
// the platform order id so every event of one order lands on one partition
// and is ingested in order.
type Producer struct {
	writer messageWriter
}

func NewProducer(cfg config.Kafka) *Producer {
	return &Producer{writer: &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers...),
		Topic:    cfg.Topic,
		Balancer: &kafka.Hash{},
	}}
}

// Publish sends raw webhook envelopes. Each one must decode as an event with an order id.
func (p *Producer) Publish(ctx context.Context, events ...[]byte) error {
	msgs := make([]kafka.Message, 0, len(events))
	for i, raw := range events {
		var ev entity.WebhookEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return fmt.Errorf("event %d is not valid JSON: %w", i, err)
		}
		if ev.Body.Order.ID == "" {
			return fmt.Errorf("event %d has no body.order.id", i)
		}
		msgs = append(msgs, kafka.Message{Key: []byte(ev.Body.Order.ID), Value: raw})
	}
	if len(msgs) == 0 {
		return nil
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to write: %w", err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
