package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Sree5835/dynamic-pricing/config"
	"github.com/Sree5835/dynamic-pricing/internal/entity"
	"github.com/Sree5835/dynamic-pricing/internal/service"
	"github.com/segmentio/kafka-go"
)

type EventHandler interface {
	HandleWebhookEvent(ctx context.Context, ev *entity.WebhookEvent) (service.Outcome, int64, error) // Интерфейс для вызова из service
}

// messageReader is the part of *kafka.Reader the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConsumer runs several readers of one consumer group; each reader is a
// worker that handles its partitions one message at a time.
type KafkaConsumer struct {
	readers    []messageReader
	handler    EventHandler
	maxRetries int
	backoff    time.Duration
}

func NewKafkaConsumer(cfg config.Kafka, handler EventHandler) *KafkaConsumer {
	n := max(cfg.ConsumerNumber, 1)
	readers := make([]messageReader, 0, n)
	for i := 0; i < n; i++ {
		readers = append(readers, kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers, // e.g. "localhost:9092" брокеры, которые подключены к кластеру
			Topic:    cfg.Topic,   // "orders"
			GroupID:  cfg.GroupID, // все воркеры в одной группе делят партиции
			MaxBytes: 10e6,        // 10MB
		}))
	}
	return newConsumer(readers, handler, cfg.MaxRetries, cfg.RetryBackoff)
}

func newConsumer(readers []messageReader, handler EventHandler, maxRetries int, backoff time.Duration) *KafkaConsumer {
	return &KafkaConsumer{readers: readers, handler: handler, maxRetries: max(maxRetries, 0), backoff: backoff}
}

// Run blocks until ctx is done or a worker gives up. A worker gives up when an
// event keeps failing with a non-permanent error: its offset stays uncommitted,
// so the group redelivers it after restart.
func (c *KafkaConsumer) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	for i, r := range c.readers {
		wg.Add(1)
		go func(worker int, r messageReader) {
			defer wg.Done()
			if err := c.consume(ctx, worker, r); err != nil {
				once.Do(func() {
					firstErr = err
					cancel() // остальные воркеры тоже останавливаем
				})
			}
		}(i, r)
	}
	wg.Wait()
	return firstErr
}

func (c *KafkaConsumer) consume(ctx context.Context, worker int, r messageReader) error {
	slog.Info("Kafka worker started", "worker", worker)
	for {
		msg, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to read message: %w", err)
		}

		if err := c.process(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("worker %d gave up on offset %d of partition %d: %w", worker, msg.Offset, msg.Partition, err)
		}

		if err := r.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to commit message: %w", err)
		}
	}
}

// process returns nil when the message may be committed: it was ingested,
// skipped, or can never succeed.
func (c *KafkaConsumer) process(ctx context.Context, msg kafka.Message) error {
	var ev entity.WebhookEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		slog.Error("failed to parse webhook event JSON", "offset", msg.Offset, "error", err)
		return nil // Пропускаем некорректное сообщение, предварительно логируя
	}
	orderID := ev.Body.Order.ID

	var err error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoff * time.Duration(attempt)):
			}
		}

		var outcome service.Outcome
		outcome, _, err = c.handler.HandleWebhookEvent(ctx, &ev)
		if err == nil {
			if outcome == service.OutcomeIngested {
				slog.Info("Order processed from Kafka", "platform_order_id", orderID)
			}
			return nil
		}
		if entity.IsPermanent(err) {
			slog.Error("dropping event that can never be ingested", "platform_order_id", orderID, "error", err)
			return nil
		}
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return err
		}
		slog.Warn("failed to ingest order, will retry", "platform_order_id", orderID, "attempt", attempt+1, "error", err)
	}
	return err
}

func (c *KafkaConsumer) Close() error {
	var errs []error
	for _, r := range c.readers {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
