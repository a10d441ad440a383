// пакет сервис реализует слой бизнес логики: приём заказов и догрузку истории

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Sree5835/dynamic-pricing/internal/entity"
	"github.com/Sree5835/dynamic-pricing/internal/storage"
)

const defaultOrderTimeout = 30 * time.Second

// Ingester owns the transaction around each order and the backfill cursor.
type Ingester struct {
	store        Store
	normalizer   *Normalizer
	orderTimeout time.Duration
}

func NewIngester(store Store, normalizer *Normalizer, orderTimeout time.Duration) *Ingester {
	if orderTimeout <= 0 {
		orderTimeout = defaultOrderTimeout
	}
	return &Ingester{store: store, normalizer: normalizer, orderTimeout: orderTimeout}
}

// Outcome says what HandleWebhookEvent did with an event.
type Outcome int

const (
	OutcomeIngested Outcome = iota
	OutcomeSkipped
)

// HandleWebhookEvent applies the delivery-platform rules to one event in this
// order: the envelope must name its event, a rejected order is acknowledged, every item must carry a
// pos_item_id, a canceled order is acknowledged, anything else is ingested.
func (g *Ingester) HandleWebhookEvent(ctx context.Context, ev *entity.WebhookEvent) (Outcome, int64, error) {
	if err := ev.Check(); err != nil {
		return OutcomeSkipped, 0, err
	}
	o := &ev.Body.Order
	if o.Status == entity.StatusRejected {
		slog.Info("Order not ingested", "platform_order_id", o.ID, "status", o.Status, "event", ev.Event)
		return OutcomeSkipped, 0, nil
	}

	for i, it := range o.Items {
		if it.PlatformID() == "" {
			return OutcomeSkipped, 0, &entity.MalformedPayloadError{
				OrderID: o.ID,
				Field:   fmt.Sprintf("items[%d].pos_item_id", i),
				Err:     entity.ErrPosItemIDNotFound,
			}
		}
	}

	// отменённый заказ проверяется уже после pos_item_id
	if o.Status == entity.StatusCanceled {
		slog.Info("Order not ingested", "platform_order_id", o.ID, "status", o.Status, "event", ev.Event)
		return OutcomeSkipped, 0, nil
	}

	id, err := g.IngestWebhook(ctx, o)
	if err != nil {
		return OutcomeSkipped, 0, err
	}
	return OutcomeIngested, id, nil
}

// IngestWebhook ingests a webhook order in its own transaction.
func (g *Ingester) IngestWebhook(ctx context.Context, o *entity.OrderPayload) (int64, error) {
	return g.ingest(ctx, o.PartnerName(), o, entity.SourceWebhook, nil)
}

// IngestHistorical ingests one re-fetched order of partnerName in its own transaction.
func (g *Ingester) IngestHistorical(ctx context.Context, partnerName string, o *entity.OrderPayload) (int64, error) {
	return g.ingest(ctx, partnerName, o, entity.SourceHistoricalImport, nil)
}

// ingest runs the normalizer under the per-order timeout; after, if set, runs in the same transaction.
func (g *Ingester) ingest(ctx context.Context, partnerName string, o *entity.OrderPayload, src entity.Source,
	after func(ctx context.Context, q storage.Querier) error) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, g.orderTimeout)
	defer cancel()

	var orderID int64
	err := g.store.InTx(ctx, func(q storage.Querier) error {
		id, err := g.normalizer.IngestOrder(ctx, q, partnerName, o, src)
		if err != nil {
			return err
		}
		if after != nil {
			if err := after(ctx, q); err != nil {
				return err
			}
		}
		orderID = id
		return nil
	})
	if err != nil {
		return 0, err
	}

	slog.Info("Order successfully saved to database",
		"platform_order_id", o.ID, "order_id", orderID, "source", src.String(), "partner", partnerName)
	return orderID, nil
}

// BackfillOptions tune one backfill run.
type BackfillOptions struct {
	// CursorName defaults to "backfill:<partner>".
	CursorName string
	// Offset, when set, overrides the saved cursor.
	Offset *int64
}

type BackfillFailure struct {
	Position int64
	OrderID  string
	Err      error
}

type BackfillResult struct {
	Start    int64
	Next     int64
	Ingested int
	Failures []BackfillFailure
}

// decodeHistorical decodes one raw historical order. A decode error is a
// MalformedPayloadError carrying whatever id could still be read.
func decodeHistorical(raw json.RawMessage) (*entity.OrderPayload, error) {
	var o entity.OrderPayload
	if err := json.Unmarshal(raw, &o); err != nil {
		var head struct {
			ID string `json:"id"`
		}
		_ = json.Unmarshal(raw, &head)
		return nil, &entity.MalformedPayloadError{OrderID: head.ID, Field: "payload", Err: err}
	}
	return &o, nil
}

// Backfill ingests orders of partnerName one at a time starting from the saved
// cursor. Each element is decoded on its own, so a failing order (bad JSON
// included) is logged and skipped; the cursor moves past it either way, so an
// interrupted run resumes where it stopped.
func (g *Ingester) Backfill(ctx context.Context, partnerName string, orders []json.RawMessage, opts BackfillOptions) (BackfillResult, error) {
	cursor := opts.CursorName
	if cursor == "" {
		cursor = "backfill:" + partnerName
	}

	var start int64
	if opts.Offset != nil {
		start = *opts.Offset
	} else {
		pos, err := g.store.GetCursor(ctx, cursor)
		if err != nil {
			return BackfillResult{}, fmt.Errorf("failed to read backfill cursor: %w", err)
		}
		start = pos
	}
	if start < 0 {
		start = 0
	}

	res := BackfillResult{Start: start, Next: start}
	slog.Info("Backfill started", "partner", partnerName, "cursor", cursor, "start", start, "total", len(orders))

	for i := start; i < int64(len(orders)); i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		next := i + 1

		o, err := decodeHistorical(orders[i])
		orderID := ""
		if o != nil {
			orderID = o.ID
			_, err = g.ingest(ctx, partnerName, o, entity.SourceHistoricalImport, func(ctx context.Context, q storage.Querier) error {
				return g.store.SaveCursorTx(ctx, q, cursor, next)
			})
		} else {
			var mp *entity.MalformedPayloadError
			if errors.As(err, &mp) {
				orderID = mp.OrderID
			}
		}
		if err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return res, ctx.Err()
			}
			slog.Error("failed to ingest historical order",
				"platform_order_id", orderID, "position", i, "partner", partnerName, "error", err)
			res.Failures = append(res.Failures, BackfillFailure{Position: i, OrderID: orderID, Err: err})

			if err := g.store.SaveCursor(ctx, cursor, next); err != nil {
				return res, fmt.Errorf("failed to advance backfill cursor: %w", err)
			}
		} else {
			res.Ingested++
		}
		res.Next = next
	}

	slog.Info("Backfill finished",
		"partner", partnerName, "ingested", res.Ingested, "failed", len(res.Failures), "next", res.Next)
	return res, nil
}
