package service

import (
	"context"

	"github.com/Sree5835/dynamic-pricing/internal/storage"
)

// OrderStore is the part of storage the normalizer writes through.
type OrderStore interface {
	InTx(ctx context.Context, fn func(q storage.Querier) error) error
	Upsert(ctx context.Context, q storage.Querier, table string, row storage.Row, keys []string) error
	UpsertReturning(ctx context.Context, q storage.Querier, table string, row storage.Row, keys []string, returning string) (int64, error)
}

// PartnerResolver reads through q, the querier of the order's transaction.
type PartnerResolver interface {
	ResolvePartner(ctx context.Context, q storage.Querier, name string) (int64, error)
}

type CursorStore interface {
	GetCursor(ctx context.Context, name string) (int64, error)
	SaveCursor(ctx context.Context, name string, pos int64) error
	SaveCursorTx(ctx context.Context, q storage.Querier, name string, pos int64) error
}

// Store is everything the ingester needs; *storage.Storage implements it.
type Store interface {
	OrderStore
	PartnerResolver
	CursorStore
}
