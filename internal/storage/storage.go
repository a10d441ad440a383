package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Sree5835/dynamic-pricing/config"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// интерфейс, для того чтобы можно было запускать тесты
type DBPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
	Close()
}

// Querier is what the ingestion components need from a connection: a pool, a
// transaction or a savepoint all satisfy it. Begin on a pgx.Tx opens a savepoint.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Storage struct {
	pool   DBPool
	engine *Engine
}

func NewStorage(cfg *config.Storage) (*Storage, error) {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.DBUser,
		cfg.DBPassword,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		sslMode,
	)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("invalid connection settings: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	return &Storage{pool: pool, engine: NewEngine()}, nil
}

// NewWithPool wraps an existing pool; used by tests and by callers that manage the pool themselves.
func NewWithPool(pool DBPool) *Storage {
	return &Storage{pool: pool, engine: NewEngine()}
}

func (s *Storage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// InTx runs fn inside one transaction: commit if fn returns nil, rollback otherwise.
// One order's whole upsert graph goes through a single InTx call.
func (s *Storage) InTx(ctx context.Context, fn func(q Querier) error) (err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("error while starting transaction %w", err)
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				slog.Warn("failed to roll back transaction", "error", rbErr)
			}
		}
	}() // если возникла ошибка, во время выполнения транзакции - откат

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Storage) Upsert(ctx context.Context, q Querier, table string, row Row, keys []string) error {
	return s.engine.Upsert(ctx, q, table, row, keys)
}

func (s *Storage) UpsertReturning(ctx context.Context, q Querier, table string, row Row, keys []string, returning string) (int64, error) {
	return s.engine.UpsertReturning(ctx, q, table, row, keys, returning)
}
