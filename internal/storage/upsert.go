package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/Sree5835/dynamic-pricing/internal/entity"
	"github.com/jackc/pgx/v5"
)

const uniqueIndexQuery = `SELECT EXISTS (
	SELECT 1 FROM pg_index i
	WHERE i.indrelid = $1::regclass
	  AND i.indisunique
	  AND i.indpred IS NULL
	  AND (SELECT array_agg(a.attname::text ORDER BY a.attname::text)
	         FROM pg_attribute a
	        WHERE a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)) = $2::text[]
)`

// Engine performs insert-or-update by natural key through a staging relation.
type Engine struct {
	// tables whose key columns are known to be covered by a permanent unique index
	uniqueKnown sync.Map
}

func NewEngine() *Engine {
	return &Engine{}
}

// Upsert merges row into table keyed on keys.
func (e *Engine) Upsert(ctx context.Context, q Querier, table string, row Row, keys []string) error {
	_, err := e.upsert(ctx, q, table, row, keys, "")
	return err
}

// UpsertReturning merges row into table and returns the value of returning for the resulting row.
func (e *Engine) UpsertReturning(ctx context.Context, q Querier, table string, row Row, keys []string, returning string) (int64, error) {
	if returning == "" {
		return 0, &entity.StorageError{Op: "plan", Table: table, Err: errors.New("returning column is required")}
	}
	return e.upsert(ctx, q, table, row, keys, returning)
}

// upsert runs stage -> ensure unique -> merge -> cleanup inside a savepoint,
// so a failure at any step leaves the target table as it was.
func (e *Engine) upsert(ctx context.Context, q Querier, table string, row Row, keys []string, returning string) (int64, error) {
	plan, err := newMergePlan(table, row, keys, returning)
	if err != nil {
		return 0, &entity.StorageError{Op: "plan", Table: table, Err: err}
	}

	sp, err := q.Begin(ctx)
	if err != nil {
		return 0, &entity.StorageError{Op: "savepoint", Table: table, Err: err}
	}

	id, h, err := e.mergeStaged(ctx, sp, plan)
	if err != nil {
		if rbErr := sp.Rollback(ctx); rbErr != nil {
			slog.Warn("failed to roll back upsert savepoint", "table", table, "error", rbErr)
		}
		// откат уже убрал временную таблицу, DROP IF EXISTS тут на всякий случай
		if uErr := Unstage(ctx, q, h); uErr != nil {
			slog.Warn("failed to drop staging table", "table", table, "staging", h.Name, "error", uErr)
		}
		return 0, err
	}

	if err := sp.Commit(ctx); err != nil {
		return 0, &entity.StorageError{Op: "release savepoint", Table: table, Err: err}
	}
	return id, nil
}

// mergeStaged returns the staging handle on failure so the caller can clean it up.
func (e *Engine) mergeStaged(ctx context.Context, sp Querier, plan *mergePlan) (int64, StagingHandle, error) {
	h, err := stage(ctx, sp, plan)
	if err != nil {
		return 0, h, err
	}

	constraint, err := e.ensureUnique(ctx, sp, plan)
	if err != nil {
		return 0, h, err
	}

	id, err := e.merge(ctx, sp, plan, h)
	if err != nil {
		return 0, h, err
	}

	if constraint != "" {
		drop := fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s", quote(plan.table), quote(constraint))
		if _, err := sp.Exec(ctx, drop); err != nil {
			return 0, h, &entity.StorageError{Op: "drop constraint", Table: plan.table, Err: err}
		}
	}

	if err := Unstage(ctx, sp, h); err != nil {
		return 0, h, err
	}
	return id, StagingHandle{}, nil
}

func (e *Engine) merge(ctx context.Context, q Querier, plan *mergePlan, h StagingHandle) (int64, error) {
	stmt := plan.mergeSQL(h.Name)

	if plan.returning == "" {
		if _, err := q.Exec(ctx, stmt); err != nil {
			return 0, &entity.StorageError{Op: "merge", Table: plan.table, Err: err}
		}
		return 0, nil
	}

	var id int64
	err := q.QueryRow(ctx, stmt).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) && plan.keyOnly() {
		// DO NOTHING returns nothing on conflict, the row already exists
		lookup, args := plan.lookupSQL()
		err = q.QueryRow(ctx, lookup, args...).Scan(&id)
	}
	if err != nil {
		return 0, &entity.StorageError{Op: "merge", Table: plan.table, Err: err}
	}
	return id, nil
}

// ensureUnique makes sure ON CONFLICT has a unique index to infer. When the
// schema has none for the key columns a temporary constraint is added inside
// the savepoint; its name is returned so the caller drops it after the merge.
func (e *Engine) ensureUnique(ctx context.Context, q Querier, plan *mergePlan) (string, error) {
	cacheKey := plan.table + "(" + strings.Join(plan.keys, ",") + ")"
	if _, ok := e.uniqueKnown.Load(cacheKey); ok {
		return "", nil
	}

	var exists bool
	if err := q.QueryRow(ctx, uniqueIndexQuery, plan.table, plan.keys).Scan(&exists); err != nil {
		return "", &entity.StorageError{Op: "inspect constraints", Table: plan.table, Err: err}
	}
	if exists {
		e.uniqueKnown.Store(cacheKey, struct{}{})
		return "", nil
	}

	name := "tmp_uq_" + plan.table + "_" + uniqueSuffix()
	add := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s UNIQUE (%s)", quote(plan.table), quote(name), quoteAll(plan.keys))
	if _, err := q.Exec(ctx, add); err != nil {
		return "", &entity.StorageError{Op: "add constraint", Table: plan.table, Err: err}
	}
	return name, nil
}
