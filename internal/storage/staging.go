package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/Sree5835/dynamic-pricing/internal/entity"
	"github.com/google/uuid"
)

// StagingHandle identifies a staging relation cloned from Table.
type StagingHandle struct {
	Name  string
	Table string
}

// uniqueSuffix keeps concurrent staging of the same table apart; the table name alone collides.
func uniqueSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Stage creates a temporary clone of table (same columns, types, defaults and
// constraints) and loads exactly one row into it. The relation is dropped at
// commit at the latest, but callers must still Unstage it on every exit path.
func Stage(ctx context.Context, q Querier, table string, row Row) (StagingHandle, error) {
	cols := row.columns()
	if err := checkColumns(table, cols); err != nil {
		return StagingHandle{}, &entity.StorageError{Op: "stage", Table: table, Err: err}
	}
	return stage(ctx, q, &mergePlan{table: table, cols: cols, args: row.values(cols)})
}

func stage(ctx context.Context, q Querier, p *mergePlan) (StagingHandle, error) {
	h := StagingHandle{Name: "stg_" + p.table + "_" + uniqueSuffix(), Table: p.table}

	create := fmt.Sprintf("CREATE TEMP TABLE %s (LIKE %s INCLUDING ALL) ON COMMIT DROP", quote(h.Name), quote(p.table))
	if _, err := q.Exec(ctx, create); err != nil {
		return StagingHandle{}, &entity.StorageError{Op: "stage", Table: p.table, Err: err}
	}

	if _, err := q.Exec(ctx, p.stagingInsertSQL(h.Name), p.args...); err != nil {
		// таблица уже создана, хэндл возвращаем, чтобы вызывающий её убрал
		return h, &entity.StorageError{Op: "stage", Table: p.table, Err: err}
	}
	return h, nil
}

// Unstage drops the staging relation. Dropping an already-gone relation is not an error.
func Unstage(ctx context.Context, q Querier, h StagingHandle) error {
	if h.Name == "" {
		return nil
	}
	if !strings.HasPrefix(h.Name, "stg_"+h.Table+"_") {
		return &entity.StorageError{Op: "unstage", Table: h.Table, Err: fmt.Errorf("%q is not a staging relation", h.Name)}
	}
	if _, err := q.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", quote(h.Name))); err != nil {
		return &entity.StorageError{Op: "unstage", Table: h.Table, Err: err}
	}
	return nil
}
