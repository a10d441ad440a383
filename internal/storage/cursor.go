package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// GetCursor returns the saved position of a backfill; a cursor never saved is at 0.
func GetCursor(ctx context.Context, q Querier, name string) (int64, error) {
	var pos int64
	err := q.QueryRow(ctx, `SELECT position FROM ingest_cursors WHERE cursor_name = $1`, name).Scan(&pos)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read cursor %q: %w", name, err)
	}
	return pos, nil
}

// SaveCursor stores the position of the next order to process.
func SaveCursor(ctx context.Context, q Querier, name string, pos int64) error {
	_, err := q.Exec(ctx,
		`INSERT INTO ingest_cursors (cursor_name, position, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (cursor_name) DO UPDATE SET position = EXCLUDED.position, updated_at = EXCLUDED.updated_at`,
		name, pos,
	)
	if err != nil {
		return fmt.Errorf("failed to save cursor %q: %w", name, err)
	}
	return nil
}

func (s *Storage) GetCursor(ctx context.Context, name string) (int64, error) {
	return GetCursor(ctx, s.pool, name)
}

func (s *Storage) SaveCursor(ctx context.Context, name string, pos int64) error {
	return SaveCursor(ctx, s.pool, name, pos)
}

// SaveCursorTx advances the cursor inside the caller's transaction, so it moves together with the order it follows.
func (s *Storage) SaveCursorTx(ctx context.Context, q Querier, name string, pos int64) error {
	return SaveCursor(ctx, q, name, pos)
}
