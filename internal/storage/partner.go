package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sree5835/dynamic-pricing/internal/entity"
	"github.com/jackc/pgx/v5"
)

// ResolvePartner looks a partner up by exact name. Partners are seeded by
// InitSchema and never created here.
func ResolvePartner(ctx context.Context, q Querier, name string) (int64, error) {
	var id int64
	err := q.QueryRow(ctx, `SELECT partner_id FROM partners WHERE partner_name = $1`, name).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, &entity.UnknownPartnerError{Name: name}
	}
	if err != nil {
		return 0, fmt.Errorf("failed to resolve partner %q: %w", name, err)
	}
	return id, nil
}

// ResolvePartner reads through q when given (the order's transaction), the pool otherwise.
func (s *Storage) ResolvePartner(ctx context.Context, q Querier, name string) (int64, error) {
	if q == nil {
		q = s.pool
	}
	return ResolvePartner(ctx, q, name)
}

// ListPartners returns the seeded partner names.
func (s *Storage) ListPartners(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT partner_name FROM partners ORDER BY partner_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query partners: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		names = append(names, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return names, nil
}
