package storage

import (
	"context"
	"fmt"

	"github.com/Sree5835/dynamic-pricing/internal/entity"
	"github.com/jackc/pgx/v5"
)

// OrderRowColumns is the column order of the bulk-load view, also used as the export header.
var OrderRowColumns = []string{
	"order_id", "platform_order_id", "platform_order_number", "order_status",
	"order_placed_timestamp", "order_updated_timestamp", "order_prepare_for_timestamp",
	"order_start_prepping_at_timestamp", "customer_id", "first_name", "contact_number",
	"contact_access_code", "partner_id", "partner_name", "item_id", "platform_item_id",
	"item_name", "item_operational_name", "item_fractional_cost", "item_quantity",
	"item_fractional_price", "modifier_id", "platform_modifier_id", "modifier_name",
	"modifier_operational_name", "modifier_quantity", "modifier_fractional_price",
}

const loadOrdersQuery = `
	SELECT
		o.order_id, o.platform_order_id, o.platform_order_number, o.order_status,
		o.order_placed_timestamp, o.order_updated_timestamp, o.order_prepare_for_timestamp,
		o.order_start_prepping_at_timestamp, o.customer_id, c.first_name, c.contact_number,
		c.contact_access_code, p.partner_id, p.partner_name, i.item_id, i.platform_item_id,
		i.item_name, i.item_operational_name, i.item_fractional_cost, oi.quantity AS item_quantity,
		oi.fractional_price AS item_fractional_price, m.modifier_id, m.platform_modifier_id, m.modifier_name,
		m.modifier_operational_name, oim.quantity AS modifier_quantity, oim.fractional_price AS modifier_fractional_price
	FROM orders o
	JOIN partners p ON o.partner_id = p.partner_id
	LEFT JOIN customers c ON o.customer_id = c.customer_id
	LEFT JOIN order_items oi ON o.order_id = oi.order_id
	LEFT JOIN items i ON oi.item_id = i.item_id
	LEFT JOIN order_item_modifiers oim ON oi.order_id = oim.order_id AND oi.item_id = oim.item_id
	LEFT JOIN modifiers m ON oim.modifier_id = m.modifier_id
	WHERE p.partner_name = $1
	ORDER BY o.order_id, i.item_id, m.modifier_id
	`

// LoadOrders returns one row per (order, item, modifier) for the partner's orders.
// An item without modifiers yields one row with nil modifier columns.
func LoadOrders(ctx context.Context, q Querier, partnerName string) ([]entity.OrderRow, error) {
	rows, err := q.Query(ctx, loadOrdersQuery, partnerName)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders of %q: %w", partnerName, err)
	}
	defer rows.Close()

	var out []entity.OrderRow
	for rows.Next() {
		var r entity.OrderRow
		if err := scanOrderRow(rows, &r); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return out, nil
}

func (s *Storage) LoadOrders(ctx context.Context, partnerName string) ([]entity.OrderRow, error) {
	return LoadOrders(ctx, s.pool, partnerName)
}

func scanOrderRow(rows pgx.Rows, r *entity.OrderRow) error {
	return rows.Scan(
		&r.OrderID, &r.PlatformOrderID, &r.PlatformOrderNumber, &r.OrderStatus,
		&r.OrderPlacedAt, &r.OrderUpdatedAt, &r.OrderPrepareForAt,
		&r.OrderStartPreppingAt, &r.CustomerID, &r.FirstName, &r.ContactNumber,
		&r.ContactAccessCode, &r.PartnerID, &r.PartnerName, &r.ItemID, &r.PlatformItemID,
		&r.ItemName, &r.ItemOperationalName, &r.ItemFractionalCost, &r.ItemQuantity,
		&r.ItemFractionalPrice, &r.ModifierID, &r.PlatformModifierID, &r.ModifierName,
		&r.ModifierOperationalName, &r.ModifierQuantity, &r.ModifierFractionalPrice,
	)
}
