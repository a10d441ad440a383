package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Sree5835/dynamic-pricing/internal/entity"
)

const (
	TableCustomers          = "customers"
	TablePartners           = "partners"
	TableItems              = "items"
	TableModifiers          = "modifiers"
	TableOrders             = "orders"
	TableOrderItems         = "order_items"
	TableOrderItemModifiers = "order_item_modifiers"
	TableIngestCursors      = "ingest_cursors"
)

// knownColumns is the identifier allow-list: nothing outside it is ever interpolated into SQL.
var knownColumns = map[string][]string{
	TableCustomers: {"customer_id", "first_name", "contact_number", "contact_access_code"},
	TablePartners:  {"partner_id", "partner_name"},
	TableItems: {
		"item_id", "platform_item_id", "item_name", "item_operational_name", "item_fractional_cost",
	},
	TableModifiers: {
		"modifier_id", "platform_modifier_id", "modifier_name", "modifier_operational_name", "modifier_fractional_cost",
	},
	TableOrders: {
		"order_id", "platform_order_id", "platform_order_number", "order_status",
		"order_placed_timestamp", "order_updated_timestamp", "order_prepare_for_timestamp",
		"order_start_prepping_at_timestamp", "customer_id", "partner_id",
	},
	TableOrderItems:         {"order_id", "item_id", "quantity", "fractional_price"},
	TableOrderItemModifiers: {"order_id", "item_id", "modifier_id", "quantity", "fractional_price"},
	TableIngestCursors:      {"cursor_name", "position", "updated_at"},
}

// schemaStatements создают схему; порядок важен из-за внешних ключей
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS customers (
		customer_id SERIAL PRIMARY KEY,
		first_name VARCHAR(255),
		contact_number VARCHAR(20) NOT NULL,
		contact_access_code VARCHAR(20),
		CONSTRAINT uq_customers_contact_number UNIQUE (contact_number)
	)`,
	`CREATE TABLE IF NOT EXISTS partners (
		partner_id SERIAL PRIMARY KEY,
		partner_name VARCHAR(255) NOT NULL,
		CONSTRAINT uq_partners_partner_name UNIQUE (partner_name)
	)`,
	`CREATE TABLE IF NOT EXISTS modifiers (
		modifier_id SERIAL PRIMARY KEY,
		platform_modifier_id VARCHAR(255),
		modifier_name VARCHAR(255) NOT NULL,
		modifier_operational_name VARCHAR(255) NOT NULL,
		modifier_fractional_cost INT
	)`,
	`CREATE TABLE IF NOT EXISTS items (
		item_id SERIAL PRIMARY KEY,
		platform_item_id VARCHAR(255),
		item_name VARCHAR(255) NOT NULL,
		item_operational_name VARCHAR(255) NOT NULL,
		item_fractional_cost INT
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		order_id SERIAL PRIMARY KEY,
		platform_order_id VARCHAR(255) UNIQUE NOT NULL,
		platform_order_number BIGINT NOT NULL,
		order_status VARCHAR(255) NOT NULL,
		order_placed_timestamp TIMESTAMP NOT NULL,
		order_updated_timestamp TIMESTAMP,
		order_prepare_for_timestamp TIMESTAMP,
		order_start_prepping_at_timestamp TIMESTAMP,
		customer_id INT,
		partner_id INT,
		CONSTRAINT fk_orders_customer_id FOREIGN KEY (customer_id)
			REFERENCES customers(customer_id) ON DELETE SET NULL,
		CONSTRAINT fk_orders_partner_id FOREIGN KEY (partner_id)
			REFERENCES partners(partner_id) ON DELETE SET NULL
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		order_id INT NOT NULL,
		item_id INT NOT NULL,
		quantity INT NOT NULL,
		fractional_price INT NOT NULL,
		PRIMARY KEY (order_id, item_id),
		CONSTRAINT fk_order_items_order_id FOREIGN KEY (order_id)
			REFERENCES orders(order_id) ON DELETE SET NULL,
		CONSTRAINT fk_order_items_item_id FOREIGN KEY (item_id)
			REFERENCES items(item_id) ON DELETE SET NULL
	)`,
	`CREATE TABLE IF NOT EXISTS order_item_modifiers (
		order_id INT NOT NULL,
		item_id INT NOT NULL,
		modifier_id INT NOT NULL,
		quantity INT NOT NULL,
		fractional_price INT NOT NULL,
		PRIMARY KEY (order_id, item_id, modifier_id),
		CONSTRAINT fk_order_item_modifiers_order_id FOREIGN KEY (order_id)
			REFERENCES orders(order_id) ON DELETE SET NULL,
		CONSTRAINT fk_order_item_modifiers_item_id FOREIGN KEY (item_id)
			REFERENCES items(item_id) ON DELETE SET NULL,
		CONSTRAINT fk_order_item_modifiers_modifier_id FOREIGN KEY (modifier_id)
			REFERENCES modifiers(modifier_id) ON DELETE SET NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ingest_cursors (
		cursor_name VARCHAR(255) PRIMARY KEY,
		position BIGINT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// catalogIndexStatements returns the unique indexes backing the configured item/modifier natural key.
func catalogIndexStatements(key entity.CatalogKey) []string {
	if key == entity.CatalogKeyName {
		return []string{
			`CREATE UNIQUE INDEX IF NOT EXISTS uq_items_item_name ON items (item_name)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS uq_modifiers_modifier_name ON modifiers (modifier_name)`,
		}
	}
	return []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_items_platform_item_id ON items (platform_item_id)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_modifiers_platform_modifier_id ON modifiers (platform_modifier_id)`,
	}
}

// InitSchema creates the tables (idempotent) and seeds the partners.
// Partners are never created by the ingestion path.
func (s *Storage) InitSchema(ctx context.Context, key entity.CatalogKey, partners []string) error {
	if !key.Valid() {
		return fmt.Errorf("unknown catalog key %q", key)
	}

	return s.InTx(ctx, func(q Querier) error {
		stmts := append(append([]string{}, schemaStatements...), catalogIndexStatements(key)...)
		for _, stmt := range stmts {
			if _, err := q.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("failed to apply schema statement: %w", err)
			}
		}

		for _, name := range partners {
			if name == "" {
				continue
			}
			if _, err := q.Exec(ctx,
				`INSERT INTO partners (partner_name) VALUES ($1) ON CONFLICT (partner_name) DO NOTHING`,
				name,
			); err != nil {
				return fmt.Errorf("failed to seed partner %q: %w", name, err)
			}
		}
		slog.Info("Schema initialized", "catalog_key", string(key), "partners", len(partners))
		return nil
	})
}
