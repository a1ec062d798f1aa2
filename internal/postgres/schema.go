package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSchema creates the tables and the indexes the domain invariants rely
// on. The unique index on orders.order_number is load-bearing: the order
// number generator retries on conflicts against it. The CHECK on
// products.amount is the last line of defense against overselling.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	_, err := db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS products (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			price       NUMERIC(12,2) NOT NULL DEFAULT 0,
			image       TEXT NOT NULL DEFAULT '',
			slug        TEXT NOT NULL DEFAULT '',
			amount      INT NOT NULL DEFAULT 0 CHECK (amount >= 0),
			category    TEXT NOT NULL DEFAULT '',
			is_featured BOOLEAN NOT NULL DEFAULT FALSE,
			description TEXT NOT NULL DEFAULT '',
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS products_slug_key ON products(slug) WHERE slug <> '';
		CREATE INDEX IF NOT EXISTS products_category_idx ON products(category);

		CREATE TABLE IF NOT EXISTS orders (
			id              UUID PRIMARY KEY,
			order_number    TEXT NOT NULL,
			user_id         TEXT,
			status          TEXT NOT NULL DEFAULT 'pending',
			subtotal        NUMERIC(12,2) NOT NULL DEFAULT 0,
			tax_amount      NUMERIC(12,2) NOT NULL DEFAULT 0,
			shipping_amount NUMERIC(12,2) NOT NULL DEFAULT 0,
			total_amount    NUMERIC(12,2) NOT NULL DEFAULT 0,
			full_name       TEXT NOT NULL DEFAULT '',
			phone           TEXT NOT NULL DEFAULT '',
			email           TEXT NOT NULL DEFAULT '',
			street          TEXT NOT NULL DEFAULT '',
			city            TEXT NOT NULL DEFAULT '',
			country         TEXT NOT NULL DEFAULT '',
			payment_method  TEXT NOT NULL DEFAULT 'cash_on_delivery',
			payment_status  TEXT NOT NULL DEFAULT 'pending',
			customer_notes  TEXT NOT NULL DEFAULT '',
			admin_notes     TEXT NOT NULL DEFAULT '',
			carrier         TEXT NOT NULL DEFAULT '',
			tracking_number TEXT NOT NULL DEFAULT '',
			shipped_at      TIMESTAMPTZ,
			delivered_at    TIMESTAMPTZ,
			cancelled_at    TIMESTAMPTZ,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS orders_order_number_key ON orders(order_number);
		CREATE INDEX IF NOT EXISTS orders_user_id_idx ON orders(user_id);
		CREATE INDEX IF NOT EXISTS orders_status_idx ON orders(status);
		CREATE INDEX IF NOT EXISTS orders_created_at_idx ON orders(created_at DESC);

		CREATE TABLE IF NOT EXISTS order_items (
			id           BIGSERIAL PRIMARY KEY,
			order_id     UUID NOT NULL REFERENCES orders(id),
			product_id   TEXT NOT NULL,
			product_name TEXT NOT NULL DEFAULT '',
			product_sku  TEXT NOT NULL DEFAULT '',
			quantity     INT NOT NULL CHECK (quantity > 0),
			unit_price   NUMERIC(12,2) NOT NULL DEFAULT 0,
			line_total   NUMERIC(12,2) NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS order_items_order_id_idx ON order_items(order_id);

		CREATE TABLE IF NOT EXISTS carts (
			id           UUID PRIMARY KEY,
			user_id      TEXT NOT NULL,
			cart_type    TEXT NOT NULL DEFAULT 'cart',
			items        JSONB NOT NULL DEFAULT '[]',
			total_items  INT NOT NULL DEFAULT 0,
			total_amount NUMERIC(12,2) NOT NULL DEFAULT 0,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (user_id, cart_type)
		);

		CREATE TABLE IF NOT EXISTS order_history (
			id         UUID PRIMARY KEY,
			user_id    TEXT,
			user_email TEXT NOT NULL,
			user_name  TEXT NOT NULL DEFAULT '',
			user_phone TEXT NOT NULL DEFAULT '',
			orders     JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS order_history_email_idx ON order_history(user_email);
		CREATE INDEX IF NOT EXISTS order_history_user_id_idx ON order_history(user_id);
	`)
	return err
}
