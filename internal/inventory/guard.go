// Package inventory guards product stock during checkout and cancellation.
package inventory

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gpstore/checkout/internal/fault"
)

type Line struct {
	ProductID string
	Quantity  int
}

type Guard struct{ DB *pgxpool.Pool }

// Reserve validates and debits stock for every line inside one transaction.
// The decrement is conditional on the amount at the moment of write, so
// concurrent checkouts cannot oversell. Any line failure rolls back every
// decrement made in this call and surfaces that line's error.
func (g *Guard) Reserve(ctx context.Context, lines []Line) error {
	tx, err := g.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, ln := range lines {
		var available int
		err := tx.QueryRow(ctx, `SELECT amount FROM products WHERE id=$1 FOR UPDATE`, ln.ProductID).Scan(&available)
		if errors.Is(err, pgx.ErrNoRows) {
			return fault.NotFound("product %s does not exist", ln.ProductID)
		}
		if err != nil {
			return err
		}
		if available < ln.Quantity {
			return &fault.StockError{ProductID: ln.ProductID, Requested: ln.Quantity, Available: available}
		}

		ct, err := tx.Exec(ctx, `
			UPDATE products SET amount = amount - $2, updated_at = NOW()
			WHERE id=$1 AND amount >= $2`, ln.ProductID, ln.Quantity)
		if err != nil {
			return err
		}
		if ct.RowsAffected() != 1 {
			return &fault.StockError{ProductID: ln.ProductID, Requested: ln.Quantity, Available: available}
		}
	}

	return tx.Commit(ctx)
}

// Restock credits stock back for the given lines, typically from a cancelled
// order's item snapshot. Products that no longer exist are logged and
// skipped; their ids are returned so callers can surface a partial result.
// Restock never aborts the transition that triggered it.
func (g *Guard) Restock(ctx context.Context, lines []Line) []string {
	var skipped []string
	for _, ln := range lines {
		ct, err := g.DB.Exec(ctx, `
			UPDATE products SET amount = amount + $2, updated_at = NOW()
			WHERE id=$1`, ln.ProductID, ln.Quantity)
		if err != nil {
			slog.Error("restock failed", "product", ln.ProductID, "qty", ln.Quantity, "err", err)
			skipped = append(skipped, ln.ProductID)
			continue
		}
		if ct.RowsAffected() == 0 {
			slog.Warn("restock skipped, product gone", "product", ln.ProductID, "qty", ln.Quantity)
			skipped = append(skipped, ln.ProductID)
		}
	}
	return skipped
}
