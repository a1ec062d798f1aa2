// Package cart exposes the cart collaborator the checkout flow consumes.
// Carts are created and filled elsewhere; checkout only reads and clears.
package cart

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/gpstore/checkout/internal/fault"
)

type Item struct {
	ProductID    string          `json:"product_id"`
	ProductName  string          `json:"product_name"`
	ProductImage string          `json:"product_image"`
	ProductSlug  string          `json:"product_slug"`
	Price        decimal.Decimal `json:"price"`
	Quantity     int             `json:"quantity"`
	Total        decimal.Decimal `json:"total"`
}

type Cart struct {
	UserID      string          `json:"user_id"`
	Items       []Item          `json:"items"`
	TotalItems  int             `json:"total_items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type Repo struct{ DB *pgxpool.Pool }

// GetCart loads the shopping cart for a cart key (user id, or a guest
// session key). A missing cart reads as an empty one.
func (r *Repo) GetCart(ctx context.Context, userID string) (Cart, error) {
	c := Cart{UserID: userID}
	err := r.DB.QueryRow(ctx, `
		SELECT items, total_items, total_amount FROM carts
		WHERE user_id=$1 AND cart_type='cart'`, userID).
		Scan(&c.Items, &c.TotalItems, &c.TotalAmount)
	if errors.Is(err, pgx.ErrNoRows) {
		return c, nil
	}
	if err != nil {
		return Cart{}, fault.Internal("load cart", err)
	}
	return c, nil
}

// ClearCart empties the cart after a successful checkout. The row survives,
// only its contents reset.
func (r *Repo) ClearCart(ctx context.Context, userID string) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE carts SET items='[]', total_items=0, total_amount=0, updated_at=NOW()
		WHERE user_id=$1 AND cart_type='cart'`, userID)
	return err
}
