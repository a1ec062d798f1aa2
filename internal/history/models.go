// Package history maintains the denormalized per-customer order view backing
// "my orders" and "orders by email" lookups. Records are a projection of the
// canonical orders store: rebuildable, tolerant of duplicates, reconciled
// opportunistically.
package history

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/gpstore/checkout/internal/catalog"
	"github.com/gpstore/checkout/internal/orders"
)

// ProductSnapshot carries the display fields a history listing needs without
// touching the live catalog.
type ProductSnapshot struct {
	ProductID    string          `json:"product_id"`
	ProductName  string          `json:"product_name"`
	ProductImage string          `json:"product_image"`
	ProductSlug  string          `json:"product_slug"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	TotalPrice   decimal.Decimal `json:"total_price"`
	Category     string          `json:"category,omitempty"`
}

type OrderSummary struct {
	OrderID         string                 `json:"order_id"`
	OrderNumber     string                 `json:"order_number"`
	OrderDate       time.Time              `json:"order_date"`
	Status          string                 `json:"status"`
	TotalAmount     decimal.Decimal        `json:"total_amount"`
	ShippingAddress orders.ShippingAddress `json:"shipping_address"`
	PaymentMethod   string                 `json:"payment_method"`
	Notes           string                 `json:"notes,omitempty"`
	Products        []ProductSnapshot      `json:"products"`
}

// Record is one customer's order history. Keyed primarily by email; user_id
// is a best-effort link backfilled once when the customer is known to be
// logged in.
type Record struct {
	ID        string         `json:"id"`
	UserID    *string        `json:"user_id"`
	UserEmail string         `json:"user_email"`
	UserName  string         `json:"user_name"`
	UserPhone string         `json:"user_phone"`
	Orders    []OrderSummary `json:"orders"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Customer identifies who an order belongs to at append time.
type Customer struct {
	UserID *string
	Email  string
	Name   string
	Phone  string
}

// Summarize builds the projection entry for an order. Display fields come
// from the product map when present; items missing from the catalog still
// get a summary line from the order snapshot alone.
func Summarize(o *orders.Order, products map[string]catalog.Product) OrderSummary {
	s := OrderSummary{
		OrderID:         o.ID,
		OrderNumber:     o.OrderNumber,
		OrderDate:       o.CreatedAt,
		Status:          string(o.Status),
		TotalAmount:     o.TotalAmount,
		ShippingAddress: o.ShippingAddress,
		PaymentMethod:   o.Payment.Method,
		Notes:           o.Notes.Customer,
	}
	for _, it := range o.Items {
		ps := ProductSnapshot{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TotalPrice:  it.LineTotal,
		}
		if p, ok := products[it.ProductID]; ok {
			ps.ProductImage = p.Image
			ps.ProductSlug = p.Slug
			ps.Category = p.Category
		}
		s.Products = append(s.Products, ps)
	}
	return s
}
