package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is a line snapshot captured from the cart at order time. It is never
// recomputed from the live catalog.
type Item struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	ProductSKU  string          `json:"product_sku"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

type ShippingAddress struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Street   string `json:"street"`
	City     string `json:"city"`
	Country  string `json:"country"`
}

type Payment struct {
	Method string `json:"method"`
	Status string `json:"status"`
}

type Notes struct {
	Customer string `json:"customer,omitempty"`
	Admin    string `json:"admin,omitempty"`
}

type Tracking struct {
	Carrier        string `json:"carrier,omitempty"`
	TrackingNumber string `json:"tracking_number,omitempty"`
}

// Order is the canonical fulfillment record.
type Order struct {
	ID              string          `json:"id"`
	OrderNumber     string          `json:"order_number"`
	UserID          *string         `json:"user_id"` // nil for guest checkout
	Status          Status          `json:"status"`
	Items           []Item          `json:"items"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`
	ShippingAmount  decimal.Decimal `json:"shipping_amount"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	Payment         Payment         `json:"payment"`
	Notes           Notes           `json:"notes"`
	Tracking        Tracking        `json:"tracking"`
	ShippedAt       *time.Time      `json:"shipped_at"`
	DeliveredAt     *time.Time      `json:"delivered_at"`
	CancelledAt     *time.Time      `json:"cancelled_at"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// ListFilter narrows admin order listings.
type ListFilter struct {
	Status   Status
	UserID   string
	DateFrom *time.Time
	DateTo   *time.Time
}

type Page struct {
	Number int
	Limit  int
}

// Normalize clamps a page request to the bounds the listing queries serve.
// Callers that echo pagination metadata must report the normalized values.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Limit < 1 || p.Limit > 100 {
		p.Limit = 20
	}
	return p
}

// StatusCount is one bucket of the admin statistics breakdown.
type StatusCount struct {
	Status      Status          `json:"status"`
	Count       int64           `json:"count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}
