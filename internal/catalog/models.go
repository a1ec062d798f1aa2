package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the catalog entity this service consumes. id is the business
// key ("P001" style), not a surrogate.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image"`
	Slug        string          `json:"slug"`
	Amount      int             `json:"amount"`
	Category    string          `json:"category,omitempty"`
	IsFeatured  bool            `json:"is_featured"`
	Description string          `json:"description,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
