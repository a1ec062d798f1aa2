// Package checkout turns a cart into a durable order. The sequence spans
// three independently persisted entities (products, orders, order_history)
// with no shared transaction, so each step has an explicit compensating
// action instead of relying on rollback.
package checkout

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/gpstore/checkout/internal/cart"
	"github.com/gpstore/checkout/internal/catalog"
	"github.com/gpstore/checkout/internal/fault"
	"github.com/gpstore/checkout/internal/history"
	"github.com/gpstore/checkout/internal/inventory"
	"github.com/gpstore/checkout/internal/kafkax"
	"github.com/gpstore/checkout/internal/orders"
)

type CartStore interface {
	GetCart(ctx context.Context, key string) (cart.Cart, error)
	ClearCart(ctx context.Context, key string) error
}

type Catalog interface {
	GetProducts(ctx context.Context, ids []string) (map[string]catalog.Product, error)
}

type Inventory interface {
	Reserve(ctx context.Context, lines []inventory.Line) error
	Restock(ctx context.Context, lines []inventory.Line) []string
}

type OrderStore interface {
	Create(ctx context.Context, d orders.Draft) (*orders.Order, error)
}

type HistoryStore interface {
	Append(ctx context.Context, cust history.Customer, summary history.OrderSummary) error
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// CustomerInfo is what the storefront collects at checkout.
type CustomerInfo struct {
	UserID        *string `json:"-"`
	FirstName     string  `json:"first_name"`
	LastName      string  `json:"last_name"`
	Email         string  `json:"email"`
	Phone         string  `json:"phone"`
	Address1      string  `json:"address1"`
	Address2      string  `json:"address2,omitempty"`
	City          string  `json:"city,omitempty"`
	Country       string  `json:"country,omitempty"`
	PaymentMethod string  `json:"payment_method,omitempty"`
	Notes         string  `json:"notes,omitempty"`
}

type Confirmation struct {
	OrderID     string          `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ItemCount   int             `json:"item_count"`
	// Degraded marks a checkout whose order is durable but whose history
	// projection could not be written. The projector repairs it.
	Degraded bool `json:"degraded,omitempty"`
}

type Service struct {
	Carts       CartStore
	Catalog     Catalog
	Inventory   Inventory
	Orders      OrderStore
	History     HistoryStore
	Producer    Publisher
	ServiceName string
}

// Checkout runs the full sequence: load cart, validate customer, reserve
// stock, persist the order, clear the cart, append history, publish. Stock
// reserved for an order that failed to persist is restocked before the error
// returns.
func (s *Service) Checkout(ctx context.Context, cartKey string, info CustomerInfo) (*Confirmation, error) {
	c, err := s.Carts.GetCart(ctx, cartKey)
	if err != nil {
		return nil, err
	}
	if len(c.Items) == 0 {
		return nil, fault.EmptyCart()
	}

	if err := validateCustomer(info); err != nil {
		return nil, err
	}

	lines := make([]inventory.Line, 0, len(c.Items))
	for _, it := range c.Items {
		if it.Quantity <= 0 {
			return nil, &fault.Error{Kind: fault.KindInvalidInput, Message: "invalid quantity for product " + it.ProductID}
		}
		lines = append(lines, inventory.Line{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	if err := s.Inventory.Reserve(ctx, lines); err != nil {
		return nil, err
	}

	o, err := s.Orders.Create(ctx, buildDraft(c, info))
	if err != nil {
		// compensate: the debit is durable but the order is not
		if skipped := s.Inventory.Restock(ctx, lines); len(skipped) > 0 {
			slog.Error("compensating restock incomplete", "products", skipped)
		}
		return nil, err
	}

	if err := s.Carts.ClearCart(ctx, cartKey); err != nil {
		slog.Warn("failed to clear cart after checkout", "cart", cartKey, "err", err)
	}

	degraded := !s.appendHistory(ctx, o, c, info)
	s.publishPlaced(o)

	return &Confirmation{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		TotalAmount: o.TotalAmount,
		ItemCount:   len(o.Items),
		Degraded:    degraded,
	}, nil
}

func validateCustomer(info CustomerInfo) error {
	var missing []string
	if info.FirstName == "" && info.LastName == "" {
		missing = append(missing, "name")
	}
	if info.Email == "" {
		missing = append(missing, "email")
	}
	if info.Phone == "" {
		missing = append(missing, "phone")
	}
	if info.Address1 == "" {
		missing = append(missing, "address")
	}
	if len(missing) > 0 {
		return &fault.CustomerError{Missing: missing}
	}
	return nil
}

func buildDraft(c cart.Cart, info CustomerInfo) orders.Draft {
	items := make([]orders.Item, 0, len(c.Items))
	subtotal := decimal.Zero
	for _, it := range c.Items {
		lineTotal := it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		items = append(items, orders.Item{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			ProductSKU:  it.ProductID, // business key doubles as SKU
			Quantity:    it.Quantity,
			UnitPrice:   it.Price,
			LineTotal:   lineTotal,
		})
		subtotal = subtotal.Add(lineTotal)
	}

	street := info.Address1
	if info.Address2 != "" {
		street += ", " + info.Address2
	}
	city := info.City
	if city == "" {
		city = "Ho Chi Minh City"
	}
	country := info.Country
	if country == "" {
		country = "VN"
	}

	method := info.PaymentMethod
	if method == "" || method == "cod" || method == "COD" {
		method = "cash_on_delivery"
	}

	return orders.Draft{
		UserID:         info.UserID,
		Items:          items,
		Subtotal:       subtotal,
		TaxAmount:      decimal.Zero,
		ShippingAmount: decimal.Zero,
		TotalAmount:    subtotal, // subtotal + tax + shipping, both zero
		ShippingAddress: orders.ShippingAddress{
			FullName: fullName(info),
			Phone:    info.Phone,
			Email:    info.Email,
			Street:   street,
			City:     city,
			Country:  country,
		},
		Payment: orders.Payment{Method: method, Status: "pending"},
		Notes:   orders.Notes{Customer: info.Notes},
	}
}

func fullName(info CustomerInfo) string {
	switch {
	case info.FirstName == "":
		return info.LastName
	case info.LastName == "":
		return info.FirstName
	default:
		return info.FirstName + " " + info.LastName
	}
}

// appendHistory writes the projection entry. Failures never fail the
// checkout; the order is already durable and the projector replays from the
// placed event. Returns false when the projection is degraded.
func (s *Service) appendHistory(ctx context.Context, o *orders.Order, c cart.Cart, info CustomerInfo) bool {
	products := productIndex(ctx, s.Catalog, o)

	summary := history.Summarize(o, products)
	// cart items carry the display fields the live catalog may have lost
	display := map[string]cart.Item{}
	for _, it := range c.Items {
		display[it.ProductID] = it
	}
	for i := range summary.Products {
		if summary.Products[i].ProductImage == "" {
			if d, ok := display[summary.Products[i].ProductID]; ok {
				summary.Products[i].ProductImage = d.ProductImage
				summary.Products[i].ProductSlug = d.ProductSlug
			}
		}
	}

	cust := history.Customer{
		UserID: info.UserID,
		Email:  info.Email,
		Name:   fullName(info),
		Phone:  info.Phone,
	}
	if err := s.History.Append(ctx, cust, summary); err != nil {
		slog.Error("history append failed, order remains durable", "order", o.ID, "err", err)
		return false
	}
	return true
}

func productIndex(ctx context.Context, cat Catalog, o *orders.Order) map[string]catalog.Product {
	ids := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		ids = append(ids, it.ProductID)
	}
	products, err := cat.GetProducts(ctx, ids)
	if err != nil {
		slog.Warn("catalog lookup for history snapshot failed", "order", o.ID, "err", err)
		return nil
	}
	return products
}

func (s *Service) publishPlaced(o *orders.Order) {
	if s.Producer == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderPlaced,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		CorrelationID: o.ID,
		Payload: kafkax.MustMarshal(orders.OrderPlacedPayload{
			OrderID:     o.ID,
			OrderNumber: o.OrderNumber,
			UserID:      o.UserID,
			UserEmail:   o.ShippingAddress.Email,
			TotalAmount: o.TotalAmount,
			ItemCount:   len(o.Items),
			PlacedAt:    o.CreatedAt,
		}),
	}
	s.Producer.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderPlaced)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
