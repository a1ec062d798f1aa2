package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/gpstore/checkout/internal/catalog"
	"github.com/gpstore/checkout/internal/fault"
	"github.com/gpstore/checkout/internal/kafkax"
	"github.com/gpstore/checkout/internal/orders"
	"github.com/gpstore/checkout/internal/redisx"
)

// Projector consumes order lifecycle events and keeps the history
// projection caught up: it replays appends the checkout path could not make,
// syncs summary statuses, and reconciles duplicate records as it finds them.
type Projector struct {
	Repo        *Repo
	Orders      *orders.Repo
	Catalog     *catalog.Repo
	Redis       *redis.Client
	ServiceName string
}

// HandleOrderEvent is the kafka consumer handler.
func (p *Projector) HandleOrderEvent(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}

	// dedup by event id so redelivery cannot double-apply
	dkey := fmt.Sprintf(redisx.KeyDedup, p.ServiceName, env.EventID)
	if exists, _ := redisx.Exists(ctx, p.Redis, dkey); exists {
		return nil
	}

	var err error
	switch env.EventType {
	case orders.EventOrderPlaced:
		err = p.applyPlaced(ctx, env.Payload)
	case orders.EventOrderStatusChanged:
		err = p.applyStatusChanged(ctx, env.Payload)
	default:
		return nil
	}
	if err != nil {
		return err
	}

	_ = p.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	return nil
}

func (p *Projector) applyPlaced(ctx context.Context, payload json.RawMessage) error {
	ev, err := kafkax.UnwrapPayload[orders.OrderPlacedPayload](payload)
	if err != nil {
		return err
	}

	// The canonical store is the source of truth; the event is just a nudge.
	o, err := p.Orders.GetByID(ctx, ev.OrderID, "")
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		ids = append(ids, it.ProductID)
	}
	products, err := p.Catalog.GetProducts(ctx, ids)
	if err != nil {
		slog.Warn("projector: product lookup failed, summarizing without display fields", "order", o.ID, "err", err)
		products = nil
	}

	cust := Customer{
		UserID: o.UserID,
		Email:  o.ShippingAddress.Email,
		Name:   o.ShippingAddress.FullName,
		Phone:  o.ShippingAddress.Phone,
	}
	if err := p.Repo.Append(ctx, cust, Summarize(o, products)); err != nil {
		return &fault.Error{Kind: fault.KindProjectionFailed, Message: "append order " + o.ID, Err: err}
	}
	return p.reconcileIfDuplicated(ctx, o.UserID, cust.Email)
}

func (p *Projector) applyStatusChanged(ctx context.Context, payload json.RawMessage) error {
	ev, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](payload)
	if err != nil {
		return err
	}
	return p.Repo.SetOrderStatus(ctx, ev.UserEmail, ev.OrderID, string(ev.To))
}

func (p *Projector) reconcileIfDuplicated(ctx context.Context, userID *string, email string) error {
	recs, err := p.Repo.FindByUserIDOrEmail(ctx, userID, email)
	if err != nil || len(recs) <= 1 {
		return err
	}
	slog.Info("projector: reconciling duplicate history records", "email", email, "count", len(recs))
	_, err = p.Repo.Reconcile(ctx, recs)
	return err
}
