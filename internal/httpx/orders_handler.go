package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/gpstore/checkout/internal/fault"
	"github.com/gpstore/checkout/internal/history"
	"github.com/gpstore/checkout/internal/inventory"
	"github.com/gpstore/checkout/internal/kafkax"
	"github.com/gpstore/checkout/internal/orders"
	"github.com/gpstore/checkout/internal/redisx"
)

type OrderStore interface {
	GetByID(ctx context.Context, orderID, userID string) (*orders.Order, error)
	GetByNumber(ctx context.Context, orderNumber string) (*orders.Order, error)
	List(ctx context.Context, f orders.ListFilter, p orders.Page) ([]orders.Order, int64, error)
	Transition(ctx context.Context, orderID string, to orders.Status, opt orders.TransitionOpts) (*orders.Order, orders.Status, error)
	Statistics(ctx context.Context, dateFrom, dateTo *time.Time) ([]orders.StatusCount, int64, decimal.Decimal, error)
}

type HistoryStore interface {
	FindByEmail(ctx context.Context, email string) (*history.Record, error)
	FindByUserIDOrEmail(ctx context.Context, userID *string, email string) ([]history.Record, error)
	Reconcile(ctx context.Context, records []history.Record) (*history.Record, error)
}

type Inventory interface {
	Restock(ctx context.Context, lines []inventory.Line) []string
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// OrdersHandler exposes the order query and lifecycle endpoints. Admin
// routes are expected to be gated by the upstream gateway.
type OrdersHandler struct {
	Orders    OrderStore
	History   HistoryStore
	Inventory Inventory
	Redis     *redis.Client
	Producer  Publisher
	Service   string
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Get("/api/orders/number/{orderNumber}", h.getByNumber)
	r.Get("/api/orders", h.getByEmail)
	r.Get("/api/my-orders", h.myOrders)
	r.Put("/api/orders/{id}/cancel", h.cancel)
	r.Put("/api/admin/orders/{id}/status", h.updateStatus)
	r.Get("/api/admin/orders", h.list)
	r.Get("/api/admin/orders/stats", h.stats)
}

func (h *OrdersHandler) getByNumber(w http.ResponseWriter, r *http.Request) {
	orderNumber := chi.URLParam(r, "orderNumber")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	key := ""
	if h.Redis != nil {
		key = redisKeyOrder(orderNumber)
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			writeJSON(w, http.StatusOK, json.RawMessage(s))
			return
		}
	}

	o, err := h.Orders.GetByNumber(ctx, orderNumber)
	if err != nil {
		writeError(w, err)
		return
	}

	body := map[string]any{"success": true, "data": map[string]any{"order": o}}
	if h.Redis != nil {
		b, _ := json.Marshal(body)
		_ = h.Redis.Set(ctx, key, b, redisx.TTLOrderCache).Err()
	}
	writeJSON(w, http.StatusOK, body)
}

func redisKeyOrder(orderNumber string) string {
	return fmt.Sprintf(redisx.KeyOrderByNumber, orderNumber)
}

func (h *OrdersHandler) getByEmail(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		writeError(w, &fault.Error{Kind: fault.KindInvalidInput, Message: "email is required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	rec, err := h.History.FindByEmail(ctx, email)
	if err != nil {
		if fault.KindOf(err) == fault.KindNotFound {
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": []history.OrderSummary{}})
			return
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    rec.Orders,
		"user_info": map[string]any{
			"email":        rec.UserEmail,
			"name":         rec.UserName,
			"phone":        rec.UserPhone,
			"total_orders": len(rec.Orders),
		},
	})
}

// myOrders lists the caller's orders and reconciles duplicate history
// records as a side effect when it finds them.
func (h *OrdersHandler) myOrders(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	email := r.Header.Get("X-User-Email")
	if userID == "" && email == "" {
		writeError(w, &fault.Error{Kind: fault.KindUnauthorized, Message: "authentication required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var uid *string
	if userID != "" {
		uid = &userID
	}
	recs, err := h.History.FindByUserIDOrEmail(ctx, uid, email)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(recs) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": []history.OrderSummary{}})
		return
	}

	// reconciling a single record is a no-op, so always run it
	rec, err := h.History.Reconcile(ctx, recs)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    rec.Orders,
		"user_info": map[string]any{
			"email":        rec.UserEmail,
			"name":         rec.UserName,
			"phone":        rec.UserPhone,
			"total_orders": len(rec.Orders),
		},
	})
}

// cancel is the customer-facing cancellation: only the owner, only while the
// order is still pending.
func (h *OrdersHandler) cancel(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, &fault.Error{Kind: fault.KindUnauthorized, Message: "authentication required"})
		return
	}

	var body struct {
		Reason string `json:"reason,omitempty"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, from, err := h.Orders.Transition(ctx, orderID, orders.StatusCancelled, orders.TransitionOpts{
		UserID:         userID,
		CustomerCancel: true,
		CustomerNote:   body.Reason,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	h.afterTransition(ctx, o, from)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{"order": o}})
}

type updateStatusRequest struct {
	Status   orders.Status   `json:"status"`
	Notes    string          `json:"notes,omitempty"`
	Tracking orders.Tracking `json:"tracking,omitempty"`
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &fault.Error{Kind: fault.KindInvalidInput, Message: "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, from, err := h.Orders.Transition(ctx, orderID, req.Status, orders.TransitionOpts{
		AdminNotes: req.Notes,
		Tracking:   req.Tracking,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	h.afterTransition(ctx, o, from)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{"order": o}})
}

// afterTransition runs the side effects a committed transition owes:
// restocking on cancellation, cache invalidation, and the status event.
// Restock problems are logged inside the guard and never undo the
// transition.
func (h *OrdersHandler) afterTransition(ctx context.Context, o *orders.Order, from orders.Status) {
	if o.Status == orders.StatusCancelled {
		lines := make([]inventory.Line, 0, len(o.Items))
		for _, it := range o.Items {
			lines = append(lines, inventory.Line{ProductID: it.ProductID, Quantity: it.Quantity})
		}
		h.Inventory.Restock(ctx, lines)
	}

	if h.Redis != nil {
		_ = h.Redis.Del(ctx, redisKeyOrder(o.OrderNumber)).Err()
	}

	if h.Producer != nil {
		ev := orders.Envelope{
			EventID:       uuid.NewString(),
			EventType:     orders.EventOrderStatusChanged,
			EventVersion:  1,
			OccurredAt:    time.Now().UTC(),
			Producer:      h.Service,
			CorrelationID: o.ID,
			Payload: kafkax.MustMarshal(orders.OrderStatusChangedPayload{
				OrderID:     o.ID,
				OrderNumber: o.OrderNumber,
				UserEmail:   o.ShippingAddress.Email,
				From:        from,
				To:          o.Status,
				ChangedAt:   o.UpdatedAt,
			}),
		}
		h.Producer.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
			kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderStatusChanged)},
			kafkago.Header{Key: "x-event-version", Value: []byte("1")},
		)
	}
}

func (h *OrdersHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f := orders.ListFilter{
		Status: orders.Status(q.Get("status")),
		UserID: q.Get("user_id"),
	}
	if f.Status != "" && !orders.IsValid(f.Status) {
		writeError(w, &fault.Error{Kind: fault.KindInvalidInput, Message: "unknown status filter"})
		return
	}
	f.DateFrom = parseDate(q.Get("date_from"))
	f.DateTo = parseDate(q.Get("date_to"))

	page := orders.Page{Number: atoiDefault(q.Get("page"), 1), Limit: atoiDefault(q.Get("limit"), 20)}.Normalize()

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	items, total, err := h.Orders.List(ctx, f, page)
	if err != nil {
		writeError(w, err)
		return
	}

	totalPages := (total + int64(page.Limit) - 1) / int64(page.Limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    items,
		"pagination": map[string]any{
			"current_page":   page.Number,
			"total_pages":    totalPages,
			"total_items":    total,
			"items_per_page": page.Limit,
		},
	})
}

func (h *OrdersHandler) stats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	breakdown, totalOrders, revenue, err := h.Orders.Statistics(ctx, parseDate(q.Get("date_from")), parseDate(q.Get("date_to")))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"total_orders":     totalOrders,
			"total_revenue":    revenue,
			"status_breakdown": breakdown,
		},
	})
}

func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}
