package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpstore/checkout/internal/fault"
	"github.com/gpstore/checkout/internal/history"
	"github.com/gpstore/checkout/internal/inventory"
	"github.com/gpstore/checkout/internal/orders"
)

type fakeOrderStore struct {
	order         *orders.Order
	from          orders.Status
	transitionErr error
	lastTo        orders.Status
	lastOpts      orders.TransitionOpts
}

func (f *fakeOrderStore) GetByID(ctx context.Context, orderID, userID string) (*orders.Order, error) {
	if f.order == nil {
		return nil, fault.NotFound("order %s not found", orderID)
	}
	return f.order, nil
}

func (f *fakeOrderStore) GetByNumber(ctx context.Context, orderNumber string) (*orders.Order, error) {
	if f.order == nil || f.order.OrderNumber != orderNumber {
		return nil, fault.NotFound("order %s not found", orderNumber)
	}
	return f.order, nil
}

func (f *fakeOrderStore) List(ctx context.Context, fl orders.ListFilter, p orders.Page) ([]orders.Order, int64, error) {
	if f.order == nil {
		return nil, 0, nil
	}
	return []orders.Order{*f.order}, 1, nil
}

func (f *fakeOrderStore) Transition(ctx context.Context, orderID string, to orders.Status, opt orders.TransitionOpts) (*orders.Order, orders.Status, error) {
	if f.transitionErr != nil {
		return nil, "", f.transitionErr
	}
	f.lastTo = to
	f.lastOpts = opt
	o := *f.order
	o.Status = to
	return &o, f.from, nil
}

func (f *fakeOrderStore) Statistics(ctx context.Context, dateFrom, dateTo *time.Time) ([]orders.StatusCount, int64, decimal.Decimal, error) {
	return []orders.StatusCount{{Status: orders.StatusPending, Count: 1}}, 1, decimal.RequireFromString("19.00"), nil
}

type fakeHistoryStore struct {
	records    []history.Record
	reconciled bool
}

func (f *fakeHistoryStore) FindByEmail(ctx context.Context, email string) (*history.Record, error) {
	for i := range f.records {
		if f.records[i].UserEmail == email {
			return &f.records[i], nil
		}
	}
	return nil, fault.NotFound("no order history for %s", email)
}

func (f *fakeHistoryStore) FindByUserIDOrEmail(ctx context.Context, userID *string, email string) ([]history.Record, error) {
	return f.records, nil
}

func (f *fakeHistoryStore) Reconcile(ctx context.Context, records []history.Record) (*history.Record, error) {
	f.reconciled = true
	return &records[0], nil
}

type fakeRestocker struct{ lines [][]inventory.Line }

func (f *fakeRestocker) Restock(ctx context.Context, lines []inventory.Line) []string {
	f.lines = append(f.lines, lines)
	return nil
}

type capturingPublisher struct{ count int }

func (p *capturingPublisher) Publish(key, value []byte, headers ...kafkago.Header) { p.count++ }

func pendingOrder() *orders.Order {
	uid := "u1"
	return &orders.Order{
		ID:          "order-1",
		OrderNumber: "GP202501150001",
		UserID:      &uid,
		Status:      orders.StatusPending,
		Items: []orders.Item{
			{ProductID: "P001", ProductName: "Green Tea", Quantity: 2},
		},
		TotalAmount: decimal.RequireFromString("19.00"),
	}
}

func newHandler(os *fakeOrderStore, hs *fakeHistoryStore, inv *fakeRestocker, pub *capturingPublisher) (*OrdersHandler, *chi.Mux) {
	h := &OrdersHandler{Orders: os, History: hs, Inventory: inv, Producer: pub, Service: "test"}
	r := chi.NewRouter()
	h.Register(r)
	return h, r
}

func TestGetByNumber(t *testing.T) {
	os := &fakeOrderStore{order: pendingOrder()}
	_, r := newHandler(os, &fakeHistoryStore{}, &fakeRestocker{}, &capturingPublisher{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders/number/GP202501150001", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"order_number":"GP202501150001"`)
}

func TestGetByNumberNotFound(t *testing.T) {
	_, r := newHandler(&fakeOrderStore{}, &fakeHistoryStore{}, &fakeRestocker{}, &capturingPublisher{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders/number/GP209901019999", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"NOT_FOUND"`)
}

func TestGetByEmailRequiresEmail(t *testing.T) {
	_, r := newHandler(&fakeOrderStore{}, &fakeHistoryStore{}, &fakeRestocker{}, &capturingPublisher{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetByEmailUnknownIsEmptyList(t *testing.T) {
	_, r := newHandler(&fakeOrderStore{}, &fakeHistoryStore{}, &fakeRestocker{}, &capturingPublisher{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders?email=nobody@example.com", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"data":[]`)
}

func TestMyOrdersRequiresIdentity(t *testing.T) {
	_, r := newHandler(&fakeOrderStore{}, &fakeHistoryStore{}, &fakeRestocker{}, &capturingPublisher{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/my-orders", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMyOrdersReconcilesDuplicates(t *testing.T) {
	uid := "u1"
	hs := &fakeHistoryStore{records: []history.Record{
		{ID: "rec-old", UserID: &uid, UserEmail: "an@example.com", Orders: []history.OrderSummary{{OrderID: "order-1"}}},
		{ID: "rec-dup", UserEmail: "an@example.com", Orders: []history.OrderSummary{{OrderID: "order-2"}}},
	}}
	_, r := newHandler(&fakeOrderStore{}, hs, &fakeRestocker{}, &capturingPublisher{})

	req := httptest.NewRequest(http.MethodGet, "/api/my-orders", nil)
	req.Header.Set("X-User-Id", "u1")
	req.Header.Set("X-User-Email", "an@example.com")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, hs.reconciled)
	assert.Contains(t, rec.Body.String(), `"total_orders":1`)
}

func TestCancelRequiresIdentity(t *testing.T) {
	_, r := newHandler(&fakeOrderStore{order: pendingOrder()}, &fakeHistoryStore{}, &fakeRestocker{}, &capturingPublisher{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/orders/order-1/cancel", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCancelRestocksAndPublishes(t *testing.T) {
	os := &fakeOrderStore{order: pendingOrder(), from: orders.StatusPending}
	inv := &fakeRestocker{}
	pub := &capturingPublisher{}
	_, r := newHandler(os, &fakeHistoryStore{}, inv, pub)

	req := httptest.NewRequest(http.MethodPut, "/api/orders/order-1/cancel", strings.NewReader(`{"reason":"changed my mind"}`))
	req.Header.Set("X-User-Id", "u1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, orders.StatusCancelled, os.lastTo)
	assert.True(t, os.lastOpts.CustomerCancel)
	assert.Equal(t, "u1", os.lastOpts.UserID)

	// the reason is the customer's, not an admin annotation
	assert.Equal(t, "changed my mind", os.lastOpts.CustomerNote)
	assert.Empty(t, os.lastOpts.AdminNotes)

	require.Len(t, inv.lines, 1)
	assert.Equal(t, []inventory.Line{{ProductID: "P001", Quantity: 2}}, inv.lines[0])
	assert.Equal(t, 1, pub.count)
}

func TestUpdateStatusInvalidTransition(t *testing.T) {
	os := &fakeOrderStore{transitionErr: &fault.TransitionError{From: "delivered", To: "pending"}}
	_, r := newHandler(os, &fakeHistoryStore{}, &fakeRestocker{}, &capturingPublisher{})

	req := httptest.NewRequest(http.MethodPut, "/api/admin/orders/order-1/status", strings.NewReader(`{"status":"pending"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"INVALID_TRANSITION"`)
}

func TestUpdateStatusDoesNotRestockOnForwardMove(t *testing.T) {
	os := &fakeOrderStore{order: pendingOrder(), from: orders.StatusPending}
	inv := &fakeRestocker{}
	pub := &capturingPublisher{}
	_, r := newHandler(os, &fakeHistoryStore{}, inv, pub)

	req := httptest.NewRequest(http.MethodPut, "/api/admin/orders/order-1/status", strings.NewReader(`{"status":"shipped","tracking":{"tracking_number":"VN123","carrier":"GHN"}}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, orders.StatusShipped, os.lastTo)
	assert.Equal(t, "VN123", os.lastOpts.Tracking.TrackingNumber)
	assert.Empty(t, inv.lines)
	assert.Equal(t, 1, pub.count)
}

func TestListRejectsUnknownStatus(t *testing.T) {
	_, r := newHandler(&fakeOrderStore{}, &fakeHistoryStore{}, &fakeRestocker{}, &capturingPublisher{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/orders?status=teleported", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListPagination(t *testing.T) {
	os := &fakeOrderStore{order: pendingOrder()}
	_, r := newHandler(os, &fakeHistoryStore{}, &fakeRestocker{}, &capturingPublisher{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/orders?page=1&limit=10", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_items":1`)
	assert.Contains(t, rec.Body.String(), `"items_per_page":10`)
}

func TestListClampsOversizedLimit(t *testing.T) {
	os := &fakeOrderStore{order: pendingOrder()}
	_, r := newHandler(os, &fakeHistoryStore{}, &fakeRestocker{}, &capturingPublisher{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/orders?limit=500", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	// the metadata must report the limit actually served, not the raw query
	assert.Contains(t, rec.Body.String(), `"items_per_page":20`)
	assert.NotContains(t, rec.Body.String(), `"items_per_page":500`)
}

func TestStats(t *testing.T) {
	_, r := newHandler(&fakeOrderStore{}, &fakeHistoryStore{}, &fakeRestocker{}, &capturingPublisher{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/orders/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_orders":1`)
}
