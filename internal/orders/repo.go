package orders

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/gpstore/checkout/internal/fault"
)

type Repo struct{ DB *pgxpool.Pool }

// Draft is an order ready to be persisted. The repo assigns the id, the
// order number and the timestamps.
type Draft struct {
	UserID          *string
	Items           []Item
	Subtotal        decimal.Decimal
	TaxAmount       decimal.Decimal
	ShippingAmount  decimal.Decimal
	TotalAmount     decimal.Decimal
	ShippingAddress ShippingAddress
	Payment         Payment
	Notes           Notes
}

// maxNumberAttempts bounds the retry loop when concurrent checkouts race on
// the same day sequence. Each retry re-reads the current max, so one retry
// is normally enough.
const maxNumberAttempts = 5

const orderCols = `id, order_number, user_id, status, subtotal, tax_amount, shipping_amount,
	total_amount, full_name, phone, email, street, city, country, payment_method,
	payment_status, customer_notes, admin_notes, carrier, tracking_number,
	shipped_at, delivered_at, cancelled_at, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.Status, &o.Subtotal, &o.TaxAmount,
		&o.ShippingAmount, &o.TotalAmount, &o.ShippingAddress.FullName, &o.ShippingAddress.Phone,
		&o.ShippingAddress.Email, &o.ShippingAddress.Street, &o.ShippingAddress.City,
		&o.ShippingAddress.Country, &o.Payment.Method, &o.Payment.Status, &o.Notes.Customer,
		&o.Notes.Admin, &o.Tracking.Carrier, &o.Tracking.TrackingNumber,
		&o.ShippedAt, &o.DeliveredAt, &o.CancelledAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadItems(ctx context.Context, q querier, orderID string) ([]Item, error) {
	rows, err := q.Query(ctx, `
		SELECT product_id, product_name, product_sku, quantity, unit_price, line_total
		FROM order_items WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ProductID, &it.ProductName, &it.ProductSKU, &it.Quantity, &it.UnitPrice, &it.LineTotal); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// Create persists a new pending order, allocating its date-scoped number.
// The number read is advisory; the unique index on order_number is the real
// guard, and a conflict retries with a fresh sequence.
func (r *Repo) Create(ctx context.Context, d Draft) (*Order, error) {
	now := time.Now().UTC()
	prefix := DayPrefix(now)

	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		o, err := r.tryCreate(ctx, d, prefix, now)
		if err == nil {
			return o, nil
		}
		if isUniqueViolation(err, "orders_order_number_key") {
			continue
		}
		return nil, err
	}
	return nil, &fault.Error{Kind: fault.KindDuplicateNumber, Message: "could not allocate a unique order number"}
}

func (r *Repo) tryCreate(ctx context.Context, d Draft, prefix string, now time.Time) (*Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Length-then-value ordering keeps widened (5+ digit) sequences ahead of
	// plain 4-digit ones.
	var last string
	seq := 1
	err = tx.QueryRow(ctx, `
		SELECT order_number FROM orders
		WHERE order_number LIKE $1 || '%'
		ORDER BY length(order_number) DESC, order_number DESC
		LIMIT 1`, prefix).Scan(&last)
	if err == nil {
		seq = SequenceOf(prefix, last) + 1
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	o := &Order{
		ID:              uuid.NewString(),
		OrderNumber:     FormatNumber(prefix, seq),
		UserID:          d.UserID,
		Status:          StatusPending,
		Items:           d.Items,
		Subtotal:        d.Subtotal,
		TaxAmount:       d.TaxAmount,
		ShippingAmount:  d.ShippingAmount,
		TotalAmount:     d.TotalAmount,
		ShippingAddress: d.ShippingAddress,
		Payment:         d.Payment,
		Notes:           d.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, order_number, user_id, status, subtotal, tax_amount,
			shipping_amount, total_amount, full_name, phone, email, street, city, country,
			payment_method, payment_status, customer_notes, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		o.ID, o.OrderNumber, o.UserID, o.Status, o.Subtotal, o.TaxAmount,
		o.ShippingAmount, o.TotalAmount, o.ShippingAddress.FullName, o.ShippingAddress.Phone,
		o.ShippingAddress.Email, o.ShippingAddress.Street, o.ShippingAddress.City,
		o.ShippingAddress.Country, o.Payment.Method, o.Payment.Status, o.Notes.Customer,
		o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return nil, err
	}

	for _, it := range o.Items {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (order_id, product_id, product_name, product_sku, quantity, unit_price, line_total)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			o.ID, it.ProductID, it.ProductName, it.ProductSKU, it.Quantity, it.UnitPrice, it.LineTotal)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return o, nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}

// GetByID fetches one order. A non-empty userID scopes the lookup to that
// owner; non-owners get NotFound rather than a hint that the order exists.
func (r *Repo) GetByID(ctx context.Context, orderID, userID string) (*Order, error) {
	q := `SELECT ` + orderCols + ` FROM orders WHERE id=$1`
	args := []any{orderID}
	if userID != "" {
		q += ` AND user_id=$2`
		args = append(args, userID)
	}

	o, err := scanOrder(r.DB.QueryRow(ctx, q, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fault.NotFound("order not found")
	}
	if err != nil {
		return nil, err
	}
	if o.Items, err = loadItems(ctx, r.DB, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *Repo) GetByNumber(ctx context.Context, orderNumber string) (*Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE order_number=$1`, orderNumber))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fault.NotFound("order not found")
	}
	if err != nil {
		return nil, err
	}
	if o.Items, err = loadItems(ctx, r.DB, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

// List returns a page of orders, newest first, with the unpaginated total.
func (r *Repo) List(ctx context.Context, f ListFilter, p Page) ([]Order, int64, error) {
	p = p.Normalize()

	where := ` WHERE 1=1`
	args := []any{}
	n := 0
	add := func(cond string, v any) {
		n++
		args = append(args, v)
		where += cond
	}
	if f.Status != "" {
		add(` AND status=$`+itoa(n+1), f.Status)
	}
	if f.UserID != "" {
		add(` AND user_id=$`+itoa(n+1), f.UserID)
	}
	if f.DateFrom != nil {
		add(` AND created_at >= $`+itoa(n+1), *f.DateFrom)
	}
	if f.DateTo != nil {
		add(` AND created_at <= $`+itoa(n+1), *f.DateTo)
	}

	var total int64
	if err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := `SELECT ` + orderCols + ` FROM orders` + where +
		` ORDER BY created_at DESC LIMIT $` + itoa(n+1) + ` OFFSET $` + itoa(n+2)
	args = append(args, p.Limit, (p.Number-1)*p.Limit)

	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range out {
		if out[i].Items, err = loadItems(ctx, r.DB, out[i].ID); err != nil {
			return nil, 0, err
		}
	}
	return out, total, nil
}

func itoa(n int) string { return strconv.Itoa(n) }

// TransitionOpts carries who is asking and the metadata a transition may
// attach.
type TransitionOpts struct {
	// UserID scopes the lookup to the owner; empty means admin.
	UserID string
	// CustomerCancel restricts the move to pending → cancelled.
	CustomerCancel bool
	AdminNotes     string
	// CustomerNote is appended to the customer's own notes, e.g. a
	// cancellation reason. Admin notes stay admin-authored.
	CustomerNote string
	Tracking     Tracking
}

// Transition moves an order to a new status, stamping the lifecycle
// timestamps. It returns the updated order and the status it moved from.
// Stock restoration is the caller's concern: it must run after (and only
// after) a successful transition into cancelled.
func (r *Repo) Transition(ctx context.Context, orderID string, to Status, opt TransitionOpts) (*Order, Status, error) {
	if !IsValid(to) {
		return nil, "", &fault.Error{Kind: fault.KindInvalidTransition, Message: "unknown status: " + string(to)}
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	q := `SELECT ` + orderCols + ` FROM orders WHERE id=$1`
	args := []any{orderID}
	if opt.UserID != "" {
		q += ` AND user_id=$2`
		args = append(args, opt.UserID)
	}
	q += ` FOR UPDATE`

	o, err := scanOrder(tx.QueryRow(ctx, q, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", fault.NotFound("order not found")
	}
	if err != nil {
		return nil, "", err
	}

	from := o.Status
	if opt.CustomerCancel && !CanCustomerCancel(from) {
		return nil, "", &fault.TransitionError{From: string(from), To: string(to)}
	}
	if !CanTransition(from, to) {
		return nil, "", &fault.TransitionError{From: string(from), To: string(to)}
	}

	now := time.Now().UTC()
	o.Status = to
	o.UpdatedAt = now
	switch to {
	case StatusShipped:
		o.ShippedAt = &now
		if opt.Tracking.Carrier != "" || opt.Tracking.TrackingNumber != "" {
			o.Tracking = opt.Tracking
		}
	case StatusDelivered:
		o.DeliveredAt = &now
	case StatusCancelled:
		o.CancelledAt = &now
	case StatusRefunded:
		o.Payment.Status = "refunded"
	}
	if opt.AdminNotes != "" {
		o.Notes.Admin = opt.AdminNotes
	}
	if opt.CustomerNote != "" {
		if o.Notes.Customer != "" {
			o.Notes.Customer += "\n"
		}
		o.Notes.Customer += opt.CustomerNote
	}

	_, err = tx.Exec(ctx, `
		UPDATE orders SET status=$2, payment_status=$3, customer_notes=$4, admin_notes=$5,
			carrier=$6, tracking_number=$7, shipped_at=$8, delivered_at=$9, cancelled_at=$10,
			updated_at=$11
		WHERE id=$1`,
		o.ID, o.Status, o.Payment.Status, o.Notes.Customer, o.Notes.Admin, o.Tracking.Carrier,
		o.Tracking.TrackingNumber, o.ShippedAt, o.DeliveredAt, o.CancelledAt, o.UpdatedAt)
	if err != nil {
		return nil, "", err
	}

	if o.Items, err = loadItems(ctx, tx, o.ID); err != nil {
		return nil, "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, "", err
	}
	return o, from, nil
}

// Statistics aggregates order counts and totals per status. Revenue excludes
// cancelled orders.
func (r *Repo) Statistics(ctx context.Context, dateFrom, dateTo *time.Time) ([]StatusCount, int64, decimal.Decimal, error) {
	where := ` WHERE 1=1`
	args := []any{}
	n := 0
	if dateFrom != nil {
		n++
		where += ` AND created_at >= $` + itoa(n)
		args = append(args, *dateFrom)
	}
	if dateTo != nil {
		n++
		where += ` AND created_at <= $` + itoa(n)
		args = append(args, *dateTo)
	}

	rows, err := r.DB.Query(ctx, `
		SELECT status, COUNT(*), COALESCE(SUM(total_amount), 0)
		FROM orders`+where+` GROUP BY status`, args...)
	if err != nil {
		return nil, 0, decimal.Zero, err
	}
	defer rows.Close()

	var breakdown []StatusCount
	var totalOrders int64
	revenue := decimal.Zero
	for rows.Next() {
		var sc StatusCount
		if err := rows.Scan(&sc.Status, &sc.Count, &sc.TotalAmount); err != nil {
			return nil, 0, decimal.Zero, err
		}
		breakdown = append(breakdown, sc)
		totalOrders += sc.Count
		if sc.Status != StatusCancelled {
			revenue = revenue.Add(sc.TotalAmount)
		}
	}
	return breakdown, totalOrders, revenue, rows.Err()
}
