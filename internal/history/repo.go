package history

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gpstore/checkout/internal/fault"
)

type Repo struct{ DB *pgxpool.Pool }

const recordCols = `id, user_id, user_email, user_name, user_phone, orders, created_at, updated_at`

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.UserID, &rec.UserEmail, &rec.UserName, &rec.UserPhone,
		&rec.Orders, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Append records an order under the customer's history, creating the record
// lazily on first order. A record that lacks a user_id gets it backfilled
// when the caller has one; an existing user_id is never overwritten. Appends
// are idempotent per order id.
func (r *Repo) Append(ctx context.Context, cust Customer, summary OrderSummary) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()
	rec, err := scanRecord(tx.QueryRow(ctx, `
		SELECT `+recordCols+` FROM order_history
		WHERE user_email=$1 ORDER BY created_at, id LIMIT 1 FOR UPDATE`, cust.Email))
	if errors.Is(err, pgx.ErrNoRows) {
		rec = &Record{
			ID:        uuid.NewString(),
			UserID:    cust.UserID,
			UserEmail: cust.Email,
			UserName:  cust.Name,
			UserPhone: cust.Phone,
			Orders:    []OrderSummary{summary},
			CreatedAt: now,
			UpdatedAt: now,
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO order_history (id, user_id, user_email, user_name, user_phone, orders, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			rec.ID, rec.UserID, rec.UserEmail, rec.UserName, rec.UserPhone, rec.Orders, rec.CreatedAt, rec.UpdatedAt)
		if err != nil {
			return err
		}
		return tx.Commit(ctx)
	}
	if err != nil {
		return err
	}

	if !rec.Apply(cust, summary) {
		return tx.Commit(ctx) // already recorded, nothing new to write
	}

	_, err = tx.Exec(ctx, `
		UPDATE order_history SET user_id=$2, orders=$3, updated_at=$4 WHERE id=$1`,
		rec.ID, rec.UserID, rec.Orders, now)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// FindByEmail returns the customer's record with orders newest first.
func (r *Repo) FindByEmail(ctx context.Context, email string) (*Record, error) {
	rec, err := scanRecord(r.DB.QueryRow(ctx, `
		SELECT `+recordCols+` FROM order_history
		WHERE user_email=$1 ORDER BY created_at, id LIMIT 1`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fault.NotFound("no orders for this email")
	}
	if err != nil {
		return nil, err
	}
	SortNewestFirst(rec.Orders)
	return rec, nil
}

// FindByUserIDOrEmail returns every record matching either key. More than
// one record means the customer has duplicates awaiting reconciliation.
func (r *Repo) FindByUserIDOrEmail(ctx context.Context, userID *string, email string) ([]Record, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+recordCols+` FROM order_history
		WHERE user_email=$1 OR ($2::TEXT IS NOT NULL AND user_id=$2)
		ORDER BY created_at, id`, email, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// Reconcile merges duplicate records into one survivor and deletes the rest.
// Reconciling a single record is a no-op, so running it opportunistically on
// every read is safe.
func (r *Repo) Reconcile(ctx context.Context, records []Record) (*Record, error) {
	if len(records) == 0 {
		return nil, fault.NotFound("nothing to reconcile")
	}
	merged := Merge(records)
	if len(records) == 1 {
		return &merged, nil
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()
	merged.UpdatedAt = now
	_, err = tx.Exec(ctx, `
		UPDATE order_history SET user_id=$2, user_name=$3, user_phone=$4, orders=$5, updated_at=$6
		WHERE id=$1`,
		merged.ID, merged.UserID, merged.UserName, merged.UserPhone, merged.Orders, now)
	if err != nil {
		return nil, err
	}

	for _, rec := range records {
		if rec.ID == merged.ID {
			continue
		}
		if _, err := tx.Exec(ctx, `DELETE FROM order_history WHERE id=$1`, rec.ID); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &merged, nil
}

// SetOrderStatus updates the status of one order summary wherever it appears.
// Used by the projector to keep listings in step with the canonical store.
func (r *Repo) SetOrderStatus(ctx context.Context, email, orderID, status string) error {
	recs, err := r.FindByUserIDOrEmail(ctx, nil, email)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		changed := false
		for i := range rec.Orders {
			if rec.Orders[i].OrderID == orderID && rec.Orders[i].Status != status {
				rec.Orders[i].Status = status
				changed = true
			}
		}
		if !changed {
			continue
		}
		_, err := r.DB.Exec(ctx, `
			UPDATE order_history SET orders=$2, updated_at=NOW() WHERE id=$1`, rec.ID, rec.Orders)
		if err != nil {
			return err
		}
	}
	return nil
}
