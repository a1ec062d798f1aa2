package orders

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

// Create retries exactly when the insert hits the order_number unique index;
// every other failure aborts. The detection is what decides that.
func TestUniqueViolationDetection(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "orders_order_number_key"}

	assert.True(t, isUniqueViolation(dup, "orders_order_number_key"))
	assert.True(t, isUniqueViolation(fmt.Errorf("insert order: %w", dup), "orders_order_number_key"),
		"wrapped violations must still trigger a retry")

	// conflicts on other constraints, other pg errors, and plain errors abort
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23505", ConstraintName: "products_slug_key"}, "orders_order_number_key"))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503", ConstraintName: "orders_order_number_key"}, "orders_order_number_key"))
	assert.False(t, isUniqueViolation(errors.New("connection reset"), "orders_order_number_key"))
	assert.False(t, isUniqueViolation(nil, "orders_order_number_key"))
}
