package history

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func summary(orderID, number string, date time.Time) OrderSummary {
	return OrderSummary{
		OrderID:     orderID,
		OrderNumber: number,
		OrderDate:   date,
		Status:      "pending",
		TotalAmount: decimal.NewFromInt(100),
	}
}

func TestMergeGuestAndLoggedIn(t *testing.T) {
	// same email checks out once as guest, once logged in
	day1 := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 1, 12, 12, 0, 0, 0, time.UTC)
	u1 := "U1"

	guest := Record{
		ID:        "rec-guest",
		UserEmail: "a@example.com",
		UserName:  "An Tran",
		Orders:    []OrderSummary{summary("o1", "GP202501100001", day1)},
		CreatedAt: day1,
	}
	loggedIn := Record{
		ID:        "rec-user",
		UserID:    &u1,
		UserEmail: "a@example.com",
		UserName:  "An Tran",
		Orders:    []OrderSummary{summary("o2", "GP202501120001", day2)},
		CreatedAt: day2,
	}

	merged := Merge([]Record{guest, loggedIn})

	require.NotNil(t, merged.UserID)
	assert.Equal(t, "U1", *merged.UserID)
	assert.Equal(t, "rec-guest", merged.ID, "oldest record survives")
	require.Len(t, merged.Orders, 2)
	assert.Equal(t, "o2", merged.Orders[0].OrderID, "newest first")
	assert.Equal(t, "o1", merged.Orders[1].OrderID)
}

func TestMergeDeduplicatesByOrderID(t *testing.T) {
	day := time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)
	a := Record{
		ID: "a", UserEmail: "x@example.com", CreatedAt: day,
		Orders: []OrderSummary{summary("o1", "GP202502010001", day), summary("o2", "GP202502010002", day.Add(time.Hour))},
	}
	b := Record{
		ID: "b", UserEmail: "x@example.com", CreatedAt: day.Add(time.Minute),
		Orders: []OrderSummary{summary("o2", "GP202502010002", day.Add(time.Hour)), summary("o3", "GP202502010003", day.Add(2 * time.Hour))},
	}

	merged := Merge([]Record{a, b})
	require.Len(t, merged.Orders, 3)
	assert.Equal(t, []string{"o3", "o2", "o1"}, orderIDs(merged.Orders))
}

func TestMergeIdempotent(t *testing.T) {
	day := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	u := "U9"
	rec := Record{
		ID: "only", UserID: &u, UserEmail: "y@example.com", UserName: "Y", UserPhone: "0123456789",
		CreatedAt: day,
		Orders: []OrderSummary{
			summary("o2", "GP202503010002", day.Add(time.Hour)),
			summary("o1", "GP202503010001", day),
		},
	}

	first := Merge([]Record{rec})
	second := Merge([]Record{first})
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"o2", "o1"}, orderIDs(second.Orders))
}

func TestMergeNeverOverwritesUserID(t *testing.T) {
	day := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
	u1, u2 := "U1", "U2"
	a := Record{ID: "a", UserID: &u1, UserEmail: "z@example.com", CreatedAt: day}
	b := Record{ID: "b", UserID: &u2, UserEmail: "z@example.com", CreatedAt: day.Add(time.Minute)}

	merged := Merge([]Record{a, b})
	assert.Equal(t, "U1", *merged.UserID, "survivor keeps its own user_id")
}

func TestSortNewestFirstTieBreak(t *testing.T) {
	day := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	s := []OrderSummary{
		summary("o1", "GP202505010001", day),
		summary("o2", "GP202505010002", day),
	}
	SortNewestFirst(s)
	assert.Equal(t, "o2", s[0].OrderID, "same date breaks tie on order number")
}

func TestApplyAppendsAndBackfills(t *testing.T) {
	day := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	u := "U1"
	rec := Record{
		ID:        "rec-1",
		UserEmail: "a@example.com",
		Orders:    []OrderSummary{summary("o1", "GP202506010001", day)},
	}

	// new order from a logged-in customer: appended, user link backfilled
	changed := rec.Apply(Customer{UserID: &u, Email: "a@example.com"}, summary("o2", "GP202506010002", day.Add(time.Hour)))
	assert.True(t, changed)
	require.NotNil(t, rec.UserID)
	assert.Equal(t, "U1", *rec.UserID)
	assert.Equal(t, []string{"o1", "o2"}, orderIDs(rec.Orders))

	// exact replay changes nothing
	assert.False(t, rec.Apply(Customer{UserID: &u}, summary("o2", "GP202506010002", day.Add(time.Hour))))
	assert.Len(t, rec.Orders, 2)
}

func TestApplyBackfillsUserIDOnReplayedOrder(t *testing.T) {
	day := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	rec := Record{
		ID:        "rec-1",
		UserEmail: "a@example.com",
		Orders:    []OrderSummary{summary("o1", "GP202506020001", day)},
	}

	// the order was recorded while the customer was a guest; a replay that
	// now knows the user id must still upgrade the record
	u := "U1"
	changed := rec.Apply(Customer{UserID: &u, Email: "a@example.com"}, summary("o1", "GP202506020001", day))
	assert.True(t, changed, "late user_id must count as a change so it gets persisted")
	require.NotNil(t, rec.UserID)
	assert.Equal(t, "U1", *rec.UserID)
	assert.Len(t, rec.Orders, 1, "replay must not duplicate the order")

	// an already-linked record never flips to another user
	u2 := "U2"
	assert.False(t, rec.Apply(Customer{UserID: &u2}, summary("o1", "GP202506020001", day)))
	assert.Equal(t, "U1", *rec.UserID)
}

func orderIDs(s []OrderSummary) []string {
	out := make([]string, len(s))
	for i, o := range s {
		out[i] = o.OrderID
	}
	return out
}
