package history

import "sort"

// SortNewestFirst orders summaries by order date descending, the ordering
// contract for every listing surface. Ties break on order number so the
// result is stable.
func SortNewestFirst(s []OrderSummary) {
	sort.SliceStable(s, func(i, j int) bool {
		if !s[i].OrderDate.Equal(s[j].OrderDate) {
			return s[i].OrderDate.After(s[j].OrderDate)
		}
		return s[i].OrderNumber > s[j].OrderNumber
	})
}

// Apply records an order under the record and backfills the user link when it
// arrives late (never overwriting one already set). Re-applying an order id
// that is already present leaves the orders untouched, but a user id carried
// by the replay still backfills. Returns false when nothing changed.
func (r *Record) Apply(cust Customer, summary OrderSummary) bool {
	changed := false
	if r.UserID == nil && cust.UserID != nil {
		r.UserID = cust.UserID
		changed = true
	}

	for _, o := range r.Orders {
		if o.OrderID == summary.OrderID {
			return changed
		}
	}
	r.Orders = append(r.Orders, summary)
	return true
}

// Merge collapses duplicate records for one customer into a single survivor:
// the union of all orders deduplicated by order id, newest first. The oldest
// record survives; its user_id is backfilled (never overwritten) from any
// duplicate that has one, as are empty name/phone fields. Merge is
// idempotent: merging an already-merged single record returns it unchanged.
func Merge(records []Record) Record {
	sorted := make([]Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})

	survivor := sorted[0]
	seen := map[string]bool{}
	var union []OrderSummary
	for _, rec := range sorted {
		for _, o := range rec.Orders {
			if seen[o.OrderID] {
				continue
			}
			seen[o.OrderID] = true
			union = append(union, o)
		}
		if survivor.UserID == nil && rec.UserID != nil {
			survivor.UserID = rec.UserID
		}
		if survivor.UserName == "" {
			survivor.UserName = rec.UserName
		}
		if survivor.UserPhone == "" {
			survivor.UserPhone = rec.UserPhone
		}
	}
	SortNewestFirst(union)
	survivor.Orders = union
	return survivor
}
