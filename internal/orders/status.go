package orders

// Status lifecycle: pending → confirmed → processing → shipped → delivered,
// with cancelled and refunded reachable from any non-terminal state. Moves
// are one-directional: forward along the chain or into an absorbing state,
// never back.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:    {StatusConfirmed: true, StatusProcessing: true, StatusShipped: true, StatusDelivered: true, StatusCancelled: true, StatusRefunded: true},
	StatusConfirmed:  {StatusProcessing: true, StatusShipped: true, StatusDelivered: true, StatusCancelled: true, StatusRefunded: true},
	StatusProcessing: {StatusShipped: true, StatusDelivered: true, StatusCancelled: true, StatusRefunded: true},
	StatusShipped:    {StatusDelivered: true, StatusCancelled: true, StatusRefunded: true},
	StatusDelivered:  {},
	StatusCancelled:  {},
	StatusRefunded:   {},
}

func IsValid(s Status) bool {
	_, ok := validNext[s]
	return ok
}

func IsTerminal(s Status) bool {
	next, ok := validNext[s]
	return ok && len(next) == 0
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// CanCustomerCancel reports whether the customer may still back out. Only a
// pending order qualifies; once fulfillment starts, cancellation is an admin
// action.
func CanCustomerCancel(from Status) bool {
	return from == StatusPending
}
