package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionForward(t *testing.T) {
	chain := []Status{StatusPending, StatusConfirmed, StatusProcessing, StatusShipped, StatusDelivered}

	// every forward move along the chain is legal, every backward move is not
	for i, from := range chain {
		for j, to := range chain {
			if i < j {
				assert.True(t, CanTransition(from, to), "%s -> %s should be allowed", from, to)
			} else {
				assert.False(t, CanTransition(from, to), "%s -> %s should be rejected", from, to)
			}
		}
	}
}

func TestCancelAndRefundAbsorbing(t *testing.T) {
	nonTerminal := []Status{StatusPending, StatusConfirmed, StatusProcessing, StatusShipped}
	for _, from := range nonTerminal {
		assert.True(t, CanTransition(from, StatusCancelled), "cancel from %s", from)
		assert.True(t, CanTransition(from, StatusRefunded), "refund from %s", from)
	}

	for _, terminal := range []Status{StatusDelivered, StatusCancelled, StatusRefunded} {
		assert.True(t, IsTerminal(terminal))
		for _, to := range []Status{StatusPending, StatusConfirmed, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled, StatusRefunded} {
			assert.False(t, CanTransition(terminal, to), "%s is terminal, %s must be rejected", terminal, to)
		}
	}
}

func TestCanCustomerCancel(t *testing.T) {
	assert.True(t, CanCustomerCancel(StatusPending))

	// once fulfillment starts, only an admin can cancel
	for _, from := range []Status{StatusConfirmed, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled, StatusRefunded} {
		assert.False(t, CanCustomerCancel(from), "customer cancel from %s", from)
	}
}

func TestIsValid(t *testing.T) {
	assert.True(t, IsValid(StatusPending))
	assert.True(t, IsValid(StatusRefunded))
	assert.False(t, IsValid(Status("shipping")))
	assert.False(t, IsValid(Status("")))
}
