// Package fault carries the error taxonomy shared by the checkout and
// fulfillment services. Every error has a machine-checkable Kind and a
// message safe to show to the caller.
package fault

import (
	"errors"
	"fmt"
	"strings"
)

type Kind string

const (
	KindNotFound          Kind = "NOT_FOUND"
	KindInsufficientStock Kind = "INSUFFICIENT_STOCK"
	KindInvalidCustomer   Kind = "INVALID_CUSTOMER"
	KindEmptyCart         Kind = "EMPTY_CART"
	KindInvalidTransition Kind = "INVALID_TRANSITION"
	KindUnauthorized      Kind = "UNAUTHORIZED"
	KindDuplicateNumber   Kind = "DUPLICATE_ORDER_NUMBER"
	KindProjectionFailed  Kind = "PROJECTION_WRITE_FAILED"
	KindInvalidInput      Kind = "INVALID_INPUT"
	KindInternal          Kind = "INTERNAL"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of err, or KindInternal for errors outside the
// taxonomy.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	var se *StockError
	if errors.As(err, &se) {
		return KindInsufficientStock
	}
	var te *TransitionError
	if errors.As(err, &te) {
		return KindInvalidTransition
	}
	var ce *CustomerError
	if errors.As(err, &ce) {
		return KindInvalidCustomer
	}
	return KindInternal
}

func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func EmptyCart() error {
	return &Error{Kind: KindEmptyCart, Message: "cart is empty"}
}

func Internal(msg string, err error) error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// StockError reports a line that cannot be fulfilled. The triple is part of
// the user-facing contract and must survive round trips through the API.
type StockError struct {
	ProductID string `json:"product_id"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

func (e *StockError) Error() string {
	return fmt.Sprintf("product %s: requested %d, only %d available", e.ProductID, e.Requested, e.Available)
}

// TransitionError reports an illegal order status change.
type TransitionError struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot transition order from %s to %s", e.From, e.To)
}

// CustomerError lists the checkout fields that were missing or malformed.
type CustomerError struct {
	Missing []string `json:"missing"`
}

func (e *CustomerError) Error() string {
	return "incomplete customer info: " + strings.Join(e.Missing, ", ")
}
