package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gpstore/checkout/internal/fault"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Kind    fault.Kind `json:"kind"`
	Message string     `json:"message"`
	Details any        `json:"details,omitempty"`
}

// writeError maps the fault taxonomy onto HTTP statuses. The body always
// carries the machine-checkable kind; stock errors additionally carry the
// product/requested/available triple.
func writeError(w http.ResponseWriter, err error) {
	kind := fault.KindOf(err)

	var code int
	switch kind {
	case fault.KindNotFound:
		code = http.StatusNotFound
	case fault.KindUnauthorized:
		code = http.StatusUnauthorized
	case fault.KindInsufficientStock, fault.KindInvalidTransition:
		code = http.StatusConflict
	case fault.KindEmptyCart, fault.KindInvalidCustomer, fault.KindInvalidInput:
		code = http.StatusBadRequest
	default:
		code = http.StatusInternalServerError
	}

	body := errorBody{Kind: kind, Message: err.Error()}
	var se *fault.StockError
	if errors.As(err, &se) {
		body.Details = se
	}
	var ce *fault.CustomerError
	if errors.As(err, &ce) {
		body.Details = ce
	}
	var te *fault.TransitionError
	if errors.As(err, &te) {
		body.Details = te
	}
	if code == http.StatusInternalServerError {
		// never leak internals to callers
		body.Message = "internal server error"
	}
	writeJSON(w, code, map[string]any{"success": false, "error": body})
}
