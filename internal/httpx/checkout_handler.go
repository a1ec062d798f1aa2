package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gpstore/checkout/internal/checkout"
	"github.com/gpstore/checkout/internal/fault"
)

type CheckoutService interface {
	Checkout(ctx context.Context, cartKey string, info checkout.CustomerInfo) (*checkout.Confirmation, error)
}

// CheckoutHandler exposes POST /api/checkout. Identity comes from the
// upstream gateway via X-User-Id / X-User-Email; guests supply X-Cart-Key
// for their session cart and check out with no user id.
type CheckoutHandler struct {
	Service CheckoutService
}

func (h *CheckoutHandler) Register(r *chi.Mux) {
	r.Post("/api/checkout", h.checkout)
}

type checkoutRequest struct {
	Customer checkout.CustomerInfo `json:"customer"`
}

func (h *CheckoutHandler) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &fault.Error{Kind: fault.KindInvalidInput, Message: "invalid json"})
		return
	}

	cartKey := r.Header.Get("X-User-Id")
	if uid := cartKey; uid != "" {
		req.Customer.UserID = &uid
	}
	if cartKey == "" {
		cartKey = r.Header.Get("X-Cart-Key")
	}
	if cartKey == "" {
		writeError(w, &fault.Error{Kind: fault.KindInvalidInput, Message: "missing cart identity"})
		return
	}
	// prefer the authenticated email over whatever the form carried
	if email := r.Header.Get("X-User-Email"); email != "" {
		req.Customer.Email = email
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	conf, err := h.Service.Checkout(ctx, cartKey, req.Customer)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "data": conf})
}
