// Package handler exposes the domain services over HTTP.
//
// Handlers follow one shape: decode the request, resolve the actor from the
// context, delegate to a domain service, and map the result or domain error
// onto the wire. No business logic lives here.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/anecshop/marketplace/internal/domain/cart"
	"github.com/anecshop/marketplace/internal/domain/fault"
	"github.com/anecshop/marketplace/internal/domain/order"
	"github.com/anecshop/marketplace/internal/domain/payout"
	"github.com/anecshop/marketplace/internal/domain/product"
)

// Handler holds the domain services behind the HTTP surface.
type Handler struct {
	products product.Repository
	carts    *cart.Service
	orders   *order.Service
	payouts  *payout.Service
}

// New constructs a Handler with the required domain dependencies.
func New(
	products product.Repository,
	carts *cart.Service,
	orders *order.Service,
	payouts *payout.Service,
) *Handler {
	return &Handler{
		products: products,
		carts:    carts,
		orders:   orders,
		payouts:  payouts,
	}
}

// Routes returns the API router. Every route requires a forwarded identity.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(RequireIdentity)

	r.Get("/products", h.ListProducts)

	r.Get("/cart", h.GetCart)
	r.Post("/cart/items", h.AddCartItem)
	r.Patch("/cart/items/{productID}", h.UpdateCartItem)
	r.Delete("/cart/items/{productID}", h.RemoveCartItem)

	r.Post("/checkout", h.Checkout)

	r.Get("/orders", h.ListOrders)
	r.Get("/orders/{number}", h.GetOrder)
	r.Post("/orders/{number}/confirm-payment", h.ConfirmPayment)
	r.Post("/orders/{number}/ship", h.MarkShipped)
	r.Post("/orders/{number}/receive", h.ConfirmReceipt)
	r.Post("/orders/{number}/cancel", h.CancelOrder)
	r.Post("/orders/{number}/refund", h.ApproveRefund)
	r.Post("/orders/{number}/returns", h.SubmitReturn)

	r.Get("/payouts", h.ListPayouts)
	r.Post("/payouts/{id}/process", h.ProcessPayout)

	return r
}

// errorResponse is the uniform error body.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// writeDomainError maps the domain error taxonomy onto HTTP statuses:
// not found 404, illegal transition 409, bad input 422, wrong actor 403.
// Anything else is an internal error and gets logged.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		notFound     *fault.NotFoundError
		invalidState *fault.InvalidStateError
		validation   *fault.ValidationError
		permission   *fault.PermissionError
	)
	switch {
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, "not_found", notFound.Error())
	case errors.As(err, &invalidState):
		writeError(w, http.StatusConflict, "invalid_state", invalidState.Error())
	case errors.As(err, &validation):
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", validation.Error())
	case errors.As(err, &permission):
		writeError(w, http.StatusForbidden, "forbidden", permission.Error())
	default:
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return false
	}
	return true
}
