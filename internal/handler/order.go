package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/anecshop/marketplace/internal/domain/identity"
	"github.com/anecshop/marketplace/internal/domain/order"
)

type orderItemView struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type orderView struct {
	Number        string          `json:"number"`
	BuyerID       string          `json:"buyer_id"`
	ShopID        string          `json:"shop_id"`
	Items         []orderItemView `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	ShippingFee   decimal.Decimal `json:"shipping_fee"`
	Discount      decimal.Decimal `json:"discount"`
	Tax           decimal.Decimal `json:"tax"`
	Total         decimal.Decimal `json:"total"`
	VoucherCode   string          `json:"voucher_code,omitempty"`
	Status        string          `json:"status"`
	PaymentMethod string          `json:"payment_method"`
	PaymentStatus string          `json:"payment_status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func toOrderView(o *order.Order) orderView {
	items := make([]orderItemView, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderItemView{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		}
	}
	return orderView{
		Number:        o.Number,
		BuyerID:       o.BuyerID,
		ShopID:        o.ShopID,
		Items:         items,
		Subtotal:      o.Subtotal,
		ShippingFee:   o.ShippingFee,
		Discount:      o.Discount,
		Tax:           o.Tax,
		Total:         o.Total,
		VoucherCode:   o.VoucherCode,
		Status:        string(o.Status),
		PaymentMethod: string(o.PaymentMethod),
		PaymentStatus: string(o.PaymentStatus),
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

// Checkout turns the actor's selected cart lines into a new order.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req struct {
		PaymentMethod string `json:"payment_method"`
		VoucherCode   string `json:"voucher_code"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	o, err := h.orders.Checkout(r.Context(), actor, order.CheckoutRequest{
		PaymentMethod: order.PaymentMethod(req.PaymentMethod),
		VoucherCode:   req.VoucherCode,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderView(o))
}

// ListOrders returns the orders visible to the actor.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	orders, err := h.orders.List(r.Context(), actor)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	views := make([]orderView, len(orders))
	for i := range orders {
		views[i] = toOrderView(&orders[i])
	}
	writeJSON(w, http.StatusOK, views)
}

// GetOrder returns a single order.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	o, err := h.orders.Get(r.Context(), actor, chi.URLParam(r, "number"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderView(o))
}

// transitionFunc is one order-status transition bound to an actor.
type transitionFunc func(r *http.Request, actor identity.Actor, number string) (*order.Order, error)

func (h *Handler) runTransition(w http.ResponseWriter, r *http.Request, fn transitionFunc) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	o, err := fn(r, actor, chi.URLParam(r, "number"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderView(o))
}

// ConfirmPayment is the seller's manual payment confirmation.
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, func(r *http.Request, actor identity.Actor, number string) (*order.Order, error) {
		return h.orders.ConfirmPayment(r.Context(), actor, number)
	})
}

// MarkShipped records the parcel leaving the shop.
func (h *Handler) MarkShipped(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, func(r *http.Request, actor identity.Actor, number string) (*order.Order, error) {
		return h.orders.MarkShipped(r.Context(), actor, number)
	})
}

// ConfirmReceipt records the buyer confirming delivery.
func (h *Handler) ConfirmReceipt(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, func(r *http.Request, actor identity.Actor, number string) (*order.Order, error) {
		return h.orders.ConfirmReceipt(r.Context(), actor, number)
	})
}

// CancelOrder aborts an order on the cancellation path.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, func(r *http.Request, actor identity.Actor, number string) (*order.Order, error) {
		return h.orders.Cancel(r.Context(), actor, number)
	})
}

// ApproveRefund is the admin approval of a pending return.
func (h *Handler) ApproveRefund(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, func(r *http.Request, actor identity.Actor, number string) (*order.Order, error) {
		return h.orders.ApproveRefund(r.Context(), actor, number)
	})
}

type returnRequestView struct {
	ID          string    `json:"id"`
	OrderNumber string    `json:"order_number"`
	Reason      string    `json:"reason"`
	Method      string    `json:"method"`
	Packaging   string    `json:"packaging"`
	ProofURLs   []string  `json:"proof_urls,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// SubmitReturn files a return/refund request against a completed order.
func (h *Handler) SubmitReturn(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req struct {
		Reason    string   `json:"reason"`
		Method    string   `json:"method"`
		Packaging string   `json:"packaging"`
		ProofURLs []string `json:"proof_urls"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	rr, err := h.orders.SubmitReturn(r.Context(), actor, chi.URLParam(r, "number"), order.ReturnInput{
		Reason:    order.ReturnReason(req.Reason),
		Method:    order.ReturnMethod(req.Method),
		Packaging: order.PackagingCondition(req.Packaging),
		ProofURLs: req.ProofURLs,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, returnRequestView{
		ID:          rr.ID,
		OrderNumber: rr.OrderNumber,
		Reason:      string(rr.Reason),
		Method:      string(rr.Method),
		Packaging:   string(rr.Packaging),
		ProofURLs:   rr.ProofURLs,
		SubmittedAt: rr.SubmittedAt,
	})
}
