package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/anecshop/marketplace/internal/domain/payout"
)

type payoutView struct {
	ID              string          `json:"id"`
	OrderNumber     string          `json:"order_number"`
	ShopID          string          `json:"shop_id"`
	Gross           decimal.Decimal `json:"gross"`
	CommissionFee   decimal.Decimal `json:"commission_fee"`
	ProcessingFee   decimal.Decimal `json:"processing_fee"`
	WithholdingTax  decimal.Decimal `json:"withholding_tax"`
	Net             decimal.Decimal `json:"net"`
	Status          string          `json:"status"`
	ReferenceNumber string          `json:"reference_number,omitempty"`
	ProcessedAt     *time.Time      `json:"processed_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

func toPayoutView(rec *payout.Record) payoutView {
	return payoutView{
		ID:              rec.ID,
		OrderNumber:     rec.OrderNumber,
		ShopID:          rec.ShopID,
		Gross:           rec.Gross,
		CommissionFee:   rec.CommissionFee,
		ProcessingFee:   rec.ProcessingFee,
		WithholdingTax:  rec.WithholdingTax,
		Net:             rec.Net,
		Status:          string(rec.Status),
		ReferenceNumber: rec.ReferenceNumber,
		ProcessedAt:     rec.ProcessedAt,
		CreatedAt:       rec.CreatedAt,
	}
}

// ListPayouts returns sellers their own shop's payouts and admins all of them.
func (h *Handler) ListPayouts(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	records, err := h.payouts.List(r.Context(), actor)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	views := make([]payoutView, len(records))
	for i := range records {
		views[i] = toPayoutView(&records[i])
	}
	writeJSON(w, http.StatusOK, views)
}

// ProcessPayout marks a pending payout processed under the given bank
// reference. Processing is admin-only and happens at most once per record.
func (h *Handler) ProcessPayout(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req struct {
		ReferenceNumber string `json:"reference_number"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	rec, err := h.payouts.Process(r.Context(), actor, chi.URLParam(r, "id"), req.ReferenceNumber)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayoutView(rec))
}
