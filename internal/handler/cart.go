package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/anecshop/marketplace/internal/domain/cart"
	"github.com/anecshop/marketplace/internal/domain/product"
)

type productView struct {
	ID       string          `json:"id"`
	ShopID   string          `json:"shop_id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	ImageURL string          `json:"image_url,omitempty"`
}

// ListProducts returns the whole catalog.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	views := make([]productView, len(products))
	for i, p := range products {
		views[i] = toProductView(p)
	}
	writeJSON(w, http.StatusOK, views)
}

func toProductView(p product.Product) productView {
	return productView{
		ID:       p.ID,
		ShopID:   p.ShopID,
		Name:     p.Name,
		Price:    p.Price,
		ImageURL: p.ImageURL,
	}
}

type cartLineView struct {
	ProductID string          `json:"product_id"`
	ShopID    string          `json:"shop_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Selected  bool            `json:"selected"`
}

type cartView struct {
	Lines []cartLineView `json:"lines"`
}

func toCartView(c *cart.Cart) cartView {
	lines := make([]cartLineView, len(c.Lines))
	for i, l := range c.Lines {
		lines[i] = cartLineView{
			ProductID: l.ProductID,
			ShopID:    l.ShopID,
			Name:      l.Name,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
			Selected:  l.Selected,
		}
	}
	return cartView{Lines: lines}
}

// GetCart returns the actor's cart.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	c, err := h.carts.Get(r.Context(), actor.ID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartView(c))
}

// AddCartItem puts a product into the actor's cart.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	c, err := h.carts.Add(r.Context(), actor.ID, req.ProductID, req.Quantity)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartView(c))
}

// UpdateCartItem adjusts a line's quantity and/or selection flag.
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	productID := chi.URLParam(r, "productID")

	var req struct {
		QuantityDelta int   `json:"quantity_delta"`
		Selected      *bool `json:"selected"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	ctx := r.Context()
	c, err := h.carts.Get(ctx, actor.ID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	if req.QuantityDelta != 0 {
		if c, err = h.carts.ChangeQuantity(ctx, actor.ID, productID, req.QuantityDelta); err != nil {
			writeDomainError(w, r, err)
			return
		}
	}
	if req.Selected != nil {
		if c, err = h.carts.SetSelected(ctx, actor.ID, productID, *req.Selected); err != nil {
			writeDomainError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, toCartView(c))
}

// RemoveCartItem deletes a line from the cart.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	c, err := h.carts.Remove(r.Context(), actor.ID, chi.URLParam(r, "productID"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartView(c))
}
