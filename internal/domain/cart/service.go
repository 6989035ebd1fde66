package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/anecshop/marketplace/internal/domain/fault"
	"github.com/anecshop/marketplace/internal/domain/product"
)

// Service implements cart operations on top of a Store and the product
// catalog.
type Service struct {
	store    Store
	products product.Repository
	now      func() time.Time
}

// NewService creates a cart Service.
func NewService(store Store, products product.Repository) *Service {
	return &Service{store: store, products: products, now: time.Now}
}

// Get returns the user's cart, which may be empty.
func (s *Service) Get(ctx context.Context, userID string) (*Cart, error) {
	return s.store.Load(ctx, userID)
}

// Add puts a product into the cart, capturing its current catalog price.
// Adding a product already in the cart increases its quantity instead.
// New lines start selected.
func (s *Service) Add(ctx context.Context, userID, productID string, qty int) (*Cart, error) {
	if qty < 1 {
		return nil, &fault.ValidationError{Reason: "quantity must be at least 1"}
	}

	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return nil, &fault.NotFoundError{Kind: "product", ID: productID}
		}
		return nil, errors.Wrap(err, "get product")
	}

	c, err := s.store.Load(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}

	if l := c.Find(productID); l != nil {
		l.Quantity += qty
	} else {
		c.Lines = append(c.Lines, Line{
			ProductID: p.ID,
			ShopID:    p.ShopID,
			Name:      p.Name,
			UnitPrice: p.Price,
			Quantity:  qty,
			Selected:  true,
			AddedAt:   s.now(),
		})
	}

	if err := s.store.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// ChangeQuantity adjusts a line's quantity by delta. The quantity never
// drops below 1: decrementing at 1 is a no-op, not an error, and never
// removes the line. Removal is a separate explicit action.
func (s *Service) ChangeQuantity(ctx context.Context, userID, productID string, delta int) (*Cart, error) {
	c, err := s.store.Load(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}

	l := c.Find(productID)
	if l == nil {
		return nil, &fault.NotFoundError{Kind: "cart line", ID: productID}
	}

	l.Quantity += delta
	if l.Quantity < 1 {
		l.Quantity = 1
	}

	if err := s.store.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// SetSelected flags whether a line participates in the next checkout.
func (s *Service) SetSelected(ctx context.Context, userID, productID string, selected bool) (*Cart, error) {
	c, err := s.store.Load(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}

	l := c.Find(productID)
	if l == nil {
		return nil, &fault.NotFoundError{Kind: "cart line", ID: productID}
	}
	l.Selected = selected

	if err := s.store.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// Remove deletes a line from the cart. Removing a line that is not present
// is a no-op.
func (s *Service) Remove(ctx context.Context, userID, productID string) (*Cart, error) {
	c, err := s.store.Load(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}

	kept := c.Lines[:0]
	for _, l := range c.Lines {
		if l.ProductID != productID {
			kept = append(kept, l)
		}
	}
	c.Lines = kept

	if err := s.store.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// SelectedLines returns the lines flagged for checkout.
func (s *Service) SelectedLines(ctx context.Context, userID string) ([]Line, error) {
	c, err := s.store.Load(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	return c.Selected(), nil
}

// ClearSelected drops the selected lines, called after a successful checkout.
func (s *Service) ClearSelected(ctx context.Context, userID string) error {
	c, err := s.store.Load(ctx, userID)
	if err != nil {
		return errors.Wrap(err, "load cart")
	}

	kept := c.Lines[:0]
	for _, l := range c.Lines {
		if !l.Selected {
			kept = append(kept, l)
		}
	}
	c.Lines = kept

	return s.store.Save(ctx, c)
}
