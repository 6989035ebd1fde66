// Package cart manages the per-user shopping cart.
//
// A cart is ephemeral, client-driven state: lines capture the product's
// unit price at the moment it was added, and only lines flagged as selected
// participate in the next checkout.
package cart

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Line is a single product-quantity pairing in a cart.
type Line struct {
	ProductID string          `json:"product_id"`
	ShopID    string          `json:"shop_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Selected  bool            `json:"selected"`
	AddedAt   time.Time       `json:"added_at"`
}

// Cart holds all lines for one user.
type Cart struct {
	UserID string `json:"user_id"`
	Lines  []Line `json:"lines"`
}

// Find returns the line for the given product, or nil.
func (c *Cart) Find(productID string) *Line {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			return &c.Lines[i]
		}
	}
	return nil
}

// Selected returns the lines flagged for checkout.
func (c *Cart) Selected() []Line {
	var out []Line
	for _, l := range c.Lines {
		if l.Selected {
			out = append(out, l)
		}
	}
	return out
}

// Store persists carts keyed by user. Load returns an empty cart (not an
// error) when the user has none.
type Store interface {
	Load(ctx context.Context, userID string) (*Cart, error)
	Save(ctx context.Context, c *Cart) error
}
