// Package order implements the purchase lifecycle: checkout, the order
// status machine, and return/refund request submission.
package order

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status is an order's position in its lifecycle.
type Status string

const (
	StatusToPay         Status = "to_pay"
	StatusToShip        Status = "to_ship"
	StatusToReceive     Status = "to_receive"
	StatusCompleted     Status = "completed"
	StatusCancelled     Status = "cancelled"
	StatusRefundPending Status = "refund_pending"
	StatusRefunded      Status = "refunded"
)

// transitions is the allowed-edge set of the status machine. The forward
// path never skips a state; cancellation is only reachable before shipment
// is confirmed received.
var transitions = map[Status][]Status{
	StatusToPay:         {StatusToShip, StatusCancelled},
	StatusToShip:        {StatusToReceive, StatusCancelled},
	StatusToReceive:     {StatusCompleted},
	StatusCompleted:     {StatusRefundPending},
	StatusRefundPending: {StatusRefunded},
	StatusCancelled:     nil,
	StatusRefunded:      nil,
}

// CanTransitionTo reports whether to is a legal edge from s.
func (s Status) CanTransitionTo(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is expected in normal
// operation. A completed order is terminal unless superseded by a return
// request, which is the one outgoing edge it keeps.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusRefunded:
		return true
	default:
		return false
	}
}

// PaymentMethod is how the buyer pays for an order.
type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "cod"
	PaymentEWallet        PaymentMethod = "e_wallet"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	return m == PaymentCashOnDelivery || m == PaymentEWallet
}

// PaymentStatus tracks whether the buyer's payment has been confirmed.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

// Item is a line item frozen into an order at checkout: the unit price is
// the price at time of purchase, not a live catalog reference.
type Item struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Order is a purchase from a single shop. The price breakdown is computed
// once at checkout and persisted; it is never silently recomputed.
type Order struct {
	Number        string
	BuyerID       string
	ShopID        string
	Items         []Item
	Subtotal      decimal.Decimal
	ShippingFee   decimal.Decimal
	Discount      decimal.Decimal
	Tax           decimal.Decimal
	Total         decimal.Decimal
	VoucherCode   string
	Status        Status
	PaymentMethod PaymentMethod
	PaymentStatus PaymentStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ReturnReason is why the buyer wants to return a completed order.
type ReturnReason string

const (
	ReasonDamaged        ReturnReason = "damaged"
	ReasonWrongItem      ReturnReason = "wrong_item"
	ReasonNotAsDescribed ReturnReason = "not_as_described"
	ReasonMissingParts   ReturnReason = "missing_parts"
	ReasonChangedMind    ReturnReason = "changed_mind"
)

// Valid reports whether r is a known return reason.
func (r ReturnReason) Valid() bool {
	switch r {
	case ReasonDamaged, ReasonWrongItem, ReasonNotAsDescribed, ReasonMissingParts, ReasonChangedMind:
		return true
	default:
		return false
	}
}

// ReturnMethod is how the returned parcel travels back to the seller.
type ReturnMethod string

// ReturnCourierPickup is currently the only supported return method.
const ReturnCourierPickup ReturnMethod = "courier_pickup"

// Valid reports whether m is a known return method.
func (m ReturnMethod) Valid() bool {
	return m == ReturnCourierPickup
}

// PackagingCondition describes the state of the packaging being returned.
type PackagingCondition string

const (
	PackagingSealed     PackagingCondition = "sealed"
	PackagingOpenedGood PackagingCondition = "opened_good"
	PackagingDamaged    PackagingCondition = "damaged"
)

// Valid reports whether c is a known packaging condition.
func (c PackagingCondition) Valid() bool {
	switch c {
	case PackagingSealed, PackagingOpenedGood, PackagingDamaged:
		return true
	default:
		return false
	}
}

// ReturnRequest is a buyer's refund request against a completed order.
// Proof media are opaque object-storage URLs: stored and forwarded to
// reviewers, never inspected.
type ReturnRequest struct {
	ID          string
	OrderNumber string
	Reason      ReturnReason
	Method      ReturnMethod
	Packaging   PackagingCondition
	ProofURLs   []string
	SubmittedAt time.Time
}

// ErrStaleStatus is returned by Repository implementations when a
// compare-and-set status update finds the row no longer in the expected
// prior status.
var ErrStaleStatus = errors.New("order status changed concurrently")

// Repository defines persistence operations for orders. Status updates are
// single-row compare-and-set: they only apply when the row is still in the
// expected prior status, otherwise ErrStaleStatus.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByNumber(ctx context.Context, number string) (*Order, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]Order, error)
	ListByShop(ctx context.Context, shopID string) ([]Order, error)
	List(ctx context.Context) ([]Order, error)

	UpdateStatus(ctx context.Context, number string, from, to Status) error
	// ConfirmPayment atomically moves to_pay -> to_ship and flips the
	// payment status to paid.
	ConfirmPayment(ctx context.Context, number string) error
	// CreateReturn persists the request and moves the order
	// completed -> refund_pending in one transaction.
	CreateReturn(ctx context.Context, r *ReturnRequest) error
}

// numberAlphabet avoids 0/O and 1/I/L so order numbers survive being read
// aloud over support calls.
const numberAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// NewNumber generates a human-readable order number such as "ORD-7KQ2MT9C".
func NewNumber() string {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand only fails when the platform entropy source is
		// broken; nothing sensible to do but propagate via panic.
		panic(err)
	}
	out := make([]byte, 0, 12)
	out = append(out, "ORD-"...)
	for _, b := range buf {
		out = append(out, numberAlphabet[int(b)%len(numberAlphabet)])
	}
	return string(out)
}
