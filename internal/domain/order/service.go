package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/anecshop/marketplace/internal/domain/cart"
	"github.com/anecshop/marketplace/internal/domain/fault"
	"github.com/anecshop/marketplace/internal/domain/identity"
	"github.com/anecshop/marketplace/internal/domain/pricing"
)

// CartGateway is the slice of the cart service checkout needs: read the
// buyer's selected lines, then drop them once the order is persisted.
type CartGateway interface {
	SelectedLines(ctx context.Context, userID string) ([]cart.Line, error)
	ClearSelected(ctx context.Context, userID string) error
}

// PayoutRecorder creates the pending payout record when an order completes.
type PayoutRecorder interface {
	Record(ctx context.Context, o *Order) error
}

// Service encapsulates checkout and every status transition of the order
// lifecycle, including the role matrix gating who may trigger each edge:
//
//	seller:   confirm payment, mark shipped, cancel (to_pay, to_ship)
//	customer: confirm receipt, submit return, cancel own order at to_pay
//	admin:    approve refund, cancel on the abort path
type Service struct {
	repo    Repository
	carts   CartGateway
	payouts PayoutRecorder
	now     func() time.Time
}

// NewService creates an order Service with the required collaborators.
func NewService(repo Repository, carts CartGateway, payouts PayoutRecorder) *Service {
	return &Service{repo: repo, carts: carts, payouts: payouts, now: time.Now}
}

// CheckoutRequest is the buyer's input to checkout.
type CheckoutRequest struct {
	PaymentMethod PaymentMethod
	VoucherCode   string
}

// Checkout prices the buyer's selected cart lines, persists a new order in
// to_pay, and clears the selection from the cart. A checkout covers one
// shop: a selection spanning multiple shops must be checked out per shop.
func (s *Service) Checkout(ctx context.Context, actor identity.Actor, req CheckoutRequest) (*Order, error) {
	if actor.Role != identity.RoleCustomer {
		return nil, &fault.PermissionError{Role: string(actor.Role), Action: "check out"}
	}
	if !req.PaymentMethod.Valid() {
		return nil, &fault.ValidationError{Reason: "unknown payment method"}
	}

	lines, err := s.carts.SelectedLines(ctx, actor.ID)
	if err != nil {
		return nil, errors.Wrap(err, "load selected lines")
	}
	if len(lines) == 0 {
		return nil, &fault.ValidationError{Reason: "no items selected for checkout"}
	}

	shopID := lines[0].ShopID
	for _, l := range lines[1:] {
		if l.ShopID != shopID {
			return nil, &fault.ValidationError{Reason: "selection spans multiple shops; check out one shop at a time"}
		}
	}

	priced := make([]pricing.Line, len(lines))
	items := make([]Item, len(lines))
	for i, l := range lines {
		priced[i] = pricing.Line{UnitPrice: l.UnitPrice, Quantity: l.Quantity}
		items[i] = Item{
			ProductID: l.ProductID,
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		}
	}
	quote := pricing.Calculate(priced, req.VoucherCode)

	now := s.now()
	o := &Order{
		Number:        NewNumber(),
		BuyerID:       actor.ID,
		ShopID:        shopID,
		Items:         items,
		Subtotal:      quote.Subtotal,
		ShippingFee:   quote.ShippingFee,
		Discount:      quote.Discount,
		Tax:           quote.Tax,
		Total:         quote.Total,
		VoucherCode:   req.VoucherCode,
		Status:        StatusToPay,
		PaymentMethod: req.PaymentMethod,
		PaymentStatus: PaymentPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	if err := s.carts.ClearSelected(ctx, actor.ID); err != nil {
		return nil, errors.Wrap(err, "clear checked-out lines")
	}
	return o, nil
}

// ConfirmPayment records the seller's manual payment confirmation, moving
// to_pay -> to_ship and marking the order paid. For cash-on-delivery orders
// this is the only payment trigger there is.
func (s *Service) ConfirmPayment(ctx context.Context, actor identity.Actor, number string) (*Order, error) {
	o, err := s.get(ctx, number)
	if err != nil {
		return nil, err
	}
	if err := requireShopSide(actor, o, "confirm payment"); err != nil {
		return nil, err
	}
	if !o.Status.CanTransitionTo(StatusToShip) {
		return nil, invalidState(o.Status, StatusToShip)
	}

	if err := s.repo.ConfirmPayment(ctx, number); err != nil {
		if errors.Is(err, ErrStaleStatus) {
			return nil, invalidState(o.Status, StatusToShip)
		}
		return nil, errors.Wrap(err, "confirm payment")
	}
	o.Status = StatusToShip
	o.PaymentStatus = PaymentPaid
	o.UpdatedAt = s.now()
	return o, nil
}

// MarkShipped records the seller handing the parcel to the courier,
// moving to_ship -> to_receive.
func (s *Service) MarkShipped(ctx context.Context, actor identity.Actor, number string) (*Order, error) {
	return s.transition(ctx, number, StatusToReceive, func(o *Order) error {
		return requireShopSide(actor, o, "mark shipped")
	})
}

// ConfirmReceipt records the buyer confirming delivery, moving
// to_receive -> completed. Completion makes the order payable: the pending
// payout record is created here, with the fee breakdown captured at this
// moment.
func (s *Service) ConfirmReceipt(ctx context.Context, actor identity.Actor, number string) (*Order, error) {
	o, err := s.transition(ctx, number, StatusCompleted, func(o *Order) error {
		return requireBuyer(actor, o, "confirm receipt")
	})
	if err != nil {
		return nil, err
	}
	if err := s.payouts.Record(ctx, o); err != nil {
		return nil, errors.Wrap(err, "record payout")
	}
	return o, nil
}

// Cancel aborts an order before it is received. Buyers may cancel their own
// order while it is still unpaid; the shop and admins may cancel anywhere
// on the abort path (to_pay, to_ship).
func (s *Service) Cancel(ctx context.Context, actor identity.Actor, number string) (*Order, error) {
	return s.transition(ctx, number, StatusCancelled, func(o *Order) error {
		switch actor.Role {
		case identity.RoleCustomer:
			if o.BuyerID != actor.ID {
				return &fault.PermissionError{Role: string(actor.Role), Action: "cancel another buyer's order"}
			}
			if o.Status != StatusToPay {
				return invalidState(o.Status, StatusCancelled)
			}
			return nil
		case identity.RoleSeller:
			if o.ShopID != actor.ID {
				return &fault.PermissionError{Role: string(actor.Role), Action: "cancel another shop's order"}
			}
			return nil
		case identity.RoleAdmin:
			return nil
		default:
			return &fault.PermissionError{Role: string(actor.Role), Action: "cancel an order"}
		}
	})
}

// ApproveRefund is the administrative approval of a pending return,
// moving refund_pending -> refunded.
func (s *Service) ApproveRefund(ctx context.Context, actor identity.Actor, number string) (*Order, error) {
	return s.transition(ctx, number, StatusRefunded, func(o *Order) error {
		if actor.Role != identity.RoleAdmin {
			return &fault.PermissionError{Role: string(actor.Role), Action: "approve a refund"}
		}
		return nil
	})
}

// ReturnInput is the buyer's return/refund request form.
type ReturnInput struct {
	Reason    ReturnReason
	Method    ReturnMethod
	Packaging PackagingCondition
	ProofURLs []string
}

// maxProofMedia caps how many proof images/videos a request may reference.
const maxProofMedia = 5

// SubmitReturn files a return/refund request against a completed order and
// moves it to refund_pending. The completed-status precondition is a hard
// guard: any other status is rejected without mutation.
func (s *Service) SubmitReturn(ctx context.Context, actor identity.Actor, number string, in ReturnInput) (*ReturnRequest, error) {
	o, err := s.get(ctx, number)
	if err != nil {
		return nil, err
	}
	if err := requireBuyer(actor, o, "submit a return"); err != nil {
		return nil, err
	}
	if o.Status != StatusCompleted {
		return nil, invalidState(o.Status, StatusRefundPending)
	}

	if !in.Reason.Valid() {
		return nil, &fault.ValidationError{Reason: "unknown return reason"}
	}
	if !in.Method.Valid() {
		return nil, &fault.ValidationError{Reason: "unknown return method"}
	}
	if !in.Packaging.Valid() {
		return nil, &fault.ValidationError{Reason: "unknown packaging condition"}
	}
	if len(in.ProofURLs) > maxProofMedia {
		return nil, &fault.ValidationError{Reason: "too many proof media references"}
	}

	r := &ReturnRequest{
		ID:          uuid.New().String(),
		OrderNumber: number,
		Reason:      in.Reason,
		Method:      in.Method,
		Packaging:   in.Packaging,
		ProofURLs:   in.ProofURLs,
		SubmittedAt: s.now(),
	}
	if err := s.repo.CreateReturn(ctx, r); err != nil {
		if errors.Is(err, ErrStaleStatus) {
			return nil, invalidState(o.Status, StatusRefundPending)
		}
		return nil, errors.Wrap(err, "create return request")
	}
	return r, nil
}

// Get returns a single order. Buyers read their own orders, sellers their
// shop's, admins any.
func (s *Service) Get(ctx context.Context, actor identity.Actor, number string) (*Order, error) {
	o, err := s.get(ctx, number)
	if err != nil {
		return nil, err
	}
	if err := requireReader(actor, o); err != nil {
		return nil, err
	}
	return o, nil
}

// List returns the orders visible to the actor: own purchases for
// customers, the shop's sales for sellers, everything for admins.
func (s *Service) List(ctx context.Context, actor identity.Actor) ([]Order, error) {
	switch actor.Role {
	case identity.RoleCustomer:
		return s.repo.ListByBuyer(ctx, actor.ID)
	case identity.RoleSeller:
		return s.repo.ListByShop(ctx, actor.ID)
	case identity.RoleAdmin:
		return s.repo.List(ctx)
	default:
		return nil, &fault.PermissionError{Role: string(actor.Role), Action: "list orders"}
	}
}

func (s *Service) get(ctx context.Context, number string) (*Order, error) {
	o, err := s.repo.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// transition runs the shared edge check and compare-and-set update. check
// runs first so permission failures surface before state failures.
func (s *Service) transition(ctx context.Context, number string, to Status, check func(*Order) error) (*Order, error) {
	o, err := s.get(ctx, number)
	if err != nil {
		return nil, err
	}
	if err := check(o); err != nil {
		return nil, err
	}
	if !o.Status.CanTransitionTo(to) {
		return nil, invalidState(o.Status, to)
	}

	if err := s.repo.UpdateStatus(ctx, number, o.Status, to); err != nil {
		if errors.Is(err, ErrStaleStatus) {
			return nil, invalidState(o.Status, to)
		}
		return nil, errors.Wrap(err, "update status")
	}
	o.Status = to
	o.UpdatedAt = s.now()
	return o, nil
}

func invalidState(from, to Status) error {
	return &fault.InvalidStateError{Kind: "order", From: string(from), To: string(to)}
}

func requireBuyer(actor identity.Actor, o *Order, action string) error {
	if actor.Role == identity.RoleCustomer && o.BuyerID == actor.ID {
		return nil
	}
	return &fault.PermissionError{Role: string(actor.Role), Action: action}
}

func requireShopSide(actor identity.Actor, o *Order, action string) error {
	if actor.Role == identity.RoleAdmin {
		return nil
	}
	if actor.Role == identity.RoleSeller && o.ShopID == actor.ID {
		return nil
	}
	return &fault.PermissionError{Role: string(actor.Role), Action: action}
}

func requireReader(actor identity.Actor, o *Order) error {
	switch actor.Role {
	case identity.RoleAdmin:
		return nil
	case identity.RoleCustomer:
		if o.BuyerID == actor.ID {
			return nil
		}
	case identity.RoleSeller:
		if o.ShopID == actor.ID {
			return nil
		}
	}
	return &fault.PermissionError{Role: string(actor.Role), Action: "read this order"}
}
