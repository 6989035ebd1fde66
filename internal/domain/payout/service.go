package payout

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/anecshop/marketplace/internal/domain/fault"
	"github.com/anecshop/marketplace/internal/domain/identity"
	"github.com/anecshop/marketplace/internal/domain/order"
)

// Interface check: the order service records payouts through us on
// order completion.
var _ order.PayoutRecorder = (*Service)(nil)

// Service manages payout records: creation on order completion and the
// single pending -> processed mutation.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a payout Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Record creates the pending payout for a completed order, splitting the
// order total as the gross amount.
func (s *Service) Record(ctx context.Context, o *order.Order) error {
	r := &Record{
		ID:          uuid.New().String(),
		OrderNumber: o.Number,
		ShopID:      o.ShopID,
		Breakdown:   Split(o.Total),
		Status:      StatusPending,
		CreatedAt:   s.now(),
	}
	if err := s.repo.Create(ctx, r); err != nil {
		return errors.Wrap(err, "create payout record")
	}
	return nil
}

// Process disburses a pending payout: it requires a non-empty bank
// reference number and is the sole mutation a record sees after creation.
// Processing an already-processed record, or processing with an empty
// reference, fails without mutating anything.
func (s *Service) Process(ctx context.Context, actor identity.Actor, id, reference string) (*Record, error) {
	if actor.Role != identity.RoleAdmin {
		return nil, &fault.PermissionError{Role: string(actor.Role), Action: "process payouts"}
	}
	if reference == "" {
		return nil, &fault.ValidationError{Reason: "reference number is required"}
	}

	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status != StatusPending {
		return nil, &fault.ValidationError{Reason: "payout already processed"}
	}

	processedAt := s.now()
	if err := s.repo.MarkProcessed(ctx, id, reference, processedAt); err != nil {
		if errors.Is(err, ErrAlreadyProcessed) {
			return nil, &fault.ValidationError{Reason: "payout already processed"}
		}
		return nil, errors.Wrap(err, "mark payout processed")
	}

	r.Status = StatusProcessed
	r.ReferenceNumber = reference
	r.ProcessedAt = &processedAt
	return r, nil
}

// List returns payouts visible to the actor: the shop's own records for
// sellers, everything for admins.
func (s *Service) List(ctx context.Context, actor identity.Actor) ([]Record, error) {
	switch actor.Role {
	case identity.RoleSeller:
		return s.repo.ListByShop(ctx, actor.ID)
	case identity.RoleAdmin:
		return s.repo.List(ctx)
	default:
		return nil, &fault.PermissionError{Role: string(actor.Role), Action: "list payouts"}
	}
}
