// Package payout derives and manages seller payouts.
//
// A payout record is created pending when its order completes. The fee
// breakdown is captured at that moment and persisted in full, so historical
// payouts keep their original arithmetic even if the platform rates change
// later.
package payout

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Platform fee rates deducted from the gross order amount.
var (
	CommissionRate     = decimal.New(3, -2)   // 3%
	ProcessingRate     = decimal.New(224, -4) // 2.24% payment processing
	WithholdingTaxRate = decimal.New(5, -3)   // 0.5%
)

// Status of a payout record. The only mutation after creation is
// pending -> processed.
type Status string

const (
	StatusPending   Status = "pending"
	StatusProcessed Status = "processed"
)

// Breakdown is the full fee split for a gross amount. The identity
// Net = Gross - CommissionFee - ProcessingFee - WithholdingTax holds for
// every breakdown regardless of when it is read.
type Breakdown struct {
	Gross          decimal.Decimal
	CommissionFee  decimal.Decimal
	ProcessingFee  decimal.Decimal
	WithholdingTax decimal.Decimal
	Net            decimal.Decimal
}

// Split computes the fee breakdown for a gross order amount. Each fee is
// rounded to two decimal places and the net is the exact remainder, so the
// breakdown identity holds with no rounding drift.
func Split(gross decimal.Decimal) Breakdown {
	commission := gross.Mul(CommissionRate).Round(2)
	processing := gross.Mul(ProcessingRate).Round(2)
	withholding := gross.Mul(WithholdingTaxRate).Round(2)

	return Breakdown{
		Gross:          gross,
		CommissionFee:  commission,
		ProcessingFee:  processing,
		WithholdingTax: withholding,
		Net:            gross.Sub(commission).Sub(processing).Sub(withholding),
	}
}

// Record is a seller payout derived from a completed order.
type Record struct {
	ID          string
	OrderNumber string
	ShopID      string
	Breakdown
	Status          Status
	ReferenceNumber string
	ProcessedAt     *time.Time
	CreatedAt       time.Time
}

// ErrAlreadyProcessed is returned by Repository implementations when the
// pending -> processed compare-and-set finds the record no longer pending.
var ErrAlreadyProcessed = errors.New("payout already processed")

// Repository defines persistence operations for payout records.
type Repository interface {
	Create(ctx context.Context, r *Record) error
	GetByID(ctx context.Context, id string) (*Record, error)
	ListByShop(ctx context.Context, shopID string) ([]Record, error)
	List(ctx context.Context) ([]Record, error)
	// MarkProcessed sets the reference number and processed timestamp,
	// only while the record is still pending; otherwise ErrAlreadyProcessed.
	MarkProcessed(ctx context.Context, id, reference string, processedAt time.Time) error
}
