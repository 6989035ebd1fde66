package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anecshop/marketplace/internal/domain/fault"
	"github.com/anecshop/marketplace/internal/domain/payout"
)

const (
	createPayoutSQL = `INSERT INTO payouts (id, order_number, shop_id,
		gross, commission_fee, processing_fee, withholding_tax, net,
		status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	payoutColumns = `id, order_number, shop_id, gross, commission_fee,
		processing_fee, withholding_tax, net, status, reference_number,
		processed_at, created_at`

	getPayoutSQL = `SELECT ` + payoutColumns + ` FROM payouts WHERE id = $1`

	listPayoutsByShopSQL = `SELECT ` + payoutColumns + ` FROM payouts
		WHERE shop_id = $1 ORDER BY created_at DESC`

	listPayoutsSQL = `SELECT ` + payoutColumns + ` FROM payouts ORDER BY created_at DESC`

	listProcessedPayoutsSQL = `SELECT ` + payoutColumns + ` FROM payouts
		WHERE status = 'processed' ORDER BY processed_at`

	markPayoutProcessedSQL = `UPDATE payouts
		SET status = $2, reference_number = $3, processed_at = $4
		WHERE id = $1 AND status = $5`

	payoutExistsSQL = `SELECT EXISTS (SELECT 1 FROM payouts WHERE id = $1)`
)

var _ payout.Repository = (*PayoutRepository)(nil)

// PayoutRepository implements payout.Repository backed by PostgreSQL.
type PayoutRepository struct {
	pool *pgxpool.Pool
}

// NewPayoutRepository returns a PayoutRepository that uses the given pool.
func NewPayoutRepository(pool *pgxpool.Pool) *PayoutRepository {
	return &PayoutRepository{pool: pool}
}

// Create persists a new pending payout record with its full fee breakdown.
func (r *PayoutRepository) Create(ctx context.Context, rec *payout.Record) error {
	_, err := r.pool.Exec(ctx, createPayoutSQL,
		rec.ID, rec.OrderNumber, rec.ShopID,
		rec.Gross, rec.CommissionFee, rec.ProcessingFee, rec.WithholdingTax, rec.Net,
		rec.Status, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating payout %q: %w", rec.ID, err)
	}
	return nil
}

// GetByID returns a single payout record.
func (r *PayoutRepository) GetByID(ctx context.Context, id string) (*payout.Record, error) {
	rows, err := r.pool.Query(ctx, getPayoutSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting payout %q: %w", id, err)
	}

	rec, err := pgx.CollectExactlyOneRow(rows, scanPayout)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &fault.NotFoundError{Kind: "payout", ID: id}
		}
		return nil, fmt.Errorf("getting payout %q: %w", id, err)
	}
	return &rec, nil
}

// ListByShop returns the shop's payout records, newest first.
func (r *PayoutRepository) ListByShop(ctx context.Context, shopID string) ([]payout.Record, error) {
	rows, err := r.pool.Query(ctx, listPayoutsByShopSQL, shopID)
	if err != nil {
		return nil, fmt.Errorf("listing payouts for shop %q: %w", shopID, err)
	}
	return pgx.CollectRows(rows, scanPayout)
}

// List returns all payout records, newest first.
func (r *PayoutRepository) List(ctx context.Context) ([]payout.Record, error) {
	rows, err := r.pool.Query(ctx, listPayoutsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing payouts: %w", err)
	}
	return pgx.CollectRows(rows, scanPayout)
}

// ListProcessed returns processed payouts in processing order, for the
// accounting export.
func (r *PayoutRepository) ListProcessed(ctx context.Context) ([]payout.Record, error) {
	rows, err := r.pool.Query(ctx, listProcessedPayoutsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing processed payouts: %w", err)
	}
	return pgx.CollectRows(rows, scanPayout)
}

// MarkProcessed applies pending -> processed only when the record is still
// pending, so a double submission cannot overwrite the reference number.
func (r *PayoutRepository) MarkProcessed(ctx context.Context, id, reference string, processedAt time.Time) error {
	tag, err := r.pool.Exec(ctx, markPayoutProcessedSQL,
		id, payout.StatusProcessed, reference, processedAt, payout.StatusPending,
	)
	if err != nil {
		return fmt.Errorf("marking payout %q processed: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, payoutExistsSQL, id).Scan(&exists); err != nil {
			return fmt.Errorf("checking payout %q: %w", id, err)
		}
		if !exists {
			return &fault.NotFoundError{Kind: "payout", ID: id}
		}
		return payout.ErrAlreadyProcessed
	}
	return nil
}

func scanPayout(row pgx.CollectableRow) (payout.Record, error) {
	var rec payout.Record
	err := row.Scan(
		&rec.ID, &rec.OrderNumber, &rec.ShopID,
		&rec.Gross, &rec.CommissionFee, &rec.ProcessingFee, &rec.WithholdingTax, &rec.Net,
		&rec.Status, &rec.ReferenceNumber, &rec.ProcessedAt, &rec.CreatedAt,
	)
	return rec, err
}
