package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anecshop/marketplace/internal/domain/fault"
	"github.com/anecshop/marketplace/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders (number, buyer_id, shop_id, items,
		subtotal, shipping_fee, discount, tax, total, voucher_code,
		status, payment_method, payment_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	orderColumns = `number, buyer_id, shop_id, items, subtotal, shipping_fee,
		discount, tax, total, voucher_code, status, payment_method,
		payment_status, created_at, updated_at`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE number = $1`

	listOrdersByBuyerSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE buyer_id = $1 ORDER BY created_at DESC`

	listOrdersByShopSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE shop_id = $1 ORDER BY created_at DESC`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC`

	updateOrderStatusSQL = `UPDATE orders SET status = $3, updated_at = now()
		WHERE number = $1 AND status = $2`

	confirmPaymentSQL = `UPDATE orders SET status = $2, payment_status = $3, updated_at = now()
		WHERE number = $1 AND status = $4`

	orderExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE number = $1)`

	createReturnSQL = `INSERT INTO return_requests (id, order_number, reason, method, packaging, proof_urls, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
// Status updates are single-row compare-and-set statements, so a failed
// transition never leaves a partial mutation behind.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. Line items are serialized to JSON for
// storage in the JSONB column.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}

	_, err = r.pool.Exec(ctx, createOrderSQL,
		o.Number, o.BuyerID, o.ShopID, itemsJSON,
		o.Subtotal, o.ShippingFee, o.Discount, o.Tax, o.Total, o.VoucherCode,
		o.Status, o.PaymentMethod, o.PaymentStatus, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.Number, err)
	}
	return nil
}

// GetByNumber returns a single order by its order number.
func (r *OrderRepository) GetByNumber(ctx context.Context, number string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, number)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", number, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &fault.NotFoundError{Kind: "order", ID: number}
		}
		return nil, fmt.Errorf("getting order %q: %w", number, err)
	}
	return &o, nil
}

// ListByBuyer returns the buyer's orders, newest first.
func (r *OrderRepository) ListByBuyer(ctx context.Context, buyerID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByBuyerSQL, buyerID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for buyer %q: %w", buyerID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// ListByShop returns the shop's orders, newest first.
func (r *OrderRepository) ListByShop(ctx context.Context, shopID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByShopSQL, shopID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for shop %q: %w", shopID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// List returns all orders, newest first.
func (r *OrderRepository) List(ctx context.Context) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// UpdateStatus applies from -> to only when the row is still in from.
func (r *OrderRepository) UpdateStatus(ctx context.Context, number string, from, to order.Status) error {
	tag, err := r.pool.Exec(ctx, updateOrderStatusSQL, number, from, to)
	if err != nil {
		return fmt.Errorf("updating order %q status: %w", number, err)
	}
	if tag.RowsAffected() == 0 {
		return r.missReason(ctx, number)
	}
	return nil
}

// ConfirmPayment atomically moves to_pay -> to_ship and marks the order paid.
func (r *OrderRepository) ConfirmPayment(ctx context.Context, number string) error {
	tag, err := r.pool.Exec(ctx, confirmPaymentSQL,
		number, order.StatusToShip, order.PaymentPaid, order.StatusToPay,
	)
	if err != nil {
		return fmt.Errorf("confirming payment for order %q: %w", number, err)
	}
	if tag.RowsAffected() == 0 {
		return r.missReason(ctx, number)
	}
	return nil
}

// CreateReturn persists the return request and moves its order
// completed -> refund_pending in one transaction.
func (r *OrderRepository) CreateReturn(ctx context.Context, req *order.ReturnRequest) error {
	proofJSON, err := json.Marshal(req.ProofURLs)
	if err != nil {
		return fmt.Errorf("marshaling proof urls: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning return transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	tag, err := tx.Exec(ctx, updateOrderStatusSQL,
		req.OrderNumber, order.StatusCompleted, order.StatusRefundPending,
	)
	if err != nil {
		return fmt.Errorf("updating order %q status: %w", req.OrderNumber, err)
	}
	if tag.RowsAffected() == 0 {
		return r.missReason(ctx, req.OrderNumber)
	}

	_, err = tx.Exec(ctx, createReturnSQL,
		req.ID, req.OrderNumber, req.Reason, req.Method, req.Packaging,
		proofJSON, req.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("creating return request for order %q: %w", req.OrderNumber, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing return transaction: %w", err)
	}
	return nil
}

// missReason distinguishes a compare-and-set miss: the order is either gone
// or no longer in the expected status.
func (r *OrderRepository) missReason(ctx context.Context, number string) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, orderExistsSQL, number).Scan(&exists); err != nil {
		return fmt.Errorf("checking order %q: %w", number, err)
	}
	if !exists {
		return &fault.NotFoundError{Kind: "order", ID: number}
	}
	return order.ErrStaleStatus
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o         order.Order
		itemsJSON []byte
	)
	err := row.Scan(
		&o.Number, &o.BuyerID, &o.ShopID, &itemsJSON,
		&o.Subtotal, &o.ShippingFee, &o.Discount, &o.Tax, &o.Total, &o.VoucherCode,
		&o.Status, &o.PaymentMethod, &o.PaymentStatus, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return o, err
	}
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return o, fmt.Errorf("unmarshaling items for order %q: %w", o.Number, err)
	}
	return o, nil
}
