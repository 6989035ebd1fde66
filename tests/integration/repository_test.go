//go:build integration

package integration

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/anecshop/marketplace/internal/domain/fault"
	"github.com/anecshop/marketplace/internal/domain/order"
	"github.com/anecshop/marketplace/internal/domain/payout"
	"github.com/anecshop/marketplace/internal/domain/product"
	"github.com/anecshop/marketplace/internal/repository"
)

var pool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image: "postgres:16-alpine",
			Env: map[string]string{
				"POSTGRES_USER":     "marketplace",
				"POSTGRES_PASSWORD": "marketplace",
				"POSTGRES_DB":       "marketplace",
			},
			ExposedPorts: []string{"5432/tcp"},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("start postgres container: %v", err)
	}
	defer func() {
		if err := container.Terminate(context.Background()); err != nil {
			log.Printf("terminate container: %v", err)
		}
	}()

	host, err := container.Host(ctx)
	if err != nil {
		log.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		log.Fatalf("container port: %v", err)
	}

	url := fmt.Sprintf("postgres://marketplace:marketplace@%s:%s/marketplace?sslmode=disable", host, port.Port())
	pool, err = repository.NewPool(ctx, url)
	if err != nil {
		log.Fatalf("create pool: %v", err)
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		log.Fatalf("run migrations: %v", err)
	}

	return m.Run()
}

func seedProduct(t *testing.T, id, shopID string, price decimal.Decimal) {
	t.Helper()
	repo := repository.NewProductRepository(pool)
	require.NoError(t, repo.Upsert(context.Background(), product.Product{
		ID:     id,
		ShopID: shopID,
		Name:   "Test Product " + id,
		Price:  price,
	}))
}

func newPersistedOrder(t *testing.T, buyerID, shopID string, status order.Status) *order.Order {
	t.Helper()

	o := &order.Order{
		Number:  order.NewNumber(),
		BuyerID: buyerID,
		ShopID:  shopID,
		Items: []order.Item{
			{ProductID: "p-int-1", Name: "Test Product", Quantity: 2, UnitPrice: decimal.New(25000, -2)},
		},
		Subtotal:      decimal.New(50000, -2),
		ShippingFee:   decimal.New(5000, -2),
		Discount:      decimal.Zero,
		Tax:           decimal.New(6000, -2),
		Total:         decimal.New(61000, -2),
		Status:        status,
		PaymentMethod: order.PaymentCashOnDelivery,
		PaymentStatus: order.PaymentPending,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	require.NoError(t, repository.NewOrderRepository(pool).Create(context.Background(), o))
	return o
}

func TestProductRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewProductRepository(pool)
	seedProduct(t, "p-round-1", "shop-int", decimal.New(129900, -2))

	got, err := repo.GetByID(ctx, "p-round-1")
	require.NoError(t, err)
	assert.Equal(t, "shop-int", got.ShopID)
	assert.True(t, got.Price.Equal(decimal.New(129900, -2)), "NUMERIC survives the round trip exactly")

	_, err = repo.GetByID(ctx, "p-never")
	assert.ErrorIs(t, err, product.ErrNotFound)
}

func TestOrderRepository_StatusCAS(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewOrderRepository(pool)
	o := newPersistedOrder(t, "buyer-cas", "shop-cas", order.StatusToPay)

	require.NoError(t, repo.UpdateStatus(ctx, o.Number, order.StatusToPay, order.StatusCancelled))

	// The second CAS from to_pay loses: the row moved on.
	err := repo.UpdateStatus(ctx, o.Number, order.StatusToPay, order.StatusToShip)
	assert.ErrorIs(t, err, order.ErrStaleStatus)

	got, err := repo.GetByNumber(ctx, o.Number)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, got.Status)
}

func TestOrderRepository_ConfirmPayment(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewOrderRepository(pool)
	o := newPersistedOrder(t, "buyer-pay", "shop-pay", order.StatusToPay)

	require.NoError(t, repo.ConfirmPayment(ctx, o.Number))

	got, err := repo.GetByNumber(ctx, o.Number)
	require.NoError(t, err)
	assert.Equal(t, order.StatusToShip, got.Status)
	assert.Equal(t, order.PaymentPaid, got.PaymentStatus)

	// Already past to_pay.
	assert.ErrorIs(t, repo.ConfirmPayment(ctx, o.Number), order.ErrStaleStatus)
}

func TestOrderRepository_UnknownNumber(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewOrderRepository(pool)

	_, err := repo.GetByNumber(ctx, "ORD-NEVERXXX")
	var nf *fault.NotFoundError
	assert.ErrorAs(t, err, &nf)

	err = repo.UpdateStatus(ctx, "ORD-NEVERXXX", order.StatusToPay, order.StatusToShip)
	assert.ErrorAs(t, err, &nf)
}

func TestOrderRepository_CreateReturnTransaction(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewOrderRepository(pool)
	o := newPersistedOrder(t, "buyer-ret", "shop-ret", order.StatusCompleted)

	rr := &order.ReturnRequest{
		ID:          "ret-int-1",
		OrderNumber: o.Number,
		Reason:      order.ReasonDamaged,
		Method:      order.ReturnCourierPickup,
		Packaging:   order.PackagingSealed,
		ProofURLs:   []string{"https://cdn.example.com/proof/1.jpg"},
		SubmittedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.CreateReturn(ctx, rr))

	got, err := repo.GetByNumber(ctx, o.Number)
	require.NoError(t, err)
	assert.Equal(t, order.StatusRefundPending, got.Status)

	// A second request against the same order fails the status CAS and
	// must not leave a second return row behind.
	rr2 := *rr
	rr2.ID = "ret-int-2"
	assert.ErrorIs(t, repo.CreateReturn(ctx, &rr2), order.ErrStaleStatus)

	var count int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT count(*) FROM return_requests WHERE order_number = $1`, o.Number).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestPayoutRepository_ProcessOnce(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewPayoutRepository(pool)
	o := newPersistedOrder(t, "buyer-po", "shop-po", order.StatusCompleted)

	rec := &payout.Record{
		ID:          "pay-int-1",
		OrderNumber: o.Number,
		ShopID:      o.ShopID,
		Breakdown:   payout.Split(o.Total),
		Status:      payout.StatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, repo.Create(ctx, rec))

	processedAt := time.Now().UTC()
	require.NoError(t, repo.MarkProcessed(ctx, rec.ID, "BANK-INT-1", processedAt))

	got, err := repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, payout.StatusProcessed, got.Status)
	assert.Equal(t, "BANK-INT-1", got.ReferenceNumber)
	require.NotNil(t, got.ProcessedAt)
	assert.True(t, got.Net.Equal(rec.Net))

	// Replays lose the CAS.
	err = repo.MarkProcessed(ctx, rec.ID, "BANK-INT-2", time.Now().UTC())
	assert.ErrorIs(t, err, payout.ErrAlreadyProcessed)

	got, err = repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "BANK-INT-1", got.ReferenceNumber, "original reference is kept")
}

func TestPayoutRepository_ListByShop(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewPayoutRepository(pool)
	o := newPersistedOrder(t, "buyer-ls", "shop-ls", order.StatusCompleted)

	rec := &payout.Record{
		ID:          "pay-int-ls",
		OrderNumber: o.Number,
		ShopID:      "shop-ls",
		Breakdown:   payout.Split(o.Total),
		Status:      payout.StatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, repo.Create(ctx, rec))

	records, err := repo.ListByShop(ctx, "shop-ls")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "pay-int-ls", records[0].ID)
}
