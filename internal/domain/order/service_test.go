package order

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anecshop/marketplace/internal/domain/cart"
	"github.com/anecshop/marketplace/internal/domain/fault"
	"github.com/anecshop/marketplace/internal/domain/identity"
)

// --- Mock implementations ---

type mockRepo struct {
	orders  map[string]*Order
	returns []*ReturnRequest
}

func newMockRepo(orders ...*Order) *mockRepo {
	m := &mockRepo{orders: make(map[string]*Order)}
	for _, o := range orders {
		m.orders[o.Number] = o
	}
	return m
}

func (m *mockRepo) Create(_ context.Context, o *Order) error {
	m.orders[o.Number] = o
	return nil
}

func (m *mockRepo) GetByNumber(_ context.Context, number string) (*Order, error) {
	o, ok := m.orders[number]
	if !ok {
		return nil, &fault.NotFoundError{Kind: "order", ID: number}
	}
	cp := *o
	return &cp, nil
}

func (m *mockRepo) ListByBuyer(_ context.Context, buyerID string) ([]Order, error) {
	var out []Order
	for _, o := range m.orders {
		if o.BuyerID == buyerID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *mockRepo) ListByShop(_ context.Context, shopID string) ([]Order, error) {
	var out []Order
	for _, o := range m.orders {
		if o.ShopID == shopID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *mockRepo) List(_ context.Context) ([]Order, error) {
	var out []Order
	for _, o := range m.orders {
		out = append(out, *o)
	}
	return out, nil
}

func (m *mockRepo) UpdateStatus(_ context.Context, number string, from, to Status) error {
	o, ok := m.orders[number]
	if !ok {
		return &fault.NotFoundError{Kind: "order", ID: number}
	}
	if o.Status != from {
		return ErrStaleStatus
	}
	o.Status = to
	return nil
}

func (m *mockRepo) ConfirmPayment(_ context.Context, number string) error {
	o, ok := m.orders[number]
	if !ok {
		return &fault.NotFoundError{Kind: "order", ID: number}
	}
	if o.Status != StatusToPay {
		return ErrStaleStatus
	}
	o.Status = StatusToShip
	o.PaymentStatus = PaymentPaid
	return nil
}

func (m *mockRepo) CreateReturn(_ context.Context, r *ReturnRequest) error {
	o, ok := m.orders[r.OrderNumber]
	if !ok {
		return &fault.NotFoundError{Kind: "order", ID: r.OrderNumber}
	}
	if o.Status != StatusCompleted {
		return ErrStaleStatus
	}
	o.Status = StatusRefundPending
	m.returns = append(m.returns, r)
	return nil
}

type mockCarts struct {
	lines    []cart.Line
	err      error
	cleared  bool
	clearErr error
}

func (m *mockCarts) SelectedLines(_ context.Context, _ string) ([]cart.Line, error) {
	return m.lines, m.err
}

func (m *mockCarts) ClearSelected(_ context.Context, _ string) error {
	m.cleared = true
	return m.clearErr
}

type mockPayouts struct {
	recorded []*Order
	err      error
}

func (m *mockPayouts) Record(_ context.Context, o *Order) error {
	if m.err != nil {
		return m.err
	}
	m.recorded = append(m.recorded, o)
	return nil
}

// --- Helpers ---

var (
	buyer      = identity.Actor{ID: "buyer-1", Email: "b@example.com", Role: identity.RoleCustomer}
	otherBuyer = identity.Actor{ID: "buyer-2", Email: "b2@example.com", Role: identity.RoleCustomer}
	seller     = identity.Actor{ID: "shop-1", Email: "s@example.com", Role: identity.RoleSeller}
	admin      = identity.Actor{ID: "admin-1", Email: "a@example.com", Role: identity.RoleAdmin}
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testOrder(number string, status Status) *Order {
	return &Order{
		Number:        number,
		BuyerID:       buyer.ID,
		ShopID:        seller.ID,
		Items:         []Item{{ProductID: "p1", Name: "Mug", Quantity: 1, UnitPrice: dec("100.00")}},
		Subtotal:      dec("100.00"),
		ShippingFee:   dec("50.00"),
		Tax:           dec("12.00"),
		Discount:      decimal.Zero,
		Total:         dec("162.00"),
		Status:        status,
		PaymentMethod: PaymentCashOnDelivery,
		PaymentStatus: PaymentPending,
	}
}

func selectedLine(productID, shopID, price string, qty int) cart.Line {
	return cart.Line{
		ProductID: productID,
		ShopID:    shopID,
		Name:      productID,
		UnitPrice: dec(price),
		Quantity:  qty,
		Selected:  true,
	}
}

// --- Checkout ---

func TestCheckout_CreatesOrderAndClearsCart(t *testing.T) {
	repo := newMockRepo()
	carts := &mockCarts{lines: []cart.Line{
		selectedLine("p1", "shop-1", "100.00", 2),
		selectedLine("p2", "shop-1", "50.00", 1),
	}}
	svc := NewService(repo, carts, &mockPayouts{})

	o, err := svc.Checkout(context.Background(), buyer, CheckoutRequest{
		PaymentMethod: PaymentCashOnDelivery,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusToPay, o.Status)
	assert.Equal(t, PaymentPending, o.PaymentStatus)
	assert.Equal(t, buyer.ID, o.BuyerID)
	assert.Equal(t, "shop-1", o.ShopID)
	assert.Regexp(t, `^ORD-[A-Z2-9]{8}$`, o.Number)

	// subtotal 250, shipping 50, tax 30, total 330
	assert.True(t, dec("250.00").Equal(o.Subtotal))
	assert.True(t, dec("330.00").Equal(o.Total))
	sum := o.Subtotal.Add(o.ShippingFee).Add(o.Tax).Sub(o.Discount)
	assert.True(t, sum.Equal(o.Total))

	assert.True(t, carts.cleared)
	assert.Len(t, repo.orders, 1)
}

func TestCheckout_EmptySelection(t *testing.T) {
	svc := NewService(newMockRepo(), &mockCarts{}, &mockPayouts{})

	_, err := svc.Checkout(context.Background(), buyer, CheckoutRequest{
		PaymentMethod: PaymentEWallet,
	})

	var ve *fault.ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestCheckout_MixedShopSelection(t *testing.T) {
	carts := &mockCarts{lines: []cart.Line{
		selectedLine("p1", "shop-1", "10.00", 1),
		selectedLine("p2", "shop-2", "10.00", 1),
	}}
	svc := NewService(newMockRepo(), carts, &mockPayouts{})

	_, err := svc.Checkout(context.Background(), buyer, CheckoutRequest{
		PaymentMethod: PaymentEWallet,
	})

	var ve *fault.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.False(t, carts.cleared)
}

func TestCheckout_UnknownPaymentMethod(t *testing.T) {
	svc := NewService(newMockRepo(), &mockCarts{}, &mockPayouts{})

	_, err := svc.Checkout(context.Background(), buyer, CheckoutRequest{
		PaymentMethod: "barter",
	})

	var ve *fault.ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestCheckout_RequiresCustomerRole(t *testing.T) {
	svc := NewService(newMockRepo(), &mockCarts{}, &mockPayouts{})

	_, err := svc.Checkout(context.Background(), seller, CheckoutRequest{
		PaymentMethod: PaymentEWallet,
	})

	var pe *fault.PermissionError
	require.ErrorAs(t, err, &pe)
}

// --- Status machine ---

func TestTransitions_ForwardPathSucceedsStepwise(t *testing.T) {
	repo := newMockRepo(testOrder("ORD-TEST0001", StatusToPay))
	payouts := &mockPayouts{}
	svc := NewService(repo, &mockCarts{}, payouts)
	ctx := context.Background()

	o, err := svc.ConfirmPayment(ctx, seller, "ORD-TEST0001")
	require.NoError(t, err)
	assert.Equal(t, StatusToShip, o.Status)
	assert.Equal(t, PaymentPaid, o.PaymentStatus)

	o, err = svc.MarkShipped(ctx, seller, "ORD-TEST0001")
	require.NoError(t, err)
	assert.Equal(t, StatusToReceive, o.Status)

	o, err = svc.ConfirmReceipt(ctx, buyer, "ORD-TEST0001")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, o.Status)
	require.Len(t, payouts.recorded, 1)
	assert.Equal(t, "ORD-TEST0001", payouts.recorded[0].Number)
}

func TestTransitions_NoSkippingStates(t *testing.T) {
	repo := newMockRepo(testOrder("ORD-TEST0001", StatusToPay))
	svc := NewService(repo, &mockCarts{}, &mockPayouts{})

	// to_pay -> completed directly is not a legal edge.
	_, err := svc.ConfirmReceipt(context.Background(), buyer, "ORD-TEST0001")

	var ise *fault.InvalidStateError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, string(StatusToPay), ise.From)

	// Failed transition leaves the order untouched.
	o, err := svc.Get(context.Background(), buyer, "ORD-TEST0001")
	require.NoError(t, err)
	assert.Equal(t, StatusToPay, o.Status)
}

func TestTransitions_UnknownOrder(t *testing.T) {
	svc := NewService(newMockRepo(), &mockCarts{}, &mockPayouts{})

	_, err := svc.MarkShipped(context.Background(), seller, "ORD-MISSING1")

	var nf *fault.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestTransitions_RoleMatrix(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		call   func(svc *Service, ctx context.Context) error
	}{
		{
			name:   "buyer cannot confirm payment",
			status: StatusToPay,
			call: func(svc *Service, ctx context.Context) error {
				_, err := svc.ConfirmPayment(ctx, buyer, "ORD-TEST0001")
				return err
			},
		},
		{
			name:   "buyer cannot mark shipped",
			status: StatusToShip,
			call: func(svc *Service, ctx context.Context) error {
				_, err := svc.MarkShipped(ctx, buyer, "ORD-TEST0001")
				return err
			},
		},
		{
			name:   "seller cannot confirm receipt",
			status: StatusToReceive,
			call: func(svc *Service, ctx context.Context) error {
				_, err := svc.ConfirmReceipt(ctx, seller, "ORD-TEST0001")
				return err
			},
		},
		{
			name:   "another buyer cannot confirm receipt",
			status: StatusToReceive,
			call: func(svc *Service, ctx context.Context) error {
				_, err := svc.ConfirmReceipt(ctx, otherBuyer, "ORD-TEST0001")
				return err
			},
		},
		{
			name:   "seller cannot approve refund",
			status: StatusRefundPending,
			call: func(svc *Service, ctx context.Context) error {
				_, err := svc.ApproveRefund(ctx, seller, "ORD-TEST0001")
				return err
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepo(testOrder("ORD-TEST0001", tt.status))
			svc := NewService(repo, &mockCarts{}, &mockPayouts{})

			err := tt.call(svc, context.Background())

			var pe *fault.PermissionError
			require.ErrorAs(t, err, &pe)
			// No mutation on permission failure.
			assert.Equal(t, tt.status, repo.orders["ORD-TEST0001"].Status)
		})
	}
}

func TestCancel_BuyerOnlyBeforePayment(t *testing.T) {
	repo := newMockRepo(testOrder("ORD-TEST0001", StatusToPay))
	svc := NewService(repo, &mockCarts{}, &mockPayouts{})

	o, err := svc.Cancel(context.Background(), buyer, "ORD-TEST0001")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, o.Status)
}

func TestCancel_BuyerCannotCancelAfterPayment(t *testing.T) {
	repo := newMockRepo(testOrder("ORD-TEST0001", StatusToShip))
	svc := NewService(repo, &mockCarts{}, &mockPayouts{})

	_, err := svc.Cancel(context.Background(), buyer, "ORD-TEST0001")

	var ise *fault.InvalidStateError
	require.ErrorAs(t, err, &ise)
}

func TestCancel_SellerOnAbortPath(t *testing.T) {
	for _, status := range []Status{StatusToPay, StatusToShip} {
		repo := newMockRepo(testOrder("ORD-TEST0001", status))
		svc := NewService(repo, &mockCarts{}, &mockPayouts{})

		o, err := svc.Cancel(context.Background(), seller, "ORD-TEST0001")
		require.NoError(t, err, "from %s", status)
		assert.Equal(t, StatusCancelled, o.Status)
	}
}

func TestCancel_NotAfterReceipt(t *testing.T) {
	repo := newMockRepo(testOrder("ORD-TEST0001", StatusToReceive))
	svc := NewService(repo, &mockCarts{}, &mockPayouts{})

	_, err := svc.Cancel(context.Background(), admin, "ORD-TEST0001")

	var ise *fault.InvalidStateError
	require.ErrorAs(t, err, &ise)
}

func TestApproveRefund_ReachesTerminalState(t *testing.T) {
	repo := newMockRepo(testOrder("ORD-TEST0001", StatusRefundPending))
	svc := NewService(repo, &mockCarts{}, &mockPayouts{})

	o, err := svc.ApproveRefund(context.Background(), admin, "ORD-TEST0001")
	require.NoError(t, err)
	assert.Equal(t, StatusRefunded, o.Status)
	assert.True(t, o.Status.Terminal())
}

// --- Returns ---

func TestSubmitReturn_RequiresCompletedOrder(t *testing.T) {
	repo := newMockRepo(testOrder("ORD-TEST0001", StatusToShip))
	svc := NewService(repo, &mockCarts{}, &mockPayouts{})

	_, err := svc.SubmitReturn(context.Background(), buyer, "ORD-TEST0001", ReturnInput{
		Reason:    ReasonDamaged,
		Method:    ReturnCourierPickup,
		Packaging: PackagingOpenedGood,
	})

	var ise *fault.InvalidStateError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, StatusToShip, repo.orders["ORD-TEST0001"].Status)
}

func TestSubmitReturn_AgainstCompletedOrder(t *testing.T) {
	repo := newMockRepo(testOrder("ORD-TEST0001", StatusCompleted))
	svc := NewService(repo, &mockCarts{}, &mockPayouts{})

	r, err := svc.SubmitReturn(context.Background(), buyer, "ORD-TEST0001", ReturnInput{
		Reason:    ReasonWrongItem,
		Method:    ReturnCourierPickup,
		Packaging: PackagingSealed,
		ProofURLs: []string{"https://cdn.example.com/proof/1.jpg"},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, r.ID)
	assert.Equal(t, ReasonWrongItem, r.Reason)
	assert.Equal(t, StatusRefundPending, repo.orders["ORD-TEST0001"].Status)
	require.Len(t, repo.returns, 1)
}

func TestSubmitReturn_ValidatesEnums(t *testing.T) {
	tests := []struct {
		name string
		in   ReturnInput
	}{
		{name: "bad reason", in: ReturnInput{Reason: "bored", Method: ReturnCourierPickup, Packaging: PackagingSealed}},
		{name: "bad method", in: ReturnInput{Reason: ReasonDamaged, Method: "teleport", Packaging: PackagingSealed}},
		{name: "bad packaging", in: ReturnInput{Reason: ReasonDamaged, Method: ReturnCourierPickup, Packaging: "confetti"}},
		{name: "too many proofs", in: ReturnInput{
			Reason: ReasonDamaged, Method: ReturnCourierPickup, Packaging: PackagingSealed,
			ProofURLs: []string{"a", "b", "c", "d", "e", "f"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepo(testOrder("ORD-TEST0001", StatusCompleted))
			svc := NewService(repo, &mockCarts{}, &mockPayouts{})

			_, err := svc.SubmitReturn(context.Background(), buyer, "ORD-TEST0001", tt.in)

			var ve *fault.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, StatusCompleted, repo.orders["ORD-TEST0001"].Status)
		})
	}
}

func TestSubmitReturn_OnlyBuyer(t *testing.T) {
	repo := newMockRepo(testOrder("ORD-TEST0001", StatusCompleted))
	svc := NewService(repo, &mockCarts{}, &mockPayouts{})

	_, err := svc.SubmitReturn(context.Background(), seller, "ORD-TEST0001", ReturnInput{
		Reason:    ReasonDamaged,
		Method:    ReturnCourierPickup,
		Packaging: PackagingSealed,
	})

	var pe *fault.PermissionError
	require.ErrorAs(t, err, &pe)
}

// --- Reads ---

func TestGet_OwnershipGating(t *testing.T) {
	repo := newMockRepo(testOrder("ORD-TEST0001", StatusToPay))
	svc := NewService(repo, &mockCarts{}, &mockPayouts{})
	ctx := context.Background()

	for _, a := range []identity.Actor{buyer, seller, admin} {
		_, err := svc.Get(ctx, a, "ORD-TEST0001")
		assert.NoError(t, err, "role %s", a.Role)
	}

	_, err := svc.Get(ctx, otherBuyer, "ORD-TEST0001")
	var pe *fault.PermissionError
	require.ErrorAs(t, err, &pe)
}

func TestStatus_TransitionTable(t *testing.T) {
	legal := []struct{ from, to Status }{
		{StatusToPay, StatusToShip},
		{StatusToPay, StatusCancelled},
		{StatusToShip, StatusToReceive},
		{StatusToShip, StatusCancelled},
		{StatusToReceive, StatusCompleted},
		{StatusCompleted, StatusRefundPending},
		{StatusRefundPending, StatusRefunded},
	}
	for _, e := range legal {
		assert.True(t, e.from.CanTransitionTo(e.to), "%s -> %s", e.from, e.to)
	}

	illegal := []struct{ from, to Status }{
		{StatusToPay, StatusCompleted},
		{StatusToPay, StatusToReceive},
		{StatusToShip, StatusCompleted},
		{StatusToReceive, StatusCancelled},
		{StatusCompleted, StatusToPay},
		{StatusCancelled, StatusToPay},
		{StatusRefunded, StatusCompleted},
		{StatusRefundPending, StatusCompleted},
	}
	for _, e := range illegal {
		assert.False(t, e.from.CanTransitionTo(e.to), "%s -> %s", e.from, e.to)
	}
}
