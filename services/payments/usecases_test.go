package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// MockOrderLookup simula o serviço de pedidos
type MockOrderLookup struct {
	mock.Mock
}

func (m *MockOrderLookup) GetLineItems(ctx context.Context, orderID string) ([]OrderLine, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]OrderLine), args.Error(1)
}

func (m *MockOrderLookup) SetStatus(ctx context.Context, orderID string, status string) error {
	args := m.Called(ctx, orderID, status)
	return args.Error(0)
}

// MockInventoryLedger simula o serviço de inventário
type MockInventoryLedger struct {
	mock.Mock
}

func (m *MockInventoryLedger) ConfirmReservation(ctx context.Context, productID string, qty int) error {
	args := m.Called(ctx, productID, qty)
	return args.Error(0)
}

func (m *MockInventoryLedger) ReleaseStock(ctx context.Context, productID string, qty int) error {
	args := m.Called(ctx, productID, qty)
	return args.Error(0)
}

// MockGateway simula o gateway de pagamento
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Authorize(ctx context.Context, transactionRef string, amount int) (PaymentStatus, error) {
	args := m.Called(ctx, transactionRef, amount)
	return args.Get(0).(PaymentStatus), args.Error(1)
}

// inMemoryPaymentRepository implementa PaymentRepository com a mesma
// semântica condicional dos UPDATEs do Postgres
type inMemoryPaymentRepository struct {
	payments map[string]*Payment
	steps    map[string]map[string]bool
}

func newInMemoryPaymentRepository() *inMemoryPaymentRepository {
	return &inMemoryPaymentRepository{
		payments: make(map[string]*Payment),
		steps:    make(map[string]map[string]bool),
	}
}

func (r *inMemoryPaymentRepository) InsertPayment(ctx context.Context, p *Payment) error {
	cp := *p
	r.payments[p.TransactionRef] = &cp
	return nil
}

func (r *inMemoryPaymentRepository) GetPaymentByRef(ctx context.Context, ref string) (*Payment, error) {
	p, ok := r.payments[ref]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *inMemoryPaymentRepository) ResolvePayment(ctx context.Context, ref string, status PaymentStatus) (bool, error) {
	p, ok := r.payments[ref]
	if !ok || p.Status != PaymentStatusPending {
		return false, nil
	}
	p.Status = status
	p.UpdatedAt = time.Now()
	return true, nil
}

func (r *inMemoryPaymentRepository) MarkStepCompleted(ctx context.Context, ref, productID string, qty int, action string) error {
	if r.steps[ref] == nil {
		r.steps[ref] = make(map[string]bool)
	}
	r.steps[ref][productID] = true
	return nil
}

func (r *inMemoryPaymentRepository) CompletedSteps(ctx context.Context, ref string) (map[string]bool, error) {
	done := make(map[string]bool, len(r.steps[ref]))
	for k, v := range r.steps[ref] {
		done[k] = v
	}
	return done, nil
}

func (r *inMemoryPaymentRepository) MarkSettled(ctx context.Context, ref string) error {
	if p, ok := r.payments[ref]; ok && p.SettledAt == nil {
		now := time.Now()
		p.SettledAt = &now
	}
	return nil
}

func newTestPaymentUseCase(repo PaymentRepository, orders OrderLookup, inventory InventoryLedger, gateway PaymentGateway) *PaymentUseCase {
	tracer := tracenoop.NewTracerProvider().Tracer("test")
	counter, _ := metricnoop.NewMeterProvider().Meter("test").Int64Counter("payments_settled_total")
	return NewPaymentUseCase(repo, orders, inventory, gateway, tracer, counter)
}

func twoLineOrder() []OrderLine {
	return []OrderLine{
		{ProductID: "P", Quantity: 2},
		{ProductID: "Q", Quantity: 1},
	}
}

func TestInitiatePayment_SuccessConfirmsEveryLineAndMarksOrderPaid(t *testing.T) {
	// Arrange
	repo := newInMemoryPaymentRepository()
	orders := new(MockOrderLookup)
	inventory := new(MockInventoryLedger)
	gateway := new(MockGateway)

	orders.On("GetLineItems", mock.Anything, "O").Return(twoLineOrder(), nil)
	gateway.On("Authorize", mock.Anything, mock.Anything, 300).Return(PaymentStatusSuccess, nil)
	inventory.On("ConfirmReservation", mock.Anything, "P", 2).Return(nil)
	inventory.On("ConfirmReservation", mock.Anything, "Q", 1).Return(nil)
	orders.On("SetStatus", mock.Anything, "O", OrderStatusPaid).Return(nil)

	uc := newTestPaymentUseCase(repo, orders, inventory, gateway)

	// Act
	payment, err := uc.InitiatePayment(context.Background(), InitiatePaymentRequest{
		OrderID: "O", UserID: "U", Amount: 300,
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, PaymentStatusSuccess, payment.Status)
	assert.True(t, payment.Settled())
	inventory.AssertExpectations(t)
	orders.AssertExpectations(t)
	inventory.AssertNumberOfCalls(t, "ConfirmReservation", 2)
}

func TestInitiatePayment_UnknownOrder(t *testing.T) {
	repo := newInMemoryPaymentRepository()
	orders := new(MockOrderLookup)
	inventory := new(MockInventoryLedger)
	gateway := new(MockGateway)

	orders.On("GetLineItems", mock.Anything, "missing").Return(nil, ErrOrderNotFound)

	uc := newTestPaymentUseCase(repo, orders, inventory, gateway)

	_, err := uc.InitiatePayment(context.Background(), InitiatePaymentRequest{
		OrderID: "missing", UserID: "U", Amount: 100,
	})

	assert.ErrorIs(t, err, ErrOrderNotFound)
	assert.Empty(t, repo.payments)
}

func TestInitiatePayment_GatewayUnavailableLeavesPaymentPending(t *testing.T) {
	repo := newInMemoryPaymentRepository()
	orders := new(MockOrderLookup)
	inventory := new(MockInventoryLedger)
	gateway := new(MockGateway)

	orders.On("GetLineItems", mock.Anything, "O").Return(twoLineOrder(), nil)
	gateway.On("Authorize", mock.Anything, mock.Anything, 100).Return(PaymentStatus(""), errors.New("gateway timeout"))

	uc := newTestPaymentUseCase(repo, orders, inventory, gateway)

	payment, err := uc.InitiatePayment(context.Background(), InitiatePaymentRequest{
		OrderID: "O", UserID: "U", Amount: 100,
	})

	require.NoError(t, err)
	assert.Equal(t, PaymentStatusPending, payment.Status)
	assert.False(t, payment.Settled())
	inventory.AssertNotCalled(t, "ConfirmReservation", mock.Anything, mock.Anything, mock.Anything)
	inventory.AssertNotCalled(t, "ReleaseStock", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessGatewayCallback_FailureReleasesEveryLine(t *testing.T) {
	// Arrange
	repo := newInMemoryPaymentRepository()
	orders := new(MockOrderLookup)
	inventory := new(MockInventoryLedger)
	gateway := new(MockGateway)

	payment := NewPayment("O", "U", 300)
	require.NoError(t, repo.InsertPayment(context.Background(), payment))

	orders.On("GetLineItems", mock.Anything, "O").Return(twoLineOrder(), nil)
	inventory.On("ReleaseStock", mock.Anything, "P", 2).Return(nil)
	inventory.On("ReleaseStock", mock.Anything, "Q", 1).Return(nil)
	orders.On("SetStatus", mock.Anything, "O", OrderStatusPaymentFailed).Return(nil)

	uc := newTestPaymentUseCase(repo, orders, inventory, gateway)

	// Act
	updated, err := uc.ProcessGatewayCallback(context.Background(), payment.TransactionRef, PaymentStatusFailed)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, PaymentStatusFailed, updated.Status)
	inventory.AssertExpectations(t)
	orders.AssertExpectations(t)
	inventory.AssertNotCalled(t, "ConfirmReservation", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessGatewayCallback_DuplicateReturnsPriorState(t *testing.T) {
	// Arrange
	repo := newInMemoryPaymentRepository()
	orders := new(MockOrderLookup)
	inventory := new(MockInventoryLedger)
	gateway := new(MockGateway)

	payment := NewPayment("O", "U", 300)
	require.NoError(t, repo.InsertPayment(context.Background(), payment))

	orders.On("GetLineItems", mock.Anything, "O").Return(twoLineOrder(), nil)
	inventory.On("ConfirmReservation", mock.Anything, "P", 2).Return(nil)
	inventory.On("ConfirmReservation", mock.Anything, "Q", 1).Return(nil)
	orders.On("SetStatus", mock.Anything, "O", OrderStatusPaid).Return(nil)

	uc := newTestPaymentUseCase(repo, orders, inventory, gateway)
	ctx := context.Background()

	first, err := uc.ProcessGatewayCallback(ctx, payment.TransactionRef, PaymentStatusSuccess)
	require.NoError(t, err)

	// Act: reentrega do mesmo desfecho (e um conflitante)
	second, err := uc.ProcessGatewayCallback(ctx, payment.TransactionRef, PaymentStatusSuccess)
	require.NoError(t, err)
	third, err := uc.ProcessGatewayCallback(ctx, payment.TransactionRef, PaymentStatusFailed)
	require.NoError(t, err)

	// Assert: estado observável idêntico, fan-out não re-executado
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.Status, third.Status)
	inventory.AssertNumberOfCalls(t, "ConfirmReservation", 2)
	inventory.AssertNotCalled(t, "ReleaseStock", mock.Anything, mock.Anything, mock.Anything)
	orders.AssertNumberOfCalls(t, "SetStatus", 1)
}

func TestProcessGatewayCallback_UnknownTransactionRef(t *testing.T) {
	repo := newInMemoryPaymentRepository()
	uc := newTestPaymentUseCase(repo, new(MockOrderLookup), new(MockInventoryLedger), new(MockGateway))

	_, err := uc.ProcessGatewayCallback(context.Background(), "missing-ref", PaymentStatusSuccess)

	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestProcessGatewayCallback_RejectsNonTerminalTarget(t *testing.T) {
	repo := newInMemoryPaymentRepository()
	payment := NewPayment("O", "U", 100)
	require.NoError(t, repo.InsertPayment(context.Background(), payment))

	uc := newTestPaymentUseCase(repo, new(MockOrderLookup), new(MockInventoryLedger), new(MockGateway))

	_, err := uc.ProcessGatewayCallback(context.Background(), payment.TransactionRef, PaymentStatusPending)

	assert.ErrorIs(t, err, ErrNotTerminalTarget)
	stored := repo.payments[payment.TransactionRef]
	assert.Equal(t, PaymentStatusPending, stored.Status)
}

func TestProcessGatewayCallback_RetryResumesUnfinishedFanOut(t *testing.T) {
	// Arrange: a confirmação de Q falha na primeira entrega
	repo := newInMemoryPaymentRepository()
	orders := new(MockOrderLookup)
	inventory := new(MockInventoryLedger)
	gateway := new(MockGateway)

	payment := NewPayment("O", "U", 300)
	require.NoError(t, repo.InsertPayment(context.Background(), payment))

	orders.On("GetLineItems", mock.Anything, "O").Return(twoLineOrder(), nil)
	inventory.On("ConfirmReservation", mock.Anything, "P", 2).Return(nil)
	inventory.On("ConfirmReservation", mock.Anything, "Q", 1).Return(errors.New("inventory unavailable")).Once()
	inventory.On("ConfirmReservation", mock.Anything, "Q", 1).Return(nil)
	orders.On("SetStatus", mock.Anything, "O", OrderStatusPaid).Return(nil)

	uc := newTestPaymentUseCase(repo, orders, inventory, gateway)
	ctx := context.Background()

	// Act: primeira entrega falha no meio do fan-out
	_, err := uc.ProcessGatewayCallback(ctx, payment.TransactionRef, PaymentStatusSuccess)
	require.Error(t, err)

	stored := repo.payments[payment.TransactionRef]
	assert.Equal(t, PaymentStatusSuccess, stored.Status, "status write happens-before the fan-out")
	assert.Nil(t, stored.SettledAt)
	assert.True(t, repo.steps[payment.TransactionRef]["P"], "completed line recorded in the saga log")
	assert.False(t, repo.steps[payment.TransactionRef]["Q"])

	// Act: reentrega retoma do cursor
	resumed, err := uc.ProcessGatewayCallback(ctx, payment.TransactionRef, PaymentStatusSuccess)

	// Assert: P não re-confirmado, Q resolvido, pedido marcado como pago
	require.NoError(t, err)
	assert.True(t, resumed.Settled())
	inventory.AssertNumberOfCalls(t, "ConfirmReservation", 3) // P, Q(falha), Q(retry)
	orders.AssertNumberOfCalls(t, "SetStatus", 1)
}

func TestGetPaymentDetails_EnrichmentDegradesOnLookupFailure(t *testing.T) {
	// Arrange
	repo := newInMemoryPaymentRepository()
	orders := new(MockOrderLookup)

	payment := NewPayment("O", "U", 100)
	require.NoError(t, repo.InsertPayment(context.Background(), payment))
	orders.On("GetLineItems", mock.Anything, "O").Return(nil, errors.New("orders service down"))

	uc := newTestPaymentUseCase(repo, orders, new(MockInventoryLedger), new(MockGateway))

	// Act
	details, err := uc.GetPaymentDetails(context.Background(), payment.TransactionRef)

	// Assert: leitura degradada, nunca abortada
	require.NoError(t, err)
	assert.Equal(t, payment.TransactionRef, details.TransactionRef)
	assert.Empty(t, details.Lines)
}
