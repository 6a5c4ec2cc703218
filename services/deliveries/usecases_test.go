package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

// fakeTx implementa Tx para os testes
type fakeTx struct {
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit() error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback() error {
	t.rolledBack = true
	return nil
}

// inMemoryDeliveryRepository implementa DeliveryRepository, inclusive a
// unicidade por order_id do índice do Postgres
type inMemoryDeliveryRepository struct {
	byTracking map[string]*Delivery
	byOrder    map[string]string
	lastTx     *fakeTx
}

func newInMemoryDeliveryRepository() *inMemoryDeliveryRepository {
	return &inMemoryDeliveryRepository{
		byTracking: make(map[string]*Delivery),
		byOrder:    make(map[string]string),
	}
}

func (r *inMemoryDeliveryRepository) BeginTx(ctx context.Context) (Tx, error) {
	r.lastTx = &fakeTx{}
	return r.lastTx, nil
}

func (r *inMemoryDeliveryRepository) InsertDelivery(ctx context.Context, d *Delivery) (bool, error) {
	if _, exists := r.byOrder[d.OrderID]; exists {
		return false, nil
	}
	cp := *d
	r.byTracking[d.TrackingNumber] = &cp
	r.byOrder[d.OrderID] = d.TrackingNumber
	return true, nil
}

func (r *inMemoryDeliveryRepository) GetByTrackingNumber(ctx context.Context, trackingNumber string) (*Delivery, error) {
	d, ok := r.byTracking[trackingNumber]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (r *inMemoryDeliveryRepository) GetByTrackingNumberForUpdate(ctx context.Context, tx Tx, trackingNumber string) (*Delivery, error) {
	return r.GetByTrackingNumber(ctx, trackingNumber)
}

func (r *inMemoryDeliveryRepository) UpdateDelivery(ctx context.Context, tx Tx, d *Delivery) error {
	cp := *d
	r.byTracking[d.TrackingNumber] = &cp
	return nil
}

func newTestDeliveryUseCase(repo DeliveryRepository) *DeliveryUseCase {
	return NewDeliveryUseCase(repo, noop.NewTracerProvider().Tracer("test"))
}

func TestCreateDelivery_AtMostOnePerOrder(t *testing.T) {
	// Arrange
	repo := newInMemoryDeliveryRepository()
	uc := newTestDeliveryUseCase(repo)
	ctx := context.Background()
	eta := time.Now().Add(72 * time.Hour)

	// Act
	first, err := uc.CreateDelivery(ctx, "O", eta)
	require.NoError(t, err)
	_, err = uc.CreateDelivery(ctx, "O", eta)

	// Assert
	assert.ErrorIs(t, err, ErrDeliveryExists)
	assert.Equal(t, DeliveryStatusPending, first.Status)
}

func TestUpdateStatus_ShippedThenDelivered(t *testing.T) {
	// Arrange
	repo := newInMemoryDeliveryRepository()
	uc := newTestDeliveryUseCase(repo)
	ctx := context.Background()
	created, err := uc.CreateDelivery(ctx, "O", time.Now().Add(72*time.Hour))
	require.NoError(t, err)

	// Act
	shipped, err := uc.UpdateStatus(ctx, created.TrackingNumber, "SHIPPED", "São Paulo hub", "Left origin facility")
	require.NoError(t, err)
	delivered, err := uc.UpdateStatus(ctx, created.TrackingNumber, "DELIVERED", "Destination", "Signed by recipient")
	require.NoError(t, err)

	// Assert
	assert.Equal(t, DeliveryStatusShipped, shipped.Status)
	assert.Equal(t, "São Paulo hub", shipped.CurrentLocation)
	assert.Equal(t, DeliveryStatusDelivered, delivered.Status)
	assert.True(t, delivered.Completion.Delivered)
	assert.Equal(t, "Left origin facility\nSigned by recipient", delivered.Notes)
	assert.True(t, repo.lastTx.committed)
}

func TestUpdateStatus_DeliveredBlocksOtherTargets(t *testing.T) {
	// Arrange
	repo := newInMemoryDeliveryRepository()
	uc := newTestDeliveryUseCase(repo)
	ctx := context.Background()
	created, err := uc.CreateDelivery(ctx, "O", time.Now())
	require.NoError(t, err)
	_, err = uc.UpdateStatus(ctx, created.TrackingNumber, "DELIVERED", "", "")
	require.NoError(t, err)

	// Act
	_, err = uc.UpdateStatus(ctx, created.TrackingNumber, "SHIPPED", "", "")

	// Assert: o erro nomeia DELIVERED como estado bloqueador
	assert.ErrorIs(t, err, ErrAlreadyDelivered)
	assert.Contains(t, err.Error(), "DELIVERED")

	stored, err := uc.GetDelivery(ctx, created.TrackingNumber)
	require.NoError(t, err)
	assert.Equal(t, DeliveryStatusDelivered, stored.Status)
}

func TestUpdateStatus_CompletionStampedOnce(t *testing.T) {
	repo := newInMemoryDeliveryRepository()
	uc := newTestDeliveryUseCase(repo)
	ctx := context.Background()
	created, err := uc.CreateDelivery(ctx, "O", time.Now())
	require.NoError(t, err)

	first, err := uc.UpdateStatus(ctx, created.TrackingNumber, "DELIVERED", "", "")
	require.NoError(t, err)

	// Re-atribuição do mesmo estado terminal é aceita e não re-carimba
	second, err := uc.UpdateStatus(ctx, created.TrackingNumber, "DELIVERED", "", "")
	require.NoError(t, err)
	assert.Equal(t, first.Completion.At, second.Completion.At)
}

func TestUpdateStatus_UnknownTrackingNumber(t *testing.T) {
	repo := newInMemoryDeliveryRepository()
	uc := newTestDeliveryUseCase(repo)

	_, err := uc.UpdateStatus(context.Background(), "missing", "SHIPPED", "", "")

	assert.ErrorIs(t, err, ErrDeliveryNotFound)
}

func TestUpdateStatus_UnknownStatusRejected(t *testing.T) {
	repo := newInMemoryDeliveryRepository()
	uc := newTestDeliveryUseCase(repo)
	created, err := uc.CreateDelivery(context.Background(), "O", time.Now())
	require.NoError(t, err)

	_, err = uc.UpdateStatus(context.Background(), created.TrackingNumber, "TELEPORTED", "", "")

	assert.ErrorIs(t, err, ErrUnknownStatus)
}

func TestCancelDelivery_AppendsReason(t *testing.T) {
	// Arrange
	repo := newInMemoryDeliveryRepository()
	uc := newTestDeliveryUseCase(repo)
	ctx := context.Background()
	created, err := uc.CreateDelivery(ctx, "O", time.Now())
	require.NoError(t, err)
	_, err = uc.UpdateStatus(ctx, created.TrackingNumber, "SHIPPED", "", "Left origin facility")
	require.NoError(t, err)

	// Act
	cancelled, err := uc.CancelDelivery(ctx, created.TrackingNumber, "recipient moved")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, DeliveryStatusCancelled, cancelled.Status)
	assert.Equal(t, "Left origin facility\nCancelled: recipient moved", cancelled.Notes)
}

func TestCancelDelivery_RejectedFromTerminalStates(t *testing.T) {
	repo := newInMemoryDeliveryRepository()
	uc := newTestDeliveryUseCase(repo)
	ctx := context.Background()
	created, err := uc.CreateDelivery(ctx, "O", time.Now())
	require.NoError(t, err)
	_, err = uc.UpdateStatus(ctx, created.TrackingNumber, "FAILED", "", "carrier lost parcel")
	require.NoError(t, err)

	_, err = uc.CancelDelivery(ctx, created.TrackingNumber, "cleanup")

	assert.ErrorIs(t, err, ErrAlreadyFailed)
}
