package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrDeliveryNotFound indica que não existe remessa para o tracking number
	ErrDeliveryNotFound = errors.New("delivery not found")

	// ErrDeliveryExists bloqueia uma segunda remessa para o mesmo pedido
	ErrDeliveryExists = errors.New("order already has a delivery")
)

// DeliveryUseCase contém a lógica de negócio do ciclo de vida de entregas
type DeliveryUseCase struct {
	repository DeliveryRepository
	tracer     trace.Tracer
}

// NewDeliveryUseCase cria uma nova instância de DeliveryUseCase
func NewDeliveryUseCase(
	repository DeliveryRepository,
	tracer trace.Tracer,
) *DeliveryUseCase {
	return &DeliveryUseCase{
		repository: repository,
		tracer:     tracer,
	}
}

// CreateDelivery cria a remessa de um pedido pago. No máximo uma remessa por
// pedido: a segunda tentativa devolve ErrDeliveryExists.
func (uc *DeliveryUseCase) CreateDelivery(ctx context.Context, orderID string, estimatedDeliveryDate time.Time) (*Delivery, error) {
	ctx, span := uc.tracer.Start(ctx, "create_delivery")
	defer span.End()
	span.SetAttributes(attribute.String("order_id", orderID))

	log.Printf("➡️ [CREATE DELIVERY] OrderID: %s", orderID)

	delivery := NewDelivery(orderID, estimatedDeliveryDate)

	inserted, err := uc.repository.InsertDelivery(ctx, delivery)
	if err != nil {
		log.Printf("❌ CREATE DELIVERY FAILED: OrderID=%s | Error=%v", orderID, err)
		return nil, err
	}
	if !inserted {
		log.Printf("❌ CREATE DELIVERY FAILED: OrderID=%s already has a delivery", orderID)
		return nil, ErrDeliveryExists
	}

	log.Printf("✅ [CREATE DELIVERY] Success: OrderID=%s | TrackingNumber=%s", orderID, delivery.TrackingNumber)
	return delivery, nil
}

// UpdateStatus aplica uma transição guardada de status, com localização
// opcional (sobrescrita) e nota opcional (append, nunca sobrescrita).
func (uc *DeliveryUseCase) UpdateStatus(ctx context.Context, trackingNumber string, rawStatus, location, note string) (*Delivery, error) {
	ctx, span := uc.tracer.Start(ctx, "update_delivery_status")
	defer span.End()
	span.SetAttributes(
		attribute.String("tracking_number", trackingNumber),
		attribute.String("target_status", rawStatus),
	)

	log.Printf("➡️ [UPDATE DELIVERY] TrackingNumber: %s | Target: %s", trackingNumber, rawStatus)

	target, err := ParseDeliveryStatus(rawStatus)
	if err != nil {
		return nil, err
	}

	// 1. Inicia a transação
	tx, err := uc.repository.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin delivery transaction: %w", err)
	}
	defer tx.Rollback()

	// 2. Obtém a remessa com LOCK PESSIMISTA (SELECT FOR UPDATE)
	delivery, err := uc.repository.GetByTrackingNumberForUpdate(ctx, tx, trackingNumber)
	if err != nil {
		log.Printf("❌ UPDATE DELIVERY FAILED: GetByTrackingNumberForUpdate | TrackingNumber=%s | Error=%v",
			trackingNumber, err)
		return nil, err
	}
	if delivery == nil {
		return nil, ErrDeliveryNotFound
	}

	// 3. Transição guardada: estados terminais só aceitam re-atribuição
	if err := delivery.ApplyStatus(target, time.Now()); err != nil {
		log.Printf("❌ UPDATE DELIVERY BLOCKED: TrackingNumber=%s | %s -> %s | %v",
			trackingNumber, delivery.Status, target, err)
		return nil, err
	}

	delivery.SetLocation(location)
	delivery.AppendNote(note)

	// 4. Persiste e commita
	if err := uc.repository.UpdateDelivery(ctx, tx, delivery); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit delivery update: %w", err)
	}

	log.Printf("✅ [UPDATE DELIVERY] Success: TrackingNumber=%s | Status=%s", trackingNumber, delivery.Status)
	return delivery, nil
}

// CancelDelivery transiciona a remessa para CANCELLED registrando o motivo
func (uc *DeliveryUseCase) CancelDelivery(ctx context.Context, trackingNumber, reason string) (*Delivery, error) {
	ctx, span := uc.tracer.Start(ctx, "cancel_delivery")
	defer span.End()
	span.SetAttributes(attribute.String("tracking_number", trackingNumber))

	log.Printf("↩️ [CANCEL DELIVERY] TrackingNumber: %s | Reason: %s", trackingNumber, reason)

	tx, err := uc.repository.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin delivery transaction: %w", err)
	}
	defer tx.Rollback()

	delivery, err := uc.repository.GetByTrackingNumberForUpdate(ctx, tx, trackingNumber)
	if err != nil {
		return nil, err
	}
	if delivery == nil {
		return nil, ErrDeliveryNotFound
	}

	if err := delivery.Cancel(reason, time.Now()); err != nil {
		log.Printf("❌ CANCEL DELIVERY BLOCKED: TrackingNumber=%s | Status=%s | %v",
			trackingNumber, delivery.Status, err)
		return nil, err
	}

	if err := uc.repository.UpdateDelivery(ctx, tx, delivery); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit delivery cancellation: %w", err)
	}

	log.Printf("✅ [CANCEL DELIVERY] Success: TrackingNumber=%s", trackingNumber)
	return delivery, nil
}

// GetDelivery busca uma remessa pelo tracking number
func (uc *DeliveryUseCase) GetDelivery(ctx context.Context, trackingNumber string) (*Delivery, error) {
	delivery, err := uc.repository.GetByTrackingNumber(ctx, trackingNumber)
	if err != nil {
		return nil, err
	}
	if delivery == nil {
		return nil, ErrDeliveryNotFound
	}
	return delivery, nil
}
