package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrProductNotFound indica que não existe registro de estoque para o produto
	ErrProductNotFound = errors.New("inventory record not found")

	// ErrInsufficientStock indica que a reserva excede o estoque disponível
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrReleaseExceedsReserved bloqueia devolver mais do que está reservado
	ErrReleaseExceedsReserved = errors.New("cannot release more than reserved")

	// ErrConfirmExceedsReserved bloqueia confirmar mais do que está reservado
	ErrConfirmExceedsReserved = errors.New("cannot confirm more than reserved")

	// ErrInvalidQuantity rejeita quantidades não positivas
	ErrInvalidQuantity = errors.New("quantity must be greater than zero")
)

// InventoryUseCase contém a lógica de negócio do ledger de estoque
type InventoryUseCase struct {
	repository InventoryRepository
	tracer     trace.Tracer
}

// NewInventoryUseCase cria uma nova instância de InventoryUseCase
func NewInventoryUseCase(
	repository InventoryRepository,
	tracer trace.Tracer,
) *InventoryUseCase {
	return &InventoryUseCase{
		repository: repository,
		tracer:     tracer,
	}
}

// ReserveStock segura qty unidades para um pedido usando Lock Pessimista.
// Em caso de estoque insuficiente nada é mutado.
func (uc *InventoryUseCase) ReserveStock(ctx context.Context, productID string, qty int) (*InventoryRecord, error) {
	ctx, span := uc.tracer.Start(ctx, "reserve_stock")
	defer span.End()
	span.SetAttributes(attribute.String("product_id", productID), attribute.Int("quantity", qty))

	log.Printf("➡️ [RESERVE] ProductID: %s | Qty: %d", productID, qty)

	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}

	// 1. Inicia a transação
	tx, err := uc.repository.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin reserve transaction: %w", err)
	}
	defer tx.Rollback()

	// 2. Obtém o registro com LOCK PESSIMISTA (SELECT FOR UPDATE)
	// Isso serializa reservas concorrentes do mesmo produto
	rec, err := uc.repository.GetRecordForUpdate(ctx, tx, productID)
	if err != nil {
		log.Printf("❌ RESERVE FAILED: GetRecordForUpdate | ProductID=%s | Error=%v", productID, err)
		return nil, err
	}
	if rec == nil {
		return nil, ErrProductNotFound
	}

	// 3. Regra de Negócio: verifica disponibilidade antes de mutar
	if !rec.CanReserve(qty) {
		log.Printf("❌ RESERVE FAILED: Insufficient stock | ProductID=%s | Available=%d | Requested=%d",
			productID, rec.AvailableQuantity, qty)
		return nil, ErrInsufficientStock
	}

	// 4. Executa a atualização condicional (available >= qty reconferido no WHERE)
	applied, err := uc.repository.ApplyReservation(ctx, tx, productID, qty)
	if err != nil {
		log.Printf("❌ [RESERVE] ProductID=%s Failed to update: %v", productID, err)
		return nil, err
	}
	if !applied {
		return nil, ErrInsufficientStock
	}

	// 5. Commit da transação
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit reservation: %w", err)
	}

	rec.AvailableQuantity -= qty
	rec.ReservedQuantity += qty

	log.Printf("✅ [RESERVE] Success: ProductID=%s | Available=%d | Reserved=%d",
		productID, rec.AvailableQuantity, rec.ReservedQuantity)
	return rec, nil
}

// ReleaseStock devolve qty unidades reservadas para o pool disponível
// (compensação de uma reserva cujo pagamento falhou)
func (uc *InventoryUseCase) ReleaseStock(ctx context.Context, productID string, qty int) (*InventoryRecord, error) {
	ctx, span := uc.tracer.Start(ctx, "release_stock")
	defer span.End()
	span.SetAttributes(attribute.String("product_id", productID), attribute.Int("quantity", qty))

	log.Printf("↩️ [RELEASE] ProductID: %s | Qty: %d", productID, qty)

	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}

	tx, err := uc.repository.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin release transaction: %w", err)
	}
	defer tx.Rollback()

	rec, err := uc.repository.GetRecordForUpdate(ctx, tx, productID)
	if err != nil {
		log.Printf("❌ RELEASE FAILED: GetRecordForUpdate | ProductID=%s | Error=%v", productID, err)
		return nil, err
	}
	if rec == nil {
		return nil, ErrProductNotFound
	}

	if !rec.CanRelease(qty) {
		log.Printf("❌ RELEASE FAILED: Reserved=%d < Requested=%d | ProductID=%s",
			rec.ReservedQuantity, qty, productID)
		return nil, ErrReleaseExceedsReserved
	}

	applied, err := uc.repository.ApplyRelease(ctx, tx, productID, qty)
	if err != nil {
		log.Printf("❌ [RELEASE] ProductID=%s Failed to update: %v", productID, err)
		return nil, err
	}
	if !applied {
		return nil, ErrReleaseExceedsReserved
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit release: %w", err)
	}

	rec.ReservedQuantity -= qty
	rec.AvailableQuantity += qty

	log.Printf("✅ [RELEASE] Success: ProductID=%s | Available=%d | Reserved=%d",
		productID, rec.AvailableQuantity, rec.ReservedQuantity)
	return rec, nil
}

// ConfirmReservation baixa qty unidades reservadas em definitivo. O estoque
// disponível não muda: já foi decrementado no momento da reserva.
func (uc *InventoryUseCase) ConfirmReservation(ctx context.Context, productID string, qty int) (*InventoryRecord, error) {
	ctx, span := uc.tracer.Start(ctx, "confirm_reservation")
	defer span.End()
	span.SetAttributes(attribute.String("product_id", productID), attribute.Int("quantity", qty))

	log.Printf("➡️ [CONFIRM] ProductID: %s | Qty: %d", productID, qty)

	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}

	tx, err := uc.repository.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin confirm transaction: %w", err)
	}
	defer tx.Rollback()

	rec, err := uc.repository.GetRecordForUpdate(ctx, tx, productID)
	if err != nil {
		log.Printf("❌ CONFIRM FAILED: GetRecordForUpdate | ProductID=%s | Error=%v", productID, err)
		return nil, err
	}
	if rec == nil {
		return nil, ErrProductNotFound
	}

	if !rec.CanConfirm(qty) {
		log.Printf("❌ CONFIRM FAILED: Reserved=%d < Requested=%d | ProductID=%s",
			rec.ReservedQuantity, qty, productID)
		return nil, ErrConfirmExceedsReserved
	}

	applied, err := uc.repository.ApplyConfirmation(ctx, tx, productID, qty)
	if err != nil {
		log.Printf("❌ [CONFIRM] ProductID=%s Failed to update: %v", productID, err)
		return nil, err
	}
	if !applied {
		return nil, ErrConfirmExceedsReserved
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit confirmation: %w", err)
	}

	rec.ReservedQuantity -= qty

	log.Printf("✅ [CONFIRM] Success: ProductID=%s | Available=%d | Reserved=%d",
		productID, rec.AvailableQuantity, rec.ReservedQuantity)
	return rec, nil
}

// SetAvailable cria o registro na primeira carga de estoque ou sobrescreve
// a quantidade disponível; reserved nunca é tocado por esta operação.
func (uc *InventoryUseCase) SetAvailable(ctx context.Context, productID string, qty int) (*InventoryRecord, error) {
	ctx, span := uc.tracer.Start(ctx, "set_available")
	defer span.End()
	span.SetAttributes(attribute.String("product_id", productID), attribute.Int("quantity", qty))

	if qty < 0 {
		return nil, ErrInvalidQuantity
	}

	if err := uc.repository.UpsertAvailable(ctx, productID, qty); err != nil {
		log.Printf("❌ [SET AVAILABLE] ProductID=%s Failed to upsert: %v", productID, err)
		return nil, err
	}

	rec, err := uc.repository.GetRecord(ctx, productID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrProductNotFound
	}

	log.Printf("✅ [SET AVAILABLE] ProductID=%s | Available=%d | Reserved=%d",
		productID, rec.AvailableQuantity, rec.ReservedQuantity)
	return rec, nil
}

// GetRecord busca os contadores de um produto
func (uc *InventoryUseCase) GetRecord(ctx context.Context, productID string) (*InventoryRecord, error) {
	rec, err := uc.repository.GetRecord(ctx, productID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrProductNotFound
	}
	return rec, nil
}
