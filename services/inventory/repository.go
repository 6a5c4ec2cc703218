package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// InventoryRepository define a interface para operações de banco de dados de inventário
type InventoryRepository interface {
	BeginTx(ctx context.Context) (Tx, error)
	GetRecord(ctx context.Context, productID string) (*InventoryRecord, error)
	GetRecordForUpdate(ctx context.Context, tx Tx, productID string) (*InventoryRecord, error)
	ApplyReservation(ctx context.Context, tx Tx, productID string, qty int) (bool, error)
	ApplyRelease(ctx context.Context, tx Tx, productID string, qty int) (bool, error)
	ApplyConfirmation(ctx context.Context, tx Tx, productID string, qty int) (bool, error)
	UpsertAvailable(ctx context.Context, productID string, qty int) error
}

// Tx interface para transações
type Tx interface {
	Commit() error
	Rollback() error
}

// PostgresTx implementa a interface Tx
type PostgresTx struct {
	tx pgx.Tx
}

func (t *PostgresTx) Commit() error {
	return t.tx.Commit(context.Background())
}

func (t *PostgresTx) Rollback() error {
	return t.tx.Rollback(context.Background())
}

// PostgresInventoryRepository implementa InventoryRepository usando PostgreSQL
type PostgresInventoryRepository struct {
	db *pgxpool.Pool
}

// NewInventoryRepository cria uma nova instância de PostgresInventoryRepository
func NewInventoryRepository(db *pgxpool.Pool) InventoryRepository {
	return &PostgresInventoryRepository{
		db: db,
	}
}

// BeginTx inicia uma nova transação
func (r *PostgresInventoryRepository) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &PostgresTx{tx: tx}, nil
}

// GetRecord busca os contadores de estoque de um produto
func (r *PostgresInventoryRepository) GetRecord(ctx context.Context, productID string) (*InventoryRecord, error) {
	var rec InventoryRecord
	err := r.db.QueryRow(ctx, `
		SELECT product_id, available_quantity, reserved_quantity, created_at, updated_at
		FROM inventory_records
		WHERE product_id = $1
	`, productID).Scan(&rec.ProductID, &rec.AvailableQuantity, &rec.ReservedQuantity, &rec.CreatedAt, &rec.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetRecordForUpdate obtém o registro com lock pessimista (FOR UPDATE)
func (r *PostgresInventoryRepository) GetRecordForUpdate(ctx context.Context, tx Tx, productID string) (*InventoryRecord, error) {
	pgTx := tx.(*PostgresTx).tx

	query := `
		SELECT product_id, available_quantity, reserved_quantity, created_at, updated_at
		FROM inventory_records
		WHERE product_id = $1
		FOR UPDATE
	`

	var rec InventoryRecord
	err := pgTx.QueryRow(ctx, query, productID).Scan(
		&rec.ProductID,
		&rec.AvailableQuantity,
		&rec.ReservedQuantity,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get inventory record with lock: %w", err)
	}

	return &rec, nil
}

// ApplyReservation move qty de available para reserved. O predicado
// available_quantity >= $2 é a barreira contra over-selling: mesmo fora do
// lock pessimista o banco nunca aceita uma reserva que o estoque não cobre.
func (r *PostgresInventoryRepository) ApplyReservation(ctx context.Context, tx Tx, productID string, qty int) (bool, error) {
	pgTx := tx.(*PostgresTx).tx

	tag, err := pgTx.Exec(ctx, `
		UPDATE inventory_records
		SET available_quantity = available_quantity - $2,
		    reserved_quantity  = reserved_quantity + $2,
		    updated_at         = NOW()
		WHERE product_id = $1 AND available_quantity >= $2
	`, productID, qty)
	if err != nil {
		return false, fmt.Errorf("failed to apply reservation: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// ApplyRelease devolve qty de reserved para available
func (r *PostgresInventoryRepository) ApplyRelease(ctx context.Context, tx Tx, productID string, qty int) (bool, error) {
	pgTx := tx.(*PostgresTx).tx

	tag, err := pgTx.Exec(ctx, `
		UPDATE inventory_records
		SET reserved_quantity  = reserved_quantity - $2,
		    available_quantity = available_quantity + $2,
		    updated_at         = NOW()
		WHERE product_id = $1 AND reserved_quantity >= $2
	`, productID, qty)
	if err != nil {
		return false, fmt.Errorf("failed to apply release: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// ApplyConfirmation baixa qty de reserved em definitivo (available não muda:
// já foi decrementado na reserva)
func (r *PostgresInventoryRepository) ApplyConfirmation(ctx context.Context, tx Tx, productID string, qty int) (bool, error) {
	pgTx := tx.(*PostgresTx).tx

	tag, err := pgTx.Exec(ctx, `
		UPDATE inventory_records
		SET reserved_quantity = reserved_quantity - $2,
		    updated_at        = NOW()
		WHERE product_id = $1 AND reserved_quantity >= $2
	`, productID, qty)
	if err != nil {
		return false, fmt.Errorf("failed to apply confirmation: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// UpsertAvailable cria o registro (reserved=0) ou sobrescreve apenas available
func (r *PostgresInventoryRepository) UpsertAvailable(ctx context.Context, productID string, qty int) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO inventory_records (product_id, available_quantity, reserved_quantity, created_at, updated_at)
		VALUES ($1, $2, 0, NOW(), NOW())
		ON CONFLICT (product_id) DO UPDATE
		SET available_quantity = EXCLUDED.available_quantity,
		    updated_at         = NOW()
	`, productID, qty)
	if err != nil {
		return fmt.Errorf("failed to upsert available quantity: %w", err)
	}
	return nil
}
