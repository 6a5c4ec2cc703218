package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DeliveryRepository define a interface para operações de banco de dados de entregas
type DeliveryRepository interface {
	BeginTx(ctx context.Context) (Tx, error)

	// InsertDelivery persiste a remessa. Devolve false quando já existe uma
	// entrega para o mesmo order_id (no máximo uma por pedido).
	InsertDelivery(ctx context.Context, d *Delivery) (bool, error)

	GetByTrackingNumber(ctx context.Context, trackingNumber string) (*Delivery, error)
	GetByTrackingNumberForUpdate(ctx context.Context, tx Tx, trackingNumber string) (*Delivery, error)
	UpdateDelivery(ctx context.Context, tx Tx, d *Delivery) error
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

// PostgresDeliveryRepository implementa DeliveryRepository usando PostgreSQL
type PostgresDeliveryRepository struct {
	db *pgxpool.Pool
}

// NewDeliveryRepository cria uma nova instância de PostgresDeliveryRepository
func NewDeliveryRepository(db *pgxpool.Pool) DeliveryRepository {
	return &PostgresDeliveryRepository{
		db: db,
	}
}

// BeginTx inicia uma nova transação
func (r *PostgresDeliveryRepository) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &PostgresTx{tx: tx}, nil
}

// InsertDelivery persiste a remessa; o índice único em order_id garante no
// máximo uma entrega por pedido
func (r *PostgresDeliveryRepository) InsertDelivery(ctx context.Context, d *Delivery) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO deliveries (tracking_number, order_id, status, current_location, notes,
		                        estimated_delivery_date, actual_delivery_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (order_id) DO NOTHING
	`, d.TrackingNumber, d.OrderID, string(d.Status), d.CurrentLocation, d.Notes,
		d.EstimatedDeliveryDate, completionToColumn(d.Completion), d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to insert delivery: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// GetByTrackingNumber busca uma remessa pelo tracking number
func (r *PostgresDeliveryRepository) GetByTrackingNumber(ctx context.Context, trackingNumber string) (*Delivery, error) {
	return r.scanDelivery(r.db.QueryRow(ctx, `
		SELECT tracking_number, order_id, status, current_location, notes,
		       estimated_delivery_date, actual_delivery_date, created_at, updated_at
		FROM deliveries
		WHERE tracking_number = $1
	`, trackingNumber))
}

// GetByTrackingNumberForUpdate obtém a remessa com lock pessimista (FOR UPDATE)
func (r *PostgresDeliveryRepository) GetByTrackingNumberForUpdate(ctx context.Context, tx Tx, trackingNumber string) (*Delivery, error) {
	pgTx := tx.(*PostgresTx).tx

	return r.scanDelivery(pgTx.QueryRow(ctx, `
		SELECT tracking_number, order_id, status, current_location, notes,
		       estimated_delivery_date, actual_delivery_date, created_at, updated_at
		FROM deliveries
		WHERE tracking_number = $1
		FOR UPDATE
	`, trackingNumber))
}

// UpdateDelivery grava status, localização, notas e conclusão
func (r *PostgresDeliveryRepository) UpdateDelivery(ctx context.Context, tx Tx, d *Delivery) error {
	pgTx := tx.(*PostgresTx).tx

	_, err := pgTx.Exec(ctx, `
		UPDATE deliveries
		SET status               = $2,
		    current_location     = $3,
		    notes                = $4,
		    actual_delivery_date = $5,
		    updated_at           = NOW()
		WHERE tracking_number = $1
	`, d.TrackingNumber, string(d.Status), d.CurrentLocation, d.Notes, completionToColumn(d.Completion))
	if err != nil {
		return fmt.Errorf("failed to update delivery: %w", err)
	}
	return nil
}

func (r *PostgresDeliveryRepository) scanDelivery(row pgx.Row) (*Delivery, error) {
	var (
		d          Delivery
		status     string
		actualDate *time.Time
	)
	err := row.Scan(&d.TrackingNumber, &d.OrderID, &status, &d.CurrentLocation, &d.Notes,
		&d.EstimatedDeliveryDate, &actualDate, &d.CreatedAt, &d.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	parsed, err := ParseDeliveryStatus(status)
	if err != nil {
		return nil, fmt.Errorf("corrupt delivery row %s: %w", d.TrackingNumber, err)
	}
	d.Status = parsed
	d.Completion = completionFromColumn(actualDate)

	return &d, nil
}

// completionToColumn traduz a variante explícita para a coluna nullable
func completionToColumn(c DeliveryCompletion) *time.Time {
	if !c.Delivered {
		return nil
	}
	return &c.At
}

// completionFromColumn traduz a coluna nullable de volta para a variante
func completionFromColumn(t *time.Time) DeliveryCompletion {
	if t == nil {
		return NotDelivered()
	}
	return DeliveredAt(*t)
}
