package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Resoluções possíveis de uma linha no fan-out
const (
	StepActionConfirm = "confirm"
	StepActionRelease = "release"
)

// PaymentRepository define a interface para operações de banco de dados de pagamentos
type PaymentRepository interface {
	InsertPayment(ctx context.Context, p *Payment) error
	GetPaymentByRef(ctx context.Context, transactionRef string) (*Payment, error)

	// ResolvePayment aplica a transição PENDING -> status de forma condicional.
	// Devolve false quando o pagamento já era terminal (barreira de idempotência).
	ResolvePayment(ctx context.Context, transactionRef string, status PaymentStatus) (bool, error)

	// MarkStepCompleted registra no saga log que a linha já foi resolvida
	MarkStepCompleted(ctx context.Context, transactionRef, productID string, qty int, action string) error

	// CompletedSteps devolve as linhas já resolvidas, indexadas por product_id
	CompletedSteps(ctx context.Context, transactionRef string) (map[string]bool, error)

	// MarkSettled registra que fan-out + atualização do pedido terminaram
	MarkSettled(ctx context.Context, transactionRef string) error
}

// PostgresPaymentRepository implementa PaymentRepository usando PostgreSQL
type PostgresPaymentRepository struct {
	db *pgxpool.Pool
}

// NewPaymentRepository cria uma nova instância de PostgresPaymentRepository
func NewPaymentRepository(db *pgxpool.Pool) PaymentRepository {
	return &PostgresPaymentRepository{
		db: db,
	}
}

// InsertPayment persiste um pagamento recém-criado (PENDING)
func (r *PostgresPaymentRepository) InsertPayment(ctx context.Context, p *Payment) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO payments (transaction_ref, order_id, user_id, amount, status, created_at, updated_at, settled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULL)
	`, p.TransactionRef, p.OrderID, p.UserID, p.Amount, string(p.Status), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

// GetPaymentByRef busca um pagamento pela chave de idempotência
func (r *PostgresPaymentRepository) GetPaymentByRef(ctx context.Context, transactionRef string) (*Payment, error) {
	var (
		p      Payment
		status string
	)
	err := r.db.QueryRow(ctx, `
		SELECT transaction_ref, order_id, user_id, amount, status, created_at, updated_at, settled_at
		FROM payments
		WHERE transaction_ref = $1
	`, transactionRef).Scan(&p.TransactionRef, &p.OrderID, &p.UserID, &p.Amount, &status, &p.CreatedAt, &p.UpdatedAt, &p.SettledAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	parsed, err := ParsePaymentStatus(status)
	if err != nil {
		return nil, fmt.Errorf("corrupt payment row %s: %w", transactionRef, err)
	}
	p.Status = parsed

	return &p, nil
}

// ResolvePayment escreve o status terminal. O predicado status = 'PENDING'
// garante que a transição acontece no máximo uma vez mesmo com callbacks
// concorrentes do mesmo transaction_ref.
func (r *PostgresPaymentRepository) ResolvePayment(ctx context.Context, transactionRef string, status PaymentStatus) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE payments
		SET status = $2, updated_at = NOW()
		WHERE transaction_ref = $1 AND status = $3
	`, transactionRef, string(status), string(PaymentStatusPending))
	if err != nil {
		return false, fmt.Errorf("failed to resolve payment: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// MarkStepCompleted insere o marcador da linha no saga log. ON CONFLICT DO
// NOTHING torna o marcador idempotente para retries do callback.
func (r *PostgresPaymentRepository) MarkStepCompleted(ctx context.Context, transactionRef, productID string, qty int, action string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO payment_fanout_steps (id, transaction_ref, product_id, quantity, action, completed_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (transaction_ref, product_id) DO NOTHING
	`, uuid.New().String(), transactionRef, productID, qty, action)
	if err != nil {
		return fmt.Errorf("failed to mark fanout step: %w", err)
	}
	return nil
}

// CompletedSteps carrega o cursor do fan-out para um pagamento
func (r *PostgresPaymentRepository) CompletedSteps(ctx context.Context, transactionRef string) (map[string]bool, error) {
	rows, err := r.db.Query(ctx, `
		SELECT product_id FROM payment_fanout_steps WHERE transaction_ref = $1
	`, transactionRef)
	if err != nil {
		return nil, fmt.Errorf("failed to load fanout steps: %w", err)
	}
	defer rows.Close()

	done := make(map[string]bool)
	for rows.Next() {
		var productID string
		if err := rows.Scan(&productID); err != nil {
			return nil, err
		}
		done[productID] = true
	}

	return done, rows.Err()
}

// MarkSettled registra a conclusão da saga para este pagamento
func (r *PostgresPaymentRepository) MarkSettled(ctx context.Context, transactionRef string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE payments
		SET settled_at = NOW()
		WHERE transaction_ref = $1 AND settled_at IS NULL
	`, transactionRef)
	if err != nil {
		return fmt.Errorf("failed to mark payment settled: %w", err)
	}
	return nil
}
