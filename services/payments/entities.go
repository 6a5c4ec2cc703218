package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PaymentStatus representa os possíveis status de um pagamento
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusSuccess  PaymentStatus = "SUCCESS"
	PaymentStatusFailed   PaymentStatus = "FAILED"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

// Terminal reports whether no further transition is permitted out of s.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentStatusSuccess, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	default:
		return false
	}
}

// ParsePaymentStatus valida uma string vinda do gateway. Total: devolve erro
// para valores fora do conjunto fechado em vez de propagar um status inválido.
func ParsePaymentStatus(raw string) (PaymentStatus, error) {
	switch PaymentStatus(raw) {
	case PaymentStatusPending:
		return PaymentStatusPending, nil
	case PaymentStatusSuccess:
		return PaymentStatusSuccess, nil
	case PaymentStatusFailed:
		return PaymentStatusFailed, nil
	case PaymentStatusRefunded:
		return PaymentStatusRefunded, nil
	default:
		return "", fmt.Errorf("unknown payment status %q", raw)
	}
}

// Order status values propagated to the orders service after the fan-out.
const (
	OrderStatusPaid          = "PAID"
	OrderStatusPaymentFailed = "PAYMENT_FAILED"
)

var (
	// ErrNotPending bloqueia qualquer transição fora de PENDING
	ErrNotPending = errors.New("payment is not PENDING")

	// ErrNotTerminalTarget bloqueia transições para um status não terminal
	ErrNotTerminalTarget = errors.New("payment can only transition to a terminal status")
)

// Payment representa um pagamento no sistema. TransactionRef é a chave de
// idempotência do callback do gateway: um pagamento sai de PENDING exatamente
// uma vez e nunca mais é mutado.
type Payment struct {
	TransactionRef string        `json:"transaction_ref" db:"transaction_ref"`
	OrderID        string        `json:"order_id" db:"order_id"`
	UserID         string        `json:"user_id" db:"user_id"`
	Amount         int           `json:"amount" db:"amount"`
	Status         PaymentStatus `json:"status" db:"status"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at" db:"updated_at"`

	// SettledAt marca o fim do fan-out de inventário + atualização do pedido.
	// Pagamento terminal sem SettledAt significa saga interrompida no meio.
	SettledAt *time.Time `json:"settled_at,omitempty" db:"settled_at"`
}

// NewPayment cria um pagamento PENDING com um transaction_ref novo e único
func NewPayment(orderID, userID string, amount int) *Payment {
	return &Payment{
		TransactionRef: uuid.New().String(),
		OrderID:        orderID,
		UserID:         userID,
		Amount:         amount,
		Status:         PaymentStatusPending,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
}

// Resolve aplica a transição PENDING -> terminal. Função total: qualquer
// combinação inválida devolve erro sem mutar o pagamento.
func (p *Payment) Resolve(target PaymentStatus, now time.Time) error {
	if p.Status != PaymentStatusPending {
		return ErrNotPending
	}
	if !target.Terminal() {
		return ErrNotTerminalTarget
	}

	p.Status = target
	p.UpdatedAt = now
	return nil
}

// Settled reports whether the inventory fan-out and the order status update
// have both completed for this payment.
func (p *Payment) Settled() bool {
	return p.SettledAt != nil
}

// OrderLine é um item do pedido, consumido do serviço de pedidos
type OrderLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}
