package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DeliveryStatus representa os possíveis status de uma entrega
type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "PENDING"
	DeliveryStatusShipped   DeliveryStatus = "SHIPPED"
	DeliveryStatusDelivered DeliveryStatus = "DELIVERED"
	DeliveryStatusCancelled DeliveryStatus = "CANCELLED"
	DeliveryStatusFailed    DeliveryStatus = "FAILED"
)

// Terminal reports whether no transition (other than re-assigning the same
// state) is permitted out of s.
func (s DeliveryStatus) Terminal() bool {
	switch s {
	case DeliveryStatusDelivered, DeliveryStatusCancelled, DeliveryStatusFailed:
		return true
	default:
		return false
	}
}

// ErrUnknownStatus indica um status fora do conjunto fechado
var ErrUnknownStatus = errors.New("unknown delivery status")

// ParseDeliveryStatus valida uma string de status. Total: valores fora do
// conjunto fechado devolvem erro em vez de virar um status fantasma.
func ParseDeliveryStatus(raw string) (DeliveryStatus, error) {
	switch DeliveryStatus(raw) {
	case DeliveryStatusPending:
		return DeliveryStatusPending, nil
	case DeliveryStatusShipped:
		return DeliveryStatusShipped, nil
	case DeliveryStatusDelivered:
		return DeliveryStatusDelivered, nil
	case DeliveryStatusCancelled:
		return DeliveryStatusCancelled, nil
	case DeliveryStatusFailed:
		return DeliveryStatusFailed, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownStatus, raw)
	}
}

// Erros distintos por estado terminal de origem, para o caller saber qual
// estado bloqueou a transição
var (
	ErrAlreadyDelivered = errors.New("delivery already DELIVERED: status can no longer change")
	ErrAlreadyCancelled = errors.New("delivery already CANCELLED: status can no longer change")
	ErrAlreadyFailed    = errors.New("delivery already FAILED: status can no longer change")
)

// terminalTransitionError devolve o erro específico do estado de origem
func terminalTransitionError(from DeliveryStatus) error {
	switch from {
	case DeliveryStatusDelivered:
		return ErrAlreadyDelivered
	case DeliveryStatusCancelled:
		return ErrAlreadyCancelled
	case DeliveryStatusFailed:
		return ErrAlreadyFailed
	default:
		return nil
	}
}

// DeliveryCompletion é a variante explícita de "entregue ou não": evita usar
// um timestamp nulo como flag implícita de estado.
type DeliveryCompletion struct {
	Delivered bool      `json:"delivered"`
	At        time.Time `json:"at,omitempty"`
}

// NotDelivered é o estado inicial da conclusão
func NotDelivered() DeliveryCompletion {
	return DeliveryCompletion{}
}

// DeliveredAt marca a conclusão no instante informado
func DeliveredAt(t time.Time) DeliveryCompletion {
	return DeliveryCompletion{Delivered: true, At: t}
}

// Delivery representa uma remessa no sistema. Notes é um log append-only,
// nunca sobrescrito.
type Delivery struct {
	TrackingNumber        string             `json:"tracking_number" db:"tracking_number"`
	OrderID               string             `json:"order_id" db:"order_id"`
	Status                DeliveryStatus     `json:"status" db:"status"`
	CurrentLocation       string             `json:"current_location" db:"current_location"`
	Notes                 string             `json:"notes" db:"notes"`
	EstimatedDeliveryDate time.Time          `json:"estimated_delivery_date" db:"estimated_delivery_date"`
	Completion            DeliveryCompletion `json:"completion"`
	CreatedAt             time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time          `json:"updated_at" db:"updated_at"`
}

// NewDelivery cria uma remessa PENDING com tracking number novo
func NewDelivery(orderID string, estimatedDeliveryDate time.Time) *Delivery {
	return &Delivery{
		TrackingNumber:        uuid.New().String(),
		OrderID:               orderID,
		Status:                DeliveryStatusPending,
		Completion:            NotDelivered(),
		EstimatedDeliveryDate: estimatedDeliveryDate,
		CreatedAt:             time.Now(),
		UpdatedAt:             time.Now(),
	}
}

// ApplyStatus aplica a transição de status. Função total: de um estado
// terminal só a re-atribuição do mesmo estado é aceita; qualquer outro alvo
// devolve o erro específico do estado de origem, sem mutar a remessa.
// A primeira entrada em DELIVERED carimba a conclusão exatamente uma vez.
func (d *Delivery) ApplyStatus(target DeliveryStatus, now time.Time) error {
	if d.Status.Terminal() && target != d.Status {
		return terminalTransitionError(d.Status)
	}

	d.Status = target
	d.UpdatedAt = now

	if target == DeliveryStatusDelivered && !d.Completion.Delivered {
		d.Completion = DeliveredAt(now)
	}

	return nil
}

// AppendNote acrescenta uma linha ao log de notas
func (d *Delivery) AppendNote(note string) {
	if note == "" {
		return
	}
	if d.Notes == "" {
		d.Notes = note
		return
	}
	d.Notes = strings.Join([]string{d.Notes, note}, "\n")
}

// SetLocation sobrescreve a localização atual quando informada
func (d *Delivery) SetLocation(location string) {
	if location != "" {
		d.CurrentLocation = location
	}
}

// Cancel transiciona para CANCELLED registrando o motivo. Rejeitada a partir
// de qualquer estado terminal, inclusive CANCELLED (cancelar duas vezes é um
// erro do caller, não uma re-atribuição).
func (d *Delivery) Cancel(reason string, now time.Time) error {
	if d.Status.Terminal() {
		return terminalTransitionError(d.Status)
	}

	d.Status = DeliveryStatusCancelled
	d.UpdatedAt = now
	d.AppendNote(fmt.Sprintf("Cancelled: %s", reason))
	return nil
}
