package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrPaymentNotFound indica que não existe pagamento para o transaction_ref
	ErrPaymentNotFound = errors.New("payment not found")
)

// InitiatePaymentRequest representa a requisição para iniciar um pagamento
type InitiatePaymentRequest struct {
	OrderID string `json:"order_id" binding:"required"`
	UserID  string `json:"user_id" binding:"required"`
	Amount  int    `json:"amount" binding:"required,gt=0"`
}

// PaymentDetails é um pagamento enriquecido com os itens do pedido.
// Lines fica vazio quando o serviço de pedidos está indisponível: o
// enriquecimento degrada a resposta, nunca derruba a leitura.
type PaymentDetails struct {
	*Payment
	Lines []OrderLine `json:"lines,omitempty"`
}

// PaymentUseCase coordena a saga de desfecho de pagamento: transição do
// pagamento, fan-out de confirmação/liberação de estoque por linha do pedido
// e propagação do status do pedido. Todos os colaboradores são injetados.
type PaymentUseCase struct {
	repository     PaymentRepository
	orders         OrderLookup
	inventory      InventoryLedger
	gateway        PaymentGateway
	tracer         trace.Tracer
	settledCounter metric.Int64Counter
}

// NewPaymentUseCase cria uma nova instância de PaymentUseCase
func NewPaymentUseCase(
	repository PaymentRepository,
	orders OrderLookup,
	inventory InventoryLedger,
	gateway PaymentGateway,
	tracer trace.Tracer,
	settledCounter metric.Int64Counter,
) *PaymentUseCase {
	return &PaymentUseCase{
		repository:     repository,
		orders:         orders,
		inventory:      inventory,
		gateway:        gateway,
		tracer:         tracer,
		settledCounter: settledCounter,
	}
}

// InitiatePayment cria um pagamento PENDING para o pedido e alimenta o
// desfecho do gateway no caminho de callback, de forma síncrona.
func (uc *PaymentUseCase) InitiatePayment(ctx context.Context, req InitiatePaymentRequest) (*Payment, error) {
	ctx, span := uc.tracer.Start(ctx, "initiate_payment")
	defer span.End()
	span.SetAttributes(
		attribute.String("order_id", req.OrderID),
		attribute.String("user_id", req.UserID),
		attribute.Int("amount", req.Amount),
	)

	log.Printf("➡️ [INITIATE PAYMENT] OrderID: %s | Amount: %d", req.OrderID, req.Amount)

	// 1. Verifica que o pedido existe antes de criar o pagamento
	if _, err := uc.orders.GetLineItems(ctx, req.OrderID); err != nil {
		log.Printf("❌ INITIATE FAILED: order lookup | OrderID=%s | Error=%v", req.OrderID, err)
		return nil, err
	}

	// 2. Cria e persiste o pagamento PENDING com transaction_ref novo
	payment := NewPayment(req.OrderID, req.UserID, req.Amount)
	if err := uc.repository.InsertPayment(ctx, payment); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("transaction_ref", payment.TransactionRef))

	// 3. Autoriza no gateway (stand-in síncrono do webhook assíncrono real)
	outcome, err := uc.gateway.Authorize(ctx, payment.TransactionRef, payment.Amount)
	if err != nil {
		// Sem desfecho do gateway o pagamento fica PENDING: o callback
		// pode ser reentregue mais tarde com segurança.
		log.Printf("⏳ [INITIATE] Gateway unavailable, payment stays PENDING | TransactionRef=%s | Error=%v",
			payment.TransactionRef, err)
		return payment, nil
	}

	// 4. Alimenta o desfecho no mesmo caminho do webhook
	return uc.ProcessGatewayCallback(ctx, payment.TransactionRef, outcome)
}

// ProcessGatewayCallback processa o desfecho reportado pelo gateway para um
// transaction_ref. Reentregas do mesmo desfecho são seguras: um pagamento já
// terminal é devolvido como está (retomando fan-out inacabado, se houver).
func (uc *PaymentUseCase) ProcessGatewayCallback(ctx context.Context, transactionRef string, newStatus PaymentStatus) (*Payment, error) {
	ctx, span := uc.tracer.Start(ctx, "process_gateway_callback")
	defer span.End()
	span.SetAttributes(
		attribute.String("transaction_ref", transactionRef),
		attribute.String("new_status", string(newStatus)),
	)

	log.Printf("➡️ [GATEWAY CALLBACK] TransactionRef: %s | NewStatus: %s", transactionRef, newStatus)

	// 1. Busca o pagamento pela chave de idempotência
	payment, err := uc.repository.GetPaymentByRef(ctx, transactionRef)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}

	// 2. Curto-circuito idempotente: pagamento já terminal não transiciona de
	// novo. Não é um erro — o gateway reentrega webhooks.
	if payment.Status.Terminal() {
		log.Printf("ℹ️ [IDEMPOTENCY] Callback duplicado para TransactionRef=%s (status %s), nenhuma transição aplicada",
			transactionRef, payment.Status)
		if !payment.Settled() {
			// Saga interrompida no meio do fan-out: retoma do cursor gravado
			// usando o desfecho já registrado, não o do callback duplicado.
			if err := uc.settle(ctx, payment); err != nil {
				return payment, err
			}
		}
		return payment, nil
	}

	// 3. Transição PENDING -> terminal, validada na entidade e gravada com
	// predicado condicional. Esta escrita acontece-antes do fan-out.
	if err := payment.Resolve(newStatus, time.Now()); err != nil {
		return nil, err
	}
	changed, err := uc.repository.ResolvePayment(ctx, transactionRef, newStatus)
	if err != nil {
		return nil, err
	}
	if !changed {
		// Um callback concorrente venceu a corrida; recarrega e trata como duplicado
		payment, err = uc.repository.GetPaymentByRef(ctx, transactionRef)
		if err != nil {
			return nil, err
		}
		if payment == nil {
			return nil, ErrPaymentNotFound
		}
		log.Printf("ℹ️ [IDEMPOTENCY] Callback concorrente já resolveu TransactionRef=%s como %s",
			transactionRef, payment.Status)
		if !payment.Settled() {
			if err := uc.settle(ctx, payment); err != nil {
				return payment, err
			}
		}
		return payment, nil
	}

	// 4-6. Fan-out por linha do pedido + status do pedido
	if err := uc.settle(ctx, payment); err != nil {
		return payment, err
	}

	// 7. Devolve o pagamento atualizado
	return payment, nil
}

// settle executa o fan-out de inventário e a atualização do status do pedido
// para um pagamento já terminal, gravando cada linha resolvida no saga log
// antes de avançar. Retries pulam as linhas já gravadas.
func (uc *PaymentUseCase) settle(ctx context.Context, payment *Payment) error {
	ctx, span := uc.tracer.Start(ctx, "settle_payment")
	defer span.End()
	span.SetAttributes(
		attribute.String("transaction_ref", payment.TransactionRef),
		attribute.String("status", string(payment.Status)),
	)

	action := StepActionRelease
	orderStatus := OrderStatusPaymentFailed
	if payment.Status == PaymentStatusSuccess {
		action = StepActionConfirm
		orderStatus = OrderStatusPaid
	}

	// 4. Busca as linhas do pedido
	lines, err := uc.orders.GetLineItems(ctx, payment.OrderID)
	if err != nil {
		log.Printf("❌ SETTLE FAILED: order lookup | TransactionRef=%s | Error=%v", payment.TransactionRef, err)
		return fmt.Errorf("failed to fetch order lines for settlement: %w", err)
	}

	done, err := uc.repository.CompletedSteps(ctx, payment.TransactionRef)
	if err != nil {
		return err
	}

	// 5/6. Resolve cada linha e grava o marcador antes de avançar
	for _, line := range lines {
		if done[line.ProductID] {
			log.Printf("ℹ️ [SETTLE] Linha já resolvida, pulando | TransactionRef=%s | ProductID=%s",
				payment.TransactionRef, line.ProductID)
			continue
		}

		if action == StepActionConfirm {
			err = uc.inventory.ConfirmReservation(ctx, line.ProductID, line.Quantity)
		} else {
			err = uc.inventory.ReleaseStock(ctx, line.ProductID, line.Quantity)
		}
		if err != nil {
			// Progresso parcial fica gravado no saga log; um retry do
			// callback retoma daqui em vez de re-executar linhas prontas.
			log.Printf("❌ SETTLE FAILED: %s | TransactionRef=%s | ProductID=%s | Error=%v",
				action, payment.TransactionRef, line.ProductID, err)
			return fmt.Errorf("inventory %s failed for product %s: %w", action, line.ProductID, err)
		}

		if err := uc.repository.MarkStepCompleted(ctx, payment.TransactionRef, line.ProductID, line.Quantity, action); err != nil {
			return err
		}
	}

	if err := uc.orders.SetStatus(ctx, payment.OrderID, orderStatus); err != nil {
		log.Printf("❌ SETTLE FAILED: order status update | OrderID=%s | Error=%v", payment.OrderID, err)
		return fmt.Errorf("failed to update order status: %w", err)
	}

	if err := uc.repository.MarkSettled(ctx, payment.TransactionRef); err != nil {
		return err
	}
	now := time.Now()
	payment.SettledAt = &now

	if uc.settledCounter != nil {
		uc.settledCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("status", string(payment.Status)),
		))
	}

	log.Printf("✅ [SETTLE] Success: TransactionRef=%s | Order=%s -> %s | Lines=%d",
		payment.TransactionRef, payment.OrderID, orderStatus, len(lines))
	return nil
}

// GetPaymentDetails devolve o pagamento enriquecido com os itens do pedido.
// Falha no enriquecimento degrada a resposta (sem linhas) e é apenas logada.
func (uc *PaymentUseCase) GetPaymentDetails(ctx context.Context, transactionRef string) (*PaymentDetails, error) {
	payment, err := uc.repository.GetPaymentByRef(ctx, transactionRef)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}

	details := &PaymentDetails{Payment: payment}

	lines, err := uc.orders.GetLineItems(ctx, payment.OrderID)
	if err != nil {
		log.Printf("ℹ️ [GET PAYMENT] Enrichment degraded, order lines unavailable | OrderID=%s | Error=%v",
			payment.OrderID, err)
		return details, nil
	}
	details.Lines = lines

	return details, nil
}
