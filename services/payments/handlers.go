package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// PaymentUseCaseInterface define a interface para o use case
type PaymentUseCaseInterface interface {
	InitiatePayment(ctx context.Context, req InitiatePaymentRequest) (*Payment, error)
	ProcessGatewayCallback(ctx context.Context, transactionRef string, newStatus PaymentStatus) (*Payment, error)
	GetPaymentDetails(ctx context.Context, transactionRef string) (*PaymentDetails, error)
}

// GatewayCallbackRequest representa o webhook do gateway
type GatewayCallbackRequest struct {
	TransactionRef string `json:"transaction_ref" binding:"required"`
	Status         string `json:"status" binding:"required"`
}

// PaymentHandler contém os handlers HTTP
type PaymentHandler struct {
	useCase PaymentUseCaseInterface
	tracer  trace.Tracer
}

// NewPaymentHandler cria uma nova instância de PaymentHandler
func NewPaymentHandler(useCase PaymentUseCaseInterface, tracer trace.Tracer) *PaymentHandler {
	return &PaymentHandler{
		useCase: useCase,
		tracer:  tracer,
	}
}

// InitiatePayment cria um pagamento para um pedido e dispara o gateway
func (h *PaymentHandler) InitiatePayment(c *gin.Context) {
	var req InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handle_initiate_payment")
	defer span.End()
	span.SetAttributes(
		attribute.String("order_id", req.OrderID),
		attribute.Int("amount", req.Amount),
	)

	payment, err := h.useCase.InitiatePayment(ctx, req)
	if err != nil {
		span.RecordError(err)
		c.JSON(statusForPaymentError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, payment)
}

// GatewayCallback processa o desfecho reportado pelo gateway
func (h *PaymentHandler) GatewayCallback(c *gin.Context) {
	var req GatewayCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handle_gateway_callback")
	defer span.End()
	span.SetAttributes(
		attribute.String("transaction_ref", req.TransactionRef),
		attribute.String("status", req.Status),
	)

	status, err := ParsePaymentStatus(req.Status)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	payment, err := h.useCase.ProcessGatewayCallback(ctx, req.TransactionRef, status)
	if err != nil {
		span.RecordError(err)
		c.JSON(statusForPaymentError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, payment)
}

// GetPayment devolve um pagamento enriquecido com os itens do pedido
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	transactionRef := c.Param("transactionRef")

	details, err := h.useCase.GetPaymentDetails(c.Request.Context(), transactionRef)
	if err != nil {
		c.JSON(statusForPaymentError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, details)
}

// HealthCheck verifica a saúde do serviço
func (h *PaymentHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "payments-service",
	})
}

// statusForPaymentError mapeia erros de negócio para códigos HTTP
func statusForPaymentError(err error) int {
	switch {
	case errors.Is(err, ErrPaymentNotFound), errors.Is(err, ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrNotPending), errors.Is(err, ErrNotTerminalTarget):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
