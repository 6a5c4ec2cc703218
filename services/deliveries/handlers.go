package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DeliveryUseCaseInterface define a interface para o use case
type DeliveryUseCaseInterface interface {
	CreateDelivery(ctx context.Context, orderID string, estimatedDeliveryDate time.Time) (*Delivery, error)
	UpdateStatus(ctx context.Context, trackingNumber string, rawStatus, location, note string) (*Delivery, error)
	CancelDelivery(ctx context.Context, trackingNumber, reason string) (*Delivery, error)
	GetDelivery(ctx context.Context, trackingNumber string) (*Delivery, error)
}

// CreateDeliveryRequest representa a requisição para criar uma remessa
type CreateDeliveryRequest struct {
	OrderID               string    `json:"order_id" binding:"required"`
	EstimatedDeliveryDate time.Time `json:"estimated_delivery_date" binding:"required"`
}

// UpdateStatusRequest representa uma transição de status
type UpdateStatusRequest struct {
	Status          string `json:"status" binding:"required"`
	CurrentLocation string `json:"current_location"`
	Note            string `json:"note"`
}

// CancelDeliveryRequest representa um cancelamento com motivo
type CancelDeliveryRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// DeliveryHandler contém os handlers HTTP
type DeliveryHandler struct {
	useCase DeliveryUseCaseInterface
	tracer  trace.Tracer
}

// NewDeliveryHandler cria uma nova instância de DeliveryHandler
func NewDeliveryHandler(useCase DeliveryUseCaseInterface, tracer trace.Tracer) *DeliveryHandler {
	return &DeliveryHandler{
		useCase: useCase,
		tracer:  tracer,
	}
}

// CreateDelivery cria a remessa de um pedido
func (h *DeliveryHandler) CreateDelivery(c *gin.Context) {
	var req CreateDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handle_create_delivery")
	defer span.End()
	span.SetAttributes(attribute.String("order_id", req.OrderID))

	delivery, err := h.useCase.CreateDelivery(ctx, req.OrderID, req.EstimatedDeliveryDate)
	if err != nil {
		span.RecordError(err)
		c.JSON(statusForDeliveryError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, delivery)
}

// UpdateStatus aplica uma transição de status na remessa
func (h *DeliveryHandler) UpdateStatus(c *gin.Context) {
	trackingNumber := c.Param("trackingNumber")

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handle_update_delivery_status")
	defer span.End()
	span.SetAttributes(
		attribute.String("tracking_number", trackingNumber),
		attribute.String("target_status", req.Status),
	)

	delivery, err := h.useCase.UpdateStatus(ctx, trackingNumber, req.Status, req.CurrentLocation, req.Note)
	if err != nil {
		span.RecordError(err)
		c.JSON(statusForDeliveryError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, delivery)
}

// CancelDelivery cancela a remessa com um motivo
func (h *DeliveryHandler) CancelDelivery(c *gin.Context) {
	trackingNumber := c.Param("trackingNumber")

	var req CancelDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handle_cancel_delivery")
	defer span.End()
	span.SetAttributes(attribute.String("tracking_number", trackingNumber))

	delivery, err := h.useCase.CancelDelivery(ctx, trackingNumber, req.Reason)
	if err != nil {
		span.RecordError(err)
		c.JSON(statusForDeliveryError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, delivery)
}

// GetDelivery devolve uma remessa pelo tracking number
func (h *DeliveryHandler) GetDelivery(c *gin.Context) {
	trackingNumber := c.Param("trackingNumber")

	delivery, err := h.useCase.GetDelivery(c.Request.Context(), trackingNumber)
	if err != nil {
		c.JSON(statusForDeliveryError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, delivery)
}

// HealthCheck verifica a saúde do serviço
func (h *DeliveryHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "deliveries-service",
	})
}

// statusForDeliveryError mapeia erros de negócio para códigos HTTP
func statusForDeliveryError(err error) int {
	switch {
	case errors.Is(err, ErrDeliveryNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDeliveryExists):
		return http.StatusConflict
	case errors.Is(err, ErrAlreadyDelivered),
		errors.Is(err, ErrAlreadyCancelled),
		errors.Is(err, ErrAlreadyFailed),
		errors.Is(err, ErrUnknownStatus):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
