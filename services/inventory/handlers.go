package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// InventoryUseCaseInterface define a interface para o use case
type InventoryUseCaseInterface interface {
	ReserveStock(ctx context.Context, productID string, qty int) (*InventoryRecord, error)
	ReleaseStock(ctx context.Context, productID string, qty int) (*InventoryRecord, error)
	ConfirmReservation(ctx context.Context, productID string, qty int) (*InventoryRecord, error)
	SetAvailable(ctx context.Context, productID string, qty int) (*InventoryRecord, error)
	GetRecord(ctx context.Context, productID string) (*InventoryRecord, error)
}

// StockOperationRequest representa uma operação de reserva/liberação/confirmação
type StockOperationRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
}

// SetAvailableRequest representa uma carga de estoque
type SetAvailableRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  *int   `json:"quantity" binding:"required,gte=0"`
}

// InventoryHandler contém os handlers HTTP
type InventoryHandler struct {
	useCase InventoryUseCaseInterface
	tracer  trace.Tracer
}

// NewInventoryHandler cria uma nova instância de InventoryHandler
func NewInventoryHandler(useCase InventoryUseCaseInterface, tracer trace.Tracer) *InventoryHandler {
	return &InventoryHandler{
		useCase: useCase,
		tracer:  tracer,
	}
}

// ReserveStock segura estoque para um pedido
func (h *InventoryHandler) ReserveStock(c *gin.Context) {
	var req StockOperationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handle_reserve_stock")
	defer span.End()
	span.SetAttributes(attribute.String("product_id", req.ProductID), attribute.Int("quantity", req.Quantity))

	rec, err := h.useCase.ReserveStock(ctx, req.ProductID, req.Quantity)
	if err != nil {
		span.RecordError(err)
		c.JSON(statusForInventoryError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, rec)
}

// ReleaseStock devolve estoque reservado ao pool disponível
func (h *InventoryHandler) ReleaseStock(c *gin.Context) {
	var req StockOperationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handle_release_stock")
	defer span.End()
	span.SetAttributes(attribute.String("product_id", req.ProductID), attribute.Int("quantity", req.Quantity))

	rec, err := h.useCase.ReleaseStock(ctx, req.ProductID, req.Quantity)
	if err != nil {
		span.RecordError(err)
		c.JSON(statusForInventoryError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, rec)
}

// ConfirmReservation baixa estoque reservado em definitivo
func (h *InventoryHandler) ConfirmReservation(c *gin.Context) {
	var req StockOperationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handle_confirm_reservation")
	defer span.End()
	span.SetAttributes(attribute.String("product_id", req.ProductID), attribute.Int("quantity", req.Quantity))

	rec, err := h.useCase.ConfirmReservation(ctx, req.ProductID, req.Quantity)
	if err != nil {
		span.RecordError(err)
		c.JSON(statusForInventoryError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, rec)
}

// SetAvailable cria ou sobrescreve a quantidade disponível de um produto
func (h *InventoryHandler) SetAvailable(c *gin.Context) {
	var req SetAvailableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handle_set_available")
	defer span.End()
	span.SetAttributes(attribute.String("product_id", req.ProductID), attribute.Int("quantity", *req.Quantity))

	rec, err := h.useCase.SetAvailable(ctx, req.ProductID, *req.Quantity)
	if err != nil {
		span.RecordError(err)
		c.JSON(statusForInventoryError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, rec)
}

// GetRecord devolve os contadores de um produto
func (h *InventoryHandler) GetRecord(c *gin.Context) {
	productID := c.Param("productId")

	rec, err := h.useCase.GetRecord(c.Request.Context(), productID)
	if err != nil {
		c.JSON(statusForInventoryError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, rec)
}

// HealthCheck verifica a saúde do serviço
func (h *InventoryHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "inventory-service",
	})
}

// statusForInventoryError mapeia erros de negócio para códigos HTTP
func statusForInventoryError(err error) int {
	switch {
	case errors.Is(err, ErrProductNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInsufficientStock):
		return http.StatusConflict
	case errors.Is(err, ErrReleaseExceedsReserved),
		errors.Is(err, ErrConfirmExceedsReserved),
		errors.Is(err, ErrInvalidQuantity):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
