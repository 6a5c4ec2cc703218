package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

var (
	// ErrOrderNotFound indica que o serviço de pedidos não conhece o orderID
	ErrOrderNotFound = errors.New("order not found")
)

// OrderLookup é o contrato consumido do serviço de pedidos
type OrderLookup interface {
	GetLineItems(ctx context.Context, orderID string) ([]OrderLine, error)
	SetStatus(ctx context.Context, orderID string, status string) error
}

// InventoryLedger é o contrato consumido do serviço de inventário
type InventoryLedger interface {
	ConfirmReservation(ctx context.Context, productID string, qty int) error
	ReleaseStock(ctx context.Context, productID string, qty int) error
}

// OrdersHTTPClient implementa OrderLookup sobre a API HTTP do serviço de pedidos
type OrdersHTTPClient struct {
	client  *resty.Client
	baseURL string
}

// NewOrdersHTTPClient cria um client para o serviço de pedidos
func NewOrdersHTTPClient(baseURL string, timeout time.Duration) *OrdersHTTPClient {
	return &OrdersHTTPClient{
		client:  resty.New().SetTimeout(timeout),
		baseURL: baseURL,
	}
}

// GetLineItems busca os itens do pedido
func (c *OrdersHTTPClient) GetLineItems(ctx context.Context, orderID string) ([]OrderLine, error) {
	var lines []OrderLine

	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&lines).
		Get(fmt.Sprintf("%s/api/orders/%s/lines", c.baseURL, orderID))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch order lines: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, ErrOrderNotFound
	}
	if resp.IsError() {
		return nil, fmt.Errorf("orders service returned %d: %s", resp.StatusCode(), resp.String())
	}

	return lines, nil
}

// SetStatus atualiza o status do pedido
func (c *OrdersHTTPClient) SetStatus(ctx context.Context, orderID string, status string) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"status": status}).
		Put(fmt.Sprintf("%s/api/orders/%s/status", c.baseURL, orderID))
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return ErrOrderNotFound
	}
	if resp.IsError() {
		return fmt.Errorf("orders service returned %d: %s", resp.StatusCode(), resp.String())
	}

	return nil
}

// InventoryHTTPClient implementa InventoryLedger sobre a API HTTP do inventário
type InventoryHTTPClient struct {
	client  *resty.Client
	baseURL string
}

// NewInventoryHTTPClient cria um client para o serviço de inventário
func NewInventoryHTTPClient(baseURL string, timeout time.Duration) *InventoryHTTPClient {
	return &InventoryHTTPClient{
		client:  resty.New().SetTimeout(timeout),
		baseURL: baseURL,
	}
}

func (c *InventoryHTTPClient) post(ctx context.Context, path, productID string, qty int) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{"product_id": productID, "quantity": qty}).
		Post(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("failed to call inventory service: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("inventory service returned %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// ConfirmReservation baixa a reserva em definitivo no inventário
func (c *InventoryHTTPClient) ConfirmReservation(ctx context.Context, productID string, qty int) error {
	return c.post(ctx, "/api/inventory/confirm", productID, qty)
}

// ReleaseStock devolve a reserva ao estoque disponível
func (c *InventoryHTTPClient) ReleaseStock(ctx context.Context, productID string, qty int) error {
	return c.post(ctx, "/api/inventory/release", productID, qty)
}
