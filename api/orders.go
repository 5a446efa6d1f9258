package api

import (
	"context"
	"fmt"
	"net/http"

	"gofalre.io/hendrix/models"
	"gofalre.io/hendrix/models/enum"
)

// CreateOrder submits an order. idempotencyKey lets the backend collapse
// retries of the same submission.
func (c *Client) CreateOrder(ctx context.Context, req *models.OrderRequest, idempotencyKey string) (*models.Order, error) {
	header := http.Header{}
	if idempotencyKey != "" {
		header.Set(headerIdempotencyKey, idempotencyKey)
	}

	var order models.Order
	if err := c.do(ctx, http.MethodPost, "/pedidos", req, &order, header); err != nil {
		return nil, err
	}
	return &order, nil
}

// PendingOrder returns the caller's order awaiting payment, or nil when there
// is none.
func (c *Client) PendingOrder(ctx context.Context) (*models.Order, error) {
	var res models.PendingOrderResponse
	if err := c.do(ctx, http.MethodGet, "/pedidos/pendiente", nil, &res, nil); err != nil {
		return nil, err
	}
	if !res.HasPending || res.Order == nil {
		return nil, nil
	}
	return res.Order, nil
}

func (c *Client) Orders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	if err := c.do(ctx, http.MethodGet, "/pedidos", nil, &orders, nil); err != nil {
		return nil, err
	}
	return orders, nil
}

func (c *Client) OrdersByUser(ctx context.Context, userID uint64) ([]models.Order, error) {
	var orders []models.Order
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/pedidos/usuario/%d", userID), nil, &orders, nil); err != nil {
		return nil, err
	}
	return orders, nil
}

func (c *Client) Order(ctx context.Context, id uint64) (*models.Order, error) {
	var order models.Order
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/pedidos/%d", id), nil, &order, nil); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) UpdateOrderStatus(ctx context.Context, id uint64, status enum.OrderStatus) (*models.Order, error) {
	req := &models.StatusUpdateRequest{Status: status}

	var order models.Order
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/pedidos/%d/estado", id), req, &order, nil); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) CancelOrder(ctx context.Context, id uint64, reason string) (*models.Order, error) {
	req := &models.CancelRequest{Reason: reason}

	var order models.Order
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/pedidos/%d/cancelar", id), req, &order, nil); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) DeleteOrder(ctx context.Context, id uint64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/pedidos/%d", id), nil, nil, nil)
}

// OrderStats counts every order by status.
func (c *Client) OrderStats(ctx context.Context) (*models.OrderStats, error) {
	var stats models.OrderStats
	if err := c.do(ctx, http.MethodGet, "/pedidos/estadisticas", nil, &stats, nil); err != nil {
		return nil, err
	}
	return &stats, nil
}
