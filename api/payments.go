package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"gofalre.io/hendrix/models"
)

// CreatePayment asks the backend to open a hosted checkout for an order.
func (c *Client) CreatePayment(ctx context.Context, orderID uint64) (*models.Checkout, error) {
	var checkout models.Checkout
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/pagos/crear/%d", orderID), nil, &checkout, nil); err != nil {
		return nil, err
	}
	if checkout.Error != "" {
		return nil, &Error{Status: http.StatusOK, Message: checkout.Error}
	}
	return &checkout, nil
}

// PaymentStatus reports how the checkout identified by reference resolved.
func (c *Client) PaymentStatus(ctx context.Context, reference string) (*models.PaymentStatusReport, error) {
	var report models.PaymentStatusReport
	path := "/pagos/verificar-estado/" + url.PathEscape(reference)
	if err := c.do(ctx, http.MethodGet, path, nil, &report, nil); err != nil {
		return nil, err
	}
	return &report, nil
}
