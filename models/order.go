package models

import (
	"github.com/shopspring/decimal"

	"gofalre.io/hendrix/models/enum"
)

// Order 代表訂單
type Order struct {
	ID     uint64           `json:"id"`
	Date   string           `json:"fecha,omitempty"`
	Status enum.OrderStatus `json:"estado"`
	Total  decimal.Decimal  `json:"total"`
	User   *User            `json:"usuario,omitempty"`
	Lines  []OrderLine      `json:"detalles,omitempty"`
}

// OrderLine 代表訂單中的單個商品項目
type OrderLine struct {
	ID         uint64          `json:"id"`
	Instrument Instrument      `json:"instrumento"`
	Quantity   int             `json:"cantidad"`
	UnitPrice  decimal.Decimal `json:"precioUnitario"`
	Subtotal   decimal.Decimal `json:"subtotal"`
}

// IsPendingPayment reports whether the order still awaits payment.
func (o *Order) IsPendingPayment() bool {
	return o.Status == enum.OrderStatusPendingPayment
}

// AllowChangeStatus checks the order status transition table.
func (o *Order) AllowChangeStatus(next enum.OrderStatus) bool {
	return o.Status.CanTransitionTo(next)
}

type OwnerRef struct {
	UserID uint64 `json:"idUsuario"`
}

type OrderLineRequest struct {
	InstrumentID uint64          `json:"instrumentoId"`
	Quantity     int             `json:"cantidad"`
	UnitPrice    decimal.Decimal `json:"precioUnitario"`
}

// OrderRequest is the body of an order creation call.
type OrderRequest struct {
	Owner OwnerRef           `json:"usuario"`
	Lines []OrderLineRequest `json:"detalles"`
}

// NewOrderRequest builds a request from cart lines using the unit price
// known at the time of ordering.
func NewOrderRequest(userID uint64, lines []CartLine) *OrderRequest {
	req := &OrderRequest{
		Owner: OwnerRef{UserID: userID},
		Lines: make([]OrderLineRequest, 0, len(lines)),
	}
	for _, line := range lines {
		req.Lines = append(req.Lines, OrderLineRequest{
			InstrumentID: line.Instrument.ID,
			Quantity:     line.Quantity,
			UnitPrice:    line.Instrument.UnitPrice(),
		})
	}
	return req
}

// PendingOrderResponse is the answer to the pending-order lookup.
type PendingOrderResponse struct {
	HasPending bool   `json:"tienePedidoPendiente"`
	Order      *Order `json:"pedidoPendiente,omitempty"`
}

type StatusUpdateRequest struct {
	Status enum.OrderStatus `json:"estado"`
}

type CancelRequest struct {
	Reason string `json:"motivo,omitempty"`
}

// OrderStats 所有訂單依狀態的統計，Sales 只計入已付款之後的訂單
type OrderStats struct {
	Total          int             `json:"total"`
	PendingPayment int64           `json:"pendientesPago"`
	Paid           int64           `json:"pagados"`
	Shipped        int64           `json:"enviados"`
	Delivered      int64           `json:"entregados"`
	Cancelled      int64           `json:"cancelados"`
	Sales          decimal.Decimal `json:"totalVentas"`
}
