package enum

// OrderStatus 表示訂單的狀態，值與後端的 EstadoPedido 一致
type OrderStatus string

const (
	OrderStatusPendingPayment OrderStatus = "PENDIENTE_PAGO" // 訂單已創建，等待付款
	OrderStatusPaid           OrderStatus = "PAGADO"         // 訂單已支付
	OrderStatusShipped        OrderStatus = "ENVIADO"        // 已發貨
	OrderStatusDelivered      OrderStatus = "ENTREGADO"      // 已交付
	OrderStatusCancelled      OrderStatus = "CANCELADO"      // 訂單取消
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPendingPayment: {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:           {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:        {OrderStatusDelivered},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPendingPayment, OrderStatusPaid, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// IsFinal reports whether no further transition is allowed.
func (s OrderStatus) IsFinal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
