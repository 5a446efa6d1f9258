package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartLine 代表購物車中的單個商品項目
type CartLine struct {
	Instrument Instrument `json:"instrumento"`
	Quantity   int        `json:"cantidad"`
}

// Subtotal is unit price times quantity.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.Instrument.UnitPrice().Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// CartSnapshot is what gets written to durable storage after each mutation.
type CartSnapshot struct {
	Items     []CartLine `json:"items"`
	Timestamp int64      `json:"timestamp"`
}

func NewCartSnapshot(lines []CartLine, now time.Time) *CartSnapshot {
	return &CartSnapshot{
		Items:     lines,
		Timestamp: now.UnixMilli(),
	}
}

// CartView 是購物車的唯讀副本
type CartView struct {
	Lines      []CartLine      `json:"lines"`
	Visible    bool            `json:"visible"`
	Message    string          `json:"message,omitempty"`
	TotalItems int             `json:"totalItems"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	Pending    *Order          `json:"pending,omitempty"`
}

// Totals computes the item count and price across lines.
func Totals(lines []CartLine) (int, decimal.Decimal) {
	items := 0
	price := decimal.Zero
	for _, line := range lines {
		items += line.Quantity
		price = price.Add(line.Subtotal())
	}
	return items, price
}
