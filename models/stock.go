package models

// LowStockThreshold 低於此數量視為庫存不足
const LowStockThreshold = 5

type RestockRequest struct {
	Quantity int `json:"cantidad"`
}

type PriceUpdateRequest struct {
	Price float64 `json:"precio"`
}
