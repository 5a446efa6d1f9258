package models

import (
	"github.com/shopspring/decimal"
)

func init() {
	// 後端以 JSON number 收發價格
	decimal.MarshalJSONWithoutQuotes = true
}

// Instrument 代表商品目錄中的樂器，Stock 與 Price 只是讀取當下的快照
type Instrument struct {
	ID          uint64           `json:"idInstrumento,omitempty"`
	Name        string           `json:"denominacion"`
	Brand       string           `json:"marca"`
	Stock       int              `json:"stock"`
	Description string           `json:"descripcion"`
	Image       string           `json:"imagen"`
	Price       *decimal.Decimal `json:"precioActual,omitempty"`
	Category    Category         `json:"categoriaInstrumento"`
}

// HasValidPrice reports whether the instrument carries a positive price.
func (i *Instrument) HasValidPrice() bool {
	return i.Price != nil && i.Price.IsPositive()
}

// UnitPrice returns the price or zero when none is set.
func (i *Instrument) UnitPrice() decimal.Decimal {
	if i.Price == nil {
		return decimal.Zero
	}
	return *i.Price
}

// InstrumentRequest 建立或更新樂器時送出的內容
type InstrumentRequest struct {
	Name        string          `json:"denominacion"`
	Brand       string          `json:"marca"`
	Stock       int             `json:"stock"`
	Description string          `json:"descripcion"`
	Image       string          `json:"imagen"`
	CategoryID  uint64          `json:"categoriaId"`
	Price       decimal.Decimal `json:"precioActual"`
}

// ImageUpload 圖片上傳後後端回傳的檔名與公開網址
type ImageUpload struct {
	FileName string `json:"fileName"`
	URL      string `json:"url"`
}
