package stock

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"gofalre.io/hendrix/models"
	"gofalre.io/hendrix/models/enum"
)

type UpdatePriceParams struct {
	InstrumentID uint64
	Price        decimal.Decimal
}

func (p UpdatePriceParams) Validate() error {
	if p.InstrumentID == 0 {
		return models.NewDenial(enum.DenialInvalidProduct, "Instrumento inválido")
	}
	if !p.Price.IsPositive() {
		return models.NewDenial(enum.DenialInvalidPrice, fmt.Sprintf("Precio inválido: %s", p.Price))
	}
	return nil
}

type RestockParams struct {
	InstrumentID uint64
	Quantity     int
}

func (p RestockParams) Validate() error {
	if p.InstrumentID == 0 {
		return models.NewDenial(enum.DenialInvalidProduct, "Instrumento inválido")
	}
	if p.Quantity <= 0 {
		return models.NewDenial(enum.DenialInvalidQuantity, "Cantidad inválida")
	}
	return nil
}

const (
	maxNameLength        = 100
	maxBrandLength       = 50
	maxDescriptionLength = 500
	maxStock             = 999999
	// MaxImageBytes 上傳圖片的大小上限
	MaxImageBytes = 5 << 20
)

var maxPrice = decimal.RequireFromString("999999999.99")

// InstrumentParams 建立或更新樂器時的欄位
type InstrumentParams struct {
	Name        string
	Brand       string
	Stock       int
	Description string
	Image       string
	CategoryID  uint64
	Price       decimal.Decimal
}

// Validate reports every invalid field in a single denial.
func (p InstrumentParams) Validate() error {
	var problems []string
	switch name := strings.TrimSpace(p.Name); {
	case name == "":
		problems = append(problems, "La denominación del instrumento es obligatoria")
	case utf8.RuneCountInString(name) > maxNameLength:
		problems = append(problems, fmt.Sprintf("La denominación no puede exceder %d caracteres", maxNameLength))
	}
	switch brand := strings.TrimSpace(p.Brand); {
	case brand == "":
		problems = append(problems, "La marca es obligatoria")
	case utf8.RuneCountInString(brand) > maxBrandLength:
		problems = append(problems, fmt.Sprintf("La marca no puede exceder %d caracteres", maxBrandLength))
	}
	if strings.TrimSpace(p.Image) == "" {
		problems = append(problems, "La imagen es obligatoria")
	}
	switch {
	case !p.Price.IsPositive():
		problems = append(problems, "El precio debe ser mayor que cero")
	case p.Price.GreaterThan(maxPrice):
		problems = append(problems, "El precio es demasiado alto")
	}
	switch {
	case p.Stock < 0:
		problems = append(problems, "El stock no puede ser negativo")
	case p.Stock > maxStock:
		problems = append(problems, "El stock es demasiado alto")
	}
	switch desc := strings.TrimSpace(p.Description); {
	case desc == "":
		problems = append(problems, "La descripción es obligatoria")
	case utf8.RuneCountInString(desc) > maxDescriptionLength:
		problems = append(problems, fmt.Sprintf("La descripción no puede exceder %d caracteres", maxDescriptionLength))
	}
	if p.CategoryID == 0 {
		problems = append(problems, "Debe seleccionar una categoría")
	}

	if len(problems) > 0 {
		return models.NewDenial(enum.DenialInvalidInstrument, strings.Join(problems, ". "))
	}
	return nil
}

func (p InstrumentParams) request() *models.InstrumentRequest {
	return &models.InstrumentRequest{
		Name:        strings.TrimSpace(p.Name),
		Brand:       strings.TrimSpace(p.Brand),
		Stock:       p.Stock,
		Description: strings.TrimSpace(p.Description),
		Image:       strings.TrimSpace(p.Image),
		CategoryID:  p.CategoryID,
		Price:       p.Price,
	}
}

type UpdateInstrumentParams struct {
	InstrumentID uint64
	InstrumentParams
}

func (p UpdateInstrumentParams) Validate() error {
	if p.InstrumentID == 0 {
		return models.NewDenial(enum.DenialInvalidProduct, "Instrumento inválido")
	}
	return p.InstrumentParams.Validate()
}

// UploadImageParams 上傳的圖片，Size 為 Content 的位元組數
type UploadImageParams struct {
	FileName string
	Size     int64
	Content  io.Reader
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

func (p UploadImageParams) Validate() error {
	if p.Content == nil || p.Size <= 0 {
		return models.NewDenial(enum.DenialInvalidImage, "La imagen está vacía")
	}
	if !imageExtensions[strings.ToLower(filepath.Ext(p.FileName))] {
		return models.NewDenial(enum.DenialInvalidImage, "Solo se permiten imágenes (JPG, PNG, GIF, WEBP)")
	}
	if p.Size > MaxImageBytes {
		return models.NewDenial(enum.DenialInvalidImage, "La imagen no puede superar 5MB")
	}
	return nil
}
