// Package stock covers the administrator's inventory and pricing tasks.
package stock

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gofalre.io/hendrix/models"
	"gofalre.io/hendrix/models/enum"
)

type Backend interface {
	LowStock(ctx context.Context) ([]models.Instrument, error)
	UpdatePrice(ctx context.Context, id uint64, price decimal.Decimal) (*models.Instrument, error)
	Restock(ctx context.Context, id uint64, quantity int) (*models.Instrument, error)
	Instrument(ctx context.Context, id uint64) (*models.Instrument, error)
	CreateInstrument(ctx context.Context, req *models.InstrumentRequest) (*models.Instrument, error)
	UpdateInstrument(ctx context.Context, id uint64, req *models.InstrumentRequest) (*models.Instrument, error)
	DeleteInstrument(ctx context.Context, id uint64) error
	UploadImage(ctx context.Context, fileName string, content io.Reader) (*models.ImageUpload, error)
}

type Session interface {
	IsAdmin() bool
}

// CatalogCache is invalidated after every change so customers see new stock
// and prices on their next listing.
type CatalogCache interface {
	Invalidate(ctx context.Context, categoryIDs ...uint64)
}

type Inventory struct {
	backend Backend
	session Session
	catalog CatalogCache
	logger  *zap.Logger
}

func NewInventory(backend Backend, session Session, catalog CatalogCache, logger *zap.Logger) *Inventory {
	return &Inventory{
		backend: backend,
		session: session,
		catalog: catalog,
		logger:  logger,
	}
}

// LowStock lists instruments under models.LowStockThreshold units.
func (i *Inventory) LowStock(ctx context.Context) ([]models.Instrument, error) {
	if err := i.requireAdmin(); err != nil {
		return nil, err
	}

	instruments, err := i.backend.LowStock(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list low stock: %w", err)
	}
	return instruments, nil
}

func (i *Inventory) UpdatePrice(ctx context.Context, params UpdatePriceParams) (*models.Instrument, error) {
	if err := i.requireAdmin(); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	instrument, err := i.backend.UpdatePrice(ctx, params.InstrumentID, params.Price)
	if err != nil {
		return nil, fmt.Errorf("failed to update price of instrument %d: %w", params.InstrumentID, err)
	}
	i.catalog.Invalidate(ctx, instrument.Category.ID)

	i.logger.Info("Price updated",
		zap.Uint64("instrument_id", params.InstrumentID),
		zap.String("price", params.Price.String()))
	return instrument, nil
}

// Restock adds units to an instrument's stock.
func (i *Inventory) Restock(ctx context.Context, params RestockParams) (*models.Instrument, error) {
	if err := i.requireAdmin(); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	instrument, err := i.backend.Restock(ctx, params.InstrumentID, params.Quantity)
	if err != nil {
		return nil, fmt.Errorf("failed to restock instrument %d: %w", params.InstrumentID, err)
	}
	i.catalog.Invalidate(ctx, instrument.Category.ID)

	i.logger.Info("Stock replenished",
		zap.Uint64("instrument_id", params.InstrumentID),
		zap.Int("added", params.Quantity),
		zap.Int("stock", instrument.Stock))
	return instrument, nil
}

func (i *Inventory) CreateInstrument(ctx context.Context, params InstrumentParams) (*models.Instrument, error) {
	if err := i.requireAdmin(); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	instrument, err := i.backend.CreateInstrument(ctx, params.request())
	if err != nil {
		return nil, fmt.Errorf("failed to create instrument: %w", err)
	}
	i.catalog.Invalidate(ctx, params.CategoryID)

	i.logger.Info("Instrument created",
		zap.Uint64("instrument_id", instrument.ID),
		zap.String("name", instrument.Name))
	return instrument, nil
}

// UpdateInstrument replaces every editable field. Both the old and the new
// category listings are invalidated when the instrument moves.
func (i *Inventory) UpdateInstrument(ctx context.Context, params UpdateInstrumentParams) (*models.Instrument, error) {
	if err := i.requireAdmin(); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	current, err := i.backend.Instrument(ctx, params.InstrumentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get instrument %d: %w", params.InstrumentID, err)
	}

	instrument, err := i.backend.UpdateInstrument(ctx, params.InstrumentID, params.request())
	if err != nil {
		return nil, fmt.Errorf("failed to update instrument %d: %w", params.InstrumentID, err)
	}
	i.catalog.Invalidate(ctx, current.Category.ID, params.CategoryID)

	i.logger.Info("Instrument updated", zap.Uint64("instrument_id", params.InstrumentID))
	return instrument, nil
}

// DeleteInstrument removes an instrument. The backend refuses instruments
// that appear in any order.
func (i *Inventory) DeleteInstrument(ctx context.Context, id uint64) error {
	if err := i.requireAdmin(); err != nil {
		return err
	}
	if id == 0 {
		return models.NewDenial(enum.DenialInvalidProduct, "Instrumento inválido")
	}

	current, err := i.backend.Instrument(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get instrument %d: %w", id, err)
	}
	if err = i.backend.DeleteInstrument(ctx, id); err != nil {
		return fmt.Errorf("failed to delete instrument %d: %w", id, err)
	}
	i.catalog.Invalidate(ctx, current.Category.ID)

	i.logger.Info("Instrument deleted", zap.Uint64("instrument_id", id), zap.String("name", current.Name))
	return nil
}

// UploadImage publishes an instrument picture and returns its URL, ready for
// InstrumentParams.Image.
func (i *Inventory) UploadImage(ctx context.Context, params UploadImageParams) (*models.ImageUpload, error) {
	if err := i.requireAdmin(); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	upload, err := i.backend.UploadImage(ctx, filepath.Base(params.FileName), io.LimitReader(params.Content, MaxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to upload image %s: %w", params.FileName, err)
	}

	i.logger.Info("Image uploaded", zap.String("file", upload.FileName), zap.String("url", upload.URL))
	return upload, nil
}

func (i *Inventory) requireAdmin() error {
	if !i.session.IsAdmin() {
		return models.NewDenial(enum.DenialNotAdmin, "Esta acción requiere una cuenta de administrador")
	}
	return nil
}
