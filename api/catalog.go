package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/shopspring/decimal"

	"gofalre.io/hendrix/models"
)

func (c *Client) Categories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if err := c.do(ctx, http.MethodGet, "/categorias", nil, &categories, nil); err != nil {
		return nil, err
	}
	return categories, nil
}

// Instruments lists the catalog, filtered by category when categoryID is not 0.
func (c *Client) Instruments(ctx context.Context, categoryID uint64) ([]models.Instrument, error) {
	path := "/instrumentos"
	if categoryID != 0 {
		path = fmt.Sprintf("%s?idCategoria=%d", path, categoryID)
	}

	var instruments []models.Instrument
	if err := c.do(ctx, http.MethodGet, path, nil, &instruments, nil); err != nil {
		return nil, err
	}
	return instruments, nil
}

func (c *Client) Instrument(ctx context.Context, id uint64) (*models.Instrument, error) {
	var instrument models.Instrument
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/instrumentos/%d", id), nil, &instrument, nil); err != nil {
		return nil, err
	}
	return &instrument, nil
}

func (c *Client) LowStock(ctx context.Context) ([]models.Instrument, error) {
	var instruments []models.Instrument
	if err := c.do(ctx, http.MethodGet, "/instrumentos/bajo-stock", nil, &instruments, nil); err != nil {
		return nil, err
	}
	return instruments, nil
}

func (c *Client) UpdatePrice(ctx context.Context, id uint64, price decimal.Decimal) (*models.Instrument, error) {
	req := &models.PriceUpdateRequest{Price: price.InexactFloat64()}

	var instrument models.Instrument
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/instrumentos/%d/precio", id), req, &instrument, nil); err != nil {
		return nil, err
	}
	return &instrument, nil
}

// Restock adds quantity units to an instrument's stock.
func (c *Client) Restock(ctx context.Context, id uint64, quantity int) (*models.Instrument, error) {
	req := &models.RestockRequest{Quantity: quantity}

	var instrument models.Instrument
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/instrumentos/%d/stock", id), req, &instrument, nil); err != nil {
		return nil, err
	}
	return &instrument, nil
}

func (c *Client) CreateInstrument(ctx context.Context, req *models.InstrumentRequest) (*models.Instrument, error) {
	var instrument models.Instrument
	if err := c.do(ctx, http.MethodPost, "/instrumentos", req, &instrument, nil); err != nil {
		return nil, err
	}
	return &instrument, nil
}

func (c *Client) UpdateInstrument(ctx context.Context, id uint64, req *models.InstrumentRequest) (*models.Instrument, error) {
	var instrument models.Instrument
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/instrumentos/%d", id), req, &instrument, nil); err != nil {
		return nil, err
	}
	return &instrument, nil
}

func (c *Client) DeleteInstrument(ctx context.Context, id uint64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/instrumentos/%d", id), nil, nil, nil)
}

// UploadImage sends an image as the "file" part of a multipart form and
// returns where the backend published it.
func (c *Client) UploadImage(ctx context.Context, fileName string, content io.Reader) (*models.ImageUpload, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err = io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("failed to read image %s: %w", fileName, err)
	}
	if err = form.Close(); err != nil {
		return nil, fmt.Errorf("failed to build upload form: %w", err)
	}

	var upload models.ImageUpload
	if err = c.send(ctx, http.MethodPost, "/uploads", buf.Bytes(), form.FormDataContentType(), &upload, nil); err != nil {
		return nil, err
	}
	if upload.URL == "" {
		return nil, fmt.Errorf("upload of %s: %w", fileName, ErrGhostSuccess)
	}
	return &upload, nil
}
