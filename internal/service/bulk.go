package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"order-platform/internal/apperr"
	"order-platform/internal/models"
	"order-platform/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductCatalog supplies the product list rows are validated against.
type ProductCatalog interface {
	GetProducts(ctx context.Context) ([]models.Product, error)
}

// RowError describes one failed bulk ingestion row. Row numbers count
// data rows from 1; the header row is not counted.
type RowError struct {
	Row    int    `json:"row"`
	SKU    string `json:"sku"`
	Reason string `json:"reason"`
}

// BulkResult is the outcome of a bulk ingestion run: every validation
// error plus an order summary built only from valid rows. Deciding what
// to do with a partial result is the caller's call; no failed row is ever
// silently dropped.
type BulkResult struct {
	Errors      []RowError         `json:"errors"`
	Items       []models.OrderItem `json:"items"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
	RowCount    int                `json:"row_count"`
}

// BulkIngestor parses CSV order sheets into validated line items.
type BulkIngestor struct {
	catalog ProductCatalog
	logger  *zap.Logger
}

// NewBulkIngestor creates a bulk ingestor.
func NewBulkIngestor(catalog ProductCatalog) *BulkIngestor {
	return &BulkIngestor{
		catalog: catalog,
		logger:  util.GetLogger(),
	}
}

// Ingest reads a CSV stream with a sku,quantity header and validates each
// row against the catalog: the sku must exist and the quantity must be a
// number at least 1 and at least the product's MOQ. A failing row is
// recorded and processing continues with the next row.
func (b *BulkIngestor) Ingest(ctx context.Context, r io.Reader) (*BulkResult, error) {
	ctx, span := util.StartSpan(ctx, "BulkIngestor.Ingest")
	defer span.End()

	products, err := b.catalog.GetProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load product catalog: %w", err)
	}
	bySKU := make(map[string]*models.Product, len(products))
	for i := range products {
		bySKU[strings.ToUpper(products[i].SKU)] = &products[i]
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, apperr.New(apperr.KindValidation, "file is empty")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "malformed CSV header", err)
	}

	skuCol, qtyCol := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "sku":
			skuCol = i
		case "quantity", "qty":
			qtyCol = i
		}
	}
	if skuCol < 0 || qtyCol < 0 {
		return nil, apperr.New(apperr.KindValidation, "header must contain sku and quantity columns")
	}

	result := &BulkResult{
		Errors:      []RowError{},
		Items:       []models.OrderItem{},
		TotalAmount: decimal.Zero,
	}

	for row := 1; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.addError(row, "", "malformed row")
			continue
		}
		result.RowCount++

		if len(record) <= skuCol || len(record) <= qtyCol {
			result.addError(row, "", "missing sku or quantity field")
			continue
		}

		sku := strings.TrimSpace(record[skuCol])
		if sku == "" {
			result.addError(row, sku, "sku is empty")
			continue
		}

		product, ok := bySKU[strings.ToUpper(sku)]
		if !ok {
			result.addError(row, sku, "unknown sku")
			continue
		}

		qty, err := strconv.Atoi(strings.TrimSpace(record[qtyCol]))
		if err != nil {
			result.addError(row, sku, "quantity is not a number")
			continue
		}
		if qty < 1 {
			result.addError(row, sku, "quantity must be at least 1")
			continue
		}
		if qty < product.MOQ {
			result.addError(row, sku, fmt.Sprintf("quantity %d is below minimum order quantity %d", qty, product.MOQ))
			continue
		}

		item := models.OrderItem{
			ProductID: product.ID,
			SKU:       product.SKU,
			Name:      product.Name,
			Quantity:  qty,
			UnitPrice: product.Price,
			Tax:       decimal.Zero,
			Discount:  decimal.Zero,
		}
		item.TotalPrice = item.ComputeTotal()

		result.Items = append(result.Items, item)
		result.TotalAmount = result.TotalAmount.Add(item.TotalPrice)
		util.BulkRowsProcessed.WithLabelValues("ok").Inc()
	}

	if result.RowCount == 0 && len(result.Errors) == 0 {
		return nil, apperr.New(apperr.KindValidation, "file contains no data rows")
	}

	b.logger.Info("Bulk ingestion finished",
		zap.Int("rows", result.RowCount),
		zap.Int("valid", len(result.Items)),
		zap.Int("errors", len(result.Errors)))

	return result, nil
}

func (r *BulkResult) addError(row int, sku, reason string) {
	util.BulkRowsProcessed.WithLabelValues("error").Inc()
	r.Errors = append(r.Errors, RowError{Row: row, SKU: sku, Reason: reason})
}
