package service

import (
	"context"
	"strings"
	"testing"

	"order-platform/internal/apperr"
	"order-platform/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	products []models.Product
	err      error
}

func (f *fakeCatalog) GetProducts(_ context.Context) ([]models.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.products, nil
}

func testCatalog() *fakeCatalog {
	return &fakeCatalog{products: []models.Product{
		{ID: 1, SKU: "A1", Name: "Widget", Price: decimal.NewFromInt(10), MOQ: 1},
		{ID: 2, SKU: "B2", Name: "Gadget", Price: decimal.NewFromFloat(2.5), MOQ: 1},
		{ID: 3, SKU: "C3", Name: "Crate", Price: decimal.NewFromInt(100), MOQ: 5},
	}}
}

func TestIngestContinuesPastBadRows(t *testing.T) {
	csv := "sku,quantity\nA1,2\nNOPE,1\nB2,4\n"
	b := NewBulkIngestor(testCatalog())

	result, err := b.Ingest(context.Background(), strings.NewReader(csv))
	require.NoError(t, err)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, 2, result.Errors[0].Row)
	assert.Equal(t, "NOPE", result.Errors[0].SKU)
	assert.Equal(t, "unknown sku", result.Errors[0].Reason)

	require.Len(t, result.Items, 2, "summary is built from the valid rows only")
	assert.Equal(t, 3, result.RowCount)
	// 2*10 + 4*2.5
	assert.True(t, result.TotalAmount.Equal(decimal.NewFromInt(30)),
		"want 30, got %s", result.TotalAmount)
}

func TestIngestAllValid(t *testing.T) {
	csv := "sku,qty\na1,1\nB2,2\n"
	b := NewBulkIngestor(testCatalog())

	result, err := b.Ingest(context.Background(), strings.NewReader(csv))
	require.NoError(t, err)

	assert.Empty(t, result.Errors)
	require.Len(t, result.Items, 2)
	// SKU matching is case-insensitive but items keep the catalog spelling.
	assert.Equal(t, "A1", result.Items[0].SKU)
	assert.Equal(t, "Widget", result.Items[0].Name)
	assert.True(t, result.TotalAmount.Equal(decimal.NewFromInt(15)))
}

func TestIngestRowValidation(t *testing.T) {
	tests := []struct {
		name   string
		row    string
		reason string
	}{
		{"empty sku", ",3", "sku is empty"},
		{"unknown sku", "ZZ,3", "unknown sku"},
		{"non-numeric quantity", "A1,lots", "quantity is not a number"},
		{"zero quantity", "A1,0", "quantity must be at least 1"},
		{"negative quantity", "A1,-2", "quantity must be at least 1"},
		{"below moq", "C3,2", "quantity 2 is below minimum order quantity 5"},
		{"short row", "A1", "missing sku or quantity field"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBulkIngestor(testCatalog())
			result, err := b.Ingest(context.Background(), strings.NewReader("sku,quantity\n"+tt.row+"\n"))
			require.NoError(t, err)
			require.Len(t, result.Errors, 1)
			assert.Equal(t, 1, result.Errors[0].Row)
			assert.Equal(t, tt.reason, result.Errors[0].Reason)
			assert.Empty(t, result.Items)
		})
	}
}

func TestIngestRejectsEmptyFile(t *testing.T) {
	b := NewBulkIngestor(testCatalog())

	_, err := b.Ingest(context.Background(), strings.NewReader(""))
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestIngestRejectsHeaderWithoutRequiredColumns(t *testing.T) {
	b := NewBulkIngestor(testCatalog())

	_, err := b.Ingest(context.Background(), strings.NewReader("name,amount\nWidget,3\n"))
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestIngestRejectsHeaderOnlyFile(t *testing.T) {
	b := NewBulkIngestor(testCatalog())

	_, err := b.Ingest(context.Background(), strings.NewReader("sku,quantity\n"))
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestIngestCatalogFailurePropagates(t *testing.T) {
	b := NewBulkIngestor(&fakeCatalog{err: apperr.New(apperr.KindServiceUnavailable, "erp request failed")})

	_, err := b.Ingest(context.Background(), strings.NewReader("sku,quantity\nA1,1\n"))
	require.Error(t, err)
}

func TestIngestExtraColumnsIgnored(t *testing.T) {
	csv := "note,sku,quantity\nrush,A1,2\n"
	b := NewBulkIngestor(testCatalog())

	result, err := b.Ingest(context.Background(), strings.NewReader(csv))
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Items, 1)
	assert.Equal(t, 2, result.Items[0].Quantity)
}
