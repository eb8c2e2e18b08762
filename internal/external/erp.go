package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"order-platform/internal/apperr"
	"order-platform/internal/cache"
	"order-platform/internal/models"
	"order-platform/internal/util"

	"go.uber.org/zap"
)

// maxResponseSize limits response bodies to prevent memory exhaustion
const maxResponseSize = 10 * 1024 * 1024

// ERPClient is a façade over the external ERP system. Read-only catalog
// resources (contracts, products) are cache-fronted; order status is
// fetched fresh on every call. The client never retries; retry policy
// belongs to the caller.
type ERPClient struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	cache       *cache.Cache
	contractTTL time.Duration
	productTTL  time.Duration
	logger      *zap.Logger
}

// NewERPClient creates an ERP client with an explicit request timeout.
func NewERPClient(baseURL, apiKey string, timeout time.Duration, c *cache.Cache, contractTTL, productTTL time.Duration) *ERPClient {
	return &ERPClient{
		baseURL:     baseURL,
		apiKey:      apiKey,
		httpClient:  &http.Client{Timeout: timeout},
		cache:       c,
		contractTTL: contractTTL,
		productTTL:  productTTL,
		logger:      util.GetLogger(),
	}
}

// GetOrderStatus fetches the ERP's current status for an order. Never cached.
func (c *ERPClient) GetOrderStatus(ctx context.Context, orderID int64) (*models.ExternalStatus, error) {
	var status models.ExternalStatus
	if err := c.getJSON(ctx, fmt.Sprintf("/api/orders/%d/status", orderID), &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetContract fetches a contract, serving from cache while fresh.
func (c *ERPClient) GetContract(ctx context.Context, contractID string) (*models.Contract, error) {
	key := fmt.Sprintf("contract:%s", contractID)
	if v, ok := c.cache.Get(key); ok {
		return v.(*models.Contract), nil
	}

	var contract models.Contract
	if err := c.getJSON(ctx, fmt.Sprintf("/api/contracts/%s", contractID), &contract); err != nil {
		return nil, err
	}

	c.cache.Set(key, &contract, c.contractTTL)
	return &contract, nil
}

// GetProducts fetches the product catalog, serving from cache while fresh.
func (c *ERPClient) GetProducts(ctx context.Context) ([]models.Product, error) {
	const key = "erp:products"
	if v, ok := c.cache.Get(key); ok {
		return v.([]models.Product), nil
	}

	var products []models.Product
	if err := c.getJSON(ctx, "/api/products", &products); err != nil {
		return nil, err
	}

	c.cache.Set(key, products, c.productTTL)
	return products, nil
}

// getJSON performs a GET against the ERP and decodes the response body.
// Network errors, timeouts and non-2xx responses all surface as
// ServiceUnavailable.
func (c *ERPClient) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return apperr.Wrap(apperr.KindServiceUnavailable, "erp request build failed", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	util.ExternalRequestLatency.WithLabelValues("erp").Observe(time.Since(start).Seconds())
	if err != nil {
		c.logger.Warn("ERP request failed", zap.String("path", path), zap.Error(err))
		return apperr.Wrap(apperr.KindServiceUnavailable, "erp service unavailable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("ERP returned non-2xx",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode))
		return apperr.Newf(apperr.KindServiceUnavailable, "erp returned status %d", resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, maxResponseSize)
	if err := json.NewDecoder(body).Decode(out); err != nil {
		return apperr.Wrap(apperr.KindServiceUnavailable, "erp response decode failed", err)
	}
	return nil
}
