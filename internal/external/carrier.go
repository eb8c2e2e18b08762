package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"order-platform/internal/apperr"
	"order-platform/internal/models"
	"order-platform/internal/util"

	"go.uber.org/zap"
)

// CarrierClient is a façade over the external logistics tracking API.
// Same contract shape as the ERP client: explicit timeout, no internal
// retries, ServiceUnavailable on any remote failure.
type CarrierClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewCarrierClient creates a carrier client with an explicit request timeout.
func NewCarrierClient(baseURL, apiKey string, timeout time.Duration) *CarrierClient {
	return &CarrierClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     util.GetLogger(),
	}
}

// CreateShipmentRequest describes a shipment to be created with the carrier
type CreateShipmentRequest struct {
	OrderID int64              `json:"order_id"`
	Carrier string             `json:"carrier"`
	Service string             `json:"service"`
	Address string             `json:"address"`
	Items   []models.OrderItem `json:"items"`
}

// GetTrackingInfo fetches the carrier's current view of a shipment.
func (c *CarrierClient) GetTrackingInfo(ctx context.Context, trackingNumber string) (*models.TrackingInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/tracking/%s", c.baseURL, trackingNumber), nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindServiceUnavailable, "carrier request build failed", err)
	}

	var info models.TrackingInfo
	if err := c.do(req, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// CreateShipment registers a new shipment with the carrier and returns its
// handle. The duplicate-shipment check is the caller's responsibility.
func (c *CarrierClient) CreateShipment(ctx context.Context, shipReq *CreateShipmentRequest) (*models.ShipmentHandle, error) {
	payload, err := json.Marshal(shipReq)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindServiceUnavailable, "carrier request encode failed", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/shipments", bytes.NewReader(payload))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindServiceUnavailable, "carrier request build failed", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var handle models.ShipmentHandle
	if err := c.do(req, &handle); err != nil {
		return nil, err
	}

	c.logger.Info("Shipment created with carrier",
		zap.Int64("order_id", shipReq.OrderID),
		zap.String("tracking_number", handle.TrackingNumber))
	return &handle, nil
}

func (c *CarrierClient) do(req *http.Request, out interface{}) error {
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	util.ExternalRequestLatency.WithLabelValues("carrier").Observe(time.Since(start).Seconds())
	if err != nil {
		c.logger.Warn("Carrier request failed",
			zap.String("path", req.URL.Path), zap.Error(err))
		return apperr.Wrap(apperr.KindServiceUnavailable, "carrier service unavailable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("Carrier returned non-2xx",
			zap.String("path", req.URL.Path),
			zap.Int("status", resp.StatusCode))
		return apperr.Newf(apperr.KindServiceUnavailable, "carrier returned status %d", resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, maxResponseSize)
	if err := json.NewDecoder(body).Decode(out); err != nil {
		return apperr.Wrap(apperr.KindServiceUnavailable, "carrier response decode failed", err)
	}
	return nil
}
