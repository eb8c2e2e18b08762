package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"order-platform/internal/apperr"
	"order-platform/internal/cache"
	"order-platform/internal/models"
	"order-platform/internal/service"
	"order-platform/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// ERPGateway is the slice of the ERP façade the HTTP layer proxies.
type ERPGateway interface {
	GetContract(ctx context.Context, contractID string) (*models.Contract, error)
	GetProducts(ctx context.Context) ([]models.Product, error)
	GetOrderStatus(ctx context.Context, orderID int64) (*models.ExternalStatus, error)
}

// Handler contains HTTP handlers
type Handler struct {
	orders        *service.OrderService
	notifications *service.NotificationDispatcher
	bulk          *service.BulkIngestor
	erp           ERPGateway
	respCache     *cache.Cache
	erpStatusTTL  time.Duration
	logger        *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	orders *service.OrderService,
	notifications *service.NotificationDispatcher,
	bulk *service.BulkIngestor,
	erp ERPGateway,
	respCache *cache.Cache,
	erpStatusTTL time.Duration,
) *Handler {
	return &Handler{
		orders:        orders,
		notifications: notifications,
		bulk:          bulk,
		erp:           erp,
		respCache:     respCache,
		erpStatusTTL:  erpStatusTTL,
		logger:        util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/orders", h.listOrders)
		v1.POST("/orders", h.createOrder)
		v1.GET("/orders/:id", h.getOrder)
		v1.PUT("/orders/:id", h.updateOrder)
		v1.DELETE("/orders/:id", h.deleteOrder)
		v1.PATCH("/orders/:id/status", h.updateOrderStatus)
		v1.POST("/orders/clone/:id", h.cloneOrder)
		v1.POST("/orders/bulk", h.bulkUpload)

		v1.GET("/shipment/:orderId", h.getShipment)
		v1.POST("/shipment/:orderId", h.createShipment)

		v1.GET("/erp/contracts/:id", h.getContract)
		v1.GET("/erp/products", h.getProducts)
		v1.GET("/erp/order/:id/status", h.getERPOrderStatus)

		v1.GET("/notifications", h.listNotifications)
		v1.PATCH("/notifications/:id/read", h.markNotificationRead)
		v1.PATCH("/notifications/read-all", h.markAllNotificationsRead)
	}
}

// respondError maps a typed error onto the HTTP response. Internal detail
// stays in the logs; the client only sees the safe message.
func (h *Handler) respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	c.JSON(status, gin.H{"error": apperr.ClientMessage(err)})
}

// actor returns the acting username propagated by the auth layer.
func actor(c *gin.Context) string {
	if user := c.GetHeader("X-User"); user != "" {
		return user
	}
	return "api"
}

// requestUserID returns the authenticated user's id; 0 when absent.
func requestUserID(c *gin.Context) int64 {
	id, _ := strconv.ParseInt(c.GetHeader("X-User-ID"), 10, 64)
	return id
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "time": time.Now().Unix()})
}

func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready", "time": time.Now().Unix()})
}

// listOrders handles GET /orders
func (h *Handler) listOrders(c *gin.Context) {
	userID, _ := strconv.ParseInt(c.Query("user_id"), 10, 64)

	orders, err := h.orders.ListOrders(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// createOrder handles POST /orders
func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	order, err := h.orders.CreateOrder(c.Request.Context(), &req, actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

// getOrder handles GET /orders/:id
func (h *Handler) getOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type updateOrderRequest struct {
	Items []service.OrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

// updateOrder handles PUT /orders/:id (draft orders only)
func (h *Handler) updateOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req updateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	order, err := h.orders.UpdateOrderItems(c.Request.Context(), id, req.Items, actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// deleteOrder handles DELETE /orders/:id (soft delete)
func (h *Handler) deleteOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.orders.DeleteOrder(c.Request.Context(), id, actor(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

// updateOrderStatus handles PATCH /orders/:id/status
func (h *Handler) updateOrderStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	order, err := h.orders.TransitionOrder(c.Request.Context(), id, req.Status, actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// cloneOrder handles POST /orders/clone/:id
func (h *Handler) cloneOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	clone, err := h.orders.CloneOrder(c.Request.Context(), id, actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, clone)
}

// bulkUpload handles POST /orders/bulk (multipart CSV). The response
// always carries the full error list; the caller decides whether the
// partial summary is worth submitting.
func (h *Handler) bulkUpload(c *gin.Context) {
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file field is required"})
		return
	}
	defer file.Close()

	result, err := h.bulk.Ingest(c.Request.Context(), file)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// getShipment handles GET /shipment/:orderId
func (h *Handler) getShipment(c *gin.Context) {
	orderID, ok := pathID(c, "orderId")
	if !ok {
		return
	}

	shipment, err := h.orders.GetShipment(c.Request.Context(), orderID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, shipment)
}

// createShipment handles POST /shipment/:orderId
func (h *Handler) createShipment(c *gin.Context) {
	orderID, ok := pathID(c, "orderId")
	if !ok {
		return
	}

	var req service.ShipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	shipment, err := h.orders.CreateShipment(c.Request.Context(), orderID, &req, actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, shipment)
}

// getContract handles GET /erp/contracts/:id
func (h *Handler) getContract(c *gin.Context) {
	contract, err := h.erp.GetContract(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, contract)
}

// getProducts handles GET /erp/products
func (h *Handler) getProducts(c *gin.Context) {
	products, err := h.erp.GetProducts(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

// getERPOrderStatus handles GET /erp/order/:id/status. Responses are
// cached under the full request path so repeated polling does not hammer
// the ERP.
func (h *Handler) getERPOrderStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	cacheKey := c.Request.URL.Path
	if v, hit := h.respCache.Get(cacheKey); hit {
		c.JSON(http.StatusOK, v)
		return
	}

	status, err := h.erp.GetOrderStatus(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.respCache.Set(cacheKey, status, h.erpStatusTTL)
	c.JSON(http.StatusOK, status)
}

// listNotifications handles GET /notifications
func (h *Handler) listNotifications(c *gin.Context) {
	notifications, err := h.notifications.ListNotifications(c.Request.Context(), requestUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

// markNotificationRead handles PATCH /notifications/:id/read
func (h *Handler) markNotificationRead(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.notifications.MarkAsRead(c.Request.Context(), id, requestUserID(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// markAllNotificationsRead handles PATCH /notifications/read-all
func (h *Handler) markAllNotificationsRead(c *gin.Context) {
	if err := h.notifications.MarkAllAsRead(c.Request.Context(), requestUserID(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
