package service

import (
	"context"
	"time"

	"order-platform/internal/apperr"
	"order-platform/internal/external"
	"order-platform/internal/models"
	"order-platform/internal/redisclient"
	"order-platform/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const idempotencyKeyTTL = 24 * time.Hour

// OrderStore is the persistence surface for the order service.
type OrderStore interface {
	NextOrderNumber(ctx context.Context, t time.Time) (string, error)
	CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderDetail(ctx context.Context, id int64) (*models.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	ListOrders(ctx context.Context) ([]models.Order, error)
	ListOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error)
	ReplaceOrderItems(ctx context.Context, orderID int64, items []models.OrderItem, totalAmount decimal.Decimal, actor string, expectedVersion int64) error
	SoftDeleteOrder(ctx context.Context, orderID int64, actor string) error
	GetShipmentByOrderID(ctx context.Context, orderID int64) (*models.ShipmentDetails, error)
	SaveShipmentDetails(ctx context.Context, sd *models.ShipmentDetails) error
}

// ShipmentCreator registers shipments with the carrier.
type ShipmentCreator interface {
	CreateShipment(ctx context.Context, req *external.CreateShipmentRequest) (*models.ShipmentHandle, error)
}

// OrderEventPublisher fans order lifecycle events out to the event bus.
type OrderEventPublisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishShipmentCreated(ctx context.Context, event *models.ShipmentCreatedEvent) error
}

// OrderService handles the order lifecycle around the transition engine:
// creation, draft edits, cloning, soft delete and shipment creation.
type OrderService struct {
	store      OrderStore
	redis      *redisclient.Client
	carrier    ShipmentCreator
	engine     *TransitionEngine
	reconciler *Reconciler
	dispatcher *NotificationDispatcher
	publisher  OrderEventPublisher
	logger     *zap.Logger
}

// NewOrderService creates a new order service. redis, reconciler,
// dispatcher and publisher may be nil in tests.
func NewOrderService(
	store OrderStore,
	redis *redisclient.Client,
	carrier ShipmentCreator,
	engine *TransitionEngine,
	reconciler *Reconciler,
	dispatcher *NotificationDispatcher,
	publisher OrderEventPublisher,
) *OrderService {
	return &OrderService{
		store:      store,
		redis:      redis,
		carrier:    carrier,
		engine:     engine,
		reconciler: reconciler,
		dispatcher: dispatcher,
		publisher:  publisher,
		logger:     util.GetLogger(),
	}
}

// CreateOrderRequest represents a request to create an order
type CreateOrderRequest struct {
	UserID         int64              `json:"user_id" binding:"required"`
	Items          []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
	IdempotencyKey string             `json:"idempotency_key,omitempty"`
}

// OrderItemRequest represents a line item in a create/update request
type OrderItemRequest struct {
	ProductID int64           `json:"product_id" binding:"required"`
	SKU       string          `json:"sku" binding:"required"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity" binding:"required,min=1"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Tax       decimal.Decimal `json:"tax"`
	Discount  decimal.Decimal `json:"discount"`
}

// buildItems validates request items and computes per-line totals.
func buildItems(reqs []OrderItemRequest) ([]models.OrderItem, decimal.Decimal, error) {
	items := make([]models.OrderItem, 0, len(reqs))
	total := decimal.Zero

	for _, r := range reqs {
		if r.Quantity < 1 {
			return nil, decimal.Zero, apperr.Newf(apperr.KindValidation, "quantity for sku %s must be at least 1", r.SKU)
		}
		if r.UnitPrice.IsNegative() || r.Tax.IsNegative() || r.Discount.IsNegative() {
			return nil, decimal.Zero, apperr.Newf(apperr.KindValidation, "negative amount for sku %s", r.SKU)
		}

		item := models.OrderItem{
			ProductID: r.ProductID,
			SKU:       r.SKU,
			Name:      r.Name,
			Quantity:  r.Quantity,
			UnitPrice: r.UnitPrice,
			Tax:       r.Tax,
			Discount:  r.Discount,
		}
		item.TotalPrice = item.ComputeTotal()
		if item.TotalPrice.IsNegative() {
			return nil, decimal.Zero, apperr.Newf(apperr.KindValidation, "discount exceeds line total for sku %s", r.SKU)
		}

		items = append(items, item)
		total = total.Add(item.TotalPrice)
	}

	return items, total, nil
}

// CreateOrder creates a draft order. Duplicate submissions carrying the
// same idempotency key return the original order.
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest, actor string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.New().String()
	} else {
		existing, err := s.store.GetOrderByIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			s.logger.Info("Duplicate order request detected",
				zap.String("idempotency_key", req.IdempotencyKey),
				zap.Int64("order_id", existing.ID))
			return existing, nil
		}
	}

	items, total, err := buildItems(req.Items)
	if err != nil {
		return nil, err
	}

	orderNumber, err := s.store.NextOrderNumber(ctx, time.Now())
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		OrderNumber:    orderNumber,
		UserID:         req.UserID,
		Status:         models.OrderStatusDraft,
		TotalAmount:    total,
		IdempotencyKey: req.IdempotencyKey,
		CreatedBy:      actor,
		UpdatedBy:      actor,
	}

	if err := s.store.CreateOrder(ctx, order, items); err != nil {
		// A concurrent submission with the same key may win the insert
		// between the lookup above and here; return its order.
		if apperr.Is(err, apperr.KindConflict) {
			existing, lookupErr := s.store.GetOrderByIdempotencyKey(ctx, req.IdempotencyKey)
			if lookupErr == nil && existing != nil {
				s.logger.Info("Duplicate order request detected",
					zap.String("idempotency_key", req.IdempotencyKey),
					zap.Int64("order_id", existing.ID))
				return existing, nil
			}
		}
		return nil, err
	}

	if s.redis != nil {
		if err := s.redis.SetIdempotencyKey(ctx, req.IdempotencyKey, order.ID, idempotencyKeyTTL); err != nil {
			s.logger.Warn("Failed to record idempotency key in Redis", zap.Error(err))
		}
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber))

	if s.publisher != nil {
		event := &models.OrderCreatedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeOrderCreated,
				Timestamp: time.Now(),
			},
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			UserID:      order.UserID,
		}
		if err := s.publisher.PublishOrderCreated(ctx, event); err != nil {
			s.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
		}
	}

	return order, nil
}

// GetOrder retrieves an order with its associations. Reading an order
// that is out with a carrier triggers best-effort reconciliation, so the
// caller sees the freshest status available without the read ever
// failing on carrier trouble.
func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder")
	defer span.End()

	order, err := s.store.GetOrderDetail(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if s.reconciler != nil && order.ShipmentDetails != nil {
		order = s.reconciler.Reconcile(ctx, order)
	}

	return order, nil
}

// ListOrders lists live orders, optionally filtered by user.
func (s *OrderService) ListOrders(ctx context.Context, userID int64) ([]models.Order, error) {
	if userID > 0 {
		return s.store.ListOrdersByUserID(ctx, userID)
	}
	return s.store.ListOrders(ctx)
}

// UpdateOrderItems replaces the line items of a draft order. Editing any
// non-draft order is rejected with Forbidden.
func (s *OrderService) UpdateOrderItems(ctx context.Context, orderID int64, reqs []OrderItemRequest, actor string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateOrderItems")
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.Mutable() {
		return nil, apperr.Newf(apperr.KindForbidden,
			"order %s is %s and can no longer be edited", order.OrderNumber, order.Status)
	}

	items, total, err := buildItems(reqs)
	if err != nil {
		return nil, err
	}

	if err := s.store.ReplaceOrderItems(ctx, orderID, items, total, actor, order.Version); err != nil {
		return nil, err
	}

	return s.store.GetOrderDetail(ctx, orderID)
}

// DeleteOrder soft-deletes an order; the row and its history remain for audit.
func (s *OrderService) DeleteOrder(ctx context.Context, orderID int64, actor string) error {
	return s.store.SoftDeleteOrder(ctx, orderID, actor)
}

// CloneOrder creates a new draft carrying the source order's line items
// under a fresh order number. Status, history and shipment state do not
// carry over.
func (s *OrderService) CloneOrder(ctx context.Context, orderID int64, actor string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CloneOrder")
	defer span.End()

	source, err := s.store.GetOrderDetail(ctx, orderID)
	if err != nil {
		return nil, err
	}

	reqs := make([]OrderItemRequest, 0, len(source.Items))
	for _, item := range source.Items {
		reqs = append(reqs, OrderItemRequest{
			ProductID: item.ProductID,
			SKU:       item.SKU,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Tax:       item.Tax,
			Discount:  item.Discount,
		})
	}

	clone, err := s.CreateOrder(ctx, &CreateOrderRequest{
		UserID: source.UserID,
		Items:  reqs,
	}, actor)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Order cloned",
		zap.Int64("source_order_id", orderID),
		zap.Int64("clone_order_id", clone.ID))
	return clone, nil
}

// TransitionOrder applies a status change on behalf of actor.
func (s *OrderService) TransitionOrder(ctx context.Context, orderID int64, target, actor string) (*models.Order, error) {
	return s.engine.Transition(ctx, orderID, target, actor)
}

// ShipmentRequest is the inbound shape for shipment creation
type ShipmentRequest struct {
	Carrier string `json:"carrier" binding:"required"`
	Service string `json:"service" binding:"required"`
	Address string `json:"address" binding:"required"`
}

// CreateShipment registers a shipment with the carrier and moves the
// order to shipped. A second shipment for the same order is a Conflict;
// the check runs before the carrier is called. Carrier failures here are
// never swallowed: the caller explicitly requested an external mutation.
func (s *OrderService) CreateShipment(ctx context.Context, orderID int64, req *ShipmentRequest, actor string) (*models.ShipmentDetails, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateShipment")
	defer span.End()

	order, err := s.store.GetOrderDetail(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.ShipmentDetails != nil {
		return nil, apperr.Newf(apperr.KindConflict,
			"order %s already has shipment %s", order.OrderNumber, order.ShipmentDetails.TrackingNumber)
	}
	if !models.CanTransition(order.Status, models.OrderStatusShipped) {
		return nil, apperr.Newf(apperr.KindInvalidTransition,
			"cannot ship order in status %s", order.Status)
	}

	handle, err := s.carrier.CreateShipment(ctx, &external.CreateShipmentRequest{
		OrderID: order.ID,
		Carrier: req.Carrier,
		Service: req.Service,
		Address: req.Address,
		Items:   order.Items,
	})
	if err != nil {
		return nil, err
	}

	shipment := &models.ShipmentDetails{
		OrderID:        order.ID,
		TrackingNumber: handle.TrackingNumber,
		Carrier:        handle.Carrier,
		Service:        handle.Service,
		LastUpdate:     time.Now(),
	}
	if err := s.store.SaveShipmentDetails(ctx, shipment); err != nil {
		return nil, err
	}

	if _, err := s.engine.Transition(ctx, order.ID, models.OrderStatusShipped, actor); err != nil {
		// The carrier shipment exists either way; surface the failure so
		// the caller can retry the transition.
		return shipment, err
	}

	event := &models.ShipmentCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeShipmentCreated,
			Timestamp: time.Now(),
		},
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		UserID:         order.UserID,
		TrackingNumber: shipment.TrackingNumber,
		Carrier:        shipment.Carrier,
	}
	if s.dispatcher != nil {
		if err := s.dispatcher.NotifyShipmentCreated(ctx, event); err != nil {
			s.logger.Error("Shipment notification failed", zap.Error(err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishShipmentCreated(ctx, event); err != nil {
			s.logger.Error("Failed to publish ShipmentCreated event", zap.Error(err))
		}
	}

	return shipment, nil
}

// GetShipment retrieves shipment details for an order, reconciling the
// stored order with carrier state on the way.
func (s *OrderService) GetShipment(ctx context.Context, orderID int64) (*models.ShipmentDetails, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetShipment")
	defer span.End()

	order, err := s.store.GetOrderDetail(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.ShipmentDetails == nil {
		return nil, apperr.Newf(apperr.KindNotFound, "no shipment for order %d", orderID)
	}

	if s.reconciler != nil {
		order = s.reconciler.Reconcile(ctx, order)
	}

	return order.ShipmentDetails, nil
}
