package service

import (
	"context"
	"time"

	"order-platform/internal/apperr"
	"order-platform/internal/models"
	"order-platform/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// carrierStatusMap translates carrier tracking statuses into order
// statuses. Unknown carrier statuses are ignored.
var carrierStatusMap = map[string]string{
	"label_created":    models.OrderStatusProcessing,
	"picked_up":        models.OrderStatusShipped,
	"in_transit":       models.OrderStatusShipped,
	"out_for_delivery": models.OrderStatusShipped,
	"delivered":        models.OrderStatusCompleted,
}

// ReconcileStore is the persistence surface reconciliation needs.
type ReconcileStore interface {
	GetShipmentByOrderID(ctx context.Context, orderID int64) (*models.ShipmentDetails, error)
	TouchShipmentLastUpdate(ctx context.Context, orderID int64, t time.Time) error
}

// TrackingProvider fetches the carrier's view of a shipment.
type TrackingProvider interface {
	GetTrackingInfo(ctx context.Context, trackingNumber string) (*models.TrackingInfo, error)
}

// StatusTransitioner applies a validated status change.
type StatusTransitioner interface {
	Transition(ctx context.Context, orderID int64, target, actor string) (*models.Order, error)
}

// ReconcilePublisher fans reconciliation events out to the event bus.
type ReconcilePublisher interface {
	PublishOrderReconciled(ctx context.Context, event *models.OrderReconciledEvent) error
}

// Reconciler merges externally observed shipment status into the stored
// order record. Reconciliation is strictly best-effort: it never fails a
// read, and on any external error the stored order is returned unchanged.
type Reconciler struct {
	store     ReconcileStore
	tracking  TrackingProvider
	engine    StatusTransitioner
	publisher ReconcilePublisher
	logger    *zap.Logger
}

// NewReconciler creates a reconciler. publisher may be nil.
func NewReconciler(store ReconcileStore, tracking TrackingProvider, engine StatusTransitioner, publisher ReconcilePublisher) *Reconciler {
	return &Reconciler{
		store:     store,
		tracking:  tracking,
		engine:    engine,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// Reconcile returns the freshest view of order, merging carrier state
// when it differs from the stored status. The returned order is always
// usable; errors are swallowed here by design.
func (r *Reconciler) Reconcile(ctx context.Context, order *models.Order) *models.Order {
	ctx, span := util.StartSpan(ctx, "Reconciler.Reconcile")
	defer span.End()

	if order.Status == models.OrderStatusCompleted || order.Status == models.OrderStatusCancelled {
		return order
	}

	shipment := order.ShipmentDetails
	if shipment == nil {
		var err error
		shipment, err = r.store.GetShipmentByOrderID(ctx, order.ID)
		if err != nil {
			if !apperr.Is(err, apperr.KindNotFound) {
				r.logger.Warn("Failed to load shipment for reconciliation",
					zap.Int64("order_id", order.ID), zap.Error(err))
			}
			return order
		}
	}

	info, err := r.tracking.GetTrackingInfo(ctx, shipment.TrackingNumber)
	if err != nil {
		util.ReconciliationsTotal.WithLabelValues("unavailable").Inc()
		r.logger.Warn("Carrier unavailable, serving stored order status",
			zap.Int64("order_id", order.ID),
			zap.String("tracking_number", shipment.TrackingNumber),
			zap.Error(err))
		return order
	}

	target, known := carrierStatusMap[info.Status]
	if !known {
		util.ReconciliationsTotal.WithLabelValues("unknown_status").Inc()
		r.logger.Warn("Unknown carrier status",
			zap.Int64("order_id", order.ID),
			zap.String("carrier_status", info.Status))
		return order
	}

	if target == order.Status {
		util.ReconciliationsTotal.WithLabelValues("unchanged").Inc()
		return order
	}

	if !models.CanTransition(order.Status, target) {
		util.ReconciliationsTotal.WithLabelValues("illegal").Inc()
		r.logger.Warn("External status not reachable from stored status",
			zap.Int64("order_id", order.ID),
			zap.String("stored", order.Status),
			zap.String("external", target))
		return order
	}

	updated, err := r.engine.Transition(ctx, order.ID, target, SystemActor)
	if err != nil {
		util.ReconciliationsTotal.WithLabelValues("failed").Inc()
		r.logger.Error("Failed to merge external status",
			zap.Int64("order_id", order.ID), zap.Error(err))
		return order
	}

	now := time.Now()
	if err := r.store.TouchShipmentLastUpdate(ctx, order.ID, now); err != nil {
		r.logger.Warn("Failed to touch shipment last_update",
			zap.Int64("order_id", order.ID), zap.Error(err))
	}
	shipment.LastUpdate = now

	util.ReconciliationsTotal.WithLabelValues("merged").Inc()
	r.logger.Info("Order reconciled with carrier",
		zap.Int64("order_id", order.ID),
		zap.String("from", order.Status),
		zap.String("to", target))

	if r.publisher != nil {
		event := &models.OrderReconciledEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeOrderReconciled,
				Timestamp: now,
			},
			OrderID:        order.ID,
			OrderNumber:    order.OrderNumber,
			ExternalStatus: info.Status,
			MergedStatus:   target,
		}
		if err := r.publisher.PublishOrderReconciled(ctx, event); err != nil {
			r.logger.Error("Failed to publish OrderReconciled event",
				zap.Int64("order_id", order.ID), zap.Error(err))
		}
	}

	// Carry associations loaded before the merge.
	updated.Items = order.Items
	updated.StatusHistory = append(order.StatusHistory, models.StatusHistoryEntry{
		OrderID:   order.ID,
		Status:    target,
		Actor:     SystemActor,
		CreatedAt: now,
	})
	updated.ShipmentDetails = shipment
	return updated
}
