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

// SystemActor marks transitions applied by reconciliation rather than a user.
const SystemActor = "system"

const orderLockTTL = 10 * time.Second

// TransitionStore is the persistence surface the engine needs.
type TransitionStore interface {
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	TransitionStatus(ctx context.Context, orderID int64, target, actor string, expectedVersion int64) (*models.Order, error)
}

// OrderLocker serializes transitions on one order across instances. The
// lock is advisory; the store's version check remains authoritative.
type OrderLocker interface {
	AcquireOrderLock(ctx context.Context, orderID int64, ttl time.Duration) (bool, error)
	ReleaseOrderLock(ctx context.Context, orderID int64) error
}

// TransitionListener receives transition events synchronously, in the
// request that applied the transition.
type TransitionListener interface {
	NotifyStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
}

// TransitionPublisher fans transition events out to the event bus.
type TransitionPublisher interface {
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
}

// TransitionEngine validates and applies order status changes.
type TransitionEngine struct {
	store     TransitionStore
	locker    OrderLocker
	listener  TransitionListener
	publisher TransitionPublisher
	logger    *zap.Logger
}

// NewTransitionEngine creates a transition engine. locker, listener and
// publisher may be nil; the corresponding side effect is then skipped.
func NewTransitionEngine(store TransitionStore, locker OrderLocker, listener TransitionListener, publisher TransitionPublisher) *TransitionEngine {
	return &TransitionEngine{
		store:     store,
		locker:    locker,
		listener:  listener,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// Transition moves an order to target on behalf of actor. The status
// update and history append are applied atomically; exactly one history
// entry is written per successful call.
func (e *TransitionEngine) Transition(ctx context.Context, orderID int64, target, actor string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "TransitionEngine.Transition")
	defer span.End()

	if !models.IsValidStatus(target) {
		util.OrderTransitionsRejected.WithLabelValues("unknown_status").Inc()
		return nil, apperr.Newf(apperr.KindValidation, "unknown order status %q", target)
	}

	order, err := e.store.GetOrderByID(ctx, orderID)
	if err != nil {
		util.OrderTransitionsRejected.WithLabelValues("not_found").Inc()
		return nil, err
	}

	if !models.CanTransition(order.Status, target) {
		util.OrderTransitionsRejected.WithLabelValues("invalid_transition").Inc()
		return nil, apperr.Newf(apperr.KindInvalidTransition,
			"cannot transition order from %s to %s", order.Status, target)
	}

	if e.locker != nil {
		acquired, lockErr := e.locker.AcquireOrderLock(ctx, orderID, orderLockTTL)
		if lockErr != nil {
			// Redis being down must not block transitions; the version
			// check still protects against racing writers.
			e.logger.Warn("Order lock unavailable, relying on version check",
				zap.Int64("order_id", orderID), zap.Error(lockErr))
		} else if !acquired {
			util.OrderTransitionsRejected.WithLabelValues("locked").Inc()
			return nil, apperr.Newf(apperr.KindConflict, "order %d transition already in progress", orderID)
		} else {
			defer func() {
				if err := e.locker.ReleaseOrderLock(ctx, orderID); err != nil {
					e.logger.Warn("Failed to release order lock",
						zap.Int64("order_id", orderID), zap.Error(err))
				}
			}()
		}
	}

	updated, err := e.store.TransitionStatus(ctx, orderID, target, actor, order.Version)
	if err != nil {
		return nil, err
	}

	util.OrderTransitionsTotal.WithLabelValues(target).Inc()
	e.logger.Info("Order status changed",
		zap.Int64("order_id", orderID),
		zap.String("from", order.Status),
		zap.String("to", target),
		zap.String("actor", actor))

	event := &models.OrderStatusChangedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderStatusChanged,
			Timestamp: time.Now(),
		},
		OrderID:      updated.ID,
		OrderNumber:  updated.OrderNumber,
		UserID:       updated.UserID,
		FromStatus:   order.Status,
		ToStatus:     target,
		Actor:        actor,
		HighPriority: target == models.OrderStatusCancelled || actor == SystemActor,
	}

	if e.listener != nil {
		if err := e.listener.NotifyStatusChanged(ctx, event); err != nil {
			e.logger.Error("Transition notification failed",
				zap.Int64("order_id", orderID), zap.Error(err))
		}
	}

	if e.publisher != nil {
		if err := e.publisher.PublishOrderStatusChanged(ctx, event); err != nil {
			e.logger.Error("Failed to publish OrderStatusChanged event",
				zap.Int64("order_id", orderID), zap.Error(err))
		}
	}

	return updated, nil
}
