package worker

import (
	"context"
	"log"

	"order-platform/internal/broker"
	"order-platform/internal/models"
	"order-platform/internal/service"
)

// ReconcileWorker consumes order events and reconciles shipped orders
// against the carrier. This complements the read-triggered path: an order
// nobody reads still gets one reconciliation pass when its shipped event
// arrives.
type ReconcileWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
}

// NewReconcileWorker creates a reconciliation worker.
func NewReconcileWorker(consumer *broker.Consumer, orders *service.OrderService) *ReconcileWorker {
	eventHandler := broker.NewEventHandler()

	reconcile := func(ctx context.Context, orderID int64) error {
		// GetOrder runs the reconciliation pass; the result itself is
		// not needed here.
		_, err := orders.GetOrder(ctx, orderID)
		return err
	}

	eventHandler.OnOrderStatusChanged(func(ctx context.Context, event *models.OrderStatusChangedEvent) error {
		if event.ToStatus != models.OrderStatusShipped {
			return nil
		}
		return reconcile(ctx, event.OrderID)
	})

	eventHandler.OnShipmentCreated(func(ctx context.Context, event *models.ShipmentCreatedEvent) error {
		return reconcile(ctx, event.OrderID)
	})

	return &ReconcileWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
	}
}

// Start starts the worker
func (w *ReconcileWorker) Start(ctx context.Context) error {
	log.Println("Starting reconcile worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *ReconcileWorker) Stop() error {
	log.Println("Stopping reconcile worker...")
	return w.consumer.Close()
}
