package service

import (
	"context"
	"testing"
	"time"

	"order-platform/internal/apperr"
	"order-platform/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReconcileStore struct {
	shipments map[int64]*models.ShipmentDetails
	touched   []int64
}

func (f *fakeReconcileStore) GetShipmentByOrderID(_ context.Context, orderID int64) (*models.ShipmentDetails, error) {
	s, ok := f.shipments[orderID]
	if !ok {
		return nil, apperr.Newf(apperr.KindNotFound, "no shipment for order %d", orderID)
	}
	cp := *s
	return &cp, nil
}

func (f *fakeReconcileStore) TouchShipmentLastUpdate(_ context.Context, orderID int64, _ time.Time) error {
	f.touched = append(f.touched, orderID)
	return nil
}

type fakeTracking struct {
	status string
	err    error
	calls  int
}

func (f *fakeTracking) GetTrackingInfo(_ context.Context, trackingNumber string) (*models.TrackingInfo, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &models.TrackingInfo{
		TrackingNumber: trackingNumber,
		Status:         f.status,
		UpdatedAt:      time.Now(),
	}, nil
}

func shippedOrder(id int64, status string) *models.Order {
	o := testOrder(id, status)
	o.ShipmentDetails = &models.ShipmentDetails{
		OrderID:        id,
		Carrier:        "dhl",
		TrackingNumber: "TRK-1",
	}
	return o
}

func TestReconcileMergesExternalStatus(t *testing.T) {
	order := shippedOrder(1, models.OrderStatusShipped)
	store := &fakeReconcileStore{}
	tracking := &fakeTracking{status: "delivered"}
	engine := NewTransitionEngine(newFakeTransitionStore(order), nil, nil, nil)
	publisher := &recordingPublisher{}
	reconciler := NewReconciler(store, tracking, engine, publisher)

	got := reconciler.Reconcile(context.Background(), order)

	assert.Equal(t, models.OrderStatusCompleted, got.Status)
	assert.Equal(t, []int64{1}, store.touched)
	require.Len(t, got.StatusHistory, 1)
	assert.Equal(t, SystemActor, got.StatusHistory[0].Actor)
	assert.Equal(t, models.OrderStatusCompleted, got.StatusHistory[0].Status)
	require.Len(t, publisher.reconcileEvents, 1)
	assert.Equal(t, "delivered", publisher.reconcileEvents[0].ExternalStatus)
	assert.Equal(t, models.OrderStatusCompleted, publisher.reconcileEvents[0].MergedStatus)
}

func TestReconcileCarrierDownReturnsStoredOrder(t *testing.T) {
	order := shippedOrder(1, models.OrderStatusShipped)
	tracking := &fakeTracking{err: apperr.New(apperr.KindServiceUnavailable, "carrier request failed")}
	fts := newFakeTransitionStore(order)
	reconciler := NewReconciler(&fakeReconcileStore{}, tracking, NewTransitionEngine(fts, nil, nil, nil), nil)

	got := reconciler.Reconcile(context.Background(), order)

	assert.Same(t, order, got)
	assert.Equal(t, models.OrderStatusShipped, got.Status)
	assert.Empty(t, fts.history, "external failure must not mutate the order")
}

func TestReconcileUnchangedStatusIsNoop(t *testing.T) {
	order := shippedOrder(1, models.OrderStatusShipped)
	tracking := &fakeTracking{status: "in_transit"}
	fts := newFakeTransitionStore(order)
	store := &fakeReconcileStore{}
	reconciler := NewReconciler(store, tracking, NewTransitionEngine(fts, nil, nil, nil), nil)

	got := reconciler.Reconcile(context.Background(), order)

	assert.Same(t, order, got)
	assert.Empty(t, fts.history)
	assert.Empty(t, store.touched)
}

func TestReconcileUnknownCarrierStatusIgnored(t *testing.T) {
	order := shippedOrder(1, models.OrderStatusShipped)
	tracking := &fakeTracking{status: "teleported"}
	fts := newFakeTransitionStore(order)
	reconciler := NewReconciler(&fakeReconcileStore{}, tracking, NewTransitionEngine(fts, nil, nil, nil), nil)

	got := reconciler.Reconcile(context.Background(), order)

	assert.Same(t, order, got)
	assert.Empty(t, fts.history)
}

func TestReconcileSkipsTerminalOrders(t *testing.T) {
	tracking := &fakeTracking{status: "delivered"}
	reconciler := NewReconciler(&fakeReconcileStore{}, tracking, nil, nil)

	for _, status := range []string{models.OrderStatusCompleted, models.OrderStatusCancelled} {
		order := shippedOrder(1, status)
		got := reconciler.Reconcile(context.Background(), order)
		assert.Same(t, order, got)
	}
	assert.Zero(t, tracking.calls, "terminal orders never hit the carrier")
}

func TestReconcileSkipsOrdersWithoutShipment(t *testing.T) {
	order := testOrder(1, models.OrderStatusProcessing)
	tracking := &fakeTracking{status: "delivered"}
	reconciler := NewReconciler(&fakeReconcileStore{shipments: map[int64]*models.ShipmentDetails{}}, tracking, nil, nil)

	got := reconciler.Reconcile(context.Background(), order)

	assert.Same(t, order, got)
	assert.Zero(t, tracking.calls)
}

func TestReconcileLoadsShipmentWhenNotPreloaded(t *testing.T) {
	order := testOrder(1, models.OrderStatusShipped)
	store := &fakeReconcileStore{shipments: map[int64]*models.ShipmentDetails{
		1: {OrderID: 1, Carrier: "dhl", TrackingNumber: "TRK-9"},
	}}
	tracking := &fakeTracking{status: "delivered"}
	engine := NewTransitionEngine(newFakeTransitionStore(order), nil, nil, nil)
	reconciler := NewReconciler(store, tracking, engine, nil)

	got := reconciler.Reconcile(context.Background(), order)

	assert.Equal(t, models.OrderStatusCompleted, got.Status)
	require.NotNil(t, got.ShipmentDetails)
	assert.Equal(t, "TRK-9", got.ShipmentDetails.TrackingNumber)
}

func TestReconcileIllegalExternalTransitionIgnored(t *testing.T) {
	// Carrier says processing but the order is already shipped; shipped
	// cannot go back to processing.
	order := shippedOrder(1, models.OrderStatusShipped)
	tracking := &fakeTracking{status: "label_created"}
	fts := newFakeTransitionStore(order)
	reconciler := NewReconciler(&fakeReconcileStore{}, tracking, NewTransitionEngine(fts, nil, nil, nil), nil)

	got := reconciler.Reconcile(context.Background(), order)

	assert.Same(t, order, got)
	assert.Empty(t, fts.history)
}
