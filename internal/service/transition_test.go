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

type fakeTransitionStore struct {
	orders  map[int64]*models.Order
	history []models.StatusHistoryEntry
}

func newFakeTransitionStore(orders ...*models.Order) *fakeTransitionStore {
	s := &fakeTransitionStore{orders: make(map[int64]*models.Order)}
	for _, o := range orders {
		s.orders[o.ID] = o
	}
	return s
}

func (f *fakeTransitionStore) GetOrderByID(_ context.Context, id int64) (*models.Order, error) {
	o, ok := f.orders[id]
	if !ok || o.Deleted {
		return nil, apperr.Newf(apperr.KindNotFound, "order %d not found", id)
	}
	cp := *o
	return &cp, nil
}

func (f *fakeTransitionStore) TransitionStatus(_ context.Context, orderID int64, target, actor string, expectedVersion int64) (*models.Order, error) {
	o, ok := f.orders[orderID]
	if !ok || o.Deleted {
		return nil, apperr.Newf(apperr.KindNotFound, "order %d not found", orderID)
	}
	if o.Version != expectedVersion {
		return nil, apperr.Newf(apperr.KindConflict, "order %d was modified concurrently", orderID)
	}
	o.Status = target
	o.Version++
	f.history = append(f.history, models.StatusHistoryEntry{
		OrderID:   orderID,
		Status:    target,
		Actor:     actor,
		CreatedAt: time.Now(),
	})
	cp := *o
	return &cp, nil
}

type recordingListener struct {
	events []*models.OrderStatusChangedEvent
}

func (l *recordingListener) NotifyStatusChanged(_ context.Context, event *models.OrderStatusChangedEvent) error {
	l.events = append(l.events, event)
	return nil
}

type recordingPublisher struct {
	statusEvents    []*models.OrderStatusChangedEvent
	reconcileEvents []*models.OrderReconciledEvent
}

func (p *recordingPublisher) PublishOrderStatusChanged(_ context.Context, event *models.OrderStatusChangedEvent) error {
	p.statusEvents = append(p.statusEvents, event)
	return nil
}

func (p *recordingPublisher) PublishOrderReconciled(_ context.Context, event *models.OrderReconciledEvent) error {
	p.reconcileEvents = append(p.reconcileEvents, event)
	return nil
}

func testOrder(id int64, status string) *models.Order {
	return &models.Order{
		ID:          id,
		OrderNumber: "ORD-202608-0001",
		UserID:      7,
		Status:      status,
		Version:     1,
	}
}

func TestTransitionTable(t *testing.T) {
	statuses := []string{
		models.OrderStatusDraft,
		models.OrderStatusPending,
		models.OrderStatusProcessing,
		models.OrderStatusShipped,
		models.OrderStatusCompleted,
		models.OrderStatusCancelled,
	}

	for _, from := range statuses {
		for _, to := range statuses {
			store := newFakeTransitionStore(testOrder(1, from))
			engine := NewTransitionEngine(store, nil, nil, nil)

			updated, err := engine.Transition(context.Background(), 1, to, "alice")

			if models.CanTransition(from, to) {
				require.NoError(t, err, "%s -> %s should be legal", from, to)
				assert.Equal(t, to, updated.Status)
				require.Len(t, store.history, 1, "exactly one history entry per transition")
				assert.Equal(t, to, store.history[0].Status)
				assert.Equal(t, "alice", store.history[0].Actor)
			} else {
				require.Error(t, err, "%s -> %s should be rejected", from, to)
				assert.Equal(t, apperr.KindInvalidTransition, apperr.KindOf(err))
				assert.Empty(t, store.history, "rejected transition must not append history")
			}
		}
	}
}

func TestTransitionRequiresIntermediateStatus(t *testing.T) {
	store := newFakeTransitionStore(testOrder(1, models.OrderStatusDraft))
	engine := NewTransitionEngine(store, nil, nil, nil)
	ctx := context.Background()

	_, err := engine.Transition(ctx, 1, models.OrderStatusPending, "alice")
	require.NoError(t, err)

	// pending -> shipped must pass through processing
	_, err = engine.Transition(ctx, 1, models.OrderStatusShipped, "alice")
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidTransition, apperr.KindOf(err))
}

func TestTransitionNotFound(t *testing.T) {
	engine := NewTransitionEngine(newFakeTransitionStore(), nil, nil, nil)

	_, err := engine.Transition(context.Background(), 99, models.OrderStatusPending, "alice")
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestTransitionSoftDeletedOrderIsNotFound(t *testing.T) {
	order := testOrder(1, models.OrderStatusDraft)
	order.Deleted = true
	engine := NewTransitionEngine(newFakeTransitionStore(order), nil, nil, nil)

	_, err := engine.Transition(context.Background(), 1, models.OrderStatusPending, "alice")
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestTransitionUnknownStatusRejected(t *testing.T) {
	engine := NewTransitionEngine(newFakeTransitionStore(testOrder(1, models.OrderStatusDraft)), nil, nil, nil)

	_, err := engine.Transition(context.Background(), 1, "misplaced", "alice")
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestTransitionEmitsEventAndPublishes(t *testing.T) {
	store := newFakeTransitionStore(testOrder(1, models.OrderStatusDraft))
	listener := &recordingListener{}
	publisher := &recordingPublisher{}
	engine := NewTransitionEngine(store, nil, listener, publisher)

	_, err := engine.Transition(context.Background(), 1, models.OrderStatusPending, "alice")
	require.NoError(t, err)

	require.Len(t, listener.events, 1)
	event := listener.events[0]
	assert.Equal(t, models.OrderStatusDraft, event.FromStatus)
	assert.Equal(t, models.OrderStatusPending, event.ToStatus)
	assert.Equal(t, "alice", event.Actor)
	assert.False(t, event.HighPriority)

	require.Len(t, publisher.statusEvents, 1)
	assert.Equal(t, event.EventID, publisher.statusEvents[0].EventID)
}

func TestHighPriorityEvents(t *testing.T) {
	tests := []struct {
		name   string
		from   string
		to     string
		actor  string
		expect bool
	}{
		{"cancellation", models.OrderStatusPending, models.OrderStatusCancelled, "alice", true},
		{"external merge", models.OrderStatusShipped, models.OrderStatusCompleted, SystemActor, true},
		{"ordinary transition", models.OrderStatusDraft, models.OrderStatusPending, "alice", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeTransitionStore(testOrder(1, tt.from))
			listener := &recordingListener{}
			engine := NewTransitionEngine(store, nil, listener, nil)

			_, err := engine.Transition(context.Background(), 1, tt.to, tt.actor)
			require.NoError(t, err)

			require.Len(t, listener.events, 1)
			assert.Equal(t, tt.expect, listener.events[0].HighPriority)
		})
	}
}

func TestConcurrentTransitionLosesOnVersion(t *testing.T) {
	order := testOrder(1, models.OrderStatusDraft)
	store := newFakeTransitionStore(order)
	engine := NewTransitionEngine(store, nil, nil, nil)
	ctx := context.Background()

	stale, err := engine.store.GetOrderByID(ctx, 1)
	require.NoError(t, err)

	_, err = engine.Transition(ctx, 1, models.OrderStatusPending, "alice")
	require.NoError(t, err)

	// A writer still holding the old version must not win.
	_, err = store.TransitionStatus(ctx, 1, models.OrderStatusCancelled, "bob", stale.Version)
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	require.Len(t, store.history, 1)
}
