package models

import "time"

// Event types
const (
	EventTypeOrderCreated       = "ORDER_CREATED"
	EventTypeOrderStatusChanged = "ORDER_STATUS_CHANGED"
	EventTypeShipmentCreated    = "SHIPMENT_CREATED"
	EventTypeOrderReconciled    = "ORDER_RECONCILED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent published when a draft order is created
type OrderCreatedEvent struct {
	BaseEvent
	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
	UserID      int64  `json:"user_id"`
}

// OrderStatusChangedEvent published on every successful status transition
type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
	UserID      int64  `json:"user_id"`
	FromStatus  string `json:"from_status"`
	ToStatus    string `json:"to_status"`
	Actor       string `json:"actor"`
	// HighPriority marks transitions that warrant immediate email delivery
	HighPriority bool `json:"high_priority"`
}

// ShipmentCreatedEvent published when a carrier shipment is created
type ShipmentCreatedEvent struct {
	BaseEvent
	OrderID        int64  `json:"order_id"`
	OrderNumber    string `json:"order_number"`
	UserID         int64  `json:"user_id"`
	TrackingNumber string `json:"tracking_number"`
	Carrier        string `json:"carrier"`
}

// OrderReconciledEvent published when reconciliation merged an external status
type OrderReconciledEvent struct {
	BaseEvent
	OrderID        int64  `json:"order_id"`
	OrderNumber    string `json:"order_number"`
	ExternalStatus string `json:"external_status"`
	MergedStatus   string `json:"merged_status"`
}
