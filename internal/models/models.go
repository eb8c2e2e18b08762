package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order statuses
const (
	OrderStatusDraft      = "draft"
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusCompleted  = "completed"
	OrderStatusCancelled  = "cancelled"
)

// AllowedTransitions maps each status to the statuses reachable from it.
// cancelled is reachable until the order ships; shipped and completed
// orders can no longer be cancelled.
var AllowedTransitions = map[string][]string{
	OrderStatusDraft:      {OrderStatusPending, OrderStatusCancelled},
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusCompleted},
	OrderStatusCompleted:  {},
	OrderStatusCancelled:  {},
}

// CanTransition reports whether to is a legal successor of from.
func CanTransition(from, to string) bool {
	for _, s := range AllowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsValidStatus reports whether s is a known order status.
func IsValidStatus(s string) bool {
	_, ok := AllowedTransitions[s]
	return ok
}

// Order represents a customer order aggregate
type Order struct {
	ID          int64           `db:"id" json:"id"`
	OrderNumber string          `db:"order_number" json:"order_number"`
	UserID      int64           `db:"user_id" json:"user_id"`
	Status      string          `db:"status" json:"status"`
	TotalAmount decimal.Decimal `db:"total_amount" json:"total_amount"`
	// Version is bumped on every mutation; transitions carry a version
	// check so concurrent writers cannot overwrite each other.
	Version        int64      `db:"version" json:"version"`
	IdempotencyKey string     `db:"idempotency_key" json:"idempotency_key,omitempty"`
	Deleted        bool       `db:"deleted" json:"-"`
	DeletedAt      *time.Time `db:"deleted_at" json:"-"`
	DeletedBy      string     `db:"deleted_by" json:"-"`
	CreatedBy      string     `db:"created_by" json:"created_by"`
	UpdatedBy      string     `db:"updated_by" json:"updated_by"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`

	Items           []OrderItem          `db:"-" json:"order_items,omitempty"`
	StatusHistory   []StatusHistoryEntry `db:"-" json:"status_history,omitempty"`
	ShipmentDetails *ShipmentDetails     `db:"-" json:"shipment_details,omitempty"`
}

// Mutable reports whether order contents (line items) may still change.
// Only draft orders are editable.
func (o *Order) Mutable() bool {
	return o.Status == OrderStatusDraft
}

// OrderItem represents a line item in an order
type OrderItem struct {
	ID        int64           `db:"id" json:"id"`
	OrderID   int64           `db:"order_id" json:"order_id"`
	ProductID int64           `db:"product_id" json:"product_id"`
	SKU       string          `db:"sku" json:"sku"`
	Name      string          `db:"name" json:"name"`
	Quantity  int             `db:"quantity" json:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`
	Tax       decimal.Decimal `db:"tax" json:"tax"`
	Discount  decimal.Decimal `db:"discount" json:"discount"`
	// TotalPrice == quantity*unitPrice + tax - discount, computed at write time
	TotalPrice decimal.Decimal `db:"total_price" json:"total_price"`
}

// ComputeTotal returns quantity*unitPrice + tax - discount.
func (i *OrderItem) ComputeTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity))).Add(i.Tax).Sub(i.Discount)
}

// StatusHistoryEntry is an append-only record of a status change
type StatusHistoryEntry struct {
	ID        int64     `db:"id" json:"-"`
	OrderID   int64     `db:"order_id" json:"-"`
	Status    string    `db:"status" json:"status"`
	Actor     string    `db:"actor" json:"actor"`
	CreatedAt time.Time `db:"created_at" json:"timestamp"`
}

// ShipmentDetails holds carrier tracking state for an order
type ShipmentDetails struct {
	OrderID        int64     `db:"order_id" json:"-"`
	TrackingNumber string    `db:"tracking_number" json:"tracking_number"`
	Carrier        string    `db:"carrier" json:"carrier"`
	Service        string    `db:"service" json:"service"`
	LastUpdate     time.Time `db:"last_update" json:"last_update"`
}

// Notification types
const (
	NotificationTypeOrderStatus = "order-status"
	NotificationTypeLowStock    = "low-stock"
	NotificationTypePromotion   = "promotion"
)

// Notification represents a persisted user notification
type Notification struct {
	ID        int64      `db:"id" json:"id"`
	Title     string     `db:"title" json:"title"`
	Message   string     `db:"message" json:"message"`
	Type      string     `db:"type" json:"type"`
	UserID    int64      `db:"user_id" json:"user_id"`
	Role      string     `db:"role" json:"role,omitempty"`
	Read      bool       `db:"read" json:"read"`
	ReadAt    *time.Time `db:"read_at" json:"read_at,omitempty"`
	RelatedID int64      `db:"related_id" json:"related_id,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// Product is a catalog reference supplied by the ERP
type Product struct {
	ID    int64           `json:"id"`
	SKU   string          `json:"sku"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	// MOQ is the minimum order quantity for the product
	MOQ int `json:"moq"`
}

// Contract is a distributor contract supplied by the ERP
type Contract struct {
	ID         string    `json:"id"`
	PartnerID  int64     `json:"partner_id"`
	Terms      string    `json:"terms"`
	ValidUntil time.Time `json:"valid_until"`
}

// TrackingInfo is the carrier's view of a shipment
type TrackingInfo struct {
	TrackingNumber string    `json:"tracking_number"`
	Status         string    `json:"status"`
	Location       string    `json:"location,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ShipmentHandle is returned by the carrier when a shipment is created
type ShipmentHandle struct {
	TrackingNumber string `json:"tracking_number"`
	Carrier        string `json:"carrier"`
	Service        string `json:"service"`
	LabelURL       string `json:"label_url,omitempty"`
}

// ExternalStatus is the ERP's view of an order's status
type ExternalStatus struct {
	OrderID   int64     `json:"order_id"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}
