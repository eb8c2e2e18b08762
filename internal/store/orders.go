package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"order-platform/internal/apperr"
	"order-platform/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const uniqueViolation = pq.ErrorCode("23505")

// CreateOrder inserts an order together with its line items and the
// initial history entry in a single transaction.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO orders (order_number, user_id, status, total_amount, version, idempotency_key, created_by, updated_by)
		VALUES ($1, $2, $3, $4, 1, $5, $6, $6)
		RETURNING id, version, created_at, updated_at`

	if err := tx.GetContext(ctx, order, query,
		order.OrderNumber, order.UserID, order.Status, order.TotalAmount,
		order.IdempotencyKey, order.CreatedBy); err != nil {
		// Two concurrent submissions with the same idempotency key both
		// pass the pre-insert lookup; the loser hits the unique index and
		// surfaces as Conflict so the caller can fetch the winner.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation && strings.Contains(pqErr.Constraint, "idempotency") {
			return apperr.Newf(apperr.KindConflict,
				"order with idempotency key %s already exists", order.IdempotencyKey)
		}
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range items {
		items[i].OrderID = order.ID
		if err := s.insertItemTx(ctx, tx, &items[i]); err != nil {
			return err
		}
	}
	order.Items = items

	if err := s.appendHistoryTx(ctx, tx, order.ID, order.Status, order.CreatedBy); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) insertItemTx(ctx context.Context, tx *sqlx.Tx, item *models.OrderItem) error {
	query := `
		INSERT INTO order_items (order_id, product_id, sku, name, quantity, unit_price, tax, discount, total_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	if err := tx.GetContext(ctx, &item.ID, query,
		item.OrderID, item.ProductID, item.SKU, item.Name, item.Quantity,
		item.UnitPrice, item.Tax, item.Discount, item.TotalPrice); err != nil {
		return fmt.Errorf("failed to insert order item: %w", err)
	}
	return nil
}

// appendHistoryTx appends one status-history row. History is append-only:
// no update or delete statement for order_status_history exists anywhere
// in this package.
func (s *Store) appendHistoryTx(ctx context.Context, tx *sqlx.Tx, orderID int64, status, actor string) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO order_status_history (order_id, status, actor) VALUES ($1, $2, $3)",
		orderID, status, actor)
	if err != nil {
		return fmt.Errorf("failed to append status history: %w", err)
	}
	return nil
}

// GetOrderByID retrieves a live (not soft-deleted) order without its
// associations.
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		"SELECT * FROM orders WHERE id = $1 AND NOT deleted", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Newf(apperr.KindNotFound, "order %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderDetail retrieves an order with items, status history and
// shipment details attached.
func (s *Store) GetOrderDetail(ctx context.Context, id int64) (*models.Order, error) {
	order, err := s.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.db.SelectContext(ctx, &order.Items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", id); err != nil {
		return nil, err
	}

	if err := s.db.SelectContext(ctx, &order.StatusHistory,
		"SELECT * FROM order_status_history WHERE order_id = $1 ORDER BY id", id); err != nil {
		return nil, err
	}

	shipment, err := s.GetShipmentByOrderID(ctx, id)
	if err != nil && !apperr.Is(err, apperr.KindNotFound) {
		return nil, err
	}
	order.ShipmentDetails = shipment

	return order, nil
}

// GetOrderByIdempotencyKey returns nil without error when no order
// carries the key.
func (s *Store) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		"SELECT * FROM orders WHERE idempotency_key = $1 AND NOT deleted", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListOrdersByUserID retrieves live orders for a user, newest first.
func (s *Store) ListOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE user_id = $1 AND NOT deleted ORDER BY created_at DESC", userID)
	return orders, err
}

// ListOrders retrieves all live orders, newest first.
func (s *Store) ListOrders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE NOT deleted ORDER BY created_at DESC")
	return orders, err
}

// TransitionStatus applies a validated status change atomically: the
// status update, version bump and history append share one transaction.
// expectedVersion guards against concurrent transitions; a mismatch means
// another writer got there first and surfaces as Conflict.
func (s *Store) TransitionStatus(ctx context.Context, orderID int64, target, actor string, expectedVersion int64) (*models.Order, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var order models.Order
	err = tx.GetContext(ctx, &order, `
		UPDATE orders
		SET status = $1, version = version + 1, updated_by = $2, updated_at = NOW()
		WHERE id = $3 AND NOT deleted AND version = $4
		RETURNING *`,
		target, actor, orderID, expectedVersion)
	if errors.Is(err, sql.ErrNoRows) {
		// Distinguish a lost version race from a missing order.
		var exists bool
		if checkErr := tx.GetContext(ctx, &exists,
			"SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1 AND NOT deleted)", orderID); checkErr != nil {
			return nil, checkErr
		}
		if exists {
			return nil, apperr.Newf(apperr.KindConflict, "order %d was modified concurrently", orderID)
		}
		return nil, apperr.Newf(apperr.KindNotFound, "order %d not found", orderID)
	}
	if err != nil {
		return nil, err
	}

	if err := s.appendHistoryTx(ctx, tx, orderID, target, actor); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &order, nil
}

// ReplaceOrderItems swaps the full line-item set of a draft order and
// recomputes total_amount. The draft check happens in the service layer;
// the version bump here keeps concurrent editors honest.
func (s *Store) ReplaceOrderItems(ctx context.Context, orderID int64, items []models.OrderItem, totalAmount decimal.Decimal, actor string, expectedVersion int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET total_amount = $1, version = version + 1, updated_by = $2, updated_at = NOW()
		WHERE id = $3 AND NOT deleted AND version = $4`,
		totalAmount, actor, orderID, expectedVersion)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperr.Newf(apperr.KindConflict, "order %d was modified concurrently", orderID)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM order_items WHERE order_id = $1", orderID); err != nil {
		return err
	}
	for i := range items {
		items[i].OrderID = orderID
		if err := s.insertItemTx(ctx, tx, &items[i]); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// SoftDeleteOrder marks an order deleted; the row and its history remain.
func (s *Store) SoftDeleteOrder(ctx context.Context, orderID int64, actor string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET deleted = TRUE, deleted_at = NOW(), deleted_by = $1, updated_at = NOW()
		WHERE id = $2 AND NOT deleted`,
		actor, orderID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperr.Newf(apperr.KindNotFound, "order %d not found", orderID)
	}
	return nil
}

// GetShipmentByOrderID retrieves shipment details for an order.
func (s *Store) GetShipmentByOrderID(ctx context.Context, orderID int64) (*models.ShipmentDetails, error) {
	var sd models.ShipmentDetails
	err := s.db.GetContext(ctx, &sd,
		"SELECT * FROM shipment_details WHERE order_id = $1", orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Newf(apperr.KindNotFound, "no shipment for order %d", orderID)
	}
	if err != nil {
		return nil, err
	}
	return &sd, nil
}

// SaveShipmentDetails creates or supersedes the shipment record for an
// order. Shipments are never deleted, only overwritten by later updates.
func (s *Store) SaveShipmentDetails(ctx context.Context, sd *models.ShipmentDetails) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shipment_details (order_id, tracking_number, carrier, service, last_update)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (order_id) DO UPDATE
		SET tracking_number = EXCLUDED.tracking_number,
		    carrier = EXCLUDED.carrier,
		    service = EXCLUDED.service,
		    last_update = EXCLUDED.last_update`,
		sd.OrderID, sd.TrackingNumber, sd.Carrier, sd.Service, sd.LastUpdate)
	return err
}

// TouchShipmentLastUpdate records when external state was last merged.
func (s *Store) TouchShipmentLastUpdate(ctx context.Context, orderID int64, t time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE shipment_details SET last_update = $1 WHERE order_id = $2", t, orderID)
	return err
}
