package store

import (
	"context"
	"database/sql"
	"errors"

	"order-platform/internal/apperr"
	"order-platform/internal/models"
)

// CreateNotification persists a notification.
func (s *Store) CreateNotification(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications (title, message, type, user_id, role, read, related_id)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6)
		RETURNING id, created_at`

	return s.db.GetContext(ctx, n, query,
		n.Title, n.Message, n.Type, n.UserID, n.Role, n.RelatedID)
}

// ListNotificationsByUserID retrieves a user's notifications, newest
// first. Nothing is ever physically deleted on the read path.
func (s *Store) ListNotificationsByUserID(ctx context.Context, userID int64) ([]models.Notification, error) {
	var notifications []models.Notification
	err := s.db.SelectContext(ctx, &notifications,
		`SELECT * FROM notifications WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	return notifications, err
}

// MarkNotificationRead marks one notification read, scoped to the
// requesting user. Marking an already-read notification is a no-op, not
// an error.
func (s *Store) MarkNotificationRead(ctx context.Context, id, userID int64) error {
	var read bool
	err := s.db.GetContext(ctx, &read,
		"SELECT read FROM notifications WHERE id = $1 AND user_id = $2", id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.Newf(apperr.KindNotFound, "notification %d not found", id)
	}
	if err != nil {
		return err
	}
	if read {
		return nil
	}

	_, err = s.db.ExecContext(ctx,
		"UPDATE notifications SET read = TRUE, read_at = NOW() WHERE id = $1 AND user_id = $2 AND NOT read",
		id, userID)
	return err
}

// MarkAllNotificationsRead marks every unread notification of a user read.
func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET read = TRUE, read_at = NOW() WHERE user_id = $1 AND NOT read", userID)
	return err
}
