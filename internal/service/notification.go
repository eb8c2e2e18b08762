package service

import (
	"context"
	"fmt"

	"order-platform/internal/models"
	"order-platform/internal/util"

	"go.uber.org/zap"
)

// NotificationStore is the persistence surface for notifications.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotificationsByUserID(ctx context.Context, userID int64) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, id, userID int64) error
	MarkAllNotificationsRead(ctx context.Context, userID int64) error
}

// EmailSender delivers a single message. Implemented by Mailer; nil when
// no SMTP host is configured.
type EmailSender interface {
	Send(to, subject, body string) error
}

// ContactResolver resolves a user's email address. User management lives
// outside this service, so only this lookup is required of it.
type ContactResolver interface {
	EmailForUser(ctx context.Context, userID int64) (string, error)
}

// NotificationDispatcher persists notifications for order events and
// sends email for high-priority ones. Persistence and email delivery are
// deliberately independent: a failed email never rolls back the stored
// notification.
type NotificationDispatcher struct {
	store    NotificationStore
	mailer   EmailSender
	contacts ContactResolver
	logger   *zap.Logger
}

// NewNotificationDispatcher creates a dispatcher. mailer and contacts may
// be nil, which disables email delivery.
func NewNotificationDispatcher(store NotificationStore, mailer EmailSender, contacts ContactResolver) *NotificationDispatcher {
	return &NotificationDispatcher{
		store:    store,
		mailer:   mailer,
		contacts: contacts,
		logger:   util.GetLogger(),
	}
}

// NotifyStatusChanged persists a notification for a status transition and
// emails the order's owner when the event is high-priority.
func (d *NotificationDispatcher) NotifyStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	n := &models.Notification{
		Title:     fmt.Sprintf("Order %s is now %s", event.OrderNumber, event.ToStatus),
		Message:   fmt.Sprintf("Order %s moved from %s to %s by %s", event.OrderNumber, event.FromStatus, event.ToStatus, event.Actor),
		Type:      models.NotificationTypeOrderStatus,
		UserID:    event.UserID,
		RelatedID: event.OrderID,
	}

	if err := d.store.CreateNotification(ctx, n); err != nil {
		return fmt.Errorf("failed to persist notification: %w", err)
	}
	util.NotificationsCreatedTotal.WithLabelValues(n.Type).Inc()

	if event.HighPriority {
		d.sendEmail(ctx, event.UserID, n.Title, n.Message)
	}

	return nil
}

// NotifyShipmentCreated persists a notification for a new shipment.
func (d *NotificationDispatcher) NotifyShipmentCreated(ctx context.Context, event *models.ShipmentCreatedEvent) error {
	n := &models.Notification{
		Title:     fmt.Sprintf("Order %s has shipped", event.OrderNumber),
		Message:   fmt.Sprintf("Shipment %s created with %s for order %s", event.TrackingNumber, event.Carrier, event.OrderNumber),
		Type:      models.NotificationTypeOrderStatus,
		UserID:    event.UserID,
		RelatedID: event.OrderID,
	}

	if err := d.store.CreateNotification(ctx, n); err != nil {
		return fmt.Errorf("failed to persist notification: %w", err)
	}
	util.NotificationsCreatedTotal.WithLabelValues(n.Type).Inc()
	return nil
}

// sendEmail is best-effort: there is no two-phase guarantee between the
// stored notification and its email.
func (d *NotificationDispatcher) sendEmail(ctx context.Context, userID int64, subject, body string) {
	if d.mailer == nil || d.contacts == nil {
		return
	}

	address, err := d.contacts.EmailForUser(ctx, userID)
	if err != nil || address == "" {
		d.logger.Info("No contact channel for user, skipping email",
			zap.Int64("user_id", userID))
		return
	}

	if err := d.mailer.Send(address, subject, body); err != nil {
		util.NotificationEmailsFailed.Inc()
		d.logger.Error("Failed to send notification email",
			zap.Int64("user_id", userID),
			zap.String("subject", subject),
			zap.Error(err))
		return
	}
	util.NotificationEmailsSent.Inc()
}

// ListNotifications returns a user's notifications, newest first.
func (d *NotificationDispatcher) ListNotifications(ctx context.Context, userID int64) ([]models.Notification, error) {
	return d.store.ListNotificationsByUserID(ctx, userID)
}

// MarkAsRead marks one notification read for a user. Idempotent.
func (d *NotificationDispatcher) MarkAsRead(ctx context.Context, id, userID int64) error {
	return d.store.MarkNotificationRead(ctx, id, userID)
}

// MarkAllAsRead marks all of a user's notifications read. Idempotent.
func (d *NotificationDispatcher) MarkAllAsRead(ctx context.Context, userID int64) error {
	return d.store.MarkAllNotificationsRead(ctx, userID)
}
